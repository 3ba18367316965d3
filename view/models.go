// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package view

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// Uint64 stores values above the signed 64-bit range as decimal text,
// which every SQL backend can hold.
//
//nolint:recvcheck
type Uint64 uint64

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	var v string
	switch t := val.(type) {
	case string:
		v = t
	case []byte:
		v = string(t)
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmpUint, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}

// Record is the last committed state of one program account
type Record struct {
	Address   string `gorm:"primaryKey;size:44"`
	Kind      string `gorm:"index:idx_record_kind_owner;size:32"`
	Owner     string `gorm:"index:idx_record_kind_owner;size:44"`
	Data      []byte
	Balance   Uint64 `gorm:"size:20"`
	Slot      Uint64 `gorm:"size:20"`
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "record"
}

// MigrateModels lists the tables created on open
var MigrateModels = []any{
	&Record{},
}

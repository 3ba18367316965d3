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

package entity

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

// Role is the closed set of participant roles a user can register with.
// Each role owns exactly one child counter on the user record.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleWarehouse
	RoleFactory
	RoleSeller
	RoleInspector
)

type roleInfo struct {
	name    string
	counter CounterField
	child   Kind
}

var roles = map[Role]roleInfo{
	RoleWarehouse: {name: "WAREHOUSE", counter: FieldWarehouseCount, child: KindWarehouse},
	RoleFactory:   {name: "FACTORY", counter: FieldFactoryCount, child: KindFactory},
	RoleSeller:    {name: "SELLER", counter: FieldSellerCount, child: KindSeller},
	RoleInspector: {name: "INSPECTOR", counter: FieldInspectorCount, child: KindProductInspector},
}

// Roles returns every valid role
func Roles() []Role {
	return []Role{RoleWarehouse, RoleFactory, RoleSeller, RoleInspector}
}

// ParseRole parses the stored role string. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for role, info := range roles {
		if info.name == upper {
			return role, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// String returns the form stored on the ledger
func (r Role) String() string {
	if info, ok := roles[r]; ok {
		return info.name
	}
	return "UNKNOWN"
}

func (r Role) Valid() bool {
	_, ok := roles[r]
	return ok
}

// CounterField is the user counter that sequences this role's records
func (r Role) CounterField() CounterField {
	return roles[r].counter
}

// ChildKind is the record kind this role creates under its user record
func (r Role) ChildKind() Kind {
	return roles[r].child
}

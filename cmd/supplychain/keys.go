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
package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/supplychain/address"
	"github.com/blinklabs-io/supplychain/derive"
	"github.com/blinklabs-io/supplychain/entity"
	"github.com/blinklabs-io/supplychain/keystore"
)

func keygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen <name>...",
		Short: "Create wallet key files in the key directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustConfig(cmd)
			logger := commonRun(cfg)
			ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
				Dir:    cfg.KeyDir,
				Logger: logger,
			})
			for _, name := range args {
				key, err := ks.Create(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, key.PublicKey())
			}
			return nil
		},
	}
	return cmd
}

func deriveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <kind> <parent> [sequence]",
		Short: "Print the address of a record",
		Long: `Print the address of a record.

For a user record the parent is the owning wallet and no sequence is given.
Every other kind takes the address of its parent record and the 1-based
sequence number of the record under that parent.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mustConfig(cmd)
			programID, err := cfg.ProgramAddress()
			if err != nil {
				return err
			}
			kind, err := entity.ParseKind(args[0])
			if err != nil {
				return err
			}
			parent, err := address.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid parent: %w", err)
			}
			d := derive.New(programID)
			var addr address.Address
			if kind == entity.KindUser {
				if len(args) != 2 {
					return errors.New("a user record takes no sequence")
				}
				addr, err = d.User(parent)
			} else {
				if len(args) != 3 {
					return fmt.Errorf("a %s record needs a sequence", kind)
				}
				seq, perr := strconv.ParseUint(args[2], 10, 64)
				if perr != nil {
					return fmt.Errorf("invalid sequence: %w", perr)
				}
				addr, err = d.Child(kind, parent, seq)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
	return cmd
}

// Copyright 2025 Google LLC
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
	"fmt"
	"os"

	"github.com/gx-org/lowerfn/build/lowered"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <file.manifest>",
		Short: "Print a manifest written by the lower command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.WithStack(err)
			}
			defer f.Close()
			m, err := lowered.ReadManifest(f)
			if err != nil {
				return errors.WithMessage(err, args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), m.String())
			return nil
		},
	}
}

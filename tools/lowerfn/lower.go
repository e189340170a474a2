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
	"context"
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gx-org/lowerfn/build/lowered"
	"github.com/gx-org/lowerfn/tools/gxflag"
	"github.com/gx-org/lowerfn/tools/lowerfn/fnconfig"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

type lowerFlags struct {
	manifestDir string
	parallel    bool
	funcs       *[]string
}

func newLowerCmd() *cobra.Command {
	flags := &lowerFlags{}
	cmd := &cobra.Command{
		Use:   "lower [flags] <file.toml>",
		Short: "Finalize the functions of a description and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(cmd, flags, args[0])
		},
	}
	cmd.Flags().StringVar(&flags.manifestDir, "manifest", "", "folder where to write the manifest of each function")
	cmd.Flags().BoolVar(&flags.parallel, "parallel", false, "finalize functions concurrently")
	funcFlags := goflag.NewFlagSet("lower", goflag.ContinueOnError)
	flags.funcs = gxflag.StringList(funcFlags, "funcs", "comma-separated list of functions to lower (all if empty)")
	cmd.Flags().AddGoFlagSet(funcFlags)
	return cmd
}

func selectDrafts(drafts []*lowered.Draft, names []string) ([]*lowered.Draft, error) {
	if len(names) == 0 {
		return drafts, nil
	}
	var selected []*lowered.Draft
	for _, name := range names {
		i := slices.IndexFunc(drafts, func(d *lowered.Draft) bool { return d.Name == name })
		if i < 0 {
			return nil, errors.Errorf("function %s not found", name)
		}
		selected = append(selected, drafts[i])
	}
	return selected, nil
}

func finalize(ctx context.Context, drafts []*lowered.Draft, parallel bool, opts []lowered.Option) ([]*lowered.Func, error) {
	if parallel {
		return lowered.FinalizeAll(ctx, drafts, opts...)
	}
	fns := make([]*lowered.Func, len(drafts))
	for i, draft := range drafts {
		fn, err := draft.Finalize(opts...)
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}
	return fns, nil
}

func runLower(cmd *cobra.Command, flags *lowerFlags, path string) error {
	file, err := fnconfig.Load(path)
	if err != nil {
		return err
	}
	drafts, err := file.Drafts()
	if err != nil {
		return err
	}
	if drafts, err = selectDrafts(drafts, *flags.funcs); err != nil {
		return err
	}
	fns, err := finalize(cmd.Context(), drafts, flags.parallel, file.LoweringOptions())
	if err != nil {
		return err
	}
	for _, fn := range fns {
		fmt.Fprintln(cmd.OutOrStdout(), fn.String())
		if flags.manifestDir == "" {
			continue
		}
		if err := writeManifest(flags.manifestDir, fn); err != nil {
			return err
		}
	}
	return nil
}

func writeManifest(dir string, fn *lowered.Func) (err error) {
	m, err := fn.Manifest()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	path := filepath.Join(dir, fn.Name()+".manifest")
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = errors.WithStack(closeErr)
		}
	}()
	klog.V(1).Infof("writing %s", path)
	return lowered.WriteManifest(f, m)
}

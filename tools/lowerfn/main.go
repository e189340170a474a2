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

// Command lowerfn lowers functions described in TOML files.
//
// Usage:
//
//	lowerfn lower kernels.toml --manifest out/
//	lowerfn manifest out/kernel.manifest
package main

import (
	goflag "flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/gx-org/lowerfn/build/fmterr"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var errorColor = color.New(color.FgRed, color.Bold)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lowerfn",
		Short:         "Finalize lowered functions",
		Long:          `lowerfn finalizes functions described in TOML files and prints their lowered form or writes their manifests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mode, err := cmd.Flags().GetString("color")
			if err != nil {
				return err
			}
			return setColorMode(mode)
		},
	}
	root.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(newLowerCmd())
	root.AddCommand(newManifestCmd())
	return root
}

func setColorMode(mode string) error {
	switch mode {
	case "auto":
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid color mode %q: want auto, on, or off", mode)
	}
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer klog.Flush()
	if err := root.Execute(); err != nil {
		errorColor.Fprint(stderr, "error: ")
		fmt.Fprintln(stderr, err)
		klog.V(1).Infof("%+v", fmterr.ToStackTraceError(err))
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

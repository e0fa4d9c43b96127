// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"strings"

	"github.com/penny-vault/pv-risk/common"
	"github.com/spf13/cobra"
)

var (
	printDeps  bool
	printShort bool
)

func init() {
	versionCmd.Flags().BoolVar(&printDeps, "deps", false, "also print the module dependencies")
	versionCmd.Flags().BoolVar(&printShort, "short", false, "print only the semantic version")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if printShort {
			fmt.Fprintln(out, common.CurrentVersion.String())
			return
		}

		fmt.Fprintln(out, common.BuildVersionString())
		if printDeps {
			fmt.Fprintf(out, "\nDependencies:\n\n%s\n", strings.Join(common.GetDependencyList(), "\n"))
		}
	},
}

// Copyright 2025 walteh LLC
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
	"strings"

	"github.com/spf13/cobra"
	"github.com/walteh/updaterc/pkg/operation"
	"github.com/walteh/updaterc/pkg/plan"
)

const filesHelp = `
Files are named relative to the install root and may be doublestar globs
such as 'jars/**/*.jar'. Without files every file is considered.`

// 📋 NewListCmd creates a list command printing the files matching filter
func NewListCmd(opts *rootOpts, use, short string, filter operation.Filter) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [files...]",
		Short: short,
		Long:  short + ". Each line is 'filename\\t(STATUS)\\ttimestamp'.\n" + filesHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.op.Load(ctx)
			if err != nil {
				return err
			}
			return opts.op.List(ctx, c, args, filter)
		},
	}
}

// 📋 NewListCurrentCmd creates the list-current command
func NewListCurrentCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list-current [files...]",
		Short: "List files as filename-timestamp",
		Long:  "List the version every file is at as 'filename-timestamp'.\n" + filesHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.op.Load(ctx)
			if err != nil {
				return err
			}
			return opts.op.ListCurrent(ctx, c, args)
		},
	}
}

// ⬇️ NewUpdateCmd creates an update command
func NewUpdateCmd(opts *rootOpts, use, short string, force, pristine bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [files...]",
		Short: short,
		Long: short + `.
Dependencies of the named files are included. Files are downloaded and verified
before any live file is replaced.` + "\n" + filesHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.op.Load(ctx)
			if err != nil {
				return err
			}
			report, err := opts.op.Update(ctx, c, args, plan.Mode{Force: force, Pristine: pristine})
			if err != nil {
				return err
			}
			if !report.OK() {
				opts.diag.Warningf("%d file(s) failed: %s", len(report.Failed), strings.Join(report.FailedFiles(), ", "))
			}
			return nil
		},
	}
}

// ⬆️ NewUploadCmd creates the upload command
func NewUploadCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <files...>",
		Short: "Upload files to their update site",
		Long: `Upload local files to their update site. All files must belong to the same
site; files no site knows yet are uploaded to the chosen site.` + "\n" + filesHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.op.Load(ctx)
			if err != nil {
				return err
			}
			report, err := opts.op.Upload(ctx, c, args)
			if err != nil {
				return err
			}
			if !report.OK() {
				opts.diag.Warningf("%d file(s) failed: %s", len(report.Failed), strings.Join(report.FailedFiles(), ", "))
			}
			return nil
		},
	}
}

// 🗑️ NewRemoveCmd creates the remove command
func NewRemoveCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <files...>",
		Short: "Remove files from their update site",
		Long:  "Remove files from their update site's index. Installed copies are kept.\n" + filesHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.op.Load(ctx)
			if err != nil {
				return err
			}
			report, err := opts.op.Remove(ctx, c, args)
			if err != nil {
				return err
			}
			if !report.OK() {
				opts.diag.Warningf("%d file(s) failed: %s", len(report.Failed), strings.Join(report.FailedFiles(), ", "))
			}
			return nil
		},
	}
}

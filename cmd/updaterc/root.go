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
	"context"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/updaterc/pkg/config"
	"github.com/walteh/updaterc/pkg/download"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/install"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/operation"
	"github.com/walteh/updaterc/pkg/remote"
	"github.com/walteh/updaterc/pkg/status"
	"github.com/walteh/updaterc/pkg/ui"
	"github.com/walteh/updaterc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

// rootOpts holds the persistent flags and the wiring built from them
type rootOpts struct {
	configFile  string
	debug       bool
	offline     bool
	metricsFile string

	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs
	getenv func(string) string

	cfg  *config.Config
	diag *log.Logger
	op   *operation.Operator
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *rootOpts) {
	opts := &rootOpts{
		stdout: stdout,
		stderr: stderr,
		fs:     afero.NewOsFs(),
		getenv: os.Getenv,
	}

	rootCmd := &cobra.Command{
		Use:   "updaterc",
		Short: "Keep an installation in sync with its update sites",
		Long: `updaterc tracks the files of an installation against one or more update sites.
It lists what is out of date, installs and updates files with their dependencies,
and publishes local files to an update site.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			setupLogging(opts.debug)
			if err := opts.build(ctx); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Debug().Str("config", opts.cfg.String()).Msg("ready")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (default: .updaterc.{hcl,yaml,yml,json} in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.offline, "offline", false, "use the cached site indexes")
	rootCmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "write prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		NewListCmd(opts, "list", "List files and their status", nil),
		NewListCmd(opts, "list-uptodate", "List installed files at the latest version", operation.UpToDate),
		NewListCmd(opts, "list-not-uptodate", "List files an update would change", operation.NotUpToDate),
		NewListCmd(opts, "list-updateable", "List files with a newer published version", operation.Updateable),
		NewListCmd(opts, "list-modified", "List locally modified files", operation.Modified),
		NewListCurrentCmd(opts),
		NewUpdateCmd(opts, "update", "Install and update files with their dependencies", false, false),
		NewUpdateCmd(opts, "update-force", "Like update, overwriting locally modified files", true, false),
		NewUpdateCmd(opts, "update-force-pristine", "Like update-force, also deleting files no site knows", true, true),
		NewUploadCmd(opts),
		NewRemoveCmd(opts),
	)

	return rootCmd, opts
}

// setupLogging configures zerolog based on flags. Without --debug only the
// diagnostic lines reach stderr.
func setupLogging(debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
}

// 🔧 build loads the configuration and wires the transport, the interactor and the operator
func (o *rootOpts) build(ctx context.Context) error {
	o.diag = log.FromContext(ctx)

	path := o.configFile
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return errors.Errorf("getting working directory: %w", err)
		}
		found, ok := config.Discover(o.fs, cwd)
		if !ok {
			return errors.Errorf("no configuration found in %s, options: %s", cwd, strings.Join(config.DefaultNames, ", "))
		}
		path = found
	}

	cfg, err := config.Load(ctx, o.fs, path)
	if err != nil {
		return err
	}
	if o.offline {
		cfg.Offline = true
	}
	o.cfg = cfg

	proxy, err := remote.ParseProxy(remote.ProxySetting(cfg.Proxy, o.getenv))
	if err != nil {
		return err
	}
	client := remote.NewClient(remote.ClientOptions{
		Options: remote.Options{HTTPClient: remote.NewHTTPClient(proxy), Fs: o.fs},
	})

	console, err := ui.NewConsole(ui.ConsoleOptions{
		Out:         o.stderr,
		Logger:      o.diag,
		Interactive: isatty.IsTerminal(os.Stdin.Fd()),
		Getenv:      o.getenv,
	})
	if err != nil {
		return err
	}

	store := index.NewFileStore(o.fs, cfg.Index)

	downloader, err := download.New(download.Options{
		Fs:          o.fs,
		Fetcher:     client,
		Progress:    console,
		Concurrency: cfg.Concurrency,
		Retry:       cfg.RetryConfig(),
	})
	if err != nil {
		return errors.Errorf("creating downloader: %w", err)
	}

	installer, err := install.New(install.Options{
		Fs:       o.fs,
		Root:     cfg.Root,
		Platform: cfg.Platform,
		Store:    store,
		Stager:   downloader,
		Logger:   o.diag,
	})
	if err != nil {
		return errors.Errorf("creating installer: %w", err)
	}

	uploader, err := upload.New(upload.Options{
		Fs:        o.fs,
		Root:      cfg.Root,
		Store:     store,
		Connector: client,
		UI:        console,
		Logger:    o.diag,
	})
	if err != nil {
		return errors.Errorf("creating uploader: %w", err)
	}

	var formatter status.FileFormatter
	if f, ok := o.stdout.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		formatter = status.NewColorFileFormatter()
	}

	o.op, err = operation.New(operation.Options{
		Fs:        o.fs,
		Root:      cfg.Root,
		Platform:  cfg.Platform,
		Store:     store,
		Sites:     cfg.UpdateSites(),
		Fetcher:   client,
		Installer: installer,
		Uploader:  uploader,
		UI:        console,
		Logger:    o.diag,
		Out:       o.stdout,
		Formatter: formatter,
		Offline:   cfg.Offline,
	})
	if err != nil {
		return errors.Errorf("creating operator: %w", err)
	}
	return nil
}

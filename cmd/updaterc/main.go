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
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/metrics"

	_ "github.com/walteh/updaterc/pkg/remote/filesite"
	_ "github.com/walteh/updaterc/pkg/remote/githubsite"
	_ "github.com/walteh/updaterc/pkg/remote/httpsite"
	_ "github.com/walteh/updaterc/pkg/remote/s3site"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// 🚀 run executes one command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()
	diag := log.New(stderr, zlog)
	ctx = log.NewContext(zlog.WithContext(ctx), diag)

	rootCmd, opts := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	code := 0
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		diag.Error(err.Error())
		code = 1
	}

	if opts.metricsFile != "" {
		if err := metrics.WriteToTextfile(opts.metricsFile); err != nil {
			diag.Warningf("writing metrics: %s", err)
		}
	}
	return code
}

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

// Package install applies a planned batch to the live tree.
//
//	stage:  download every INSTALL/UPDATE file into <root>/.updaterc/staging
//	commit: rename each verified file over its live path, delete UNINSTALL files
//	save:   rewrite the local index once every commit was attempted
//
// The staging directory lives inside the install root so the commit rename
// never crosses filesystems. A crash during commit leaves every live file
// either old or new, and the index still describes the old tree, which the
// next status pass detects by checksum.
package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/updaterc/pkg/download"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/metrics"
	"github.com/walteh/updaterc/pkg/platform"
	"github.com/walteh/updaterc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// StagingDir is the staging directory relative to the install root
const StagingDir = ".updaterc/staging"

// ErrCommitIO is matched by errors from replacing or deleting a live file
var ErrCommitIO = errors.Base("commit failed")

// 💥 CommitError is the failure to change one live file
type CommitError struct {
	Filename string
	Action   index.Action
	Err      error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Action, e.Filename, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

func (e *CommitError) Is(target error) bool {
	return target == ErrCommitIO
}

// Stager downloads jobs into staging, download.Downloader implements it
type Stager interface {
	Run(ctx context.Context, jobs []download.Job) []download.Result
}

// Options configures an Installer
type Options struct {
	Fs       afero.Fs
	Root     string
	Platform string
	Store    index.Store
	Stager   Stager
	Logger   *log.Logger
}

// 🔧 Installer commits staged downloads into the live tree
type Installer struct {
	fs       afero.Fs
	root     string
	platform string
	store    index.Store
	stager   Stager
	diag     *log.Logger
}

// 🏭 New creates an Installer
func New(opts Options) (*Installer, error) {
	switch {
	case opts.Fs == nil:
		return nil, errors.New("filesystem is required")
	case opts.Root == "":
		return nil, errors.New("root is required")
	case opts.Store == nil:
		return nil, errors.New("index store is required")
	case opts.Stager == nil:
		return nil, errors.New("stager is required")
	case opts.Logger == nil:
		return nil, errors.New("logger is required")
	}
	p := opts.Platform
	if p == "" {
		p = platform.Current()
	}
	return &Installer{
		fs:       opts.Fs,
		root:     filepath.Clean(opts.Root),
		platform: p,
		store:    opts.Store,
		stager:   opts.Stager,
		diag:     opts.Logger,
	}, nil
}

// 📊 Report lists what an Apply did
type Report struct {
	Installed []string
	Removed   []string
	Failed    map[string]error
}

// OK reports whether every planned file was applied
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// FailedFiles returns the failed filenames, sorted
func (r *Report) FailedFiles() []string {
	out := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (i *Installer) livePath(filename string) (string, error) {
	return index.LivePath(i.root, filename)
}

func (i *Installer) stagingPath(filename string) (string, error) {
	return index.LivePath(filepath.Join(i.root, filepath.FromSlash(StagingDir)), filename)
}

// 🚀 Apply executes the INSTALL, UPDATE and UNINSTALL actions assigned in c.
// Per-file failures are collected in the report. The returned error is set when an
// update site rejected the credentials, which aborts the batch before any commit, or
// when the index could not be saved.
func (i *Installer) Apply(ctx context.Context, c *index.Collection) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	diag := i.diag
	report := &Report{Failed: map[string]error{}}

	idx := c.Index()

	// phase 1: stage
	var jobs []download.Job
	versions := map[string]index.Version{}
	for _, rec := range c.Files() {
		if rec.Action != index.ActionInstall && rec.Action != index.ActionUpdate {
			continue
		}
		pub, ok := idx.Latest(rec.Filename)
		if !ok {
			report.Failed[rec.Filename] = errors.Errorf("%s is not published by any update site", rec.Filename)
			diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: rec.Action, Outcome: "not published", Failed: true})
			continue
		}
		site, ok := c.Site(pub.Site)
		if !ok {
			report.Failed[rec.Filename] = errors.Errorf("unknown update site %s for %s", pub.Site, rec.Filename)
			diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: rec.Action, Outcome: "unknown site", Failed: true})
			continue
		}
		dest, err := i.stagingPath(rec.Filename)
		if err != nil {
			report.Failed[rec.Filename] = err
			diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: rec.Action, Outcome: "invalid filename", Failed: true})
			continue
		}
		versions[rec.Filename] = pub.Version
		jobs = append(jobs, download.Job{
			ID:       rec.Filename,
			Filename: rec.Filename,
			Site:     *site,
			Key:      index.ContentKey(rec.Filename, pub.Version.Timestamp),
			Size:     pub.Size,
			Checksum: pub.Version.Checksum,
			Dest:     dest,
		})
	}

	staged := map[string]download.Result{}
	var authErr error
	if len(jobs) > 0 {
		logger.Info().Int("files", len(jobs)).Msg("staging downloads")
		for _, res := range i.stager.Run(ctx, jobs) {
			if !res.OK() && errors.Is(res.Err, remote.ErrAuth) && authErr == nil {
				authErr = res.Err
			}
			if !res.OK() {
				rec := c.Get(res.Filename)
				report.Failed[res.Filename] = res.Err
				diag.Errorf("IO error downloading %s: %s", res.Filename, res.Err)
				diag.LogFileEvent(ctx, log.FileEvent{Filename: res.Filename, Action: rec.Action, Outcome: "download failed", Failed: true})
				continue
			}
			staged[res.Filename] = res
		}
	}

	// a rejected login breaks the whole batch, nothing is committed
	if authErr != nil {
		i.cleanStaging(ctx)
		return report, errors.Errorf("aborting update: %w", authErr)
	}

	// phase 2: commit
	for _, rec := range c.Files() {
		switch rec.Action {
		case index.ActionInstall, index.ActionUpdate:
			res, ok := staged[rec.Filename]
			if !ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				i.fs.Remove(res.Dest)
				report.Failed[rec.Filename] = errors.Errorf("not committed: %w", err)
				continue
			}
			action := rec.Action
			if err := i.commit(rec, res); err != nil {
				report.Failed[rec.Filename] = err
				metrics.RecordCommit(action.String(), false)
				diag.Errorf("Failed to install %s: %s", rec.Filename, err)
				diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: action, Outcome: "commit failed", Failed: true})
				continue
			}
			v := versions[rec.Filename]
			rec.AddVersion(v)
			rec.Local = &v
			rec.Checksum = v.Checksum
			rec.Action = index.ActionNone
			report.Installed = append(report.Installed, rec.Filename)
			metrics.RecordCommit(action.String(), true)
			diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: action, Outcome: "Installed"})

		case index.ActionUninstall:
			if err := ctx.Err(); err != nil {
				report.Failed[rec.Filename] = errors.Errorf("not deleted: %w", err)
				continue
			}
			live, err := i.livePath(rec.Filename)
			if err == nil {
				if err = i.fs.Remove(live); os.IsNotExist(err) {
					err = nil
				}
			}
			if err != nil {
				report.Failed[rec.Filename] = &CommitError{Filename: rec.Filename, Action: rec.Action, Err: err}
				metrics.RecordCommit(rec.Action.String(), false)
				diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: rec.Action, Outcome: "Failed to delete", Failed: true})
				continue
			}
			rec.Local = nil
			rec.Checksum = ""
			rec.Action = index.ActionNone
			report.Removed = append(report.Removed, rec.Filename)
			metrics.RecordCommit(index.ActionUninstall.String(), true)
			diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: index.ActionUninstall, Outcome: "Deleted"})
		}
	}

	i.cleanStaging(ctx)

	// phase 3: save, only after every commit was attempted
	if err := i.store.Save(ctx, c); err != nil {
		return report, errors.Errorf("saving index: %w", err)
	}

	logger.Info().
		Int("installed", len(report.Installed)).
		Int("removed", len(report.Removed)).
		Int("failed", len(report.Failed)).
		Msg("apply complete")
	return report, nil
}

func (i *Installer) cleanStaging(ctx context.Context) {
	if err := i.fs.RemoveAll(filepath.Join(i.root, filepath.FromSlash(StagingDir))); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("cleaning staging directory")
	}
}

func (i *Installer) commit(rec *index.FileRecord, res download.Result) error {
	fail := func(err error) error {
		i.fs.Remove(res.Dest)
		return &CommitError{Filename: rec.Filename, Action: rec.Action, Err: err}
	}
	live, err := i.livePath(rec.Filename)
	if err != nil {
		return fail(err)
	}

	if err := i.fs.MkdirAll(filepath.Dir(live), 0755); err != nil {
		return fail(err)
	}
	if err := i.fs.Rename(res.Dest, live); err != nil {
		return fail(err)
	}
	if rec.Executable && !platform.IsWindows(i.platform) {
		if err := i.fs.Chmod(live, 0755); err != nil {
			return &CommitError{Filename: rec.Filename, Action: rec.Action, Err: errors.Errorf("marking executable: %w", err)}
		}
	}
	return nil
}

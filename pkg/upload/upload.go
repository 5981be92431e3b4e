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

// Package upload publishes local files to one update site.
package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/metrics"
	"github.com/walteh/updaterc/pkg/remote"
	"github.com/walteh/updaterc/pkg/status"
	"github.com/walteh/updaterc/pkg/ui"
	"gitlab.com/tozd/go/errors"
)

// ❌ MultiSiteUploadError aborts a batch whose files belong to different update sites
type MultiSiteUploadError struct {
	Sites []string
}

func (e *MultiSiteUploadError) Error() string {
	return fmt.Sprintf("cannot upload to multiple update sites (%s)", strings.Join(e.Sites, ", "))
}

// ErrNoUploadSite is returned when no configured site accepts uploads
var ErrNoUploadSite = errors.Base("no uploadable sites found")

// Connector opens an authenticated session, remote.Client implements it
type Connector interface {
	Login(ctx context.Context, site index.UpdateSite, creds *remote.Credentials) (*remote.Session, error)
}

// Options configures an Uploader
type Options struct {
	Fs        afero.Fs
	Root      string
	Store     index.Store
	Connector Connector
	UI        ui.Interactor
	Logger    *log.Logger
	Now       func() time.Time // stamps new versions, defaults to time.Now
}

// 📤 Uploader pushes UPLOAD and REMOVE actions to an update site
type Uploader struct {
	fs        afero.Fs
	observer  *status.Observer
	store     index.Store
	connector Connector
	ui        ui.Interactor
	diag      *log.Logger
	now       func() time.Time
}

// 🏭 New creates an Uploader
func New(opts Options) (*Uploader, error) {
	switch {
	case opts.Fs == nil:
		return nil, errors.New("filesystem is required")
	case opts.Root == "":
		return nil, errors.New("root is required")
	case opts.Store == nil:
		return nil, errors.New("index store is required")
	case opts.Connector == nil:
		return nil, errors.New("connector is required")
	case opts.UI == nil:
		return nil, errors.New("interactor is required")
	case opts.Logger == nil:
		return nil, errors.New("logger is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Uploader{
		fs:        opts.Fs,
		observer:  status.NewObserver(opts.Fs, opts.Root),
		store:     opts.Store,
		connector: opts.Connector,
		ui:        opts.UI,
		diag:      opts.Logger,
		now:       now,
	}, nil
}

// 📊 Report lists what a Publish did
type Report struct {
	Site      string
	Published []string
	Removed   []string
	Failed    map[string]error
}

// OK reports whether every file of the batch completed
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

func batch(c *index.Collection) []*index.FileRecord {
	var out []*index.FileRecord
	for _, rec := range c.Files() {
		if rec.Action == index.ActionUpload || rec.Action == index.ActionRemove {
			out = append(out, rec)
		}
	}
	return out
}

// 🎯 TargetSite picks the single update site of a batch. Files without a site adopt it.
// Without any site the user chooses among the sites that accept uploads.
func (u *Uploader) TargetSite(ctx context.Context, c *index.Collection, files []*index.FileRecord) (index.UpdateSite, error) {
	var names []string
	for _, rec := range files {
		if rec.UpdateSite != "" && !slices.Contains(names, rec.UpdateSite) {
			names = append(names, rec.UpdateSite)
		}
	}
	slices.Sort(names)

	switch len(names) {
	case 0:
		candidates := c.UploadableSites()
		if len(candidates) == 0 {
			return index.UpdateSite{}, ErrNoUploadSite
		}
		labels := make([]string, len(candidates))
		for i, s := range candidates {
			labels[i] = s.LongName()
		}
		choice, err := u.ui.ChooseOne(ctx, "Choose the update site to upload to", labels)
		if err != nil {
			return index.UpdateSite{}, errors.Errorf("choosing update site: %w", err)
		}
		if choice < 0 || choice >= len(candidates) {
			return index.UpdateSite{}, errors.Errorf("invalid choice %d", choice)
		}
		return candidates[choice], nil
	case 1:
		site, ok := c.Site(names[0])
		if !ok {
			return index.UpdateSite{}, errors.Errorf("unknown update site %s", names[0])
		}
		if !site.Uploadable() {
			return index.UpdateSite{}, errors.Errorf("update site %s has no upload url", site.Name)
		}
		return *site, nil
	default:
		return index.UpdateSite{}, &MultiSiteUploadError{Sites: names}
	}
}

// 🚀 Publish executes the UPLOAD and REMOVE actions assigned in c. Batch-wide problems
// (mixed sites, failed login) return an error before anything is sent. A failed file
// does not roll back the files already published; only files that completed update
// the local index, which is saved after the batch.
func (u *Uploader) Publish(ctx context.Context, c *index.Collection) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	report := &Report{Failed: map[string]error{}}

	files := batch(c)
	if len(files) == 0 {
		u.diag.Info("Nothing to upload")
		return report, nil
	}

	site, err := u.TargetSite(ctx, c, files)
	if err != nil {
		return nil, err
	}
	report.Site = site.Name

	for _, rec := range files {
		if rec.UpdateSite == "" && rec.Action == index.ActionUpload {
			u.ui.Warn(fmt.Sprintf("Uploading new file '%s' to site '%s'", rec.Filename, site.Name))
		}
	}

	creds, err := u.ui.GetCredentials(ctx, site)
	if err != nil {
		return nil, errors.Errorf("getting credentials for %s: %w", site.Name, err)
	}
	session, err := u.connector.Login(ctx, site, creds)
	if err != nil {
		return nil, err
	}

	u.diag.Infof("Uploading to %s", site.LongName())
	u.diag.StartBatch(ctx, log.BatchOperation{Kind: "upload", Site: site.Name, Files: len(files)})
	defer u.diag.EndBatch(ctx)

	for _, rec := range files {
		if err := ctx.Err(); err != nil {
			report.Failed[rec.Filename] = errors.Errorf("not sent: %w", err)
			continue
		}

		action := rec.Action
		switch action {
		case index.ActionUpload:
			err = u.push(ctx, c, session, rec)
		case index.ActionRemove:
			err = u.remove(ctx, c, session, rec)
		}
		if err != nil {
			report.Failed[rec.Filename] = err
			u.diag.Errorf("Failed to %s %s: %s", strings.ToLower(action.String()), rec.Filename, err)
			u.diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: action, Outcome: "failed", Failed: true})
			continue
		}

		if action == index.ActionRemove {
			report.Removed = append(report.Removed, rec.Filename)
			u.diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: action, Outcome: "Removed"})
		} else {
			report.Published = append(report.Published, rec.Filename)
			u.diag.LogFileEvent(ctx, log.FileEvent{Filename: rec.Filename, Action: action, Outcome: "Uploaded"})
		}
	}

	if len(report.Published)+len(report.Removed) > 0 {
		if err := u.store.Save(ctx, c); err != nil {
			return report, errors.Errorf("saving index: %w", err)
		}
	}

	logger.Info().
		Str("site", site.Name).
		Int("published", len(report.Published)).
		Int("removed", len(report.Removed)).
		Int("failed", len(report.Failed)).
		Msg("upload complete")
	return report, nil
}

func (u *Uploader) push(ctx context.Context, c *index.Collection, session *remote.Session, rec *index.FileRecord) error {
	site := session.Site()

	state, err := u.observer.Observe(ctx, rec.Filename)
	if err != nil {
		return err
	}
	if !state.Exists {
		return errors.Errorf("no local copy of %s", rec.Filename)
	}

	path, err := u.observer.Path(rec.Filename)
	if err != nil {
		return err
	}
	f, err := u.fs.Open(path)
	if err != nil {
		return errors.Errorf("opening %s: %w", rec.Filename, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errors.Errorf("stat %s: %w", rec.Filename, err)
	}

	// the session re-hashes what it streams, so an edit after Observe fails this file
	v := index.Version{Checksum: state.Checksum, Timestamp: index.Timestamp(u.now())}
	err = session.Push(ctx, remote.PushRequest{
		Content: f,
		Size:    info.Size(),
		Entry:   index.SiteFileFor(rec, v, info.Size()),
	})
	metrics.RecordUpload(site.Name, info.Size(), err == nil)
	if err != nil {
		return err
	}

	rec.AddVersion(v)
	rec.Local = &v
	rec.Checksum = v.Checksum
	rec.UpdateSite = site.Name
	rec.Size = info.Size()
	rec.Action = index.ActionNone
	c.Publish(rec.Filename, index.Publication{Site: site.Name, Version: v, Size: info.Size()})

	zerolog.Ctx(ctx).Debug().
		Str("file", rec.Filename).
		Str("path", filepath.ToSlash(path)).
		Int64("timestamp", v.Timestamp).
		Msg("published")
	return nil
}

func (u *Uploader) remove(ctx context.Context, c *index.Collection, session *remote.Session, rec *index.FileRecord) error {
	site := session.Site()
	if err := session.Remove(ctx, rec.Filename); err != nil {
		return err
	}
	c.Unpublish(site.Name, rec.Filename)
	rec.Action = index.ActionNone
	return nil
}

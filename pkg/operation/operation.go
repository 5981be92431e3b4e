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


package operation

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/install"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/metrics"
	"github.com/walteh/updaterc/pkg/plan"
	"github.com/walteh/updaterc/pkg/platform"
	"github.com/walteh/updaterc/pkg/status"
	"github.com/walteh/updaterc/pkg/ui"
	"github.com/walteh/updaterc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

// SiteIndexFetcher downloads an update site's index, remote.Client implements it
type SiteIndexFetcher interface {
	FetchSiteIndex(ctx context.Context, site index.UpdateSite) (*index.SiteIndex, error)
}

// Applier commits a planned update batch, install.Installer implements it
type Applier interface {
	Apply(ctx context.Context, c *index.Collection) (*install.Report, error)
}

// Publisher pushes a planned upload batch, upload.Uploader implements it
type Publisher interface {
	Publish(ctx context.Context, c *index.Collection) (*upload.Report, error)
}

// 🔧 Options contains configuration for the operator
type Options struct {
	Fs        afero.Fs
	Root      string
	Platform  string
	Store     index.Store
	Sites     []index.UpdateSite // configured sites, merged into the loaded collection
	Fetcher   SiteIndexFetcher
	Installer Applier
	Uploader  Publisher
	UI        ui.Interactor
	Logger    *log.Logger
	Out       io.Writer // list output
	Formatter status.FileFormatter
	Offline   bool // skip refreshing site indexes
}

// 🎮 Operator runs commands
type Operator struct {
	fs        afero.Fs
	root      string
	store     index.Store
	sites     []index.UpdateSite
	fetcher   SiteIndexFetcher
	installer Applier
	uploader  Publisher
	resolver  *status.Resolver
	planner   *plan.Planner
	platform  string
	ui        ui.Interactor
	diag      *log.Logger
	out       io.Writer
	formatter status.FileFormatter
	offline   bool
}

// 🏭 New creates a new operator with the given options
func New(opts Options) (*Operator, error) {
	switch {
	case opts.Fs == nil:
		return nil, errors.New("filesystem is required")
	case opts.Root == "":
		return nil, errors.New("root is required")
	case opts.Store == nil:
		return nil, errors.New("index store is required")
	case opts.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case opts.Installer == nil:
		return nil, errors.New("installer is required")
	case opts.Uploader == nil:
		return nil, errors.New("uploader is required")
	case opts.UI == nil:
		return nil, errors.New("interactor is required")
	case opts.Logger == nil:
		return nil, errors.New("logger is required")
	case opts.Out == nil:
		return nil, errors.New("output writer is required")
	}

	p := opts.Platform
	if p == "" {
		p = platform.Current()
	}
	formatter := opts.Formatter
	if formatter == nil {
		formatter = status.NewDefaultFileFormatter()
	}

	return &Operator{
		fs:        opts.Fs,
		root:      filepath.Clean(opts.Root),
		store:     opts.Store,
		sites:     opts.Sites,
		fetcher:   opts.Fetcher,
		installer: opts.Installer,
		uploader:  opts.Uploader,
		resolver:  status.NewResolver(status.NewObserver(opts.Fs, opts.Root)),
		planner:   plan.New(p),
		platform:  p,
		ui:        opts.UI,
		diag:      opts.Logger,
		out:       opts.Out,
		formatter: formatter,
		offline:   opts.Offline,
	}, nil
}

// 📖 Load reads the local index, merges the configured sites, refreshes every site's
// index unless offline, picks up files no index knows and resolves the status of every file
func (o *Operator) Load(ctx context.Context) (*index.Collection, error) {
	c, err := o.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range o.sites {
		if existing, ok := c.Site(s.Name); ok {
			s.Timestamp = existing.Timestamp
		}
		c.PutSite(s)
	}

	if o.offline {
		zerolog.Ctx(ctx).Debug().Msg("offline, using cached site indexes")
	} else if err := o.Refresh(ctx, c); err != nil {
		return nil, err
	}

	if err := o.scanLocal(ctx, c); err != nil {
		return nil, err
	}

	for _, w := range o.resolver.ResolveAll(ctx, c, c.Index()) {
		o.ui.Warn(w)
	}
	return c, nil
}

// 🔄 Refresh fetches every update site's index and merges it into c.
// The first site that cannot be read aborts the refresh.
func (o *Operator) Refresh(ctx context.Context, c *index.Collection) error {
	logger := zerolog.Ctx(ctx)

	for _, site := range c.Sites() {
		start := time.Now()
		idx, err := o.fetcher.FetchSiteIndex(ctx, site)
		if err != nil {
			return errors.Errorf("refreshing update site %s: %w", site.Name, err)
		}
		for _, w := range c.MergeSite(site.Name, idx) {
			o.ui.Warn(w)
		}
		metrics.RecordRefresh(site.Name, time.Since(start))

		logger.Debug().
			Str("site", site.Name).
			Int("files", len(idx.Files)).
			Int64("timestamp", idx.Timestamp).
			Msg("merged site index")
	}
	return nil
}

// scanLocal adds a record for every regular file below the root that no index knows,
// so it resolves as LOCAL_ONLY. The state directory and config files are skipped.
func (o *Operator) scanLocal(ctx context.Context, c *index.Collection) error {
	logger := zerolog.Ctx(ctx)

	exists, err := afero.DirExists(o.fs, o.root)
	if err != nil {
		return errors.Errorf("checking install root: %w", err)
	}
	if !exists {
		return nil
	}

	added := 0
	err = afero.Walk(o.fs, o.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable path")
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(o.root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if strings.HasPrefix(rel, index.StateDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || index.CheckFilename(rel) != nil {
			return nil
		}
		if c.Get(rel) == nil {
			c.Put(&index.FileRecord{Filename: rel})
			added++
		}
		return nil
	})
	if err != nil {
		return errors.Errorf("scanning %s: %w", o.root, err)
	}

	logger.Debug().Int("files", added).Msg("found files no index knows")
	return nil
}

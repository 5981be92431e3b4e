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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/install"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/plan"
	"github.com/walteh/updaterc/pkg/testutils"
	"github.com/walteh/updaterc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

const root = "/app"

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// 🔧 MockFetcher is a mock implementation of SiteIndexFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchSiteIndex(ctx context.Context, site index.UpdateSite) (*index.SiteIndex, error) {
	args := m.Called(ctx, site)
	idx, _ := args.Get(0).(*index.SiteIndex)
	return idx, args.Error(1)
}

// 🔧 MockApplier is a mock implementation of Applier
type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) Apply(ctx context.Context, c *index.Collection) (*install.Report, error) {
	args := m.Called(ctx, c)
	report, _ := args.Get(0).(*install.Report)
	return report, args.Error(1)
}

// 🔧 MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, c *index.Collection) (*upload.Report, error) {
	args := m.Called(ctx, c)
	report, _ := args.Get(0).(*upload.Report)
	return report, args.Error(1)
}

type fixture struct {
	fs        afero.Fs
	store     *index.FileStore
	fetcher   *MockFetcher
	applier   *MockApplier
	publisher *MockPublisher
	ui        *testutils.MockInteractor
	out       *bytes.Buffer
	console   *bytes.Buffer
	op        *Operator
	ctx       context.Context
}

func newFixture(t *testing.T, sites []index.UpdateSite, offline bool) *fixture {
	t.Helper()
	f := &fixture{
		fs:        afero.NewMemMapFs(),
		fetcher:   &MockFetcher{},
		applier:   &MockApplier{},
		publisher: &MockPublisher{},
		ui:        testutils.NewMockInteractor(t),
		out:       &bytes.Buffer{},
		console:   &bytes.Buffer{},
	}
	f.store = index.NewFileStore(f.fs, root+"/.updaterc/db.json.gz")
	f.ctx = testutils.Context(t, f.console)

	op, err := New(Options{
		Fs:        f.fs,
		Root:      root,
		Platform:  "linux64",
		Store:     f.store,
		Sites:     sites,
		Fetcher:   f.fetcher,
		Installer: f.applier,
		Uploader:  f.publisher,
		UI:        f.ui,
		Logger:    log.FromContext(f.ctx),
		Out:       f.out,
		Offline:   offline,
	})
	require.NoError(t, err)
	f.op = op

	t.Cleanup(func() {
		f.fetcher.AssertExpectations(t)
		f.applier.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})
	return f
}

func versions(ts int64) []index.Version {
	return []index.Version{{Checksum: sum("v1"), Timestamp: ts}}
}

// 🧪 collection builds records with statuses already resolved
func collection() *index.Collection {
	c := index.NewCollection()
	for _, rec := range []*index.FileRecord{
		{Filename: "jars/a.jar", Status: index.StatusInstalled, Versions: versions(20240101000000)},
		{Filename: "jars/b.jar", Status: index.StatusUpdateable, Versions: versions(20240102000000)},
		{Filename: "jars/c.jar", Status: index.StatusModified, Versions: versions(20240103000000)},
		{Filename: "jars/old.jar", Status: index.StatusObsoleteUninstalled, Versions: versions(20230101000000)},
		{Filename: "plugins/local.jar", Status: index.StatusLocalOnly},
		{Filename: "plugins/new.jar", Status: index.StatusNew, Versions: versions(20240104000000)},
		{Filename: "tools/win.exe", Status: index.StatusNew, Platforms: []string{"win64"}, Versions: versions(20240105000000)},
		{Filename: "tools/obsolete.sh", Status: index.StatusObsolete, Versions: versions(20220101000000)},
	} {
		c.Put(rec)
	}
	return c
}

func TestList(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		filter   Filter
		want     string
	}{
		{
			name: "all",
			want: "jars/a.jar\t(INSTALLED)\t20240101000000\n" +
				"jars/b.jar\t(UPDATEABLE)\t20240102000000\n" +
				"jars/c.jar\t(MODIFIED)\t20240103000000\n" +
				"plugins/local.jar\t(LOCAL_ONLY)\t0\n" +
				"plugins/new.jar\t(NEW)\t20240104000000\n" +
				"tools/obsolete.sh\t(OBSOLETE)\t20220101000000\n",
		},
		{
			name:   "uptodate",
			filter: UpToDate,
			want:   "jars/a.jar\t(INSTALLED)\t20240101000000\n",
		},
		{
			name:   "not_uptodate",
			filter: NotUpToDate,
			want: "jars/b.jar\t(UPDATEABLE)\t20240102000000\n" +
				"jars/c.jar\t(MODIFIED)\t20240103000000\n" +
				"plugins/new.jar\t(NEW)\t20240104000000\n",
		},
		{
			name:   "updateable",
			filter: Updateable,
			want:   "jars/b.jar\t(UPDATEABLE)\t20240102000000\n",
		},
		{
			name:   "modified",
			filter: Modified,
			want:   "jars/c.jar\t(MODIFIED)\t20240103000000\n",
		},
		{
			name:     "glob",
			patterns: []string{"plugins/**"},
			want: "plugins/local.jar\t(LOCAL_ONLY)\t0\n" +
				"plugins/new.jar\t(NEW)\t20240104000000\n",
		},
		{
			name:     "literal_with_dot_prefix",
			patterns: []string{"./jars/a.jar"},
			want:     "jars/a.jar\t(INSTALLED)\t20240101000000\n",
		},
		{
			name:     "glob_and_filter",
			patterns: []string{"**/*.jar"},
			filter:   Is(index.StatusNew, index.StatusLocalOnly),
			want: "plugins/local.jar\t(LOCAL_ONLY)\t0\n" +
				"plugins/new.jar\t(NEW)\t20240104000000\n",
		},
		{
			name:     "other_platform_is_hidden",
			patterns: []string{"tools/win.exe"},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, true)
			require.NoError(t, f.op.List(f.ctx, collection(), tt.patterns, tt.filter))
			assert.Equal(t, tt.want, f.out.String())
		})
	}
}

func TestListInvalidPattern(t *testing.T) {
	f := newFixture(t, nil, true)
	err := f.op.List(f.ctx, collection(), []string{"jars/[a.jar"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestListCurrent(t *testing.T) {
	f := newFixture(t, nil, true)
	require.NoError(t, f.op.ListCurrent(f.ctx, collection(), []string{"jars/*"}))
	assert.Equal(t, "jars/a.jar-20240101000000\njars/b.jar-20240102000000\njars/c.jar-20240103000000\n", f.out.String())
}

func TestLoad(t *testing.T) {
	core := index.UpdateSite{Name: "core", URL: "file:///sites/core"}

	t.Run("refreshes_sites_and_resolves", func(t *testing.T) {
		f := newFixture(t, []index.UpdateSite{core}, false)
		require.NoError(t, afero.WriteFile(f.fs, root+"/jars/a.jar", []byte("alpha"), 0644))

		f.fetcher.On("FetchSiteIndex", mock.Anything, mock.MatchedBy(func(s index.UpdateSite) bool {
			return s.Name == "core"
		})).Return(&index.SiteIndex{
			Timestamp: 20240201000000,
			Files: []index.SiteFile{
				{Filename: "jars/a.jar", Checksum: sum("alpha"), Timestamp: 20240101000000, Size: 5},
				{Filename: "jars/b.jar", Checksum: sum("bravo"), Timestamp: 20240102000000, Size: 5},
			},
		}, nil).Once()

		c, err := f.op.Load(f.ctx)
		require.NoError(t, err)

		require.NotNil(t, c.Get("jars/a.jar"))
		assert.Equal(t, index.StatusInstalled, c.Get("jars/a.jar").Status)
		require.NotNil(t, c.Get("jars/b.jar"))
		assert.Equal(t, index.StatusNew, c.Get("jars/b.jar").Status)

		site, ok := c.Site("core")
		require.True(t, ok)
		assert.Equal(t, int64(20240201000000), site.Timestamp)
	})

	t.Run("offline_uses_cached_index", func(t *testing.T) {
		f := newFixture(t, []index.UpdateSite{core}, true)

		cached := index.NewCollection()
		cached.PutSite(index.UpdateSite{Name: "core", URL: "file:///old", Timestamp: 20231231000000})
		cached.MergeSite("core", &index.SiteIndex{
			Timestamp: 20231231000000,
			Files:     []index.SiteFile{{Filename: "jars/b.jar", Checksum: sum("bravo"), Timestamp: 20240102000000}},
		})
		require.NoError(t, f.store.Save(f.ctx, cached))

		c, err := f.op.Load(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, index.StatusNew, c.Get("jars/b.jar").Status)

		site, ok := c.Site("core")
		require.True(t, ok)
		assert.Equal(t, "file:///sites/core", site.URL, "configured site replaces the cached one")
		assert.Equal(t, int64(20231231000000), site.Timestamp, "cached timestamp is kept")
	})

	t.Run("refresh_failure_is_fatal", func(t *testing.T) {
		f := newFixture(t, []index.UpdateSite{core}, false)
		f.fetcher.On("FetchSiteIndex", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

		_, err := f.op.Load(f.ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refreshing update site core")
	})

	t.Run("corrupt_index_is_fatal", func(t *testing.T) {
		f := newFixture(t, nil, true)
		require.NoError(t, afero.WriteFile(f.fs, root+"/.updaterc/db.json.gz", []byte("not gzip"), 0644))

		_, err := f.op.Load(f.ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, index.ErrIndexLoad))
	})
}

func TestUpdate(t *testing.T) {
	t.Run("includes_dependencies", func(t *testing.T) {
		f := newFixture(t, nil, true)
		c := collection()
		c.Get("jars/b.jar").Dependencies = []index.Dependency{{Filename: "plugins/new.jar"}, {Filename: "ghost.jar"}}

		f.ui.On("Warn", "jars/b.jar depends on ghost.jar, which is not in the index").Once()
		f.applier.On("Apply", mock.Anything, c).Run(func(args mock.Arguments) {
			assert.Equal(t, index.ActionUpdate, c.Get("jars/b.jar").Action)
			assert.Equal(t, index.ActionInstall, c.Get("plugins/new.jar").Action)
			assert.Equal(t, index.ActionNone, c.Get("jars/c.jar").Action)
		}).Return(&install.Report{Installed: []string{"jars/b.jar", "plugins/new.jar"}, Failed: map[string]error{}}, nil).Once()

		report, err := f.op.Update(f.ctx, c, []string{"jars/b.jar"}, plan.Mode{})
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Len(t, report.Installed, 2)
	})

	t.Run("force_pristine_everything", func(t *testing.T) {
		f := newFixture(t, nil, true)
		c := collection()

		f.applier.On("Apply", mock.Anything, c).Run(func(args mock.Arguments) {
			assert.Equal(t, index.ActionUpdate, c.Get("jars/c.jar").Action)
			assert.Equal(t, index.ActionUninstall, c.Get("plugins/local.jar").Action)
			assert.Equal(t, index.ActionUninstall, c.Get("tools/obsolete.sh").Action)
			assert.Equal(t, index.ActionNone, c.Get("tools/win.exe").Action, "other platforms are not selected")
			assert.Equal(t, index.ActionNone, c.Get("jars/old.jar").Action)
		}).Return(&install.Report{Failed: map[string]error{}}, nil).Once()

		_, err := f.op.Update(f.ctx, c, nil, plan.Mode{Force: true, Pristine: true})
		require.NoError(t, err)
	})

	t.Run("nothing_to_update", func(t *testing.T) {
		color.NoColor = true
		defer func() { color.NoColor = false }()

		f := newFixture(t, nil, true)
		c := collection()

		report, err := f.op.Update(f.ctx, c, []string{"jars/a.jar", "jars/c.jar"}, plan.Mode{})
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Contains(t, f.console.String(), "ℹ️  Not updating jars/a.jar (INSTALLED)")
		assert.Contains(t, f.console.String(), "⚠️  Skipping locally-modified jars/c.jar", "skipped files are warnings")
		assert.Contains(t, f.console.String(), "Nothing to update")
	})
}

func TestUpload(t *testing.T) {
	t.Run("glob_selects_files", func(t *testing.T) {
		f := newFixture(t, nil, true)
		c := collection()

		f.publisher.On("Publish", mock.Anything, c).Run(func(args mock.Arguments) {
			assert.Equal(t, index.ActionUpload, c.Get("jars/b.jar").Action)
			assert.Equal(t, index.ActionUpload, c.Get("jars/c.jar").Action)
			assert.Equal(t, index.ActionNone, c.Get("jars/a.jar").Action, "up-to-date files are skipped")
		}).Return(&upload.Report{Site: "core", Failed: map[string]error{}}, nil).Once()

		report, err := f.op.Upload(f.ctx, c, []string{"jars/*.jar"})
		require.NoError(t, err)
		assert.Equal(t, "core", report.Site)
		assert.Contains(t, f.console.String(), "Skipping up-to-date jars/a.jar")
	})

	t.Run("unknown_file_is_fatal", func(t *testing.T) {
		f := newFixture(t, nil, true)
		_, err := f.op.Upload(f.ctx, collection(), []string{"jars/b.jar", "missing.jar"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no file 'missing.jar' found")
	})

	t.Run("glob_matching_nothing_is_fatal", func(t *testing.T) {
		f := newFixture(t, nil, true)
		_, err := f.op.Upload(f.ctx, collection(), []string{"docs/**"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no file matching 'docs/**' found")
	})

	t.Run("no_files", func(t *testing.T) {
		f := newFixture(t, nil, true)
		_, err := f.op.Upload(f.ctx, collection(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "which files do you mean to upload?")
	})
}

func TestRemove(t *testing.T) {
	f := newFixture(t, nil, true)
	c := collection()

	f.publisher.On("Publish", mock.Anything, c).Run(func(args mock.Arguments) {
		assert.Equal(t, index.ActionRemove, c.Get("jars/a.jar").Action)
	}).Return(&upload.Report{Site: "core", Removed: []string{"jars/a.jar"}, Failed: map[string]error{}}, nil).Once()

	report, err := f.op.Remove(f.ctx, c, []string{"jars/a.jar"})
	require.NoError(t, err)
	assert.Equal(t, []string{"jars/a.jar"}, report.Removed)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Root: root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filesystem is required")

	_, err = New(Options{Fs: afero.NewMemMapFs(), Root: root, Store: index.NewFileStore(afero.NewMemMapFs(), "/db"), Fetcher: &MockFetcher{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "installer is required")
}

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
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/updaterc/pkg/download"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/install"
	"github.com/walteh/updaterc/pkg/log"
	"github.com/walteh/updaterc/pkg/plan"
	"github.com/walteh/updaterc/pkg/remote"
	"github.com/walteh/updaterc/pkg/remote/filesite"
	"github.com/walteh/updaterc/pkg/retry"
	"github.com/walteh/updaterc/pkg/testutils"
	"github.com/walteh/updaterc/pkg/upload"
)

// 🧪 wired is an operator over real installer, uploader and file:// transport
type wired struct {
	fs     afero.Fs
	client *remote.Client
	ui     *testutils.MockInteractor
	out    *bytes.Buffer
	op     *Operator
	ctx    context.Context
}

// newWired publishes jars/a.jar on site core, installs it, and drops an unindexed
// plugins/mine.jar plus a config file into the install root
func newWired(t *testing.T) *wired {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sites/core", 0755))
	require.NoError(t, afero.WriteFile(fs, "/sites/core/jars/a.jar-20240101000000", []byte("alpha"), 0644))

	var buf bytes.Buffer
	require.NoError(t, (&index.SiteIndex{
		Timestamp: 20240101000000,
		Files:     []index.SiteFile{{Filename: "jars/a.jar", Checksum: sum("alpha"), Timestamp: 20240101000000, Size: 5}},
	}).Encode(&buf))
	require.NoError(t, afero.WriteFile(fs, "/sites/core/"+index.SiteIndexKey, buf.Bytes(), 0644))

	require.NoError(t, afero.WriteFile(fs, root+"/jars/a.jar", []byte("alpha"), 0644))
	require.NoError(t, afero.WriteFile(fs, root+"/plugins/mine.jar", []byte("mine"), 0644))
	require.NoError(t, afero.WriteFile(fs, root+"/.updaterc.yaml", []byte("platform: linux64\n"), 0644))

	w := &wired{
		fs: fs,
		client: remote.NewClient(remote.ClientOptions{
			Options:   remote.Options{Fs: fs},
			Factories: map[string]remote.Factory{"file": filesite.New},
			Now:       func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) },
		}),
		ui:  testutils.NewMockInteractor(t),
		out: &bytes.Buffer{},
		ctx: testutils.Context(t, &bytes.Buffer{}),
	}
	diag := log.FromContext(w.ctx)
	store := index.NewFileStore(fs, root+"/.updaterc/db.json.gz")

	d, err := download.New(download.Options{Fs: fs, Fetcher: w.client, Retry: retry.Config{MaxAttempts: 1}})
	require.NoError(t, err)
	inst, err := install.New(install.Options{Fs: fs, Root: root, Platform: "linux64", Store: store, Stager: d, Logger: diag})
	require.NoError(t, err)
	up, err := upload.New(upload.Options{
		Fs:        fs,
		Root:      root,
		Store:     store,
		Connector: w.client,
		UI:        w.ui,
		Logger:    diag,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	w.op, err = New(Options{
		Fs:        fs,
		Root:      root,
		Platform:  "linux64",
		Store:     store,
		Sites:     []index.UpdateSite{{Name: "core", URL: "file:///sites/core", UploadURL: "file:///sites/core"}},
		Fetcher:   w.client,
		Installer: inst,
		Uploader:  up,
		UI:        w.ui,
		Logger:    diag,
		Out:       w.out,
	})
	require.NoError(t, err)
	return w
}

func TestUnindexedFiles(t *testing.T) {
	t.Run("listed_as_local_only", func(t *testing.T) {
		w := newWired(t)
		c, err := w.op.Load(w.ctx)
		require.NoError(t, err)

		require.NotNil(t, c.Get("plugins/mine.jar"))
		assert.Equal(t, index.StatusLocalOnly, c.Get("plugins/mine.jar").Status)
		assert.Nil(t, c.Get(".updaterc.yaml"), "config files are not managed")
		assert.Equal(t, 2, c.Len(), "the state directory is not scanned")

		require.NoError(t, w.op.List(w.ctx, c, nil, nil))
		assert.Equal(t, "jars/a.jar\t(INSTALLED)\t20240101000000\n"+
			"plugins/mine.jar\t(LOCAL_ONLY)\t0\n", w.out.String())
	})

	t.Run("uploaded_to_chosen_site", func(t *testing.T) {
		w := newWired(t)
		c, err := w.op.Load(w.ctx)
		require.NoError(t, err)

		w.ui.On("ChooseOne", mock.Anything, mock.Anything, []string{"core (file:///sites/core)"}).Return(0, nil).Once()
		w.ui.On("Warn", "Uploading new file 'plugins/mine.jar' to site 'core'").Once()
		w.ui.On("GetCredentials", mock.Anything, mock.Anything).Return(nil, nil).Once()

		report, err := w.op.Upload(w.ctx, c, []string{"plugins/mine.jar"})
		require.NoError(t, err)
		assert.Equal(t, []string{"plugins/mine.jar"}, report.Published)
		assert.Equal(t, "core", c.Get("plugins/mine.jar").UpdateSite)

		idx, err := w.client.FetchSiteIndex(w.ctx, index.UpdateSite{Name: "core", URL: "file:///sites/core"})
		require.NoError(t, err)
		entry, ok := idx.Find("plugins/mine.jar")
		require.True(t, ok)
		assert.Equal(t, sum("mine"), entry.Checksum)
	})

	t.Run("deleted_by_force_pristine", func(t *testing.T) {
		w := newWired(t)
		c, err := w.op.Load(w.ctx)
		require.NoError(t, err)

		report, err := w.op.Update(w.ctx, c, nil, plan.Mode{Force: true, Pristine: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"plugins/mine.jar"}, report.Removed)

		exists, err := afero.Exists(w.fs, root+"/plugins/mine.jar")
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = afero.Exists(w.fs, root+"/.updaterc.yaml")
		require.NoError(t, err)
		assert.True(t, exists, "config files are never uninstalled")
	})

	t.Run("kept_without_flags", func(t *testing.T) {
		w := newWired(t)
		c, err := w.op.Load(w.ctx)
		require.NoError(t, err)

		_, err = w.op.Update(w.ctx, c, []string{"plugins/mine.jar"}, plan.Mode{})
		require.NoError(t, err)

		exists, err := afero.Exists(w.fs, root+"/plugins/mine.jar")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestRefreshSkipsUnsafeSiteEntries(t *testing.T) {
	f := newFixture(t, []index.UpdateSite{{Name: "core", URL: "file:///sites/core"}}, false)
	f.fetcher.On("FetchSiteIndex", mock.Anything, mock.Anything).Return(&index.SiteIndex{
		Files: []index.SiteFile{
			{Filename: "../etc/passwd", Checksum: sum("pwned"), Timestamp: 20240101000000},
			{Filename: "jars/a.jar", Timestamp: 20240101000000},
		},
	}, nil).Once()
	f.ui.On("Warn", mock.MatchedBy(func(msg string) bool { return msg != "" })).Twice()

	c, err := f.op.Load(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, c.Get("../etc/passwd"))
	assert.Nil(t, c.Get("jars/a.jar"), "entries without a checksum are not installable")
	assert.Empty(t, c.Index().Filenames())
}

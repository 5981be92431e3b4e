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


package filesite

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/updaterc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

func open(t *testing.T, fs afero.Fs, raw string) *Store {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	st, err := New(context.Background(), u, nil, remote.Options{Fs: fs})
	require.NoError(t, err)
	return st.(*Store)
}

func TestStore(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	t.Run("put_then_get", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/site", 0755))
		st := open(t, fs, "file:///site")

		require.NoError(t, st.Put(ctx, "jars/a.jar-20240101000000", strings.NewReader("alpha"), 5))

		rc, size, err := st.Get(ctx, "jars/a.jar-20240101000000")
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "alpha", string(data))
		assert.Equal(t, int64(5), size)

		leftovers, err := afero.Glob(fs, "/site/jars/*.tmp")
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("missing_key_is_not_found", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/site", 0755))
		st := open(t, fs, "file:///site")

		_, _, err := st.Get(ctx, "db.json.gz")
		require.Error(t, err)
		assert.True(t, errors.Is(err, remote.ErrNotFound))
	})

	t.Run("keys_stay_below_root", func(t *testing.T) {
		st := open(t, afero.NewMemMapFs(), "file:///site")
		assert.Equal(t, "/site/etc/passwd", st.path("../../etc/passwd"))
	})

	t.Run("missing_directory_fails_authentication", func(t *testing.T) {
		st := open(t, afero.NewMemMapFs(), "file:///nowhere")
		err := st.Authenticate(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, remote.ErrAuth))
	})

	t.Run("existing_directory_authenticates", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/site", 0755))
		require.NoError(t, open(t, fs, "file:///site").Authenticate(ctx))
	})
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(context.Background(), &url.URL{Scheme: "file"}, nil, remote.Options{Fs: afero.NewMemMapFs()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no path")
}

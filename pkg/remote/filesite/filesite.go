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

// Package filesite serves update sites from a directory (file:// URLs).
package filesite

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/walteh/updaterc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

func init() {
	remote.Register("file", New)
}

// 📁 Store keeps site objects as files below a root directory
type Store struct {
	fs   afero.Fs
	root string
}

var (
	_ remote.Store         = (*Store)(nil)
	_ remote.Authenticator = (*Store)(nil)
)

// 🏭 New opens the directory named by a file:// URL
func New(_ context.Context, location *url.URL, _ *remote.Credentials, opts remote.Options) (remote.Store, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	root := location.Path
	if root == "" {
		root = location.Opaque
	}
	if root == "" {
		return nil, errors.Errorf("file url %q has no path", location.String())
	}
	return &Store{fs: fs, root: filepath.FromSlash(root)}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+key)))
}

// 📥 Get opens key
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := s.fs.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.Errorf("%s: %w", key, remote.ErrNotFound)
		}
		return nil, 0, errors.Errorf("opening %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errors.Errorf("stat %s: %w", key, err)
	}
	return f, info.Size(), nil
}

// 📤 Put writes key through a temporary file so readers never see a partial object
func (s *Store) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	dst := s.path(key)
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("creating directory for %s: %w", key, err)
	}

	tmp := dst + "." + uuid.NewString() + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return errors.Errorf("writing %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return errors.Errorf("closing %s: %w", key, err)
	}
	if err := s.fs.Rename(tmp, dst); err != nil {
		s.fs.Remove(tmp)
		return errors.Errorf("renaming %s: %w", key, err)
	}
	return nil
}

// 🔐 Authenticate checks the site directory exists
func (s *Store) Authenticate(_ context.Context) error {
	info, err := s.fs.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("site directory %s does not exist: %w", s.root, remote.ErrAuth)
		}
		return errors.Errorf("checking site directory: %w", err)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory: %w", s.root, remote.ErrAuth)
	}
	return nil
}

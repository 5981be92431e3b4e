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

package index

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// ErrIndexLoad marks a local index that exists but cannot be read or parsed
var ErrIndexLoad = errors.Base("index load failed")

// 💥 LoadError is returned when the persisted index is unusable. It is fatal to the run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading index %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrIndexLoad
}

// 💾 Store persists a Collection
type Store interface {
	// Load reads the persisted collection; a missing index yields an empty collection
	Load(ctx context.Context) (*Collection, error)
	// Save atomically replaces the persisted collection
	Save(ctx context.Context, c *Collection) error
}

// on-disk representation
type collectionFile struct {
	Sites     []UpdateSite             `json:"sites"`
	Files     []*FileRecord            `json:"files"`
	Published map[string][]Publication `json:"published,omitempty"`
}

// 📁 FileStore keeps the collection as gzip compressed JSON on a filesystem
type FileStore struct {
	fs   afero.Fs
	path string
}

var _ Store = (*FileStore)(nil)

// 🏭 NewFileStore creates a store at path on fs
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: filepath.Clean(path)}
}

// Path is where the index lives
func (s *FileStore) Path() string {
	return s.path
}

// 📖 Load reads the persisted collection
func (s *FileStore) Load(ctx context.Context) (*Collection, error) {
	logger := zerolog.Ctx(ctx)

	f, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", s.path).Msg("no local index yet, starting empty")
			return NewCollection(), nil
		}
		return nil, &LoadError{Path: s.path, Err: err}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, &LoadError{Path: s.path, Err: errors.Errorf("opening gzip stream: %w", err)}
	}
	defer gz.Close()

	var cf collectionFile
	if err := json.NewDecoder(gz).Decode(&cf); err != nil {
		return nil, &LoadError{Path: s.path, Err: errors.Errorf("decoding index: %w", err)}
	}

	c := NewCollection()
	for _, site := range cf.Sites {
		c.PutSite(site)
	}
	for _, rec := range cf.Files {
		if rec == nil || rec.Filename == "" {
			return nil, &LoadError{Path: s.path, Err: errors.New("file record without a filename")}
		}
		c.Put(rec)
	}
	for name, pubs := range cf.Published {
		for _, p := range pubs {
			c.Publish(name, p)
		}
	}

	logger.Debug().Str("path", s.path).Int("files", c.Len()).Msg("loaded local index")
	return c, nil
}

// 💾 Save writes the collection to a temporary file and renames it over the index
func (s *FileStore) Save(ctx context.Context, c *Collection) error {
	cf := collectionFile{
		Sites:     c.Sites(),
		Files:     c.Files(),
		Published: c.published,
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Errorf("creating index directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	f, err := s.fs.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Errorf("creating temp index: %w", err)
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(cf); err != nil {
		f.Close()
		s.fs.Remove(tempPath)
		return errors.Errorf("encoding index: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		s.fs.Remove(tempPath)
		return errors.Errorf("closing gzip stream: %w", err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tempPath)
		return errors.Errorf("closing temp index: %w", err)
	}

	if err := s.fs.Rename(tempPath, s.path); err != nil {
		s.fs.Remove(tempPath)
		return errors.Errorf("renaming temp index: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", s.path).Int("files", c.Len()).Msg("saved local index")
	return nil
}

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

package status

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/walteh/updaterc/pkg/index"
	"gitlab.com/tozd/go/errors"
)

// 👀 Observer reads facts about files in the live tree
type Observer struct {
	fs   afero.Fs
	root string
}

// 🏭 NewObserver creates an observer rooted at root
func NewObserver(fs afero.Fs, root string) *Observer {
	return &Observer{fs: fs, root: filepath.Clean(root)}
}

// Path returns where filename lives in the live tree. Names escaping the root are rejected.
func (o *Observer) Path(filename string) (string, error) {
	return index.LivePath(o.root, filename)
}

// 🔍 Observe checks whether filename exists and hashes it
func (o *Observer) Observe(ctx context.Context, filename string) (LocalState, error) {
	p, err := o.Path(filename)
	if err != nil {
		return LocalState{}, err
	}
	f, err := o.fs.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return LocalState{}, nil
		}
		return LocalState{}, errors.Errorf("opening %s: %w", filename, err)
	}
	defer f.Close()

	sum, err := Checksum(f)
	if err != nil {
		return LocalState{}, errors.Errorf("hashing %s: %w", filename, err)
	}
	return LocalState{Exists: true, Checksum: sum}, nil
}

// 🔐 Checksum returns the hex encoded sha256 of everything r yields
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Errorf("reading content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

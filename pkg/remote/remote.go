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

package remote

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrNotFound is returned by a Store when the requested object does not exist
	ErrNotFound = errors.Base("object not found")
	// ErrAuth is returned when an update site rejects the supplied credentials
	ErrAuth = errors.Base("authentication failed")
	// ErrContentChanged is returned when pushed bytes do not hash to the checksum of their index entry
	ErrContentChanged = errors.Base("content changed during upload")
)

// 🔑 Credentials for an update site
type Credentials struct {
	Username string
	Password string
	Token    string
}

// 📦 Store reads and writes the objects of one update site
type Store interface {
	// Get opens key for reading. The size is -1 when the site does not report it.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// Put writes size bytes from r to key
	Put(ctx context.Context, key string, r io.Reader, size int64) error
}

// 🔐 Authenticator is implemented by stores that can check credentials before any transfer
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// ⚙️ Options are handed to every store factory
type Options struct {
	HTTPClient *http.Client // used by network stores, carries the proxy configuration
	Fs         afero.Fs     // used by file:// stores
}

// 🏭 Factory opens a store for an update site location
type Factory func(ctx context.Context, location *url.URL, creds *Credentials, opts Options) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// 📝 Register registers a store factory for a URL scheme
func Register(scheme string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = factory
}

// Registered returns a copy of the global factory registry
func Registered() map[string]Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make(map[string]Factory, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

func lookup(factories map[string]Factory, scheme string) (Factory, error) {
	f, ok := factories[scheme]
	if !ok {
		options := make([]string, 0, len(factories))
		for k := range factories {
			options = append(options, k)
		}
		slices.Sort(options)
		return nil, errors.Errorf("no store for scheme %q, options: %s", scheme, strings.Join(options, ", "))
	}
	return f, nil
}

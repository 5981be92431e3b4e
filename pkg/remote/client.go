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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/index"
	"gitlab.com/tozd/go/errors"
)

// 🌐 Client reaches update sites through the registered stores
type Client struct {
	factories map[string]Factory
	opts      Options
	now       func() time.Time
}

// ClientOptions configures a Client
type ClientOptions struct {
	Options
	// Factories overrides the global registry when set
	Factories map[string]Factory
	// Now stamps rewritten site indexes, defaults to time.Now
	Now func() time.Time
}

// 🏭 NewClient creates a transport client
func NewClient(opts ClientOptions) *Client {
	factories := opts.Factories
	if factories == nil {
		factories = Registered()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{factories: factories, opts: opts.Options, now: now}
}

func (c *Client) open(ctx context.Context, rawURL string, creds *Credentials) (Store, error) {
	location, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Errorf("parsing site url %q: %w", rawURL, err)
	}
	scheme := location.Scheme
	if scheme == "https" {
		scheme = "http"
	}
	factory, err := lookup(c.factories, scheme)
	if err != nil {
		return nil, err
	}
	store, err := factory(ctx, location, creds, c.opts)
	if err != nil {
		return nil, errors.Errorf("opening %s: %w", rawURL, err)
	}
	return store, nil
}

// 📥 Fetch opens the object key of site for reading
func (c *Client) Fetch(ctx context.Context, site index.UpdateSite, key string) (io.ReadCloser, int64, error) {
	store, err := c.open(ctx, site.URL, nil)
	if err != nil {
		return nil, 0, err
	}
	rc, size, err := store.Get(ctx, key)
	if err != nil {
		return nil, 0, errors.Errorf("fetching %s from %s: %w", key, site.Name, err)
	}
	return rc, size, nil
}

// 🗂️ FetchSiteIndex downloads and decodes the index site publishes
func (c *Client) FetchSiteIndex(ctx context.Context, site index.UpdateSite) (*index.SiteIndex, error) {
	rc, _, err := c.Fetch(ctx, site, index.SiteIndexKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	idx, err := index.DecodeSiteIndex(rc)
	if err != nil {
		return nil, errors.Errorf("reading index of %s: %w", site.Name, err)
	}
	zerolog.Ctx(ctx).Debug().Str("site", site.Name).Int("files", len(idx.Files)).Msg("fetched site index")
	return idx, nil
}

// 🔓 Login opens the upload location of site with creds and checks them when the store can
func (c *Client) Login(ctx context.Context, site index.UpdateSite, creds *Credentials) (*Session, error) {
	if !site.Uploadable() {
		return nil, errors.Errorf("site %s has no upload url", site.Name)
	}
	store, err := c.open(ctx, site.UploadURL, creds)
	if err != nil {
		return nil, err
	}
	if auth, ok := store.(Authenticator); ok {
		if err := auth.Authenticate(ctx); err != nil {
			return nil, errors.Errorf("logging in to %s: %w", site.Name, err)
		}
	}
	zerolog.Ctx(ctx).Debug().Str("site", site.Name).Msg("logged in")
	return &Session{site: site, store: store, now: c.now}, nil
}

// 📤 PushRequest is one file to publish
type PushRequest struct {
	Content io.Reader
	Size    int64
	Entry   index.SiteFile // the site index entry describing the new version
}

// 🎫 Session is an authenticated connection to the upload location of one site.
// It is used by a single goroutine.
type Session struct {
	site  index.UpdateSite
	store Store
	now   func() time.Time
}

// Site is the site the session writes to
func (s *Session) Site() index.UpdateSite {
	return s.site
}

// 📤 Push uploads the content of one file, then merges its entry into the site index.
// The streamed bytes are hashed on the way out; when they do not match the entry's checksum
// the site index is left untouched.
func (s *Session) Push(ctx context.Context, req PushRequest) error {
	key := index.ContentKey(req.Entry.Filename, req.Entry.Timestamp)
	h := sha256.New()
	if err := s.store.Put(ctx, key, io.TeeReader(req.Content, h), req.Size); err != nil {
		return errors.Errorf("uploading %s: %w", key, err)
	}
	if sent := hex.EncodeToString(h.Sum(nil)); sent != req.Entry.Checksum {
		return errors.Errorf("%s: sent %s, expected %s: %w", req.Entry.Filename, sent, req.Entry.Checksum, ErrContentChanged)
	}
	return s.updateIndex(ctx, func(idx *index.SiteIndex) error {
		idx.Upsert(req.Entry)
		return nil
	})
}

// 🗑️ Remove drops filename from the site index. The content objects are left in place.
func (s *Session) Remove(ctx context.Context, filename string) error {
	return s.updateIndex(ctx, func(idx *index.SiteIndex) error {
		if !idx.Remove(filename) {
			return errors.Errorf("%s is not published on %s", filename, s.site.Name)
		}
		return nil
	})
}

// TODO(walteh): take a lock object next to the site index so two uploaders cannot interleave this read-modify-write
func (s *Session) updateIndex(ctx context.Context, fn func(idx *index.SiteIndex) error) error {
	idx := &index.SiteIndex{}
	rc, _, err := s.store.Get(ctx, index.SiteIndexKey)
	switch {
	case err == nil:
		idx, err = index.DecodeSiteIndex(rc)
		rc.Close()
		if err != nil {
			return errors.Errorf("reading site index: %w", err)
		}
	case errors.Is(err, ErrNotFound):
		zerolog.Ctx(ctx).Debug().Str("site", s.site.Name).Msg("site has no index yet")
	default:
		return errors.Errorf("fetching site index: %w", err)
	}

	if err := fn(idx); err != nil {
		return err
	}
	idx.Timestamp = index.Timestamp(s.now())

	var buf bytes.Buffer
	if err := idx.Encode(&buf); err != nil {
		return err
	}
	if err := s.store.Put(ctx, index.SiteIndexKey, &buf, int64(buf.Len())); err != nil {
		return errors.Errorf("writing site index: %w", err)
	}
	return nil
}

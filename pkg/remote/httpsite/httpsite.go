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

// Package httpsite serves update sites over plain HTTP(S): GET to read, PUT to write.
package httpsite

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

func init() {
	remote.Register("http", New)
}

// 🌐 Store talks to one site base URL
type Store struct {
	client *http.Client
	base   *url.URL
	creds  *remote.Credentials
}

var (
	_ remote.Store         = (*Store)(nil)
	_ remote.Authenticator = (*Store)(nil)
)

// 🏭 New creates a store for an http:// or https:// site
func New(_ context.Context, location *url.URL, creds *remote.Credentials, opts remote.Options) (remote.Store, error) {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	base := *location
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return &Store{client: client, base: &base, creds: creds}, nil
}

func (s *Store) url(key string) string {
	return s.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(key, "/")}).String()
}

func (s *Store) do(ctx context.Context, method, target string, body io.Reader, size int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}
	if body != nil && size >= 0 {
		req.ContentLength = size
	}
	if s.creds != nil {
		switch {
		case s.creds.Token != "":
			req.Header.Set("Authorization", "Bearer "+s.creds.Token)
		case s.creds.Username != "":
			req.SetBasicAuth(s.creds.Username, s.creds.Password)
		}
	}

	zerolog.Ctx(ctx).Debug().Str("method", method).Str("url", target).Msg("http request")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Errorf("%s %s: %w", method, target, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Errorf("%s: %w", resp.Request.URL, remote.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Errorf("%s returned %d: %w", resp.Request.URL, resp.StatusCode, remote.ErrAuth)
	default:
		return errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// 📥 Get downloads key
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	resp, err := s.do(ctx, http.MethodGet, s.url(key), nil, 0)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, statusError(resp)
	}
	return resp.Body, resp.ContentLength, nil
}

// 📤 Put uploads key with a PUT request
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	resp, err := s.do(ctx, http.MethodPut, s.url(key), r, size)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	return nil
}

// 🔐 Authenticate sends a HEAD request to the base URL with the credentials
func (s *Store) Authenticate(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodHead, s.base.String(), nil, 0)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return statusError(resp)
	}
	return nil
}

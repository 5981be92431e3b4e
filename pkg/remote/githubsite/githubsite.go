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

// Package githubsite serves update sites from a directory of a GitHub repository.
//
//	github://owner/repo/path/in/repo?ref=main
package githubsite

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

func init() {
	remote.Register("github", New)
}

// GitHubClient defines the GitHub API operations the store needs
type GitHubClient interface {
	DownloadContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (io.ReadCloser, *github.Response, error)
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
	CreateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error)
	UpdateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error)
	GetAuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error)
}

// githubClientWrapper wraps the GitHub client to implement our interface
type githubClientWrapper struct {
	client *github.Client
}

func (w *githubClientWrapper) DownloadContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (io.ReadCloser, *github.Response, error) {
	return w.client.Repositories.DownloadContents(ctx, owner, repo, path, opts)
}

func (w *githubClientWrapper) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	return w.client.Repositories.GetContents(ctx, owner, repo, path, opts)
}

func (w *githubClientWrapper) CreateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error) {
	return w.client.Repositories.CreateFile(ctx, owner, repo, path, opts)
}

func (w *githubClientWrapper) UpdateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error) {
	return w.client.Repositories.UpdateFile(ctx, owner, repo, path, opts)
}

func (w *githubClientWrapper) GetAuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error) {
	return w.client.Users.Get(ctx, "")
}

// 📍 Location is a parsed github:// site URL
type Location struct {
	Owner string
	Repo  string
	Dir   string
	Ref   string // empty means the default branch
}

// 🔍 ParseLocation reads owner, repository, directory and ref from a github:// URL
func ParseLocation(u *url.URL) (Location, error) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) == 0 || parts[0] == "" {
		return Location{}, errors.Errorf("invalid github site %q, want github://owner/repo[/dir]", u.String())
	}
	return Location{
		Owner: u.Host,
		Repo:  parts[0],
		Dir:   strings.Join(parts[1:], "/"),
		Ref:   u.Query().Get("ref"),
	}, nil
}

// Path maps a site object key into the repository
func (l Location) Path(key string) string {
	if l.Dir == "" {
		return key
	}
	return path.Join(l.Dir, key)
}

// 🐙 Store keeps site objects as files of a repository
type Store struct {
	client GitHubClient
	loc    Location
}

var (
	_ remote.Store         = (*Store)(nil)
	_ remote.Authenticator = (*Store)(nil)
)

// 🏭 New creates a store for a github:// site. The token comes from the credentials,
// falling back to GITHUB_TOKEN.
func New(_ context.Context, location *url.URL, creds *remote.Credentials, opts remote.Options) (remote.Store, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(opts.HTTPClient)
	token := os.Getenv("GITHUB_TOKEN")
	if creds != nil {
		switch {
		case creds.Token != "":
			token = creds.Token
		case creds.Password != "":
			token = creds.Password
		}
	}
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return NewWithClient(&githubClientWrapper{client: client}, loc), nil
}

// NewWithClient creates a store using an existing API client
func NewWithClient(client GitHubClient, loc Location) *Store {
	return &Store{client: client, loc: loc}
}

func (s *Store) getOptions() *github.RepositoryContentGetOptions {
	if s.loc.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: s.loc.Ref}
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func classify(resp *github.Response, err error) error {
	switch statusOf(resp) {
	case http.StatusNotFound:
		return errors.Errorf("%s: %w", err.Error(), remote.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Errorf("%s: %w", err.Error(), remote.ErrAuth)
	}
	return err
}

// 📥 Get downloads key from the repository. GitHub does not report the size up front.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	p := s.loc.Path(key)
	zerolog.Ctx(ctx).Debug().Str("repo", s.loc.Owner+"/"+s.loc.Repo).Str("path", p).Msg("downloading contents")

	rc, resp, err := s.client.DownloadContents(ctx, s.loc.Owner, s.loc.Repo, p, s.getOptions())
	if err != nil {
		// DownloadContents reports a missing file in an existing directory without a response
		if resp == nil && strings.Contains(err.Error(), "no file named") {
			return nil, 0, errors.Errorf("%s: %w", key, remote.ErrNotFound)
		}
		return nil, 0, errors.Errorf("downloading %s from GitHub: %w", key, classify(resp, err))
	}
	return rc, -1, nil
}

// 📤 Put commits key to the repository, updating the file when it already exists
func (s *Store) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return errors.Errorf("reading content for %s: %w", key, err)
	}

	p := s.loc.Path(key)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("updaterc: publish %s", key)),
		Content: buf.Bytes(),
	}
	if s.loc.Ref != "" {
		opts.Branch = github.String(s.loc.Ref)
	}

	existing, _, resp, err := s.client.GetContents(ctx, s.loc.Owner, s.loc.Repo, p, s.getOptions())
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
		if _, _, err := s.client.UpdateFile(ctx, s.loc.Owner, s.loc.Repo, p, opts); err != nil {
			return errors.Errorf("updating %s on GitHub: %w", key, err)
		}
	case err == nil || statusOf(resp) == http.StatusNotFound:
		if _, resp, err := s.client.CreateFile(ctx, s.loc.Owner, s.loc.Repo, p, opts); err != nil {
			return errors.Errorf("creating %s on GitHub: %w", key, classify(resp, err))
		}
	default:
		return errors.Errorf("looking up %s on GitHub: %w", key, classify(resp, err))
	}
	return nil
}

// 🔐 Authenticate checks the token by fetching the authenticated user
func (s *Store) Authenticate(ctx context.Context) error {
	user, resp, err := s.client.GetAuthenticatedUser(ctx)
	if err != nil {
		if code := statusOf(resp); code == http.StatusUnauthorized || code == http.StatusForbidden {
			return errors.Errorf("github rejected the token: %w", remote.ErrAuth)
		}
		return errors.Errorf("checking GitHub credentials: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("user", user.GetLogin()).Msg("authenticated with GitHub")
	return nil
}

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


package config

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/platform"
	"github.com/walteh/updaterc/pkg/retry"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// DefaultNames are the config files Discover looks for, in order
var DefaultNames = []string{".updaterc.hcl", ".updaterc.yaml", ".updaterc.yml", ".updaterc.json"}

const (
	DefaultConcurrency = 4
	DefaultRetries     = 3
)

// 🌐 Site is one configured update site
type Site struct {
	Name        string `json:"name" yaml:"name"`
	URL         string `json:"url" yaml:"url"`
	UploadURL   string `json:"upload_url,omitempty" yaml:"upload_url,omitempty"`
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"` // env:VAR
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Root        string `json:"root,omitempty" yaml:"root,omitempty"`               // install root
	Index       string `json:"index,omitempty" yaml:"index,omitempty"`             // local index file
	Platform    string `json:"platform,omitempty" yaml:"platform,omitempty"`       // e.g. linux64
	Concurrency int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"` // parallel downloads
	Retries     int    `json:"retries,omitempty" yaml:"retries,omitempty"`         // attempts per download
	Proxy       string `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Offline     bool   `json:"offline,omitempty" yaml:"offline,omitempty"`
	Sites       []Site `json:"sites,omitempty" yaml:"sites,omitempty"`
}

// 🔎 Discover returns the first default config file present in dir
func Discover(fs afero.Fs, dir string) (string, bool) {
	for _, name := range DefaultNames {
		path := filepath.Join(dir, name)
		if ok, _ := afero.Exists(fs, path); ok {
			return path, true
		}
	}
	return "", false
}

// 🎯 Load loads the configuration from a file. A missing root defaults to the
// directory holding the file; a relative root is resolved against it.
func Load(ctx context.Context, fs afero.Fs, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	dir := filepath.Dir(path)
	switch {
	case cfg.Root == "":
		cfg.Root = dir
	case !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(dir, cfg.Root)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Str("root", cfg.Root).Int("sites", len(cfg.Sites)).Msg("configuration loaded")
	return cfg, nil
}

// 🔍 Validate checks if the configuration is valid and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.Root == "" {
		return errors.Errorf("root is required")
	}
	if cfg.Concurrency < 0 {
		return errors.Errorf("concurrency must not be negative")
	}
	if cfg.Retries < 0 {
		return errors.Errorf("retries must not be negative")
	}

	cfg.Root = filepath.Clean(cfg.Root)
	switch {
	case cfg.Index == "":
		cfg.Index = filepath.Join(cfg.Root, ".updaterc", "db.json.gz")
	case !filepath.IsAbs(cfg.Index):
		cfg.Index = filepath.Join(cfg.Root, cfg.Index)
	}
	if cfg.Platform == "" {
		cfg.Platform = platform.Current()
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}

	seen := map[string]bool{}
	for i, s := range cfg.Sites {
		if s.Name == "" {
			return errors.Errorf("sites[%d].name is required", i)
		}
		if seen[s.Name] {
			return errors.Errorf("duplicate site %s", s.Name)
		}
		seen[s.Name] = true
		if s.URL == "" {
			return errors.Errorf("site %s: url is required", s.Name)
		}
		if err := checkURL(s.URL); err != nil {
			return errors.Errorf("site %s: url: %w", s.Name, err)
		}
		if s.UploadURL != "" {
			if err := checkURL(s.UploadURL); err != nil {
				return errors.Errorf("site %s: upload_url: %w", s.Name, err)
			}
		}
		if s.Credentials != "" && !strings.HasPrefix(s.Credentials, "env:") {
			return errors.Errorf("site %s: credentials must be an env:VAR reference", s.Name)
		}
	}

	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Errorf("parsing %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return errors.Errorf("%q has no scheme", raw)
	}
	return nil
}

// 🌐 UpdateSites converts the configured sites for the file collection
func (cfg *Config) UpdateSites() []index.UpdateSite {
	out := make([]index.UpdateSite, 0, len(cfg.Sites))
	for _, s := range cfg.Sites {
		out = append(out, index.UpdateSite{
			Name:        s.Name,
			URL:         s.URL,
			UploadURL:   s.UploadURL,
			Credentials: s.Credentials,
			Description: s.Description,
		})
	}
	return out
}

// 🔁 RetryConfig returns the download retry policy
func (cfg *Config) RetryConfig() retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.Retries
	return rc
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s [%s] (%d site(s))", cfg.Root, cfg.Platform, len(cfg.Sites))
}

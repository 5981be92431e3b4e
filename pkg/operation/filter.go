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
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/platform"
	"gitlab.com/tozd/go/errors"
)

// 🔍 Filter selects records by status
type Filter func(rec *index.FileRecord) bool

// Is matches records in any of statuses
func Is(statuses ...index.Status) Filter {
	return func(rec *index.FileRecord) bool {
		return slices.Contains(statuses, rec.Status)
	}
}

// Not inverts f
func Not(f Filter) Filter {
	return func(rec *index.FileRecord) bool {
		return !f(rec)
	}
}

var (
	// UpToDate matches installed files at the latest version
	UpToDate = Is(index.StatusInstalled)
	// NotUpToDate matches files an update would touch or that are not installed
	NotUpToDate = Not(Is(index.StatusObsolete, index.StatusInstalled, index.StatusLocalOnly))
	// Updateable matches files with a newer published version
	Updateable = Is(index.StatusUpdateable)
	// Modified matches files whose local content is unknown to every site
	Modified = Is(index.StatusModified)
)

func normalize(name string) string {
	return strings.TrimPrefix(filepath.ToSlash(name), "./")
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(normalize(p)) {
			return errors.Errorf("invalid pattern %q", p)
		}
	}
	return nil
}

func matchesAny(patterns []string, filename string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(normalize(p), filename); ok {
			return true
		}
	}
	return false
}

// 🎯 Select returns the records matching patterns (all records when empty) and filter,
// skipping files for other platforms and obsolete files that are not installed
func (o *Operator) Select(c *index.Collection, patterns []string, filter Filter) ([]*index.FileRecord, error) {
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}

	var out []*index.FileRecord
	for _, rec := range c.Files() {
		if !platform.Matches(rec.Platforms, o.platform) {
			continue
		}
		if rec.Status == index.StatusObsoleteUninstalled {
			continue
		}
		if !matchesAny(patterns, rec.Filename) {
			continue
		}
		if filter != nil && !filter(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// expand turns upload arguments into filenames. Literal names are kept as given so the
// planner can reject unknown ones; a glob must match at least one record.
func expand(c *index.Collection, patterns []string) ([]string, error) {
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}

	var out []string
	add := func(name string) {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, p := range patterns {
		p = normalize(p)
		if !hasMeta(p) {
			add(p)
			continue
		}
		matched := false
		for _, rec := range c.Files() {
			if ok, _ := doublestar.Match(p, rec.Filename); ok {
				add(rec.Filename)
				matched = true
			}
		}
		if !matched {
			return nil, errors.Errorf("no file matching '%s' found", p)
		}
	}
	return out, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{\\")
}

func filenames(recs []*index.FileRecord) []string {
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.Filename
	}
	return out
}

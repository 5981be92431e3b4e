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
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gitlab.com/tozd/go/errors"
)

// SiteIndexKey is the object every update site publishes its index under
const SiteIndexKey = "db.json.gz"

// 🗂️ SiteFile is one entry of an update site's index
type SiteFile struct {
	Filename     string       `json:"filename"`
	Description  string       `json:"description,omitempty"`
	Checksum     string       `json:"checksum"`
	Timestamp    int64        `json:"timestamp"`
	Size         int64        `json:"size"`
	Executable   bool         `json:"executable,omitempty"`
	Platforms    []string     `json:"platforms,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Previous     []Version    `json:"previous,omitempty"`
}

// Version is the currently published version of the entry
func (f SiteFile) Version() Version {
	return Version{Checksum: f.Checksum, Timestamp: f.Timestamp}
}

// 🗂️ SiteIndex is what one update site publishes
type SiteIndex struct {
	Timestamp int64      `json:"timestamp"`
	Files     []SiteFile `json:"files"`
}

// 📖 DecodeSiteIndex reads a gzip compressed site index
func DecodeSiteIndex(r io.Reader) (*SiteIndex, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	var idx SiteIndex
	if err := json.NewDecoder(gz).Decode(&idx); err != nil {
		return nil, errors.Errorf("decoding site index: %w", err)
	}
	return &idx, nil
}

// 💾 Encode writes the site index gzip compressed
func (s *SiteIndex) Encode(w io.Writer) error {
	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return errors.Errorf("encoding site index: %w", err)
	}
	if err := gz.Close(); err != nil {
		return errors.Errorf("closing gzip stream: %w", err)
	}
	return nil
}

// Find returns the entry for filename
func (s *SiteIndex) Find(filename string) (SiteFile, bool) {
	i := slices.IndexFunc(s.Files, func(f SiteFile) bool { return f.Filename == filename })
	if i < 0 {
		return SiteFile{}, false
	}
	return s.Files[i], true
}

// ✏️ Upsert replaces the entry for f.Filename or appends it.
// The replaced entry's version moves into the previous versions list.
func (s *SiteIndex) Upsert(f SiteFile) {
	i := slices.IndexFunc(s.Files, func(e SiteFile) bool { return e.Filename == f.Filename })
	if i < 0 {
		s.Files = append(s.Files, f)
		s.sort()
		return
	}
	old := s.Files[i]
	if old.Checksum != f.Checksum && !slices.ContainsFunc(f.Previous, func(v Version) bool { return v.Checksum == old.Checksum }) {
		f.Previous = append(f.Previous, old.Version())
	}
	s.Files[i] = f
}

// Remove drops the entry for filename, reporting whether it existed
func (s *SiteIndex) Remove(filename string) bool {
	n := len(s.Files)
	s.Files = slices.DeleteFunc(s.Files, func(f SiteFile) bool { return f.Filename == filename })
	return len(s.Files) != n
}

func (s *SiteIndex) sort() {
	slices.SortFunc(s.Files, func(a, b SiteFile) int {
		switch {
		case a.Filename < b.Filename:
			return -1
		case a.Filename > b.Filename:
			return 1
		}
		return 0
	})
}

// 🧩 SiteFileFor describes rec published at v, with every other remembered version as history
func SiteFileFor(rec *FileRecord, v Version, size int64) SiteFile {
	f := SiteFile{
		Filename:     rec.Filename,
		Description:  rec.Description,
		Checksum:     v.Checksum,
		Timestamp:    v.Timestamp,
		Size:         size,
		Executable:   rec.Executable,
		Platforms:    slices.Clone(rec.Platforms),
		Dependencies: slices.Clone(rec.Dependencies),
	}
	for _, prev := range rec.Versions {
		if prev.Checksum != v.Checksum {
			f.Previous = append(f.Previous, prev)
		}
	}
	return f
}

// 🔀 MergeSite folds a freshly fetched site index into the collection.
// Every publication previously contributed by site is replaced; checksum history is only ever added to.
// Entries with an unusable filename or without a checksum are skipped and reported as warnings.
func (c *Collection) MergeSite(site string, idx *SiteIndex) (warnings []string) {
	c.ClearSite(site)
	if s, ok := c.sites[site]; ok {
		s.Timestamp = idx.Timestamp
	}

	for _, f := range idx.Files {
		if err := CheckFilename(f.Filename); err != nil {
			warnings = append(warnings, fmt.Sprintf("Ignoring entry of update site '%s': %s", site, err))
			continue
		}
		if f.Checksum == "" {
			warnings = append(warnings, fmt.Sprintf("Ignoring %s from update site '%s': no checksum", f.Filename, site))
			continue
		}

		rec := c.Get(f.Filename)
		if rec == nil {
			rec = &FileRecord{Filename: f.Filename}
			c.Put(rec)
		}
		for _, prev := range f.Previous {
			rec.AddVersion(prev)
		}
		rec.AddVersion(f.Version())

		if rec.UpdateSite == "" || rec.UpdateSite == site || c.newerThanOwner(rec, f) {
			rec.UpdateSite = site
			rec.Description = f.Description
			rec.Size = f.Size
			rec.Executable = f.Executable
			rec.Platforms = slices.Clone(f.Platforms)
			rec.Dependencies = slices.Clone(f.Dependencies)
		}

		c.Publish(f.Filename, Publication{Site: site, Version: f.Version(), Size: f.Size})
	}
	return warnings
}

// newerThanOwner reports whether f supersedes what the record's current owner publishes
func (c *Collection) newerThanOwner(rec *FileRecord, f SiteFile) bool {
	for _, p := range c.published[rec.Filename] {
		if p.Site == rec.UpdateSite {
			return f.Timestamp > p.Version.Timestamp
		}
	}
	return true
}

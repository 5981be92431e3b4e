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
	"fmt"
	"slices"
	"strconv"
	"time"
)

// TimestampLayout is the layout of every timestamp the index stores (yyyyMMddHHmmss)
const TimestampLayout = "20060102150405"

// 🕐 Timestamp converts t into the index timestamp representation
func Timestamp(t time.Time) int64 {
	ts, _ := strconv.ParseInt(t.UTC().Format(TimestampLayout), 10, 64)
	return ts
}

// 📦 Version is one checksum the index remembers for a file
type Version struct {
	Checksum  string `json:"checksum"`  // hex encoded sha256
	Timestamp int64  `json:"timestamp"` // yyyyMMddHHmmss
}

// 🔗 Dependency is a file another file needs in order to work
type Dependency struct {
	Filename  string `json:"filename"`
	Timestamp int64  `json:"timestamp,omitempty"` // minimum required timestamp
	Overrides bool   `json:"overrides,omitempty"` // a newer incompatible dependency silently supersedes it
}

// 📄 FileRecord describes one managed file's known and local state
type FileRecord struct {
	Filename     string       `json:"filename"`
	Description  string       `json:"description,omitempty"`
	Versions     []Version    `json:"versions,omitempty"` // oldest to newest
	Local        *Version     `json:"local,omitempty"`    // recorded by the last successful apply
	Platforms    []string     `json:"platforms,omitempty"`
	Executable   bool         `json:"executable,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	UpdateSite   string       `json:"update_site,omitempty"` // empty means local only
	Size         int64        `json:"size,omitempty"`

	Status   Status `json:"-"`
	Action   Action `json:"-"`
	Checksum string `json:"-"` // observed on disk by the last resolution pass, empty when absent
}

// ➕ AddVersion records v in the checksum history, keeping it sorted by timestamp.
// A checksum that is already known keeps its original timestamp.
func (r *FileRecord) AddVersion(v Version) {
	if _, ok := r.FindVersion(v.Checksum); ok {
		return
	}
	i, _ := slices.BinarySearchFunc(r.Versions, v, func(a, b Version) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	// land after equal timestamps so insertion order is kept
	for i < len(r.Versions) && r.Versions[i].Timestamp == v.Timestamp {
		i++
	}
	r.Versions = slices.Insert(r.Versions, i, v)
}

// 🔍 FindVersion looks up a checksum in the history
func (r *FileRecord) FindVersion(checksum string) (Version, bool) {
	for _, v := range r.Versions {
		if v.Checksum == checksum {
			return v, true
		}
	}
	return Version{}, false
}

// Newest returns the most recent version the history remembers
func (r *FileRecord) Newest() (Version, bool) {
	if len(r.Versions) == 0 {
		return Version{}, false
	}
	return r.Versions[len(r.Versions)-1], true
}

// 🏷️ ContentKey names the remote object holding the content of v
func (r *FileRecord) ContentKey(v Version) string {
	return ContentKey(r.Filename, v.Timestamp)
}

// ContentKey names the remote object holding filename at timestamp
func ContentKey(filename string, timestamp int64) string {
	return fmt.Sprintf("%s-%d", filename, timestamp)
}

// 🧬 Clone returns a deep copy of the record
func (r *FileRecord) Clone() *FileRecord {
	c := *r
	c.Versions = slices.Clone(r.Versions)
	c.Platforms = slices.Clone(r.Platforms)
	c.Dependencies = slices.Clone(r.Dependencies)
	if r.Local != nil {
		l := *r.Local
		c.Local = &l
	}
	return &c
}

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
	"maps"
	"slices"
	"strings"
)

// 🌐 UpdateSite is a named remote repository publishing a site index and file content
type UpdateSite struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	UploadURL   string `json:"upload_url,omitempty"`
	Credentials string `json:"credentials,omitempty"` // reference resolved by the user interaction layer
	Description string `json:"description,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"` // timestamp of the last merged site index
}

// Uploadable reports whether files can be pushed to the site
func (s UpdateSite) Uploadable() bool {
	return s.UploadURL != ""
}

// LongName is the label shown when choosing a site
func (s UpdateSite) LongName() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.UploadURL)
}

// 📰 Publication is one site currently publishing one version of a file
type Publication struct {
	Site    string  `json:"site"`
	Version Version `json:"version"`
	Size    int64   `json:"size,omitempty"`
}

// 📚 Collection is the full set of file records for one installation plus its update sites.
// It is loaded once, mutated by the goroutine driving planning and commit, and saved at the end.
type Collection struct {
	files     map[string]*FileRecord
	sites     map[string]*UpdateSite
	siteOrder []string
	published map[string][]Publication
}

// 🏭 NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{
		files:     make(map[string]*FileRecord),
		sites:     make(map[string]*UpdateSite),
		published: make(map[string][]Publication),
	}
}

// Get returns the record for filename, or nil
func (c *Collection) Get(filename string) *FileRecord {
	return c.files[filename]
}

// Put adds or replaces a record
func (c *Collection) Put(rec *FileRecord) {
	c.files[rec.Filename] = rec
}

// Len is the number of records
func (c *Collection) Len() int {
	return len(c.files)
}

// 📋 Files returns every record sorted by filename
func (c *Collection) Files() []*FileRecord {
	names := slices.Sorted(maps.Keys(c.files))
	out := make([]*FileRecord, 0, len(names))
	for _, n := range names {
		out = append(out, c.files[n])
	}
	return out
}

// PutSite adds or replaces an update site, keeping the order sites were first added in
func (c *Collection) PutSite(site UpdateSite) {
	if _, ok := c.sites[site.Name]; !ok {
		c.siteOrder = append(c.siteOrder, site.Name)
	}
	s := site
	c.sites[site.Name] = &s
}

// Site looks up an update site by name
func (c *Collection) Site(name string) (*UpdateSite, bool) {
	s, ok := c.sites[name]
	return s, ok
}

// 🌐 Sites returns every update site in the order they were added
func (c *Collection) Sites() []UpdateSite {
	out := make([]UpdateSite, 0, len(c.siteOrder))
	for _, n := range c.siteOrder {
		out = append(out, *c.sites[n])
	}
	return out
}

// UploadableSites returns the sites files can be pushed to
func (c *Collection) UploadableSites() []UpdateSite {
	var out []UpdateSite
	for _, s := range c.Sites() {
		if s.Uploadable() {
			out = append(out, s)
		}
	}
	return out
}

// 📰 Publish records that pub.Site publishes filename, replacing that site's previous publication
func (c *Collection) Publish(filename string, pub Publication) {
	pubs := slices.DeleteFunc(c.published[filename], func(p Publication) bool {
		return p.Site == pub.Site
	})
	c.published[filename] = append(pubs, pub)
}

// Unpublish drops site's publication of filename
func (c *Collection) Unpublish(site, filename string) {
	pubs := slices.DeleteFunc(c.published[filename], func(p Publication) bool {
		return p.Site == site
	})
	if len(pubs) == 0 {
		delete(c.published, filename)
		return
	}
	c.published[filename] = pubs
}

// ClearSite drops every publication contributed by site
func (c *Collection) ClearSite(site string) {
	for name := range c.published {
		c.Unpublish(site, name)
	}
}

// 📸 Index returns an immutable snapshot of what the update sites currently publish
func (c *Collection) Index() *RepositoryIndex {
	rank := make(map[string]int, len(c.siteOrder))
	for i, n := range c.siteOrder {
		rank[n] = i
	}
	published := make(map[string][]Publication, len(c.published))
	for name, pubs := range c.published {
		cp := slices.Clone(pubs)
		slices.SortStableFunc(cp, func(a, b Publication) int {
			return rank[a.Site] - rank[b.Site]
		})
		published[name] = cp
	}
	return &RepositoryIndex{published: published}
}

// 🔭 RepositoryIndex is a read-only view of what the update sites publish, keyed by filename
type RepositoryIndex struct {
	published map[string][]Publication
}

// NewRepositoryIndex builds an index from a filename to publications mapping
func NewRepositoryIndex(published map[string][]Publication) *RepositoryIndex {
	cp := make(map[string][]Publication, len(published))
	for k, v := range published {
		cp[k] = slices.Clone(v)
	}
	return &RepositoryIndex{published: cp}
}

// Publications returns a copy of every publication of filename
func (x *RepositoryIndex) Publications(filename string) []Publication {
	return slices.Clone(x.published[filename])
}

// IsPublished reports whether any site publishes filename
func (x *RepositoryIndex) IsPublished(filename string) bool {
	return len(x.published[filename]) > 0
}

// ⭐ Latest returns the newest publication of filename across every site.
// Ties go to the site added first.
func (x *RepositoryIndex) Latest(filename string) (Publication, bool) {
	pubs := x.published[filename]
	if len(pubs) == 0 {
		return Publication{}, false
	}
	best := pubs[0]
	for _, p := range pubs[1:] {
		if p.Version.Timestamp > best.Version.Timestamp {
			best = p
		}
	}
	return best, true
}

// Filenames returns every published filename, sorted
func (x *RepositoryIndex) Filenames() []string {
	return slices.Sorted(maps.Keys(x.published))
}

// String is used in debug logging
func (x *RepositoryIndex) String() string {
	return fmt.Sprintf("RepositoryIndex{%s}", strings.Join(x.Filenames(), ", "))
}

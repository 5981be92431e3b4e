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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/testutils"
)

func published(filename string, versions ...index.Version) *index.RepositoryIndex {
	pubs := map[string][]index.Publication{}
	for _, v := range versions {
		pubs[filename] = append(pubs[filename], index.Publication{Site: "core", Version: v})
	}
	return index.NewRepositoryIndex(pubs)
}

func TestResolve(t *testing.T) {
	v1 := index.Version{Checksum: "c1", Timestamp: 10}
	v2 := index.Version{Checksum: "c2", Timestamp: 20}

	tests := []struct {
		name  string
		rec   *index.FileRecord
		idx   *index.RepositoryIndex
		local LocalState
		want  index.Status
	}{
		{
			name: "absent_published_never_installed_is_new",
			rec:  &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1}},
			idx:  published("a.jar", v1),
			want: index.StatusNew,
		},
		{
			name: "absent_published_previously_installed_is_not_installed",
			rec:  &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1}, Local: &v1},
			idx:  published("a.jar", v1),
			want: index.StatusNotInstalled,
		},
		{
			name: "absent_unpublished_is_obsolete_uninstalled",
			rec:  &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1}, Local: &v1},
			idx:  index.NewRepositoryIndex(nil),
			want: index.StatusObsoleteUninstalled,
		},
		{
			name:  "present_matching_latest_is_installed",
			rec:   &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1, v2}},
			idx:   published("a.jar", v2),
			local: LocalState{Exists: true, Checksum: "c2"},
			want:  index.StatusInstalled,
		},
		{
			name:  "present_matching_older_is_updateable",
			rec:   &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1, v2}},
			idx:   published("a.jar", v2),
			local: LocalState{Exists: true, Checksum: "c1"},
			want:  index.StatusUpdateable,
		},
		{
			name:  "present_unknown_checksum_is_modified",
			rec:   &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1, v2}},
			idx:   published("a.jar", v2),
			local: LocalState{Exists: true, Checksum: "edited"},
			want:  index.StatusModified,
		},
		{
			name:  "present_unpublished_matching_history_is_obsolete",
			rec:   &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1, v2}},
			idx:   index.NewRepositoryIndex(nil),
			local: LocalState{Exists: true, Checksum: "c2"},
			want:  index.StatusObsolete,
		},
		{
			name:  "present_unpublished_unknown_checksum_is_obsolete_modified",
			rec:   &index.FileRecord{Filename: "a.jar", Versions: []index.Version{v1, v2}},
			idx:   index.NewRepositoryIndex(nil),
			local: LocalState{Exists: true, Checksum: "edited"},
			want:  index.StatusObsoleteModified,
		},
		{
			name:  "present_without_any_record_is_local_only",
			rec:   &index.FileRecord{Filename: "mine.jar"},
			idx:   index.NewRepositoryIndex(nil),
			local: LocalState{Exists: true, Checksum: "whatever"},
			want:  index.StatusLocalOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.rec, tt.idx, tt.local)
			assert.Equal(t, tt.want, got, "status should follow the decision table")

			again := Resolve(tt.rec, tt.idx, tt.local)
			assert.Equal(t, got, again, "resolving twice should give the same status")
		})
	}
}

func TestResolveAll(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/app/jars/a.jar", []byte("hello"), 0644))
	require.NoError(t, afero.WriteFile(mem, "/app/jars/locked.jar", []byte("secret"), 0644))

	helloSum, err := Checksum(strings.NewReader("hello"))
	require.NoError(t, err)

	c := index.NewCollection()
	c.Put(&index.FileRecord{Filename: "jars/a.jar", Versions: []index.Version{{Checksum: helloSum, Timestamp: 10}}})
	c.Put(&index.FileRecord{Filename: "jars/locked.jar"})
	c.Put(&index.FileRecord{Filename: "jars/b.jar"})
	c.Publish("jars/a.jar", index.Publication{Site: "core", Version: index.Version{Checksum: helloSum, Timestamp: 10}})
	c.Publish("jars/b.jar", index.Publication{Site: "core", Version: index.Version{Checksum: "b", Timestamp: 10}})

	fs := testutils.NewFaultFs(mem).Fail("open", filepath.Join("/app", "jars", "locked.jar"), os.ErrPermission)
	resolver := NewResolver(NewObserver(fs, "/app"))

	warnings := resolver.ResolveAll(ctx, c, c.Index())

	assert.Equal(t, index.StatusInstalled, c.Get("jars/a.jar").Status)
	assert.Equal(t, helloSum, c.Get("jars/a.jar").Checksum)
	assert.Equal(t, index.StatusNew, c.Get("jars/b.jar").Status)
	assert.Equal(t, index.StatusModified, c.Get("jars/locked.jar").Status, "unreadable files should be treated as modified")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "jars/locked.jar")

	assert.Equal(t, int64(10), CurrentTimestamp(c.Get("jars/a.jar"), c.Index()))
}

func TestFormatter(t *testing.T) {
	f := NewDefaultFileFormatter()
	rec := &index.FileRecord{Filename: "jars/a.jar", Status: index.StatusUpdateable}

	assert.Equal(t, "jars/a.jar\t(UPDATEABLE)\t20240101000000", f.FormatListLine(rec, 20240101000000))
	assert.Equal(t, "jars/a.jar-20240101000000", f.FormatCurrentLine(rec, 20240101000000))
}

func TestColorFormatter(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	f := NewColorFileFormatter()
	rec := &index.FileRecord{Filename: "jars/a.jar", Status: index.StatusModified}

	line := f.FormatListLine(rec, 20240101000000)
	assert.Equal(t, "jars/a.jar\t("+color.New(color.FgRed).Sprint("MODIFIED")+")\t20240101000000", line)
	assert.Contains(t, line, "\x1b[31m")
	assert.Equal(t, "jars/a.jar-20240101000000", f.FormatCurrentLine(rec, 20240101000000), "list-current stays plain for scripts")
}

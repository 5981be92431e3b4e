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

package plan

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/updaterc/pkg/deps"
	"github.com/walteh/updaterc/pkg/index"
)

func TestDecide(t *testing.T) {
	safe := Mode{}
	force := Mode{Force: true}
	pristine := Mode{Pristine: true}
	both := Mode{Force: true, Pristine: true}

	tests := []struct {
		name        string
		status      index.Status
		platforms   []string
		mode        Mode
		want        index.Action
		wantMessage string
	}{
		{name: "modified_without_force_is_skipped", status: index.StatusModified, mode: safe, want: index.ActionNone, wantMessage: "Skipping locally-modified a.jar"},
		{name: "modified_with_force_is_updated", status: index.StatusModified, mode: force, want: index.ActionUpdate},
		{name: "updateable_is_updated", status: index.StatusUpdateable, mode: safe, want: index.ActionUpdate},
		{name: "new_is_installed", status: index.StatusNew, mode: safe, want: index.ActionInstall},
		{name: "not_installed_is_installed", status: index.StatusNotInstalled, mode: safe, want: index.ActionInstall},
		{name: "other_platform_is_not_installed", status: index.StatusNew, platforms: []string{"win32"}, mode: safe, want: index.ActionNone, wantMessage: "Skipping a.jar: not available for linux64"},
		{name: "local_only_is_kept", status: index.StatusLocalOnly, mode: safe, want: index.ActionNone, wantMessage: "Keeping local-only a.jar"},
		{name: "local_only_force_is_kept", status: index.StatusLocalOnly, mode: force, want: index.ActionNone, wantMessage: "Keeping local-only a.jar"},
		{name: "local_only_pristine_without_force_falls_to_obsolete_modified_check", status: index.StatusLocalOnly, mode: pristine, want: index.ActionNone, wantMessage: "Keeping modified but obsolete a.jar"},
		{name: "local_only_force_pristine_is_uninstalled", status: index.StatusLocalOnly, mode: both, want: index.ActionUninstall},
		{name: "obsolete_modified_is_kept", status: index.StatusObsoleteModified, mode: safe, want: index.ActionNone, wantMessage: "Keeping modified but obsolete a.jar"},
		{name: "obsolete_modified_force_is_uninstalled", status: index.StatusObsoleteModified, mode: force, want: index.ActionUninstall},
		{name: "obsolete_is_uninstalled", status: index.StatusObsolete, mode: safe, want: index.ActionUninstall},
		{name: "installed_is_not_updated", status: index.StatusInstalled, mode: both, want: index.ActionNone, wantMessage: "Not updating a.jar (INSTALLED)"},
		{name: "obsolete_uninstalled_is_not_updated", status: index.StatusObsoleteUninstalled, mode: safe, want: index.ActionNone, wantMessage: "Not updating a.jar (OBSOLETE_UNINSTALLED)"},
	}

	p := New("linux64")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &index.FileRecord{Filename: "a.jar", Status: tt.status, Platforms: tt.platforms}
			d := p.Decide(rec, tt.mode)
			assert.Equal(t, tt.want, d.Action)
			assert.Equal(t, tt.wantMessage, d.Message)
			assert.Equal(t, index.ActionNone, rec.Action, "deciding should not mutate the record")
		})
	}
}

func TestDecideWarnings(t *testing.T) {
	tests := []struct {
		name    string
		status  index.Status
		mode    Mode
		warning bool
	}{
		{name: "skipped_modified", status: index.StatusModified, warning: true},
		{name: "kept_local_only", status: index.StatusLocalOnly, warning: true},
		{name: "kept_obsolete_modified", status: index.StatusObsoleteModified, warning: true},
		{name: "not_updating_installed", status: index.StatusInstalled},
		{name: "update_is_not_a_warning", status: index.StatusUpdateable},
	}

	p := New("linux64")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(&index.FileRecord{Filename: "a.jar", Status: tt.status}, tt.mode)
			assert.Equal(t, tt.warning, d.Warning)
		})
	}
}

func TestPlanUpdateWithDependencies(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	c := index.NewCollection()
	c.Put(&index.FileRecord{
		Filename:     "A",
		Status:       index.StatusModified,
		Dependencies: []index.Dependency{{Filename: "B"}},
	})
	c.Put(&index.FileRecord{Filename: "B", Status: index.StatusNotInstalled})

	closure, warnings := deps.Closure(c, []string{"A"})
	require.Empty(t, warnings)
	require.Equal(t, []string{"A", "B"}, closure)

	decisions := New("linux64").PlanUpdate(ctx, c, closure, Mode{})

	assert.Equal(t, index.ActionNone, c.Get("A").Action)
	assert.Equal(t, index.ActionInstall, c.Get("B").Action)
	assert.Equal(t, []string{"B"}, Selected(decisions, index.ActionInstall, index.ActionUpdate))
	assert.Equal(t, "Skipping locally-modified A", decisions[0].Message)
}

func TestPlanUpload(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	newCollection := func() *index.Collection {
		c := index.NewCollection()
		c.Put(&index.FileRecord{Filename: "done.jar", Status: index.StatusInstalled})
		c.Put(&index.FileRecord{Filename: "edited.jar", Status: index.StatusModified})
		c.Put(&index.FileRecord{Filename: "mine.jar", Status: index.StatusLocalOnly})
		c.Put(&index.FileRecord{Filename: "remote.jar", Status: index.StatusNew})
		return c
	}

	t.Run("marks_uploadable_files", func(t *testing.T) {
		c := newCollection()
		decisions, err := New("linux64").PlanUpload(ctx, c, []string{"done.jar", "edited.jar", "mine.jar", "remote.jar"})
		require.NoError(t, err)

		assert.Equal(t, []string{"edited.jar", "mine.jar"}, Selected(decisions, index.ActionUpload))
		assert.Equal(t, "Skipping up-to-date done.jar", decisions[0].Message)
		assert.Equal(t, "Cannot upload remote.jar (NEW)", decisions[3].Message)
		assert.Equal(t, index.ActionUpload, c.Get("mine.jar").Action)
	})

	t.Run("unknown_file_is_fatal", func(t *testing.T) {
		c := newCollection()
		_, err := New("linux64").PlanUpload(ctx, c, []string{"edited.jar", "ghost.jar"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghost.jar")
		assert.Equal(t, index.ActionNone, c.Get("edited.jar").Action, "nothing should be marked when the batch fails")
	})

	t.Run("empty_request_is_fatal", func(t *testing.T) {
		_, err := New("linux64").PlanUpload(ctx, newCollection(), nil)
		require.Error(t, err)
	})

	t.Run("remove", func(t *testing.T) {
		c := newCollection()
		decisions, err := New("linux64").PlanRemove(ctx, c, []string{"done.jar", "mine.jar"})
		require.NoError(t, err)
		assert.Equal(t, []string{"done.jar"}, Selected(decisions, index.ActionRemove))
	})
}

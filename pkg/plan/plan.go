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

// Package plan assigns an Action to every file of a batch.
package plan

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/platform"
	"gitlab.com/tozd/go/errors"
)

// ⚙️ Mode selects how aggressive an update is
type Mode struct {
	Force    bool // overwrite locally modified files
	Pristine bool // also remove files no update site knows about
}

// 📋 Decision is the action chosen for one file and the diagnostic explaining it
type Decision struct {
	Filename string
	Action   index.Action
	Message  string // empty when there is nothing to report
	Warning  bool   // the file is deliberately left alone although the user may expect a change
}

// Rule is one link of the update chain. It reports whether it decided the file.
type Rule struct {
	Name   string
	Decide func(p *Planner, rec *index.FileRecord, mode Mode) (Decision, bool)
}

// 🧭 Planner assigns actions for the platform it runs on
type Planner struct {
	platform string
	rules    []Rule
}

// 🏭 New creates a planner using the default update chain
func New(currentPlatform string) *Planner {
	return &Planner{platform: currentPlatform, rules: UpdateRules()}
}

// 🔗 UpdateRules is the ordered chain used by update. Order matters:
// LOCAL_ONLY needs pristine to pass rule 3 and force to pass rule 4 before it reaches uninstall,
// OBSOLETE_MODIFIED only needs force.
func UpdateRules() []Rule {
	return []Rule{
		{Name: "skip-modified", Decide: skipModified},
		{Name: "install", Decide: install},
		{Name: "keep-local-only", Decide: keepLocalOnly},
		{Name: "keep-obsolete-modified", Decide: keepObsoleteModified},
		{Name: "uninstall", Decide: uninstall},
		{Name: "not-updating", Decide: notUpdating},
	}
}

func skipModified(_ *Planner, rec *index.FileRecord, mode Mode) (Decision, bool) {
	if rec.Status != index.StatusModified || mode.Force {
		return Decision{}, false
	}
	return keep(rec, "Skipping locally-modified %s", rec.Filename), true
}

func install(p *Planner, rec *index.FileRecord, _ Mode) (Decision, bool) {
	switch rec.Status {
	case index.StatusModified, index.StatusUpdateable, index.StatusNew, index.StatusNotInstalled:
	default:
		return Decision{}, false
	}
	if !platform.Matches(rec.Platforms, p.platform) {
		return none(rec, "Skipping %s: not available for %s", rec.Filename, p.platform), true
	}
	for _, a := range []index.Action{index.ActionUpdate, index.ActionInstall} {
		if rec.Status.Allows(a) {
			return Decision{Filename: rec.Filename, Action: a}, true
		}
	}
	return none(rec, ""), true
}

func keepLocalOnly(_ *Planner, rec *index.FileRecord, mode Mode) (Decision, bool) {
	if rec.Status != index.StatusLocalOnly || mode.Pristine {
		return Decision{}, false
	}
	return keep(rec, "Keeping local-only %s", rec.Filename), true
}

func keepObsoleteModified(_ *Planner, rec *index.FileRecord, mode Mode) (Decision, bool) {
	if (rec.Status != index.StatusLocalOnly && rec.Status != index.StatusObsoleteModified) || mode.Force {
		return Decision{}, false
	}
	return keep(rec, "Keeping modified but obsolete %s", rec.Filename), true
}

func uninstall(_ *Planner, rec *index.FileRecord, _ Mode) (Decision, bool) {
	switch rec.Status {
	case index.StatusLocalOnly, index.StatusObsoleteModified, index.StatusObsolete:
		return Decision{Filename: rec.Filename, Action: index.ActionUninstall}, true
	}
	return Decision{}, false
}

func notUpdating(_ *Planner, rec *index.FileRecord, _ Mode) (Decision, bool) {
	return none(rec, "Not updating %s (%s)", rec.Filename, rec.Status), true
}

func none(rec *index.FileRecord, format string, args ...any) Decision {
	d := Decision{Filename: rec.Filename, Action: index.ActionNone}
	if format != "" {
		d.Message = fmt.Sprintf(format, args...)
	}
	return d
}

// keep is a NONE decision reported as a warning
func keep(rec *index.FileRecord, format string, args ...any) Decision {
	d := none(rec, format, args...)
	d.Warning = true
	return d
}

// 🎯 Decide runs the chain for one record without mutating it
func (p *Planner) Decide(rec *index.FileRecord, mode Mode) Decision {
	for _, r := range p.rules {
		if d, ok := r.Decide(p, rec, mode); ok {
			return d
		}
	}
	return none(rec, "")
}

// 📝 PlanUpdate assigns an action to every named record of c
func (p *Planner) PlanUpdate(ctx context.Context, c *index.Collection, names []string, mode Mode) []Decision {
	logger := zerolog.Ctx(ctx)

	decisions := make([]Decision, 0, len(names))
	for _, name := range names {
		rec := c.Get(name)
		if rec == nil {
			continue
		}
		d := p.Decide(rec, mode)
		rec.Action = d.Action
		decisions = append(decisions, d)
		logger.Debug().
			Str("file", name).
			Str("status", rec.Status.String()).
			Str("action", d.Action.String()).
			Msg("planned")
	}
	return decisions
}

// 📤 PlanUpload marks the named records for upload. Unknown names are fatal to the batch.
func (p *Planner) PlanUpload(ctx context.Context, c *index.Collection, names []string) ([]Decision, error) {
	return p.planPublish(ctx, c, names, index.ActionUpload)
}

// 🗑️ PlanRemove marks the named records for removal from their update site
func (p *Planner) PlanRemove(ctx context.Context, c *index.Collection, names []string) ([]Decision, error) {
	return p.planPublish(ctx, c, names, index.ActionRemove)
}

func (p *Planner) planPublish(ctx context.Context, c *index.Collection, names []string, action index.Action) ([]Decision, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("which files do you mean to %s?", verb(action))
	}
	for _, name := range names {
		if c.Get(name) == nil {
			return nil, errors.Errorf("no file '%s' found", name)
		}
	}

	decisions := make([]Decision, 0, len(names))
	for _, name := range names {
		rec := c.Get(name)
		var d Decision
		switch {
		case action == index.ActionUpload && rec.Status == index.StatusInstalled:
			d = none(rec, "Skipping up-to-date %s", name)
		case !rec.Status.Allows(action):
			d = keep(rec, "Cannot %s %s (%s)", verb(action), name, rec.Status)
		default:
			d = Decision{Filename: name, Action: action}
		}
		rec.Action = d.Action
		decisions = append(decisions, d)
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(decisions)).Str("action", action.String()).Msg("planned publish batch")
	return decisions, nil
}

func verb(a index.Action) string {
	if a == index.ActionRemove {
		return "remove"
	}
	return "upload"
}

// Selected returns the filenames whose decision is one of actions
func Selected(decisions []Decision, actions ...index.Action) []string {
	var out []string
	for _, d := range decisions {
		for _, a := range actions {
			if d.Action == a {
				out = append(out, d.Filename)
				break
			}
		}
	}
	return out
}

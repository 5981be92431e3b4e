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
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/deps"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/install"
	"github.com/walteh/updaterc/pkg/plan"
	"github.com/walteh/updaterc/pkg/status"
	"github.com/walteh/updaterc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

// 📋 List prints `filename\t(STATUS)\ttimestamp` for every selected record
func (o *Operator) List(ctx context.Context, c *index.Collection, patterns []string, filter Filter) error {
	recs, err := o.Select(c, patterns, filter)
	if err != nil {
		return err
	}
	idx := c.Index()
	for _, rec := range recs {
		if _, err := fmt.Fprintln(o.out, o.formatter.FormatListLine(rec, status.CurrentTimestamp(rec, idx))); err != nil {
			return errors.Errorf("writing list: %w", err)
		}
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(recs)).Msg("listed")
	return nil
}

// 📋 ListCurrent prints `filename-timestamp` for every selected record
func (o *Operator) ListCurrent(ctx context.Context, c *index.Collection, patterns []string) error {
	recs, err := o.Select(c, patterns, nil)
	if err != nil {
		return err
	}
	idx := c.Index()
	for _, rec := range recs {
		if _, err := fmt.Fprintln(o.out, o.formatter.FormatCurrentLine(rec, status.CurrentTimestamp(rec, idx))); err != nil {
			return errors.Errorf("writing list: %w", err)
		}
	}
	return nil
}

// ⬇️ Update plans the selected files plus their dependencies and applies the batch.
// Per-file failures are in the report; the error is reserved for batch-wide problems.
func (o *Operator) Update(ctx context.Context, c *index.Collection, patterns []string, mode plan.Mode) (*install.Report, error) {
	logger := zerolog.Ctx(ctx)

	recs, err := o.Select(c, patterns, nil)
	if err != nil {
		return nil, err
	}

	closure, warnings := deps.Closure(c, filenames(recs))
	for _, w := range warnings {
		o.ui.Warn(w)
	}

	decisions := o.planner.PlanUpdate(ctx, c, closure, mode)
	o.report(decisions)

	if len(plan.Selected(decisions, index.ActionInstall, index.ActionUpdate, index.ActionUninstall)) == 0 {
		o.diag.Info("Nothing to update")
		return &install.Report{Failed: map[string]error{}}, nil
	}

	logger.Debug().
		Int("requested", len(recs)).
		Int("closure", len(closure)).
		Bool("force", mode.Force).
		Bool("pristine", mode.Pristine).
		Msg("applying update")
	return o.installer.Apply(ctx, c)
}

// ⬆️ Upload publishes the named files to their update site
func (o *Operator) Upload(ctx context.Context, c *index.Collection, patterns []string) (*upload.Report, error) {
	names, err := expand(c, patterns)
	if err != nil {
		return nil, err
	}
	decisions, err := o.planner.PlanUpload(ctx, c, names)
	if err != nil {
		return nil, err
	}
	o.report(decisions)
	return o.uploader.Publish(ctx, c)
}

// 🗑️ Remove drops the named files from their update site's index
func (o *Operator) Remove(ctx context.Context, c *index.Collection, patterns []string) (*upload.Report, error) {
	names, err := expand(c, patterns)
	if err != nil {
		return nil, err
	}
	decisions, err := o.planner.PlanRemove(ctx, c, names)
	if err != nil {
		return nil, err
	}
	o.report(decisions)
	return o.uploader.Publish(ctx, c)
}

func (o *Operator) report(decisions []plan.Decision) {
	for _, d := range decisions {
		switch {
		case d.Message == "":
		case d.Warning:
			o.diag.Warning(d.Message)
		default:
			o.diag.Info(d.Message)
		}
	}
}

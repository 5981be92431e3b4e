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
	"fmt"

	"github.com/fatih/color"
	"github.com/walteh/updaterc/pkg/index"
)

// FileFormatter defines how records are printed by the list commands
type FileFormatter interface {
	// FormatListLine formats one line of `list` output
	FormatListLine(rec *index.FileRecord, timestamp int64) string

	// FormatCurrentLine formats one line of `list-current` output
	FormatCurrentLine(rec *index.FileRecord, timestamp int64) string
}

// DefaultFileFormatter prints tab separated lines scripts can parse
type DefaultFileFormatter struct{}

// NewDefaultFileFormatter creates a new DefaultFileFormatter
func NewDefaultFileFormatter() *DefaultFileFormatter {
	return &DefaultFileFormatter{}
}

// FormatListLine prints `filename\t(STATUS)\ttimestamp`
func (f *DefaultFileFormatter) FormatListLine(rec *index.FileRecord, timestamp int64) string {
	return fmt.Sprintf("%s\t(%s)\t%d", rec.Filename, rec.Status, timestamp)
}

// FormatCurrentLine prints `filename-timestamp`
func (f *DefaultFileFormatter) FormatCurrentLine(rec *index.FileRecord, timestamp int64) string {
	return index.ContentKey(rec.Filename, timestamp)
}

// 🎨 ColorFileFormatter colours the status column, used when list output goes to a terminal
type ColorFileFormatter struct {
	DefaultFileFormatter
}

// NewColorFileFormatter creates a new ColorFileFormatter
func NewColorFileFormatter() *ColorFileFormatter {
	return &ColorFileFormatter{}
}

func statusColor(s index.Status) *color.Color {
	switch s {
	case index.StatusInstalled:
		return color.New(color.FgGreen)
	case index.StatusUpdateable, index.StatusNew, index.StatusNotInstalled:
		return color.New(color.FgYellow)
	case index.StatusModified, index.StatusObsoleteModified:
		return color.New(color.FgRed)
	case index.StatusObsolete:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgHiBlack)
	}
}

// FormatListLine prints the same columns as DefaultFileFormatter with a coloured status
func (f *ColorFileFormatter) FormatListLine(rec *index.FileRecord, timestamp int64) string {
	return fmt.Sprintf("%s\t(%s)\t%d", rec.Filename, statusColor(rec.Status).Sprint(rec.Status), timestamp)
}

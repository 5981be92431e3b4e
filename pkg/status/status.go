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
	"fmt"

	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/index"
)

// 📄 LocalState is what the live tree says about one file
type LocalState struct {
	Exists   bool
	Checksum string // hex sha256, empty when the file is absent
}

// 🧮 Resolve computes the status of rec. It is pure: the same inputs always give the same status.
func Resolve(rec *index.FileRecord, idx *index.RepositoryIndex, local LocalState) index.Status {
	latest, published := idx.Latest(rec.Filename)

	if !local.Exists {
		switch {
		case !published:
			return index.StatusObsoleteUninstalled
		case rec.Local != nil:
			return index.StatusNotInstalled
		default:
			return index.StatusNew
		}
	}

	if published {
		switch {
		case local.Checksum == latest.Version.Checksum:
			return index.StatusInstalled
		case isKnown(rec, idx, local.Checksum):
			return index.StatusUpdateable
		default:
			return index.StatusModified
		}
	}

	if len(rec.Versions) == 0 {
		return index.StatusLocalOnly
	}
	if _, ok := rec.FindVersion(local.Checksum); ok {
		return index.StatusObsolete
	}
	return index.StatusObsoleteModified
}

// isKnown reports whether checksum is in the history or published by any site
func isKnown(rec *index.FileRecord, idx *index.RepositoryIndex, checksum string) bool {
	if _, ok := rec.FindVersion(checksum); ok {
		return true
	}
	for _, p := range idx.Publications(rec.Filename) {
		if p.Version.Checksum == checksum {
			return true
		}
	}
	return false
}

// 🔧 Resolver runs Resolve over a whole collection using an Observer for local facts
type Resolver struct {
	observer *Observer
}

// 🏭 NewResolver creates a resolver
func NewResolver(observer *Observer) *Resolver {
	return &Resolver{observer: observer}
}

// 🔄 ResolveAll recomputes the status of every record from scratch.
// Hashing failures do not stop the pass: the file becomes MODIFIED and a warning is returned.
func (r *Resolver) ResolveAll(ctx context.Context, c *index.Collection, idx *index.RepositoryIndex) []string {
	logger := zerolog.Ctx(ctx)

	var warnings []string
	for _, rec := range c.Files() {
		local, err := r.observer.Observe(ctx, rec.Filename)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not hash %s: %v", rec.Filename, err))
			rec.Checksum = ""
			rec.Status = index.StatusModified
			continue
		}
		rec.Checksum = local.Checksum
		rec.Status = Resolve(rec, idx, local)
		logger.Debug().
			Str("file", rec.Filename).
			Str("status", rec.Status.String()).
			Msg("resolved status")
	}
	return warnings
}

// 🕐 CurrentTimestamp is the timestamp of the version rec is at: the matching history
// entry when the observed checksum is known, otherwise the latest published one.
func CurrentTimestamp(rec *index.FileRecord, idx *index.RepositoryIndex) int64 {
	if rec.Checksum != "" {
		if v, ok := rec.FindVersion(rec.Checksum); ok {
			return v.Timestamp
		}
	}
	if latest, ok := idx.Latest(rec.Filename); ok {
		return latest.Version.Timestamp
	}
	if v, ok := rec.Newest(); ok {
		return v.Timestamp
	}
	return 0
}

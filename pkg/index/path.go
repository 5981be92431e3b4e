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
	"path"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// StateDir holds the local index and staging area, relative to the install root.
// Every name starting with it (including .updaterc.* config files) is reserved.
const StateDir = ".updaterc"

// ErrInvalidFilename is matched by errors for names that do not denote a file inside the install root
var ErrInvalidFilename = errors.Base("invalid filename")

// 🛡️ CheckFilename accepts only clean, relative, slash separated names that stay inside the
// install root and do not touch the reserved state directory
func CheckFilename(name string) error {
	invalid := func(reason string) error {
		return errors.Errorf("%q %s: %w", name, reason, ErrInvalidFilename)
	}
	switch {
	case name == "":
		return invalid("is empty")
	case strings.ContainsAny(name, "\\\x00"):
		return invalid("contains a backslash or NUL")
	case path.IsAbs(name) || filepath.VolumeName(filepath.FromSlash(name)) != "":
		return invalid("is absolute")
	case path.Clean(name) != name:
		return invalid("is not clean")
	case name == ".":
		return invalid("is the install root")
	case name == ".." || strings.HasPrefix(name, "../"):
		return invalid("leaves the install root")
	case strings.HasPrefix(name, StateDir):
		return invalid("is reserved")
	}
	return nil
}

// 📍 LivePath joins a checked filename onto root and makes sure the result stays below root
func LivePath(root, name string) (string, error) {
	if err := CheckFilename(name); err != nil {
		return "", err
	}
	root = filepath.Clean(root)
	p := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%q resolves outside %s: %w", name, root, ErrInvalidFilename)
	}
	return p, nil
}

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

// Package platform names the platform updaterc runs on and matches file platform restrictions.
package platform

import (
	"runtime"
	"slices"
	"strings"
)

// 🖥️ Current returns the platform name of the running process
func Current() string {
	return Name(runtime.GOOS, runtime.GOARCH)
}

// Name maps an os/arch pair onto the platform names used in update site indexes
func Name(goos, goarch string) string {
	bits := "32"
	if strings.HasSuffix(goarch, "64") {
		bits = "64"
	}
	switch goos {
	case "windows":
		return "win" + bits
	case "darwin":
		return "macosx"
	case "linux":
		return "linux" + bits
	default:
		return goos + bits
	}
}

// IsWindows reports whether name is a windows platform
func IsWindows(name string) bool {
	return strings.HasPrefix(name, "win")
}

// 🎯 Matches reports whether a file restricted to platforms can be used on current.
// An empty restriction list matches every platform.
func Matches(platforms []string, current string) bool {
	if len(platforms) == 0 {
		return true
	}
	return slices.Contains(platforms, current)
}

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

// Package deps computes the transitive closure of files a request needs.
package deps

import (
	"fmt"

	"github.com/walteh/updaterc/pkg/index"
)

// 🔗 Closure returns the requested filenames plus every file reachable through their
// dependency lists, in depth-first discovery order. Traversal only holds filename keys and
// a visited set, so cyclic graphs terminate and nothing is listed twice.
//
// Requested names and dependency targets that are not in the collection are dropped;
// each dropped dependency target yields a warning string.
func Closure(c *index.Collection, requested []string) (closure []string, warnings []string) {
	visited := make(map[string]bool)
	warned := make(map[string]bool)

	for _, root := range requested {
		if visited[root] || c.Get(root) == nil {
			continue
		}

		stack := []string{root}
		for len(stack) > 0 {
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[name] {
				continue
			}
			visited[name] = true
			closure = append(closure, name)

			deps := c.Get(name).Dependencies
			// push in reverse so the first declared dependency is visited first
			for i := len(deps) - 1; i >= 0; i-- {
				target := deps[i].Filename
				if visited[target] {
					continue
				}
				if c.Get(target) == nil {
					if !warned[name+"\x00"+target] {
						warned[name+"\x00"+target] = true
						warnings = append(warnings, fmt.Sprintf("%s depends on %s, which is not in the index", name, target))
					}
					continue
				}
				stack = append(stack, target)
			}
		}
	}
	return closure, warnings
}

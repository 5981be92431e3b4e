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

/*
Package status computes the synchronization status of every managed file.

	+-------------+      +-----------------+
	|  Observer   |      | RepositoryIndex |
	| (live tree) |      |   (snapshot)    |
	+------+------+      +--------+--------+
	       |                      |
	       +----------+-----------+
	                  |
	           +------+------+
	           |   Resolve   |
	           |   (pure)    |
	           +------+------+
	                  |
	            index.Status

🎯 Purpose:
- Hash local files (Observer)
- Map (local state, checksum history, published versions) to exactly one Status (Resolve)
- Format list output for the command surface

📝 Decision table:

	present  published  local checksum                 status
	no       yes        never recorded installed       NEW
	no       yes        recorded installed             NOT_INSTALLED
	no       no         -                              OBSOLETE_UNINSTALLED
	yes      yes        latest published               INSTALLED
	yes      yes        older known version            UPDATEABLE
	yes      yes        unknown                        MODIFIED
	yes      no         matches history                OBSOLETE
	yes      no         history, no match              OBSOLETE_MODIFIED
	yes      no         no history                     LOCAL_ONLY

Resolve never touches the filesystem. Hashing failures are reported by the
Resolver as warnings and the file is treated as MODIFIED.
*/
package status

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
Package operation runs the user facing commands against a file collection.

	  Load ─▶ Refresh ─▶ ResolveAll
	                        │
	        ┌───────────────┼───────────────┐
	        ▼               ▼               ▼
	      List       Closure ─▶ Plan    PlanUpload/PlanRemove
	                        │               │
	                        ▼               ▼
	                  Installer.Apply  Uploader.Publish

🎯 Purpose:
- Merges every configured update site's index before statuses are computed
- Selects files by name or doublestar glob, ignoring files for other platforms
- Prints list output for scripts, diagnostics go to the diagnostic logger
*/
package operation

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
Package config loads the updaterc configuration file.

	            +-------------+
	            |   Config    |
	            | root, sites |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   HCL    | |   YAML   | |   JSON   |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Finds .updaterc.{hcl,yaml,yml,json} in the install root
- Parses it with the parser registered for its extension
- Fills defaults (index path, platform, concurrency, retries)
- Rejects sites without a name or URL

🔍 Example:

	path, ok := config.Discover(fs, root)
	if !ok {
		return errors.New("no configuration found")
	}
	cfg, err := config.Load(ctx, fs, path)
	if err != nil {
		return err
	}
	collection.PutSite(cfg.UpdateSites()[0])
*/
package config

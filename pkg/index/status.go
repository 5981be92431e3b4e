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

import "slices"

// 📊 Status is the synchronization state of one file, derived on every resolution pass
type Status int

const (
	StatusNotInstalled Status = iota
	StatusNew
	StatusInstalled
	StatusUpdateable
	StatusModified
	StatusLocalOnly
	StatusObsolete
	StatusObsoleteModified
	StatusObsoleteUninstalled
)

// String returns a string representation of Status
func (s Status) String() string {
	switch s {
	case StatusNotInstalled:
		return "NOT_INSTALLED"
	case StatusNew:
		return "NEW"
	case StatusInstalled:
		return "INSTALLED"
	case StatusUpdateable:
		return "UPDATEABLE"
	case StatusModified:
		return "MODIFIED"
	case StatusLocalOnly:
		return "LOCAL_ONLY"
	case StatusObsolete:
		return "OBSOLETE"
	case StatusObsoleteModified:
		return "OBSOLETE_MODIFIED"
	case StatusObsoleteUninstalled:
		return "OBSOLETE_UNINSTALLED"
	default:
		return "UNKNOWN"
	}
}

// 🎬 Action is what a planning pass decided to do with a file
type Action int

const (
	ActionNone Action = iota
	ActionInstall
	ActionUpdate
	ActionUninstall
	ActionUpload
	ActionRemove
)

// String returns a string representation of Action
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionInstall:
		return "INSTALL"
	case ActionUpdate:
		return "UPDATE"
	case ActionUninstall:
		return "UNINSTALL"
	case ActionUpload:
		return "UPLOAD"
	case ActionRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// user actions per status
var userActions = map[Status][]Action{
	StatusNotInstalled:        {ActionInstall},
	StatusNew:                 {ActionInstall},
	StatusInstalled:           {ActionUninstall},
	StatusUpdateable:          {ActionUpdate, ActionUninstall},
	StatusModified:            {ActionUpdate, ActionUninstall},
	StatusLocalOnly:           {ActionUninstall},
	StatusObsolete:            {ActionUninstall},
	StatusObsoleteModified:    {ActionUninstall},
	StatusObsoleteUninstalled: {},
}

// actions that publish to an update site
var developerActions = map[Status][]Action{
	StatusNotInstalled:     {ActionRemove},
	StatusNew:              {ActionRemove},
	StatusInstalled:        {ActionRemove},
	StatusUpdateable:       {ActionUpload, ActionRemove},
	StatusModified:         {ActionUpload, ActionRemove},
	StatusLocalOnly:        {ActionUpload},
	StatusObsolete:         {ActionUpload},
	StatusObsoleteModified: {ActionUpload},
}

// ✅ Allows reports whether a file in status s may be assigned a.
// NONE is always allowed.
func (s Status) Allows(a Action) bool {
	if a == ActionNone {
		return true
	}
	return slices.Contains(userActions[s], a) || slices.Contains(developerActions[s], a)
}

// IsPresent reports whether the status implies the file exists in the live tree
func (s Status) IsPresent() bool {
	switch s {
	case StatusInstalled, StatusUpdateable, StatusModified, StatusLocalOnly, StatusObsolete, StatusObsoleteModified:
		return true
	}
	return false
}

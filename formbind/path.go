/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package formbind

import (
	"strings"
)

const (
	attributesPrefix    = "attributes."
	relationshipsPrefix = "relationships."

	// explicitSeparator delimits the extended control name form //type//id//path, which
	// addresses an explicit resource so one form can edit multiple resources at once.
	explicitSeparator = "//"
)

// fieldRef is the resource field a control name maps to. An empty resourceType addresses the
// binding's primary resource.
type fieldRef struct {
	resourceType string
	resourceID   string
	path         string // attributes.<field> or relationships.<field>
}

// explicit returns true when the control name addressed a resource directly instead of the
// primary resource.
func (ref fieldRef) explicit() bool {
	return ref.resourceType != ""
}

// relationship returns true when the referenced field is a relationship.
func (ref fieldRef) relationship() bool {
	return strings.HasPrefix(ref.path, relationshipsPrefix)
}

// field returns the bare attribute or relationship name.
func (ref fieldRef) field() string {
	if idx := strings.Index(ref.path, "."); idx >= 0 {
		return ref.path[idx+1:]
	}
	return ref.path
}

// sourcePointer returns the JSON pointer a server error for this field carries, e.g.
// /data/attributes/title.
func (ref fieldRef) sourcePointer() string {
	return "/data/" + strings.ReplaceAll(ref.path, ".", "/")
}

// matchesPointer compares an error source pointer against this field's expected pointer,
// tolerating pointers written without the /data prefix.
func (ref fieldRef) matchesPointer(pointer string) bool {
	if pointer == "" {
		return false
	}

	expected := ref.sourcePointer()
	if pointer == expected {
		return true
	}

	return "/data"+ensureLeadingSlash(pointer) == expected
}

func ensureLeadingSlash(pointer string) string {
	if strings.HasPrefix(pointer, "/") {
		return pointer
	}
	return "/" + pointer
}

// parseControlName maps a control name to the resource field it binds. Basic names
// (attributes.title, relationships.author) address the primary resource. Extended names of the
// form //type//id//path address an explicit resource.
func parseControlName(name string) (fieldRef, bool) {
	if strings.HasPrefix(name, explicitSeparator) {
		parts := strings.Split(strings.TrimPrefix(name, explicitSeparator), explicitSeparator)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return fieldRef{}, false
		}

		ref := fieldRef{
			resourceType: parts[0],
			resourceID:   parts[1],
			path:         parts[2],
		}

		if !strings.HasPrefix(ref.path, attributesPrefix) && !strings.HasPrefix(ref.path, relationshipsPrefix) {
			return fieldRef{}, false
		}

		return ref, true
	}

	if strings.HasPrefix(name, attributesPrefix) || strings.HasPrefix(name, relationshipsPrefix) {
		return fieldRef{path: name}, true
	}

	return fieldRef{}, false
}

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
	"reflect"
	"sort"

	"github.com/openapix/xjapi/document"
	"github.com/openapix/xjapi/store"
)

// hashKeyMarker is injected into attribute and relationship identifier objects by UI list
// tracking ($$hashKey). It never belongs in a resource patch.
const hashKeyMarker = "$$hashKey"

// buildPatches groups control values by owning resource and merges them into one partial
// resource patch per owner, stripping UI markers along the way.
func (b *Binding) buildPatches(values map[string]interface{}) []*store.Resource {
	patches := map[document.ResourceIdentifier]*store.Resource{}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref, ok := parseControlName(name)
		if !ok {
			continue
		}

		owner := document.ResourceIdentifier{Type: b.query.Type, ID: b.query.ResourceID}
		if ref.explicit() {
			owner = document.ResourceIdentifier{Type: ref.resourceType, ID: ref.resourceID}
		}

		patch, ok := patches[owner]
		if !ok {
			patch = &store.Resource{Type: owner.Type, ID: owner.ID}
			patches[owner] = patch
		}

		if ref.relationship() {
			relationship := toRelationship(values[name])
			if relationship == nil {
				continue
			}
			if patch.Relationships == nil {
				patch.Relationships = map[string]*document.Relationship{}
			}
			patch.Relationships[ref.field()] = relationship
		} else {
			if patch.Attributes == nil {
				patch.Attributes = map[string]interface{}{}
			}
			patch.Attributes[ref.field()] = stripMarker(values[name])
		}
	}

	ordered := make([]*store.Resource, 0, len(patches))
	for _, name := range names {
		ref, _ := parseControlName(name)
		owner := document.ResourceIdentifier{Type: b.query.Type, ID: b.query.ResourceID}
		if ref.explicit() {
			owner = document.ResourceIdentifier{Type: ref.resourceType, ID: ref.resourceID}
		}
		if patch, ok := patches[owner]; ok {
			ordered = append(ordered, patch)
			delete(patches, owner)
		}
	}

	return ordered
}

// toRelationship coerces a control value into relationship linkage. Supported shapes: the
// document relationship and identifier types, maps with type/id entries, and slices of either.
func toRelationship(value interface{}) *document.Relationship {
	switch typed := value.(type) {
	case nil:
		return &document.Relationship{Data: &document.RelationshipData{}}
	case *document.Relationship:
		return typed
	case document.ResourceIdentifier:
		return document.ToOne(typed)
	case *document.ResourceIdentifier:
		if typed == nil {
			return &document.Relationship{Data: &document.RelationshipData{}}
		}
		return document.ToOne(*typed)
	case []document.ResourceIdentifier:
		return document.ToMany(typed...)
	case map[string]interface{}:
		if identifier, ok := toIdentifier(typed); ok {
			return document.ToOne(identifier)
		}
		return nil
	case []interface{}:
		identifiers := make([]document.ResourceIdentifier, 0, len(typed))
		for _, entry := range typed {
			entryMap, ok := entry.(map[string]interface{})
			if !ok {
				return nil
			}
			identifier, ok := toIdentifier(entryMap)
			if !ok {
				return nil
			}
			identifiers = append(identifiers, identifier)
		}
		return document.ToMany(identifiers...)
	default:
		return nil
	}
}

// toIdentifier extracts a type/id pair from a map form of a resource identifier, ignoring the
// UI marker and any other extraneous keys.
func toIdentifier(value map[string]interface{}) (document.ResourceIdentifier, bool) {
	resourceType, _ := value["type"].(string)
	resourceID, _ := value["id"].(string)

	if resourceType == "" || resourceID == "" {
		return document.ResourceIdentifier{}, false
	}

	return document.ResourceIdentifier{Type: resourceType, ID: resourceID}, true
}

// stripMarker removes the UI marker key from map values, recursively, returning other values
// untouched.
func stripMarker(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		cleaned := make(map[string]interface{}, len(typed))
		for key, entry := range typed {
			if key == hashKeyMarker {
				continue
			}
			cleaned[key] = stripMarker(entry)
		}
		return cleaned
	case []interface{}:
		cleaned := make([]interface{}, len(typed))
		for i, entry := range typed {
			cleaned[i] = stripMarker(entry)
		}
		return cleaned
	default:
		return value
	}
}

// equalValues reports whether two control value snapshots are identical, so duplicate
// emissions within the debounce window can be skipped.
func equalValues(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	return b != nil && reflect.DeepEqual(a, b)
}

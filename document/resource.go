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

package document

import (
	"bytes"
	"encoding/json"
)

// Resource is a JSON:API resource object.
type Resource struct {
	Type          string                   `json:"type"`
	ID            string                   `json:"id,omitempty"`
	Attributes    map[string]interface{}   `json:"attributes,omitempty"`
	Relationships map[string]*Relationship `json:"relationships,omitempty"`
	Meta          map[string]interface{}   `json:"meta,omitempty"`
}

// Identifier returns the type+id pair identifying this resource.
func (r *Resource) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Type: r.Type, ID: r.ID}
}

// ResourceIdentifier identifies a resource by type and id.
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Relationship is a JSON:API relationship object. Only the data linkage is modeled; links
// and relationship-level meta belong to the dispatch engine, not this layer.
type Relationship struct {
	Data *RelationshipData `json:"data,omitempty"`
}

// RelationshipData is relationship linkage: a single resource identifier, a list of
// identifiers, or null.
type RelationshipData struct {
	Identifiers []ResourceIdentifier
	Many        bool
}

// ToOne builds a to-one relationship linkage.
func ToOne(identifier ResourceIdentifier) *Relationship {
	return &Relationship{Data: &RelationshipData{Identifiers: []ResourceIdentifier{identifier}}}
}

// ToMany builds a to-many relationship linkage.
func ToMany(identifiers ...ResourceIdentifier) *Relationship {
	return &Relationship{Data: &RelationshipData{Identifiers: identifiers, Many: true}}
}

// One returns the single identifier of a to-one linkage, or nil for empty/to-many linkage.
func (d *RelationshipData) One() *ResourceIdentifier {
	if d == nil || d.Many || len(d.Identifiers) == 0 {
		return nil
	}
	return &d.Identifiers[0]
}

func (d *RelationshipData) MarshalJSON() ([]byte, error) {
	if d.Many {
		if d.Identifiers == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(d.Identifiers)
	}

	if len(d.Identifiers) == 0 {
		return []byte("null"), nil
	}

	return json.Marshal(d.Identifiers[0])
}

func (d *RelationshipData) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		d.Identifiers = nil
		d.Many = false
		return nil
	}

	if trimmed[0] == '[' {
		d.Many = true
		return json.Unmarshal(trimmed, &d.Identifiers)
	}

	identifier := ResourceIdentifier{}
	if err := json.Unmarshal(trimmed, &identifier); err != nil {
		return err
	}

	d.Many = false
	d.Identifiers = []ResourceIdentifier{identifier}
	return nil
}

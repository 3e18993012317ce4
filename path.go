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

package xjapi

import (
	"strings"
)

// PathKind discriminates the variants of a parsed JsonPath.
type PathKind int

const (
	// PathKindCollection addresses a resource collection: /{type}
	PathKindCollection PathKind = iota

	// PathKindResource addresses one or more resources by id: /{type}/{id[,id...]}
	PathKindResource

	// PathKindField addresses a related field of a resource: /{type}/{id}/{field}
	PathKindField

	// PathKindRelationship addresses relationship linkage: /{type}/{id}/relationships/{field}
	PathKindRelationship

	// PathKindAction addresses a registered action endpoint, dispatched without body handling.
	PathKindAction
)

// JsonPath is the structured descriptor of a JSON:API request path. Kind selects the variant;
// the remaining fields carry the variant's data.
type JsonPath struct {
	Kind         PathKind
	ResourceType string
	IDs          []string
	Field        string
	Action       string
}

// IsAction returns true for action paths, which bypass document body handling.
func (p *JsonPath) IsAction() bool {
	return p != nil && p.Kind == PathKindAction
}

// PathParser resolves a request path into a JsonPath descriptor. A (nil, nil) result means the
// path matched no known resource or action and the request should pass through unhandled.
type PathParser interface {
	Parse(path string) (*JsonPath, error)
}

// PathBuilder is a PathParser over a fixed set of resource types and action paths, mirroring
// the resolution the dispatch engine performs against its resource registry.
type PathBuilder struct {
	resourceTypes map[string]struct{}
	actionPaths   map[string]struct{}
}

var _ PathParser = (*PathBuilder)(nil)

// NewPathBuilder creates a PathBuilder for the given resource types and action paths. Action
// paths are matched against the full request path, leading slash optional.
func NewPathBuilder(resourceTypes []string, actionPaths []string) *PathBuilder {
	builder := &PathBuilder{
		resourceTypes: map[string]struct{}{},
		actionPaths:   map[string]struct{}{},
	}

	for _, resourceType := range resourceTypes {
		builder.resourceTypes[resourceType] = struct{}{}
	}

	for _, actionPath := range actionPaths {
		builder.actionPaths[strings.Trim(actionPath, "/")] = struct{}{}
	}

	return builder
}

// Parse resolves a path. Unresolvable paths yield (nil, nil).
func (builder *PathBuilder) Parse(path string) (*JsonPath, error) {
	trimmed := strings.Trim(path, "/")

	if trimmed == "" {
		return nil, nil
	}

	if _, ok := builder.actionPaths[trimmed]; ok {
		return &JsonPath{Kind: PathKindAction, Action: trimmed}, nil
	}

	segments := strings.Split(trimmed, "/")

	resourceType := segments[0]
	if _, ok := builder.resourceTypes[resourceType]; !ok {
		return nil, nil
	}

	switch len(segments) {
	case 1:
		return &JsonPath{Kind: PathKindCollection, ResourceType: resourceType}, nil
	case 2:
		return &JsonPath{
			Kind:         PathKindResource,
			ResourceType: resourceType,
			IDs:          strings.Split(segments[1], ","),
		}, nil
	case 3:
		return &JsonPath{
			Kind:         PathKindField,
			ResourceType: resourceType,
			IDs:          strings.Split(segments[1], ","),
			Field:        segments[2],
		}, nil
	case 4:
		if segments[2] != "relationships" {
			return nil, nil
		}
		return &JsonPath{
			Kind:         PathKindRelationship,
			ResourceType: resourceType,
			IDs:          strings.Split(segments[1], ","),
			Field:        segments[3],
		}, nil
	default:
		return nil, nil
	}
}

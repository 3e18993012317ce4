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

// Package document provides the JSON:API top-level document envelope, resource objects, and
// error objects exchanged between xjapi's request processor and a request dispatcher, along
// with their JSON encoding.
package document

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Document is the top-level JSON:API envelope. A document carries either primary data or a
// list of errors, never both.
type Document struct {
	Data     *Data                  `json:"data,omitempty"`
	Errors   []ErrorData            `json:"errors,omitempty"`
	Included []*Resource            `json:"included,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// HasErrors returns true if the document carries at least one error object.
func (d *Document) HasErrors() bool {
	return d != nil && len(d.Errors) > 0
}

// SingleResource returns the primary resource when the document carries exactly one, or nil.
func (d *Document) SingleResource() *Resource {
	if d == nil || d.Data == nil || d.Data.Many {
		return nil
	}
	if len(d.Data.Resources) == 1 {
		return d.Data.Resources[0]
	}
	return nil
}

// Data is the primary data of a Document. JSON:API allows primary data to be a single
// resource object, an array of resource objects, or null. Many records which of the two
// non-null shapes was present on the wire so that round-trips preserve it.
type Data struct {
	Resources []*Resource
	Many      bool
}

// One wraps a single resource as document primary data.
func One(resource *Resource) *Data {
	return &Data{Resources: []*Resource{resource}}
}

// ManyOf wraps a list of resources as document primary data.
func ManyOf(resources ...*Resource) *Data {
	return &Data{Resources: resources, Many: true}
}

func (d *Data) MarshalJSON() ([]byte, error) {
	if d.Many {
		if d.Resources == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(d.Resources)
	}

	if len(d.Resources) == 0 {
		return []byte("null"), nil
	}

	return json.Marshal(d.Resources[0])
}

func (d *Data) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		d.Resources = nil
		d.Many = false
		return nil
	}

	if trimmed[0] == '[' {
		d.Many = true
		return json.Unmarshal(trimmed, &d.Resources)
	}

	resource := &Resource{}
	if err := json.Unmarshal(trimmed, resource); err != nil {
		return err
	}

	d.Many = false
	d.Resources = []*Resource{resource}
	return nil
}

// ErrorData is a JSON:API error object.
type ErrorData struct {
	ID     string                 `json:"id,omitempty"`
	Status string                 `json:"status,omitempty"`
	Code   string                 `json:"code,omitempty"`
	Title  string                 `json:"title,omitempty"`
	Detail string                 `json:"detail,omitempty"`
	Source *ErrorSource           `json:"source,omitempty"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

// Key returns the identifier used to key this error on a consumer (e.g. a form control).
// The code is preferred, falling back to the id. May be empty.
func (e ErrorData) Key() string {
	if e.Code != "" {
		return e.Code
	}
	return e.ID
}

// ErrorSource points at the part of a document an error pertains to.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// Response pairs a document with the HTTP status code it should be written with.
type Response struct {
	Document   *Document
	HTTPStatus int
}

// Encode serializes a document for the wire.
func Encode(doc *Document) ([]byte, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "error serializing document")
	}
	return body, nil
}

// Decode deserializes a document from raw request body bytes.
func Decode(raw []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

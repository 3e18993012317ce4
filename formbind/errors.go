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
	"github.com/openapix/xjapi/document"
	"github.com/openapix/xjapi/store"
)

// remapErrors recomputes the control error attachment and the unmapped error list from the
// current store state. The primary resource snapshot is passed in when the caller already has
// one; a nil snapshot is looked up. Recomputation is idempotent, so it may be triggered by
// query result changes and store-wide changes alike.
func (b *Binding) remapErrors(primary *store.Resource) {
	if primary == nil {
		primary = b.store.Get(b.query.Type, b.query.ResourceID)
	}

	var primaryRefs []fieldRef

	for _, name := range b.form.ControlNames() {
		ref, ok := parseControlName(name)
		if !ok {
			continue
		}

		owner := primary
		if ref.explicit() {
			if ref.resourceType == b.query.Type && ref.resourceID == b.query.ResourceID {
				primaryRefs = append(primaryRefs, ref)
			} else {
				owner = b.store.Get(ref.resourceType, ref.resourceID)
			}
		} else {
			primaryRefs = append(primaryRefs, ref)
		}

		mapped := map[string]interface{}{}
		if owner != nil {
			for _, errorData := range owner.Errors {
				if errorData.Source == nil || !ref.matchesPointer(errorData.Source.Pointer) {
					continue
				}
				if key := errorData.Key(); key != "" {
					mapped[b.errorPrefix+key] = errorData
				}
			}
		}

		b.form.Control(name).replaceKeyed(b.errorPrefix, mapped)
	}

	// primary resource errors no control claims are retained, not dropped
	var unmapped []document.ErrorData
	if primary != nil {
		for _, errorData := range primary.Errors {
			if errorData.Source == nil || errorData.Source.Pointer == "" {
				unmapped = append(unmapped, errorData)
				continue
			}

			matched := false
			for _, ref := range primaryRefs {
				if ref.matchesPointer(errorData.Source.Pointer) {
					matched = true
					break
				}
			}

			if !matched {
				unmapped = append(unmapped, errorData)
			}
		}
	}

	b.mu.Lock()
	b.unmapped = unmapped
	b.mu.Unlock()
}

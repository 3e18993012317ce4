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

// Package store provides a normalized client-side JSON:API resource store. Resources are kept
// by type then id; consumers mutate the store through patch/remove operations and observe it
// through store-wide or query-scoped subscriptions. Observer callbacks run sequentially on the
// mutating caller's goroutine; subscriptions are torn down through the returned cancel
// functions.
package store

import (
	"sync"

	"github.com/openapix/xjapi/document"
)

// State tracks the local lifecycle of a stored resource relative to the server.
type State int

const (
	StateUnchanged State = iota
	StateCreated
	StateUpdated
	StateDeleted
)

// Resource is a client-side resource: identification, current field values, and any
// server-reported errors for it.
type Resource struct {
	Type          string
	ID            string
	Attributes    map[string]interface{}
	Relationships map[string]*document.Relationship
	Errors        []document.ErrorData
	State         State
}

// Identifier returns the type+id pair identifying this resource.
func (r *Resource) Identifier() document.ResourceIdentifier {
	return document.ResourceIdentifier{Type: r.Type, ID: r.ID}
}

// Clone copies the resource so snapshots handed to observers are isolated from later store
// mutation. Attribute values are shared; attribute and relationship maps are not.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}

	clone := &Resource{
		Type:  r.Type,
		ID:    r.ID,
		State: r.State,
	}

	if r.Attributes != nil {
		clone.Attributes = make(map[string]interface{}, len(r.Attributes))
		for name, value := range r.Attributes {
			clone.Attributes[name] = value
		}
	}

	if r.Relationships != nil {
		clone.Relationships = make(map[string]*document.Relationship, len(r.Relationships))
		for name, relationship := range r.Relationships {
			clone.Relationships[name] = relationship
		}
	}

	if r.Errors != nil {
		clone.Errors = append([]document.ErrorData{}, r.Errors...)
	}

	return clone
}

// ChangeKind discriminates store change notifications.
type ChangeKind int

const (
	ChangePatched ChangeKind = iota
	ChangeRemoved
	ChangeErrors
)

// Change describes a single store mutation delivered to store-wide observers.
type Change struct {
	Kind ChangeKind
	Type string
	ID   string
}

type resourceObserver func(*Resource)

type changeObserver func(Change)

// Store is the normalized resource store.
type Store struct {
	mu             sync.Mutex
	data           map[string]map[string]*Resource
	queries        map[string]Query
	queryObservers map[string]map[int]resourceObserver
	observers      map[int]changeObserver
	nextObserverID int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data:           map[string]map[string]*Resource{},
		queries:        map[string]Query{},
		queryObservers: map[string]map[int]resourceObserver{},
		observers:      map[int]changeObserver{},
	}
}

// Get returns a snapshot of the stored resource, or nil when absent.
func (s *Store) Get(resourceType, id string) *Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(resourceType, id).Clone()
}

func (s *Store) lookup(resourceType, id string) *Resource {
	if byID, ok := s.data[resourceType]; ok {
		return byID[id]
	}
	return nil
}

// Patch merges a partial resource into the store, inserting it when absent. Merged attributes
// and relationships overwrite per field; untouched fields are preserved. Query and store
// observers are notified after the mutation completes.
func (s *Store) Patch(partial *Resource) {
	s.mu.Lock()
	resource := s.merge(partial)
	notify := s.collectNotifications(Change{Kind: ChangePatched, Type: resource.Type, ID: resource.ID})
	s.mu.Unlock()

	notify()
}

// Apply merges a batch of partial resources, notifying observers per resource after all
// mutations complete.
func (s *Store) Apply(resources []*Resource) error {
	s.mu.Lock()
	var notifications []func()
	for _, partial := range resources {
		resource := s.merge(partial)
		notifications = append(notifications, s.collectNotifications(Change{Kind: ChangePatched, Type: resource.Type, ID: resource.ID}))
	}
	s.mu.Unlock()

	for _, notify := range notifications {
		notify()
	}

	return nil
}

func (s *Store) merge(partial *Resource) *Resource {
	byID, ok := s.data[partial.Type]
	if !ok {
		byID = map[string]*Resource{}
		s.data[partial.Type] = byID
	}

	resource, ok := byID[partial.ID]
	if !ok {
		resource = &Resource{
			Type:  partial.Type,
			ID:    partial.ID,
			State: StateCreated,
		}
		byID[partial.ID] = resource
	} else if resource.State != StateCreated {
		resource.State = StateUpdated
	}

	if len(partial.Attributes) > 0 && resource.Attributes == nil {
		resource.Attributes = map[string]interface{}{}
	}
	for name, value := range partial.Attributes {
		resource.Attributes[name] = value
	}

	if len(partial.Relationships) > 0 && resource.Relationships == nil {
		resource.Relationships = map[string]*document.Relationship{}
	}
	for name, relationship := range partial.Relationships {
		resource.Relationships[name] = relationship
	}

	return resource
}

// Remove takes a resource out of the store. With remote set the resource is retained and
// marked for remote deletion; otherwise it is evicted locally.
func (s *Store) Remove(resourceType, id string, remote bool) {
	s.mu.Lock()

	if remote {
		if resource := s.lookup(resourceType, id); resource != nil {
			resource.State = StateDeleted
		}
	} else if byID, ok := s.data[resourceType]; ok {
		delete(byID, id)
	}

	notify := s.collectNotifications(Change{Kind: ChangeRemoved, Type: resourceType, ID: id})
	s.mu.Unlock()

	notify()
}

// SetErrors replaces the server-reported errors of a resource, inserting a placeholder entry
// when the resource is not yet stored.
func (s *Store) SetErrors(resourceType, id string, errs []document.ErrorData) {
	s.mu.Lock()

	resource := s.lookup(resourceType, id)
	if resource == nil {
		resource = s.merge(&Resource{Type: resourceType, ID: id})
	}
	resource.Errors = append([]document.ErrorData{}, errs...)

	notify := s.collectNotifications(Change{Kind: ChangeErrors, Type: resourceType, ID: id})
	s.mu.Unlock()

	notify()
}

// Subscribe registers a store-wide change observer. The returned cancel function tears the
// subscription down; it is safe to call more than once.
func (s *Store) Subscribe(observer func(Change)) func() {
	s.mu.Lock()
	id := s.nextObserverID
	s.nextObserverID++
	s.observers[id] = observer
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// collectNotifications snapshots the observers and resource state affected by a change while
// the lock is held, returning a closure that delivers the callbacks without it.
func (s *Store) collectNotifications(change Change) func() {
	var changeObservers []changeObserver
	for _, observer := range s.observers {
		changeObservers = append(changeObservers, observer)
	}

	var resultObservers []resourceObserver
	var snapshot *Resource
	for queryID, query := range s.queries {
		if query.Type != change.Type || query.ResourceID != change.ID {
			continue
		}
		if snapshot == nil {
			snapshot = s.lookup(change.Type, change.ID).Clone()
		}
		for _, observer := range s.queryObservers[queryID] {
			resultObservers = append(resultObservers, observer)
		}
	}

	return func() {
		for _, observer := range changeObservers {
			observer(change)
		}
		for _, observer := range resultObservers {
			observer(snapshot.Clone())
		}
	}
}

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

package store

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Query identifies one resource of interest by type and id. Query results are observed through
// SubscribeQuery; consumers such as form bindings address a query by its ID.
type Query struct {
	ID         string
	Type       string
	ResourceID string
}

// RegisterQuery adds a query to the store, generating an ID when none is supplied, and returns
// the effective query ID. Registering an already used ID replaces the previous query.
func (s *Store) RegisterQuery(query Query) (string, error) {
	if query.Type == "" {
		return "", errors.New("query type is required")
	}

	if query.ResourceID == "" {
		return "", errors.New("query resource id is required")
	}

	if query.ID == "" {
		query.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.queries[query.ID] = query
	s.mu.Unlock()

	return query.ID, nil
}

// Query returns the registered query for an ID.
func (s *Store) Query(id string) (Query, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, ok := s.queries[id]
	return query, ok
}

// SubscribeQuery registers an observer of a query's result. The observer is immediately called
// with the current result snapshot (which may be nil) and again after every store change
// affecting the queried resource. The returned cancel function tears the subscription down.
func (s *Store) SubscribeQuery(queryID string, observer func(*Resource)) (func(), error) {
	s.mu.Lock()

	query, ok := s.queries[queryID]
	if !ok {
		s.mu.Unlock()
		return nil, errors.Errorf("unknown query [%s]", queryID)
	}

	id := s.nextObserverID
	s.nextObserverID++

	byObserver, ok := s.queryObservers[queryID]
	if !ok {
		byObserver = map[int]resourceObserver{}
		s.queryObservers[queryID] = byObserver
	}
	byObserver[id] = observer

	snapshot := s.lookup(query.Type, query.ResourceID).Clone()
	s.mu.Unlock()

	observer(snapshot)

	return func() {
		s.mu.Lock()
		if byObserver, ok := s.queryObservers[queryID]; ok {
			delete(byObserver, id)
			if len(byObserver) == 0 {
				delete(s.queryObservers, queryID)
			}
		}
		s.mu.Unlock()
	}, nil
}

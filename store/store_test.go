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
	"testing"

	"github.com/openapix/xjapi/document"
	"github.com/stretchr/testify/require"
)

func Test_Store_Patch(t *testing.T) {

	t.Run("patching an absent resource inserts it as created", func(t *testing.T) {
		req := require.New(t)

		s := New()
		s.Patch(&Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "doe"}})

		resource := s.Get("people", "1")
		req.NotNil(resource)
		req.Equal(StateCreated, resource.State)
		req.Equal("doe", resource.Attributes["name"])
	})

	t.Run("patching merges fields and preserves untouched ones", func(t *testing.T) {
		req := require.New(t)

		s := New()
		s.Patch(&Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "doe", "age": 40}})
		s.Patch(&Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "smith"}})

		resource := s.Get("people", "1")
		req.Equal("smith", resource.Attributes["name"])
		req.Equal(40, resource.Attributes["age"])
	})

	t.Run("snapshots are isolated from later mutation", func(t *testing.T) {
		req := require.New(t)

		s := New()
		s.Patch(&Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "doe"}})

		snapshot := s.Get("people", "1")
		s.Patch(&Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "smith"}})

		req.Equal("doe", snapshot.Attributes["name"])
	})
}

func Test_Store_Remove(t *testing.T) {

	t.Run("a remote remove marks the resource deleted", func(t *testing.T) {
		req := require.New(t)

		s := New()
		s.Patch(&Resource{Type: "people", ID: "1"})
		s.Remove("people", "1", true)

		resource := s.Get("people", "1")
		req.NotNil(resource)
		req.Equal(StateDeleted, resource.State)
	})

	t.Run("a local remove evicts the resource", func(t *testing.T) {
		req := require.New(t)

		s := New()
		s.Patch(&Resource{Type: "people", ID: "1"})
		s.Remove("people", "1", false)

		req.Nil(s.Get("people", "1"))
	})
}

func Test_Store_Queries(t *testing.T) {

	t.Run("registering a query without an id generates one", func(t *testing.T) {
		req := require.New(t)

		s := New()
		queryID, err := s.RegisterQuery(Query{Type: "people", ResourceID: "1"})
		req.NoError(err)
		req.NotEmpty(queryID)

		query, ok := s.Query(queryID)
		req.True(ok)
		req.Equal("people", query.Type)
	})

	t.Run("registering a query without a type or resource id fails", func(t *testing.T) {
		req := require.New(t)

		s := New()
		_, err := s.RegisterQuery(Query{ResourceID: "1"})
		req.Error(err)

		_, err = s.RegisterQuery(Query{Type: "people"})
		req.Error(err)
	})

	t.Run("subscribing an unknown query fails", func(t *testing.T) {
		s := New()
		_, err := s.SubscribeQuery("missing", func(*Resource) {})
		require.Error(t, err)
	})

	t.Run("query observers see the current snapshot and later changes", func(t *testing.T) {
		req := require.New(t)

		s := New()
		queryID, err := s.RegisterQuery(Query{ID: "q1", Type: "people", ResourceID: "1"})
		req.NoError(err)
		req.Equal("q1", queryID)

		var results []*Resource
		cancel, err := s.SubscribeQuery("q1", func(resource *Resource) {
			results = append(results, resource)
		})
		req.NoError(err)

		req.Len(results, 1)
		req.Nil(results[0])

		s.Patch(&Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "doe"}})
		req.Len(results, 2)
		req.Equal("doe", results[1].Attributes["name"])

		// changes to other resources do not notify the query
		s.Patch(&Resource{Type: "people", ID: "2"})
		req.Len(results, 2)

		cancel()
		s.Patch(&Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "smith"}})
		req.Len(results, 2)
	})
}

func Test_Store_Subscribe(t *testing.T) {

	t.Run("store observers see every change until cancelled", func(t *testing.T) {
		req := require.New(t)

		s := New()

		var changes []Change
		cancel := s.Subscribe(func(change Change) {
			changes = append(changes, change)
		})

		s.Patch(&Resource{Type: "people", ID: "1"})
		s.SetErrors("people", "1", []document.ErrorData{{Code: "required"}})
		s.Remove("people", "1", true)

		req.Len(changes, 3)
		req.Equal(ChangePatched, changes[0].Kind)
		req.Equal(ChangeErrors, changes[1].Kind)
		req.Equal(ChangeRemoved, changes[2].Kind)

		cancel()
		s.Patch(&Resource{Type: "people", ID: "2"})
		req.Len(changes, 3)
	})

	t.Run("set errors replaces previous errors", func(t *testing.T) {
		req := require.New(t)

		s := New()
		s.SetErrors("people", "1", []document.ErrorData{{Code: "required"}, {Code: "invalid"}})
		s.SetErrors("people", "1", []document.ErrorData{{Code: "invalid"}})

		resource := s.Get("people", "1")
		req.NotNil(resource)
		req.Len(resource.Errors, 1)
		req.Equal("invalid", resource.Errors[0].Code)
	})
}

func Test_Store_Apply(t *testing.T) {
	req := require.New(t)

	s := New()

	var changes []Change
	cancel := s.Subscribe(func(change Change) {
		changes = append(changes, change)
	})
	defer cancel()

	req.NoError(s.Apply([]*Resource{
		{Type: "people", ID: "1", Attributes: map[string]interface{}{"name": "doe"}},
		{Type: "tasks", ID: "5", Attributes: map[string]interface{}{"title": "write"}},
	}))

	req.Len(changes, 2)
	req.NotNil(s.Get("people", "1"))
	req.NotNil(s.Get("tasks", "5"))
}

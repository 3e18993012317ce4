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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openapix/xjapi/document"
	"github.com/openapix/xjapi/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testDebounce = 5 * time.Millisecond

func newTestBinding(t *testing.T, config Config) (*store.Store, *Form, *Binding) {
	s := store.New()
	_, err := s.RegisterQuery(store.Query{ID: "q1", Type: "people", ResourceID: "1"})
	require.NoError(t, err)

	form := NewForm()

	config.Store = s
	config.Form = form
	config.QueryID = "q1"
	if config.Debounce == 0 {
		config.Debounce = testDebounce
	}

	binding, err := New(config)
	require.NoError(t, err)

	return s, form, binding
}

// patchCounter counts store patch notifications. Patches arrive on the debounce timer
// goroutine, so the count is atomic.
func patchCounter(s *store.Store) (*atomic.Int32, func()) {
	count := &atomic.Int32{}
	cancel := s.Subscribe(func(change store.Change) {
		if change.Kind == store.ChangePatched {
			count.Add(1)
		}
	})
	return count, cancel
}

func Test_Binding_New(t *testing.T) {

	t.Run("a missing form fails fast", func(t *testing.T) {
		s := store.New()
		_, err := New(Config{Store: s, QueryID: "q1"})
		require.Error(t, err)
	})

	t.Run("a missing query id fails fast", func(t *testing.T) {
		s := store.New()
		_, err := New(Config{Store: s, Form: NewForm()})
		require.Error(t, err)
	})

	t.Run("an unregistered query id fails fast", func(t *testing.T) {
		s := store.New()
		_, err := New(Config{Store: s, Form: NewForm(), QueryID: "missing"})
		require.Error(t, err)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		req := require.New(t)

		_, _, binding := newTestBinding(t, Config{Debounce: DefaultDebounce})
		req.Equal(DefaultErrorPrefix, binding.errorPrefix)
		req.Equal(document.ResourceIdentifier{Type: "people", ID: "1"}, binding.PrimaryResource())
	})
}

func Test_Binding_ValueChanges(t *testing.T) {

	t.Run("a debounced valid dirty change produces exactly one patch", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{Debounce: DefaultDebounce})
		form.AddControl("attributes.title", "")

		patches, cancelCounter := patchCounter(s)
		defer cancelCounter()

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		// rapid changes within the debounce window collapse into one patch
		form.Control("attributes.title").SetValue("draft")
		form.Control("attributes.title").SetValue("final")

		req.Eventually(func() bool {
			resource := s.Get("people", "1")
			return resource != nil && resource.Attributes["title"] == "final"
		}, time.Second, time.Millisecond)

		req.Equal(int32(1), patches.Load())
	})

	t.Run("duplicate value emissions are not re-applied", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "")

		patches, cancelCounter := patchCounter(s)
		defer cancelCounter()

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		form.Control("attributes.title").SetValue("final")
		req.Eventually(func() bool { return patches.Load() == 1 }, time.Second, time.Millisecond)

		form.Control("attributes.title").SetValue("final")
		time.Sleep(5 * testDebounce)
		req.Equal(int32(1), patches.Load())
	})

	t.Run("an invalid form produces no patches", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		control := form.AddControl("attributes.title", "")
		control.SetValid(false)

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		control.SetValue("draft")
		time.Sleep(5 * testDebounce)
		req.Nil(s.Get("people", "1"))
	})

	t.Run("the UI marker is stripped from attribute objects", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.address", nil)

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		form.Control("attributes.address").SetValue(map[string]interface{}{
			"street":      "main",
			hashKeyMarker: "object:1",
		})

		req.Eventually(func() bool { return s.Get("people", "1") != nil }, time.Second, time.Millisecond)

		address := s.Get("people", "1").Attributes["address"].(map[string]interface{})
		req.Equal("main", address["street"])
		req.NotContains(address, hashKeyMarker)
	})

	t.Run("relationship controls produce relationship patches", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("relationships.assignee", nil)

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		form.Control("relationships.assignee").SetValue(map[string]interface{}{
			"type":        "people",
			"id":          "9",
			hashKeyMarker: "object:2",
		})

		req.Eventually(func() bool { return s.Get("people", "1") != nil }, time.Second, time.Millisecond)

		relationship := s.Get("people", "1").Relationships["assignee"]
		req.NotNil(relationship)
		identifier := relationship.Data.One()
		req.NotNil(identifier)
		req.Equal("9", identifier.ID)
	})

	t.Run("extended control names patch their explicit resource", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "")
		form.AddControl("//tasks//5//attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		form.Control("attributes.title").SetValue("mine")
		form.Control("//tasks//5//attributes.title").SetValue("theirs")

		req.Eventually(func() bool {
			return s.Get("people", "1") != nil && s.Get("tasks", "5") != nil
		}, time.Second, time.Millisecond)

		req.Equal("mine", s.Get("people", "1").Attributes["title"])
		req.Equal("theirs", s.Get("tasks", "5").Attributes["title"])
	})

	t.Run("a configured applier receives the batch instead of the store", func(t *testing.T) {
		req := require.New(t)

		applier := &recordingApplier{}
		s, form, binding := newTestBinding(t, Config{Applier: applier})
		form.AddControl("attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		form.Control("attributes.title").SetValue("draft")

		req.Eventually(func() bool { return applier.calls() == 1 }, time.Second, time.Millisecond)
		req.Nil(s.Get("people", "1"))
	})
}

func Test_Binding_ErrorMapping(t *testing.T) {

	t.Run("a matching source pointer attaches the error to its control", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		s.SetErrors("people", "1", []document.ErrorData{
			{Code: "required", Source: &document.ErrorSource{Pointer: "/data/attributes/title"}},
		})

		errs := form.Control("attributes.title").Errors()
		req.Contains(errs, "jsonapi.required")
		req.Empty(binding.UnmappedErrors())
	})

	t.Run("an error with no matching control is retained as unmapped", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		s.SetErrors("people", "1", []document.ErrorData{
			{Code: "required", Source: &document.ErrorSource{Pointer: "/data/attributes/missing"}},
		})

		req.NotContains(form.Control("attributes.title").Errors(), "jsonapi.required")

		unmapped := binding.UnmappedErrors()
		req.Len(unmapped, 1)
		req.Equal("required", unmapped[0].Code)
	})

	t.Run("each recompute replaces the unmapped error list", func(t *testing.T) {
		req := require.New(t)

		s, _, binding := newTestBinding(t, Config{})

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		s.SetErrors("people", "1", []document.ErrorData{
			{Code: "first", Source: &document.ErrorSource{Pointer: "/data/attributes/a"}},
		})
		req.Len(binding.UnmappedErrors(), 1)

		s.SetErrors("people", "1", nil)
		req.Empty(binding.UnmappedErrors())
	})

	t.Run("errors without a code fall back to the id and keyless errors are skipped", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		s.SetErrors("people", "1", []document.ErrorData{
			{ID: "e7", Source: &document.ErrorSource{Pointer: "/data/attributes/title"}},
			{Source: &document.ErrorSource{Pointer: "/data/attributes/title"}},
		})

		errs := form.Control("attributes.title").Errors()
		req.Contains(errs, "jsonapi.e7")
		req.Len(errs, 1)
	})

	t.Run("pre-existing non-prefixed control errors are preserved", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		control := form.AddControl("attributes.title", "")
		control.SetError("localCheck", "too long")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		s.SetErrors("people", "1", []document.ErrorData{
			{Code: "required", Source: &document.ErrorSource{Pointer: "/data/attributes/title"}},
		})

		errs := control.Errors()
		req.Contains(errs, "localCheck")
		req.Contains(errs, "jsonapi.required")
	})

	t.Run("a custom error prefix keys mapped errors", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{ErrorPrefix: "server."})
		form.AddControl("attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		s.SetErrors("people", "1", []document.ErrorData{
			{Code: "required", Source: &document.ErrorSource{Pointer: "/data/attributes/title"}},
		})

		req.Contains(form.Control("attributes.title").Errors(), "server.required")
	})

	t.Run("store-wide mapping keeps extended control errors current", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{MapStoreChanges: true})
		form.AddControl("//tasks//5//attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		defer cancel()

		// an error on a non-primary resource still reaches its control
		s.SetErrors("tasks", "5", []document.ErrorData{
			{Code: "required", Source: &document.ErrorSource{Pointer: "/data/attributes/title"}},
		})

		req.Contains(form.Control("//tasks//5//attributes.title").Errors(), "jsonapi.required")
	})
}

func Test_Binding_Lifecycle(t *testing.T) {

	t.Run("cancelling the last subscriber tears down internal subscriptions", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		cancel()

		form.Control("attributes.title").SetValue("draft")
		time.Sleep(5 * testDebounce)
		req.Nil(s.Get("people", "1"))
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		_, _, binding := newTestBinding(t, Config{})

		first := binding.Resource(func(*store.Resource) {})
		second := binding.Resource(func(*store.Resource) {})

		first()
		first()
		second()
	})

	t.Run("resubscribing re-establishes the binding cleanly", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "")

		cancel := binding.Resource(func(*store.Resource) {})
		cancel()

		results := &atomic.Int32{}
		cancel = binding.Resource(func(*store.Resource) {
			results.Add(1)
		})
		defer cancel()

		form.Control("attributes.title").SetValue("draft")

		req.Eventually(func() bool {
			resource := s.Get("people", "1")
			return resource != nil && resource.Attributes["title"] == "draft"
		}, time.Second, time.Millisecond)

		// the initial nil snapshot plus the patched result
		req.Eventually(func() bool { return results.Load() >= 2 }, time.Second, time.Millisecond)
	})

	t.Run("later subscribers receive the current snapshot immediately", func(t *testing.T) {
		req := require.New(t)

		s, _, binding := newTestBinding(t, Config{})
		s.Patch(&store.Resource{Type: "people", ID: "1", Attributes: map[string]interface{}{"title": "existing"}})

		first := binding.Resource(func(*store.Resource) {})
		defer first()

		var snapshot *store.Resource
		second := binding.Resource(func(resource *store.Resource) {
			if snapshot == nil {
				snapshot = resource
			}
		})
		defer second()

		req.NotNil(snapshot)
		req.Equal("existing", snapshot.Attributes["title"])
	})
}

func Test_Binding_SaveDelete(t *testing.T) {

	t.Run("save applies the full mapped form state to the store", func(t *testing.T) {
		req := require.New(t)

		s, form, binding := newTestBinding(t, Config{})
		form.AddControl("attributes.title", "draft")
		form.AddControl("relationships.assignee", document.ResourceIdentifier{Type: "people", ID: "9"})

		req.NoError(binding.Save())

		resource := s.Get("people", "1")
		req.NotNil(resource)
		req.Equal("draft", resource.Attributes["title"])
		req.NotNil(resource.Relationships["assignee"])
	})

	t.Run("save prefers a configured applier", func(t *testing.T) {
		req := require.New(t)

		applier := &recordingApplier{}
		s, form, binding := newTestBinding(t, Config{Applier: applier})
		form.AddControl("attributes.title", "draft")

		req.NoError(binding.Save())
		req.Equal(1, applier.calls())
		req.Nil(s.Get("people", "1"))
	})

	t.Run("delete removes the primary resource with the remote flag", func(t *testing.T) {
		req := require.New(t)

		s, _, binding := newTestBinding(t, Config{})
		s.Patch(&store.Resource{Type: "people", ID: "1"})

		binding.Delete()

		resource := s.Get("people", "1")
		req.NotNil(resource)
		req.Equal(store.StateDeleted, resource.State)
	})
}

type recordingApplier struct {
	mu      sync.Mutex
	applied [][]*store.Resource
}

func (a *recordingApplier) Apply(resources []*store.Resource) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, resources)
	return nil
}

func (a *recordingApplier) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

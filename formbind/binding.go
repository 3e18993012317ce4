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
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/openapix/xjapi/document"
	"github.com/openapix/xjapi/store"
	"github.com/pkg/errors"
)

// DefaultErrorPrefix keys server-reported errors on controls.
const DefaultErrorPrefix = "jsonapi."

// DefaultDebounce is the window within which rapid form changes collapse into one store patch.
const DefaultDebounce = 50 * time.Millisecond

// Applier applies a batch of resource patches in one pass, e.g. a transactional multi-resource
// save service. When configured on a binding it replaces direct store application.
type Applier interface {
	Apply(resources []*store.Resource) error
}

// Config configures a Binding. Store, Form, and QueryID are required; QueryID must name a
// query already registered on the store.
type Config struct {
	Store   *store.Store
	Form    *Form
	QueryID string

	// ErrorPrefix keys mapped errors on controls, default DefaultErrorPrefix.
	ErrorPrefix string

	// MapStoreChanges widens error remapping triggers from query result changes to any store
	// change, so errors on controls addressing non-primary resources stay current.
	MapStoreChanges bool

	// Applier, when set, receives patches instead of the store.
	Applier Applier

	// Debounce overrides DefaultDebounce.
	Debounce time.Duration
}

// Binding maintains a live two-way mapping between a form's controls and stored resources for
// as long as at least one external subscriber observes the bound resource. Internally the
// binding is either idle (no subscriptions held) or active; activation is reference counted on
// the external subscribers and reverts to idle when the last one cancels.
type Binding struct {
	store           *store.Store
	form            *Form
	query           store.Query
	errorPrefix     string
	mapStoreChanges bool
	applier         Applier
	debounce        time.Duration

	mu               sync.Mutex
	subscribers      map[int]func(*store.Resource)
	nextSubscriberID int
	active           bool
	cancelQuery      func()
	cancelForm       func()
	cancelStore      func()
	pending          *time.Timer
	lastApplied      map[string]interface{}
	unmapped         []document.ErrorData
}

// New creates a Binding. Missing required configuration fails fast.
func New(config Config) (*Binding, error) {
	if config.Store == nil {
		return nil, errors.New("store is required")
	}

	if config.Form == nil {
		return nil, errors.New("form is required")
	}

	if config.QueryID == "" {
		return nil, errors.New("query id is required")
	}

	query, ok := config.Store.Query(config.QueryID)
	if !ok {
		return nil, errors.Errorf("query [%s] is not registered", config.QueryID)
	}

	errorPrefix := config.ErrorPrefix
	if errorPrefix == "" {
		errorPrefix = DefaultErrorPrefix
	}

	debounce := config.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Binding{
		store:           config.Store,
		form:            config.Form,
		query:           query,
		errorPrefix:     errorPrefix,
		mapStoreChanges: config.MapStoreChanges,
		applier:         config.Applier,
		debounce:        debounce,
		subscribers:     map[int]func(*store.Resource){},
	}, nil
}

// PrimaryResource returns the type+id pair of the resource the binding edits by default.
func (b *Binding) PrimaryResource() document.ResourceIdentifier {
	return document.ResourceIdentifier{Type: b.query.Type, ID: b.query.ResourceID}
}

// Resource subscribes an observer to the bound resource. The observer receives the current
// snapshot immediately and again after each change. The first subscriber activates the
// binding's internal subscriptions; cancelling the last one tears them down. The returned
// cancel function is idempotent.
func (b *Binding) Resource(observer func(*store.Resource)) func() {
	b.mu.Lock()
	id := b.nextSubscriberID
	b.nextSubscriberID++
	b.subscribers[id] = observer
	first := len(b.subscribers) == 1
	b.mu.Unlock()

	if first {
		b.activate()
	} else {
		observer(b.store.Get(b.query.Type, b.query.ResourceID))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			last := len(b.subscribers) == 0
			b.mu.Unlock()

			if last {
				b.deactivate()
			}
		})
	}
}

// activate establishes the internal subscriptions: the query result subscription feeding
// external observers and error mapping, the form change subscription feeding store patches,
// and optionally a store-wide subscription re-running error mapping on any change.
func (b *Binding) activate() {
	cancelQuery, err := b.store.SubscribeQuery(b.query.ID, b.onResult)
	if err != nil {
		// the query was validated at construction; losing it mid-flight is a caller bug
		pfxlog.Logger().Errorf("could not subscribe binding to query [%s]: %v", b.query.ID, err)
		return
	}

	cancelForm := b.form.Changes(b.onFormChange)

	var cancelStore func()
	if b.mapStoreChanges {
		cancelStore = b.store.Subscribe(func(store.Change) {
			b.remapErrors(b.store.Get(b.query.Type, b.query.ResourceID))
		})
	}

	b.mu.Lock()
	b.active = true
	b.cancelQuery = cancelQuery
	b.cancelForm = cancelForm
	b.cancelStore = cancelStore
	b.mu.Unlock()
}

// deactivate cancels the internal subscriptions and reverts to idle.
func (b *Binding) deactivate() {
	b.mu.Lock()
	cancelQuery := b.cancelQuery
	cancelForm := b.cancelForm
	cancelStore := b.cancelStore
	pending := b.pending
	b.active = false
	b.cancelQuery = nil
	b.cancelForm = nil
	b.cancelStore = nil
	b.pending = nil
	b.mu.Unlock()

	if pending != nil {
		pending.Stop()
	}
	if cancelQuery != nil {
		cancelQuery()
	}
	if cancelForm != nil {
		cancelForm()
	}
	if cancelStore != nil {
		cancelStore()
	}
}

// onResult handles a query result change: external observers are notified and error mapping
// recomputed.
func (b *Binding) onResult(resource *store.Resource) {
	b.mu.Lock()
	observers := make([]func(*store.Resource), 0, len(b.subscribers))
	for _, observer := range b.subscribers {
		observers = append(observers, observer)
	}
	b.mu.Unlock()

	for _, observer := range observers {
		observer(resource.Clone())
	}

	b.remapErrors(resource)
}

// onFormChange debounces form changes and schedules value translation once the form is both
// valid and dirty.
func (b *Binding) onFormChange() {
	if !b.form.Valid() || !b.form.Dirty() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return
	}

	if b.pending != nil {
		b.pending.Reset(b.debounce)
		return
	}

	b.pending = time.AfterFunc(b.debounce, b.flush)
}

// flush translates the current control values into store patches, skipping the work entirely
// when the values are unchanged since the last flush.
func (b *Binding) flush() {
	values := b.controlValues()

	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	if equalValues(values, b.lastApplied) {
		b.mu.Unlock()
		return
	}
	b.lastApplied = values
	applier := b.applier
	b.mu.Unlock()

	patches := b.buildPatches(values)
	if len(patches) == 0 {
		return
	}

	if applier != nil {
		if err := applier.Apply(patches); err != nil {
			pfxlog.Logger().Errorf("error applying form changes: %v", err)
		}
		return
	}

	for _, patch := range patches {
		b.store.Patch(patch)
	}
}

// controlValues snapshots the current value of every control bound to a resource field.
func (b *Binding) controlValues() map[string]interface{} {
	values := map[string]interface{}{}
	for _, name := range b.form.ControlNames() {
		if _, ok := parseControlName(name); !ok {
			continue
		}
		values[name] = b.form.Control(name).Value()
	}
	return values
}

// Save applies the full mapped form state: through the batch applier when configured,
// otherwise directly to the store.
func (b *Binding) Save() error {
	patches := b.buildPatches(b.controlValues())

	if b.applier != nil {
		return b.applier.Apply(patches)
	}

	return b.store.Apply(patches)
}

// Delete removes the primary resource from the store, requesting remote deletion.
func (b *Binding) Delete() {
	b.store.Remove(b.query.Type, b.query.ResourceID, true)
}

// UnmappedErrors returns the primary resource errors whose source pointers matched no control
// at the last error mapping pass.
func (b *Binding) UnmappedErrors() []document.ErrorData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]document.ErrorData{}, b.unmapped...)
}

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

// Package formbind binds a form's named controls to resources in a normalized store. Control
// value changes flow into store patches; server-reported resource errors flow back onto the
// controls whose names map to the error source paths.
package formbind

import (
	"sort"
	"strings"
	"sync"
)

// Form is a flat collection of named controls with change notification. Valid and dirty are
// form-level aggregates: a form is valid when every control is valid and dirty once any
// control value has been set.
type Form struct {
	mu             sync.Mutex
	controls       map[string]*Control
	observers      map[int]func()
	nextObserverID int
}

// NewForm creates an empty form.
func NewForm() *Form {
	return &Form{
		controls:  map[string]*Control{},
		observers: map[int]func(){},
	}
}

// AddControl adds a named control with an initial value. The initial value does not mark the
// control dirty. Adding an existing name replaces the control.
func (f *Form) AddControl(name string, initial interface{}) *Control {
	control := &Control{
		form:   f,
		name:   name,
		value:  initial,
		valid:  true,
		errors: map[string]interface{}{},
	}

	f.mu.Lock()
	f.controls[name] = control
	f.mu.Unlock()

	return control
}

// Control returns the named control or nil.
func (f *Form) Control(name string) *Control {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controls[name]
}

// ControlNames returns the control names in stable order.
func (f *Form) ControlNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.controls))
	for name := range f.controls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Valid returns true when every control is valid.
func (f *Form) Valid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, control := range f.controls {
		if !control.valid {
			return false
		}
	}
	return true
}

// Dirty returns true once any control value has been set.
func (f *Form) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, control := range f.controls {
		if control.dirty {
			return true
		}
	}
	return false
}

// Changes registers an observer of form value and status changes. The returned cancel
// function tears the subscription down.
func (f *Form) Changes(observer func()) func() {
	f.mu.Lock()
	id := f.nextObserverID
	f.nextObserverID++
	f.observers[id] = observer
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.observers, id)
		f.mu.Unlock()
	}
}

func (f *Form) notify() {
	f.mu.Lock()
	observers := make([]func(), 0, len(f.observers))
	for _, observer := range f.observers {
		observers = append(observers, observer)
	}
	f.mu.Unlock()

	for _, observer := range observers {
		observer()
	}
}

// Control is a single named form control.
type Control struct {
	form   *Form
	name   string
	value  interface{}
	dirty  bool
	valid  bool
	errors map[string]interface{}
}

// Name returns the control name.
func (c *Control) Name() string {
	return c.name
}

// Value returns the current control value.
func (c *Control) Value() interface{} {
	c.form.mu.Lock()
	defer c.form.mu.Unlock()
	return c.value
}

// SetValue sets the control value, marks the control dirty, and notifies form observers.
func (c *Control) SetValue(value interface{}) {
	c.form.mu.Lock()
	c.value = value
	c.dirty = true
	c.form.mu.Unlock()

	c.form.notify()
}

// Dirty returns true once SetValue has been called.
func (c *Control) Dirty() bool {
	c.form.mu.Lock()
	defer c.form.mu.Unlock()
	return c.dirty
}

// Valid returns the control's validity.
func (c *Control) Valid() bool {
	c.form.mu.Lock()
	defer c.form.mu.Unlock()
	return c.valid
}

// SetValid sets the control's validity and notifies form observers.
func (c *Control) SetValid(valid bool) {
	c.form.mu.Lock()
	c.valid = valid
	c.form.mu.Unlock()

	c.form.notify()
}

// Errors returns a copy of the control's error map.
func (c *Control) Errors() map[string]interface{} {
	c.form.mu.Lock()
	defer c.form.mu.Unlock()

	errs := make(map[string]interface{}, len(c.errors))
	for key, value := range c.errors {
		errs[key] = value
	}
	return errs
}

// SetError attaches an error payload under a key.
func (c *Control) SetError(key string, value interface{}) {
	c.form.mu.Lock()
	c.errors[key] = value
	c.form.mu.Unlock()
}

// replaceKeyed replaces every error keyed under the given prefix with the supplied set,
// preserving errors attached under other keys.
func (c *Control) replaceKeyed(prefix string, errs map[string]interface{}) {
	c.form.mu.Lock()
	for key := range c.errors {
		if strings.HasPrefix(key, prefix) {
			delete(c.errors, key)
		}
	}
	for key, value := range errs {
		c.errors[key] = value
	}
	c.form.mu.Unlock()
}

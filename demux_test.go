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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var _ ApiHandler = (*mockHandler)(nil)
var _ DefaultApiHandler = (*mockHandler)(nil)

type mockHandler struct {
	binding   string
	rootPath  string
	isDefault bool
	handles   bool
}

func (m *mockHandler) IsDefault() bool {
	return m.isDefault
}

func (m *mockHandler) Binding() string {
	if m.binding == "" {
		return "mockHandler"
	}
	return m.binding
}

func (m *mockHandler) Options() map[interface{}]interface{} {
	return make(map[interface{}]interface{})
}

func (m *mockHandler) RootPath() string {
	if m.rootPath == "" {
		return "/mock-handler"
	}
	return m.rootPath
}

func (m *mockHandler) IsHandler(r *http.Request) bool {
	return m.handles
}

func (m *mockHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte(m.Binding()))
}

func Test_getDefault(t *testing.T) {

	t.Run("a nil slice results in an error", func(t *testing.T) {
		var handlers []ApiHandler = nil

		defaultHandler, err := getDefault(handlers)

		req := require.New(t)
		req.Error(err)
		req.Nil(defaultHandler)
	})

	t.Run("an empty slice results in an error", func(t *testing.T) {
		var handlers []ApiHandler

		defaultHandler, err := getDefault(handlers)

		req := require.New(t)
		req.Error(err)
		req.Nil(defaultHandler)
	})

	t.Run("a slice with one non-defaulting entry returns that entry", func(t *testing.T) {
		h1 := &mockHandler{isDefault: false}
		handlers := []ApiHandler{
			h1,
		}

		defaultHandler, err := getDefault(handlers)

		req := require.New(t)
		req.NoError(err)
		req.Equal(h1, defaultHandler)
	})

	t.Run("a slice with one defaulting entry returns that entry", func(t *testing.T) {
		h1 := &mockHandler{isDefault: true}
		handlers := []ApiHandler{
			h1,
		}

		defaultHandler, err := getDefault(handlers)

		req := require.New(t)
		req.NoError(err)
		req.Equal(h1, defaultHandler)
	})

	t.Run("a slice with multiple non-defaulting entries returns the last entry", func(t *testing.T) {
		h1 := &mockHandler{isDefault: false}
		h2 := &mockHandler{isDefault: false}
		h3 := &mockHandler{isDefault: false}

		handlers := []ApiHandler{
			h1,
			h2,
			h3,
		}

		defaultHandler, err := getDefault(handlers)

		req := require.New(t)
		req.NoError(err)
		req.Equal(h3, defaultHandler)
	})

	t.Run("a slice with multiple defaulting entries returns an error", func(t *testing.T) {
		h1 := &mockHandler{isDefault: false}
		h2 := &mockHandler{isDefault: true}
		h3 := &mockHandler{isDefault: true}

		handlers := []ApiHandler{
			h1,
			h2,
			h3,
		}

		defaultHandler, err := getDefault(handlers)

		req := require.New(t)
		req.Error(err)
		req.Nil(defaultHandler)
	})

	t.Run("a slice with multiple entries and one defaulting entry returns the defaulting entry", func(t *testing.T) {
		h1 := &mockHandler{isDefault: false}
		h2 := &mockHandler{isDefault: true}
		h3 := &mockHandler{isDefault: false}

		handlers := []ApiHandler{
			h1,
			h2,
			h3,
		}

		defaultHandler, err := getDefault(handlers)

		req := require.New(t)
		req.NoError(err)
		req.Equal(h2, defaultHandler)
	})
}

func Test_IsHandledDemuxFactory(t *testing.T) {

	t.Run("requests route to the first handler claiming them", func(t *testing.T) {
		req := require.New(t)

		first := &mockHandler{binding: "first", handles: false}
		second := &mockHandler{binding: "second", handles: true, isDefault: true}

		demux, err := (&IsHandledDemuxFactory{}).Build([]ApiHandler{first, second})
		req.NoError(err)

		recorder := httptest.NewRecorder()
		demux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://localhost/anything", nil))

		req.Equal(http.StatusOK, recorder.Code)
		req.Equal("second", recorder.Body.String())
	})

	t.Run("unclaimed requests fall back to the default handler", func(t *testing.T) {
		req := require.New(t)

		first := &mockHandler{binding: "first", handles: false, isDefault: true}
		second := &mockHandler{binding: "second", handles: false}

		demux, err := (&IsHandledDemuxFactory{}).Build([]ApiHandler{first, second})
		req.NoError(err)

		recorder := httptest.NewRecorder()
		demux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://localhost/anything", nil))

		req.Equal("first", recorder.Body.String())
	})

	t.Run("the selected handler is stored on the request context", func(t *testing.T) {
		req := require.New(t)

		var seen ApiHandler
		selected := &contextCapturingHandler{mockHandler: mockHandler{binding: "selected", handles: true, isDefault: true}, capture: &seen}

		demux, err := (&IsHandledDemuxFactory{}).Build([]ApiHandler{selected})
		req.NoError(err)

		recorder := httptest.NewRecorder()
		demux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://localhost/anything", nil))

		req.Equal(selected, seen)
	})
}

func Test_PathPrefixDemuxFactory(t *testing.T) {

	t.Run("duplicate root paths are rejected", func(t *testing.T) {
		req := require.New(t)

		first := &mockHandler{binding: "first", rootPath: "/api", isDefault: true}
		second := &mockHandler{binding: "second", rootPath: "/api"}

		demux, err := (&PathPrefixDemuxFactory{}).Build([]ApiHandler{first, second})
		req.Error(err)
		req.Nil(demux)
	})

	t.Run("requests route by root path prefix", func(t *testing.T) {
		req := require.New(t)

		first := &mockHandler{binding: "first", rootPath: "/first", isDefault: true}
		second := &mockHandler{binding: "second", rootPath: "/second"}

		demux, err := (&PathPrefixDemuxFactory{}).Build([]ApiHandler{first, second})
		req.NoError(err)

		recorder := httptest.NewRecorder()
		demux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://localhost/second/people", nil))

		req.Equal("second", recorder.Body.String())
	})
}

type contextCapturingHandler struct {
	mockHandler
	capture *ApiHandler
}

func (h *contextCapturingHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	*h.capture = HandlerFromRequestContext(request.Context())
	h.mockHandler.ServeHTTP(writer, request)
}

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
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
)

// DemuxFactory generates a http.Handler that interrogates a http.Request and routes it to one
// of a set of ApiHandler instances. The selected ApiHandler is added to the request context
// under HandlerContextKey. Each DemuxFactory implementation defines its own behavior for an
// unmatched http.Request.
type DemuxFactory interface {
	Build(handlers []ApiHandler) (DemuxHandler, error)
}

type DemuxHandler interface {
	DefaultHttpHandlerProvider
	http.Handler
}

type DemuxHandlerImpl struct {
	DefaultHttpHandlerProviderImpl
	Handler http.Handler
}

var _ DemuxHandler = (*DemuxHandlerImpl)(nil)

func (d *DemuxHandlerImpl) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	d.Handler.ServeHTTP(writer, request)
}

// serveVia attaches the selected ApiHandler to the request context and defers to it.
func serveVia(handler ApiHandler, writer http.ResponseWriter, request *http.Request) {
	ctx := context.WithValue(request.Context(), HandlerContextKey, handler)
	handler.ServeHTTP(writer, request.WithContext(ctx))
}

// DefaultApiHandler is an ApiHandler that can declare itself the default for unmatched
// requests.
type DefaultApiHandler interface {
	ApiHandler
	IsDefault() bool
}

// getDefault determines which handler of a slice of ApiHandler acts as the default should a
// request match none of them. If exactly one handler declares itself the default it is used;
// more than one is an error; none means the last handler is used.
func getDefault(handlers []ApiHandler) (ApiHandler, error) {
	if len(handlers) == 0 {
		return nil, errors.New("no handlers provided")
	}

	var defaults []ApiHandler
	for _, handler := range handlers {
		if defaultHandler, ok := handler.(DefaultApiHandler); ok && defaultHandler.IsDefault() {
			defaults = append(defaults, defaultHandler)
		}
	}

	switch len(defaults) {
	case 0:
		lastHandler := handlers[len(handlers)-1]
		pfxlog.Logger().Warnf("no default handlers were found, using the last handler [Binding: %s, Type: %T] as the default", lastHandler.Binding(), lastHandler)
		return lastHandler, nil
	case 1:
		return defaults[0], nil
	default:
		var names []string
		for _, handler := range defaults {
			names = append(names, fmt.Sprintf("[Binding: %s, Type: %T]", handler.Binding(), handler))
		}
		return nil, errors.New("too many default handlers found, ensure that only one handler is marked as the default: " + strings.Join(names, ","))
	}
}

// PathPrefixDemuxFactory is a DemuxFactory that routes requests to a specific ApiHandler by
// URL path prefixes. When no ApiHandler is selected, the default handler chain applies; absent
// any default, an empty http.StatusNotFound response is sent.
type PathPrefixDemuxFactory struct {
	DefaultHttpHandlerProviderImpl
}

var _ DemuxFactory = (*PathPrefixDemuxFactory)(nil)

// Build performs ApiHandler selection based on URL path prefixes.
func (factory *PathPrefixDemuxFactory) Build(handlers []ApiHandler) (DemuxHandler, error) {
	defaultApi, err := getDefault(handlers)
	if err != nil {
		return nil, err
	}

	seenRootPaths := map[string]ApiHandler{}
	for _, handler := range handlers {
		if existing, ok := seenRootPaths[handler.RootPath()]; ok {
			return nil, fmt.Errorf("duplicate root path [%s] detected for both bindings [%s] and [%s]", handler.RootPath(), handler.Binding(), existing.Binding())
		}
		seenRootPaths[handler.RootPath()] = handler
	}

	return &DemuxHandlerImpl{
		Handler: buildDemux(factory, handlers, defaultApi, func(handler ApiHandler, request *http.Request) bool {
			return strings.HasPrefix(request.URL.Path, handler.RootPath())
		}),
	}, nil
}

// IsHandledDemuxFactory is a DemuxFactory that routes requests to a specific ApiHandler by
// delegating to each ApiHandler's IsHandler function. This is the demux of choice for content
// negotiated APIs such as the JSON:API handler, whose selection depends on headers rather than
// path alone.
type IsHandledDemuxFactory struct {
	DefaultHttpHandlerProviderImpl
}

var _ DemuxFactory = (*IsHandledDemuxFactory)(nil)

// Build performs ApiHandler selection based on IsHandler().
func (factory *IsHandledDemuxFactory) Build(handlers []ApiHandler) (DemuxHandler, error) {
	defaultApi, err := getDefault(handlers)
	if err != nil {
		return nil, err
	}

	return &DemuxHandlerImpl{
		Handler: buildDemux(factory, handlers, defaultApi, func(handler ApiHandler, request *http.Request) bool {
			return handler.IsHandler(request)
		}),
	}, nil
}

// demuxProvider is implemented by both demux factories through their embedded
// DefaultHttpHandlerProviderImpl.
type demuxProvider interface {
	GetDefaultHttpHandler() http.Handler
}

func buildDemux(provider demuxProvider, handlers []ApiHandler, defaultApi ApiHandler, matches func(ApiHandler, *http.Request) bool) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		for _, handler := range handlers {
			if matches(handler, request) {
				serveVia(handler, writer, request)
				return
			}
		}

		if defaultApi != nil {
			serveVia(defaultApi, writer, request)
			return
		}

		if defaultHttpHandler := provider.GetDefaultHttpHandler(); defaultHttpHandler != nil {
			defaultHttpHandler.ServeHTTP(writer, request)
			return
		}

		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte{})
	})
}

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
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
)

// ApiHandler is a http.Handler with enough metadata to be hosted and selected by a demux
// handler. Implementations can be as complex or as simple as necessary.
type ApiHandler interface {
	Binding() string
	Options() map[interface{}]interface{}
	RootPath() string
	IsHandler(r *http.Request) bool
	http.Handler
}

// ApiHandlerFactory creates ApiHandler instances for a binding from ServerConfig options.
type ApiHandlerFactory interface {
	Binding() string
	New(serverConfig *ServerConfig, options map[interface{}]interface{}) (ApiHandler, error)
	Validate(config *InstanceConfig) error
}

// JsonApiHandlerBinding is the registry binding for the JSON:API ApiHandler.
const JsonApiHandlerBinding = "json-api"

// JsonApiHandlerFactory creates JsonApiHandler instances wired to a RequestProcessor. The
// plain JSON acceptance flag is read from the handler options at build time
// (rejectPlainJson: true|false).
type JsonApiHandlerFactory struct {
	PathParser PathParser
	Dispatcher RequestDispatcher

	// ParameterProviderFor is handed to every processor built by this factory. Optional.
	ParameterProviderFor func(ctx RequestContext) ParameterProvider
}

var _ ApiHandlerFactory = (*JsonApiHandlerFactory)(nil)

func (factory *JsonApiHandlerFactory) Binding() string {
	return JsonApiHandlerBinding
}

// Validate confirms the factory has its dispatch collaborators.
func (factory *JsonApiHandlerFactory) Validate(_ *InstanceConfig) error {
	if factory.PathParser == nil {
		return errors.New("json-api factory requires a path parser")
	}

	if factory.Dispatcher == nil {
		return errors.New("json-api factory requires a dispatcher")
	}

	return nil
}

// New builds a JsonApiHandler from options. Supported options: rootPath (string, default "/"),
// rejectPlainJson (bool, default false).
func (factory *JsonApiHandlerFactory) New(_ *ServerConfig, options map[interface{}]interface{}) (ApiHandler, error) {
	rootPath := "/"
	rejectPlainJson := false

	if options != nil {
		if rootPathVal, ok := options["rootPath"]; ok {
			if rootPathStr, ok := rootPathVal.(string); ok {
				rootPath = rootPathStr
			} else {
				return nil, errors.New("rootPath must be a string")
			}
		}

		if rejectVal, ok := options["rejectPlainJson"]; ok {
			if reject, ok := rejectVal.(bool); ok {
				rejectPlainJson = reject
			} else {
				return nil, errors.New("rejectPlainJson must be a boolean")
			}
		}
	}

	processor, err := NewRequestProcessor(factory.PathParser, factory.Dispatcher, ProcessorOptions{
		RejectPlainJson:      rejectPlainJson,
		ParameterProviderFor: factory.ParameterProviderFor,
	})

	if err != nil {
		return nil, err
	}

	return &JsonApiHandler{
		processor:       processor,
		rootPath:        rootPath,
		options:         options,
		acceptPlainJson: !rejectPlainJson,
	}, nil
}

// JsonApiHandler adapts a RequestProcessor to the ApiHandler hosting contract. Requests the
// processor produces no response for fall through to the handler's NotFound handler.
type JsonApiHandler struct {
	processor       *RequestProcessor
	rootPath        string
	options         map[interface{}]interface{}
	acceptPlainJson bool

	// NotFound handles accepted requests that resolved to no repository and produced no
	// response. Defaults to http.NotFoundHandler behavior.
	NotFound http.Handler
}

var _ ApiHandler = (*JsonApiHandler)(nil)

func (handler *JsonApiHandler) Binding() string {
	return JsonApiHandlerBinding
}

func (handler *JsonApiHandler) Options() map[interface{}]interface{} {
	return handler.options
}

func (handler *JsonApiHandler) RootPath() string {
	return handler.rootPath
}

// IsHandler selects requests under the handler's root path that classify as JSON:API requests.
func (handler *JsonApiHandler) IsHandler(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, handler.rootPath) {
		return false
	}

	return IsJsonApiRequest(NewHTTPRequestContext(nil, r), handler.acceptPlainJson)
}

func (handler *JsonApiHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	ctx := NewHTTPRequestContext(writer, request)

	if err := handler.processor.Process(ctx); err != nil {
		pfxlog.Logger().Errorf("error processing JSON:API request [%s %s]: %v", request.Method, request.URL.Path, err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !ctx.Responded() {
		if handler.NotFound != nil {
			handler.NotFound.ServeHTTP(writer, request)
			return
		}
		writer.WriteHeader(http.StatusNotFound)
	}
}

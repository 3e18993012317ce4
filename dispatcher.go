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
	"github.com/openapix/xjapi/document"
)

// ParameterProvider supplies caller-scoped values (principals, request-scoped services) to
// repositories during dispatch. Implementations are supplied by the hosting integration; a nil
// provider is valid and means no caller-scoped values are available.
type ParameterProvider interface {
	Parameter(name string) interface{}
}

// ParameterProviderFunc adapts a function to the ParameterProvider interface.
type ParameterProviderFunc func(name string) interface{}

func (f ParameterProviderFunc) Parameter(name string) interface{} {
	return f(name)
}

// RequestDispatcher is the external dispatch engine the RequestProcessor adapts to HTTP. The
// engine owns resource resolution, repository invocation, and response document assembly; this
// layer only translates requests and responses.
type RequestDispatcher interface {
	// Dispatch handles a resource request. A nil response with a nil error means the path
	// matched no repository and no response should be written.
	Dispatch(path string, method string, parameters map[string][]string, provider ParameterProvider, doc *document.Document) (*document.Response, error)

	// DispatchAction handles an action path. Action dispatch writes its own response through
	// engine-owned channels; nothing is written by the processor.
	DispatchAction(path string, method string, parameters map[string][]string) error
}

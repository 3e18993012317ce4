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
	"io"
	"net/http"
	"strings"
)

const (
	// MediaType is the JSON:API media type.
	MediaType = "application/vnd.api+json"

	// MediaTypeAndCharset is the Content-Type value written on every JSON:API response.
	MediaTypeAndCharset = MediaType + "; charset=utf-8"

	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
)

// RequestContext abstracts the inbound HTTP request and outbound response for the
// RequestProcessor, decoupling it from any particular hosting framework. A RequestContext is
// created per HTTP call and discarded once the response is written.
type RequestContext interface {
	// Method returns the HTTP method of the request.
	Method() string

	// RequestHeader returns the first value of the named request header, or "".
	RequestHeader(name string) string

	// Accepts returns true if the request's Accept header names the given media type.
	Accepts(mediaType string) bool

	// AcceptsAny returns true if the request accepts any media type (*/*), including when no
	// Accept header is present.
	AcceptsAny() bool

	// Path returns the request path the dispatcher should resolve.
	Path() string

	// Parameters returns the query parameters as a name to value-set mapping.
	Parameters() map[string][]string

	// Body returns the raw request body, which may be empty. Repeated calls return the same
	// bytes.
	Body() ([]byte, error)

	// SetResponseHeader sets a response header.
	SetResponseHeader(name, value string)

	// SetResponse writes the response status code and body. It must be called at most once.
	SetResponse(status int, body []byte) error

	// Responded returns true once SetResponse has been called.
	Responded() bool
}

// HTTPRequestContext is the net/http backed RequestContext.
type HTTPRequestContext struct {
	writer    http.ResponseWriter
	request   *http.Request
	body      []byte
	bodyRead  bool
	bodyErr   error
	responded bool
}

var _ RequestContext = (*HTTPRequestContext)(nil)

// NewHTTPRequestContext wraps a http.ResponseWriter/http.Request pair as a RequestContext.
func NewHTTPRequestContext(writer http.ResponseWriter, request *http.Request) *HTTPRequestContext {
	return &HTTPRequestContext{
		writer:  writer,
		request: request,
	}
}

func (ctx *HTTPRequestContext) Method() string {
	return ctx.request.Method
}

func (ctx *HTTPRequestContext) RequestHeader(name string) string {
	return ctx.request.Header.Get(name)
}

func (ctx *HTTPRequestContext) Accepts(mediaType string) bool {
	for _, accepted := range acceptedMediaTypes(ctx.request.Header.Get(HeaderAccept)) {
		if accepted == mediaType {
			return true
		}
	}
	return false
}

func (ctx *HTTPRequestContext) AcceptsAny() bool {
	accept := ctx.request.Header.Get(HeaderAccept)
	if accept == "" {
		return true
	}
	for _, accepted := range acceptedMediaTypes(accept) {
		if accepted == "*/*" || accepted == "*" {
			return true
		}
	}
	return false
}

func (ctx *HTTPRequestContext) Path() string {
	return ctx.request.URL.Path
}

func (ctx *HTTPRequestContext) Parameters() map[string][]string {
	return ctx.request.URL.Query()
}

func (ctx *HTTPRequestContext) Body() ([]byte, error) {
	if !ctx.bodyRead {
		ctx.bodyRead = true
		if ctx.request.Body != nil {
			ctx.body, ctx.bodyErr = io.ReadAll(ctx.request.Body)
		}
	}
	return ctx.body, ctx.bodyErr
}

func (ctx *HTTPRequestContext) SetResponseHeader(name, value string) {
	ctx.writer.Header().Set(name, value)
}

func (ctx *HTTPRequestContext) SetResponse(status int, body []byte) error {
	ctx.responded = true
	ctx.writer.WriteHeader(status)
	_, err := ctx.writer.Write(body)
	return err
}

func (ctx *HTTPRequestContext) Responded() bool {
	return ctx.responded
}

// acceptedMediaTypes splits an Accept header into its bare media types, dropping quality
// factors and other parameters.
func acceptedMediaTypes(accept string) []string {
	if accept == "" {
		return nil
	}

	var mediaTypes []string
	for _, part := range strings.Split(accept, ",") {
		mediaType := part
		if idx := strings.Index(mediaType, ";"); idx >= 0 {
			mediaType = mediaType[:idx]
		}
		mediaType = strings.TrimSpace(mediaType)
		if mediaType != "" {
			mediaTypes = append(mediaTypes, strings.ToLower(mediaType))
		}
	}

	return mediaTypes
}

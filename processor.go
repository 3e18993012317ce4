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
	"strconv"
	"strings"

	"github.com/michaelquigley/pfxlog"
	"github.com/openapix/xjapi/document"
	"github.com/pkg/errors"
)

const jsonParsingFailedTitle = "Json Parsing failed"

// ProcessorOptions configures a RequestProcessor. Values are resolved once at construction;
// the processor carries no mutable configuration state afterwards.
type ProcessorOptions struct {
	// RejectPlainJson disables treating requests that merely accept application/json as
	// JSON:API requests. Plain JSON acceptance is enabled unless explicitly rejected.
	RejectPlainJson bool

	// ParameterProviderFor supplies a per-request ParameterProvider handed to the dispatcher.
	// Optional; a nil function or a nil result means no caller-scoped parameters.
	ParameterProviderFor func(ctx RequestContext) ParameterProvider
}

// RequestProcessor classifies inbound requests as JSON:API requests and adapts accepted ones
// onto a RequestDispatcher: it parses the path, decodes an optional request document, forwards
// to the dispatcher, and writes the dispatched response back with the JSON:API content type.
type RequestProcessor struct {
	pathParser      PathParser
	dispatcher      RequestDispatcher
	acceptPlainJson bool
	providerFor     func(ctx RequestContext) ParameterProvider
}

// NewRequestProcessor creates a RequestProcessor. The path parser and dispatcher are required.
func NewRequestProcessor(pathParser PathParser, dispatcher RequestDispatcher, options ProcessorOptions) (*RequestProcessor, error) {
	if pathParser == nil {
		return nil, errors.New("path parser is required")
	}

	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	return &RequestProcessor{
		pathParser:      pathParser,
		dispatcher:      dispatcher,
		acceptPlainJson: !options.RejectPlainJson,
		providerFor:     options.ParameterProviderFor,
	}, nil
}

// IsJsonApiRequest determines whether the supplied request is considered a JSON:API request
// under this processor's plain JSON acceptance setting.
func (processor *RequestProcessor) IsJsonApiRequest(ctx RequestContext) bool {
	return IsJsonApiRequest(ctx, processor.acceptPlainJson)
}

// IsJsonApiRequest determines whether the supplied request is considered a JSON:API request.
// PATCH and POST requests must declare a JSON:API content type regardless of what they accept.
// All other requests qualify by accepting the JSON:API media type, any media type, or, when
// acceptPlainJson is set, application/json.
func IsJsonApiRequest(ctx RequestContext, acceptPlainJson bool) bool {
	method := ctx.Method()
	if strings.EqualFold(method, http.MethodPatch) || strings.EqualFold(method, http.MethodPost) {
		contentType := ctx.RequestHeader(HeaderContentType)
		if !strings.HasPrefix(contentType, MediaType) {
			return false
		}
	}

	// short-circuit each of the possible Accept checks so that we stop comparing once a match
	// is found. Kept as separate statements to ease debugging.
	accepts := ctx.Accepts(MediaType)
	accepts = accepts || ctx.AcceptsAny()
	accepts = accepts || (acceptPlainJson && ctx.Accepts("application/json"))
	return accepts
}

// Process handles a single request. Requests not classified as JSON:API requests are ignored.
// A malformed request document is recovered locally into a 400 error response; every other
// failure propagates to the caller.
func (processor *RequestProcessor) Process(ctx RequestContext) error {
	if !processor.IsJsonApiRequest(ctx) {
		return nil
	}

	path := ctx.Path()

	jsonPath, err := processor.pathParser.Parse(path)
	if err != nil {
		return err
	}

	if jsonPath == nil {
		// no repository matches, we do nothing
		return nil
	}

	parameters := ctx.Parameters()
	method := ctx.Method()

	if jsonPath.IsAction() {
		return processor.dispatcher.DispatchAction(path, method, parameters)
	}

	body, err := ctx.Body()
	if err != nil {
		return err
	}

	var doc *document.Document
	if len(body) > 0 {
		doc, err = document.Decode(body)
		if err != nil {
			pfxlog.Logger().Errorf("%s: %v", jsonParsingFailedTitle, err)
			return processor.writeResponse(ctx, badRequestResponse(jsonParsingFailedTitle, err.Error()))
		}
	}

	var provider ParameterProvider
	if processor.providerFor != nil {
		provider = processor.providerFor(ctx)
	}

	response, err := processor.dispatcher.Dispatch(path, method, parameters, provider, doc)
	if err != nil {
		return err
	}

	return processor.writeResponse(ctx, response)
}

// writeResponse serializes a dispatch response back onto the request context. A nil response
// writes nothing, leaving the request to downstream handling.
func (processor *RequestProcessor) writeResponse(ctx RequestContext, response *document.Response) error {
	if response == nil {
		return nil
	}

	body, err := document.Encode(response.Document)
	if err != nil {
		return err
	}

	ctx.SetResponseHeader(HeaderContentType, MediaTypeAndCharset)
	return ctx.SetResponse(response.HTTPStatus, body)
}

func badRequestResponse(title, detail string) *document.Response {
	return &document.Response{
		Document: &document.Document{
			Errors: []document.ErrorData{
				{
					Status: strconv.Itoa(http.StatusBadRequest),
					Title:  title,
					Detail: detail,
				},
			},
		},
		HTTPStatus: http.StatusBadRequest,
	}
}

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

/*
Package xjapi adapts a JSON:API request dispatch engine to Go's HTTP serving stack, and hosts
the resulting handlers in configurable http.Server instances.

# Server side

The heart of the package is the RequestProcessor. Given a RequestContext (an abstraction over
the inbound request and outbound response), it decides whether the request should be treated as
a JSON:API request by interrogating the method, Content-Type, and Accept headers. Accepted
requests have their path parsed into a JsonPath descriptor and, for non-action paths, their
body decoded into a document.Document. Path, method, parameters, and document are forwarded to
the external RequestDispatcher, and its response is serialized back with the JSON:API content
type and the dispatcher's status code. A malformed request body is recovered locally into a
400 error document; all other failures propagate to the hosting framework.

A RequestProcessor is typically hosted as an ApiHandler built by JsonApiHandlerFactory. The
hosting layer mirrors a familiar shape: each Instance parses a configuration section (default
`web`) defining ServerConfig entries; each ServerConfig can listen on many interface/port
combinations specified by an array of BindPointConfig entries and host many handlers by
defining an array of ApiConfig entries resolved against a Registry of ApiHandlerFactory
registrations. Requests arriving at a shared server are routed to the correct ApiHandler by a
demux handler produced by a DemuxFactory; IsHandledDemuxFactory selects handlers through their
IsHandler function, which for the JSON:API handler applies the same content negotiation the
RequestProcessor does.

# Client side

The store and formbind packages form the opposite end of the protocol: a normalized
client-side resource store and a binding that keeps a form's named controls and one stored
resource in sync. Control value changes are debounced, deduplicated, and translated into store
patches; server-reported errors are mapped back onto controls by their JSON-pointer source
paths, with unmappable errors retained on the binding rather than dropped. The two sides do
not interact; they are independent adapters over the same protocol.
*/
package xjapi

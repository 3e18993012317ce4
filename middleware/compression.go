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

// Package middleware provides http.Handler wrappers used by the hosting layer.
package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const (
	acceptEncodingHeader  = "Accept-Encoding"
	contentEncodingHeader = "Content-Encoding"
	contentLengthHeader   = "Content-Length"

	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// NewCompressionHandler wraps a http.Handler with response compression negotiated from the
// request's Accept-Encoding header. Brotli is preferred when offered, then gzip; otherwise the
// response passes through unencoded. Responses that already declare a Content-Encoding are
// left alone.
func NewCompressionHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		encoding := selectEncoding(request.Header.Get(acceptEncodingHeader))

		if encoding == "" {
			handler.ServeHTTP(writer, request)
			return
		}

		compressed := &compressingResponseWriter{
			ResponseWriter: writer,
			encoding:       encoding,
		}
		defer func() { _ = compressed.Close() }()

		handler.ServeHTTP(compressed, request)
	})
}

// selectEncoding picks the preferred supported encoding from an Accept-Encoding header.
func selectEncoding(acceptEncoding string) string {
	supportsGzip := false

	for _, part := range strings.Split(acceptEncoding, ",") {
		name := part
		if idx := strings.Index(name, ";"); idx >= 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(name)

		if name == encodingBrotli {
			return encodingBrotli
		}
		if name == encodingGzip {
			supportsGzip = true
		}
	}

	if supportsGzip {
		return encodingGzip
	}

	return ""
}

// compressingResponseWriter lazily wraps the response body in the negotiated encoder on the
// first write, unless the wrapped handler already set a Content-Encoding.
type compressingResponseWriter struct {
	http.ResponseWriter
	encoding    string
	encoder     io.WriteCloser
	passthrough bool
	wroteHeader bool
}

func (w *compressingResponseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.prepare()
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressingResponseWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	if w.passthrough {
		return w.ResponseWriter.Write(data)
	}

	return w.encoder.Write(data)
}

func (w *compressingResponseWriter) prepare() {
	if w.Header().Get(contentEncodingHeader) != "" {
		w.passthrough = true
		return
	}

	// the compressed length is unknown up front
	w.Header().Del(contentLengthHeader)
	w.Header().Set(contentEncodingHeader, w.encoding)

	if w.encoding == encodingBrotli {
		w.encoder = brotli.NewWriter(w.ResponseWriter)
	} else {
		w.encoder = gzip.NewWriter(w.ResponseWriter)
	}
}

func (w *compressingResponseWriter) Close() error {
	if w.encoder != nil {
		return w.encoder.Close()
	}
	return nil
}

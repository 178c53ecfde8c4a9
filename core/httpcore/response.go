package httpcore

import (
	"strconv"
	"strings"
)

// Response is the in-memory representation of an HTTP/1.1 response, built by
// handlers and serialized onto a connection's write buffer.
type Response struct {
	StatusCode    int
	StatusMessage string
	Headers       map[string]string
	Body          []byte
	keepAliveSet  bool
	KeepAlive     bool
}

// NewResponse returns a 200 OK response with an empty body.
func NewResponse() *Response {
	return &Response{
		StatusCode:    200,
		StatusMessage: "OK",
		Headers:       make(map[string]string, 4),
		KeepAlive:     true,
	}
}

// SetStatus sets the status code, filling in a default message (from the
// same table as eventcore's Response::default_status_message) when message
// is empty.
func (r *Response) SetStatus(code int, message string) {
	r.StatusCode = code
	if message == "" {
		message = defaultStatusMessage(code)
	}
	r.StatusMessage = message
}

// SetHeader sets or overwrites a header value.
func (r *Response) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string, 4)
	}
	r.Headers[name] = value
}

// SetBody replaces the body and updates Content-Length.
func (r *Response) SetBody(body []byte) {
	r.Body = body
	r.SetHeader("Content-Length", strconv.Itoa(len(r.Body)))
}

// AppendBody appends to the body and updates Content-Length.
func (r *Response) AppendBody(data []byte) {
	r.Body = append(r.Body, data...)
	r.SetHeader("Content-Length", strconv.Itoa(len(r.Body)))
}

// SetContentType is shorthand for SetHeader("Content-Type", type).
func (r *Response) SetContentType(contentType string) {
	r.SetHeader("Content-Type", contentType)
}

// SetKeepAlive records the connection-reuse decision and mirrors it into the
// Connection header so ToBytes doesn't need a second source of truth.
func (r *Response) SetKeepAlive(keepAlive bool) {
	r.KeepAlive = keepAlive
	r.keepAliveSet = true
	if keepAlive {
		r.SetHeader("Connection", "keep-alive")
	} else {
		r.SetHeader("Connection", "close")
	}
}

// ToBytes serializes the status line, headers, and body.
func (r *Response) ToBytes() []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(r.StatusCode))
	b.WriteByte(' ')
	b.WriteString(r.StatusMessage)
	b.WriteString("\r\n")

	for name, value := range r.Headers {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	if _, ok := r.Headers["Connection"]; !ok {
		if r.KeepAlive {
			b.WriteString("Connection: keep-alive\r\n")
		} else {
			b.WriteString("Connection: close\r\n")
		}
	}
	if _, ok := r.Headers["Content-Length"]; !ok && len(r.Body) > 0 {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body)))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out
}

func defaultStatusMessage(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}

// Make404 builds the default not-found response.
func Make404() *Response {
	r := NewResponse()
	r.SetStatus(404, "")
	r.SetContentType("text/html")
	r.SetBody([]byte("<html><body><h1>404 Not Found</h1></body></html>"))
	return r
}

// Make500 builds the default internal-error response.
func Make500() *Response {
	r := NewResponse()
	r.SetStatus(500, "")
	r.SetContentType("text/html")
	r.SetBody([]byte("<html><body><h1>500 Internal Server Error</h1></body></html>"))
	return r
}

// Make413 builds the oversize-request-body response used when a declared
// Content-Length exceeds the configured max request size.
func Make413() *Response {
	r := NewResponse()
	r.SetStatus(413, "")
	r.SetContentType("text/html")
	r.SetBody([]byte("<html><body><h1>413 Payload Too Large</h1></body></html>"))
	r.SetKeepAlive(false)
	return r
}

// MakeJSON builds a response with the given status code and raw JSON body.
func MakeJSON(code int, json []byte) *Response {
	r := NewResponse()
	r.SetStatus(code, "")
	r.SetContentType("application/json")
	r.SetBody(json)
	return r
}

// MakeHTML builds a response with the given status code and raw HTML body.
func MakeHTML(code int, html []byte) *Response {
	r := NewResponse()
	r.SetStatus(code, "")
	r.SetContentType("text/html")
	r.SetBody(html)
	return r
}

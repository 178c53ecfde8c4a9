package httpcore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/eventcore/eventcore/core/buf"
)

// State is one stage of the incremental request parser.
type State int

const (
	ExpectRequestLine State = iota
	ExpectHeaders
	ExpectBody
	Complete
)

// ErrMalformed is returned when the byte stream cannot be a valid HTTP/1.1
// request; the caller should respond 400 and close the connection.
var ErrMalformed = errors.New("httpcore: malformed request")

// ErrTooLarge is returned when the declared Content-Length exceeds
// maxBodySize; the caller should respond 413 and close the connection.
var ErrTooLarge = errors.New("httpcore: request body too large")

// Parser decodes one HTTP/1.1 request at a time from a buf.Buffer, across
// however many partial reads the bytes happen to arrive in. Call Reset
// between requests on a keep-alive connection to reuse the same Parser.
type Parser struct {
	state         State
	contentLength int
	maxBodySize   int
}

// NewParser returns a Parser in the ExpectRequestLine state. maxBodySize of
// 0 means unbounded.
func NewParser(maxBodySize int) *Parser {
	return &Parser{state: ExpectRequestLine, maxBodySize: maxBodySize}
}

// State returns the parser's current stage.
func (p *Parser) State() State { return p.state }

// IsComplete reports whether the most recent ParseRequest call finished a request.
func (p *Parser) IsComplete() bool { return p.state == Complete }

// Reset rearms the parser to decode the next request on the connection.
func (p *Parser) Reset() {
	p.state = ExpectRequestLine
	p.contentLength = 0
}

// ParseRequest advances the state machine as far as the bytes already
// buffered allow, filling req in place. It returns (true, nil) once a full
// request has been decoded, (false, nil) if more bytes are needed, and
// (false, err) on a hard parse failure (ErrMalformed or ErrTooLarge).
func (p *Parser) ParseRequest(buffer *buf.Buffer, req *Request) (bool, error) {
	for {
		switch p.state {
		case ExpectRequestLine:
			idx := buffer.FindCRLF()
			if idx < 0 {
				return false, nil
			}
			line := string(buffer.Peek()[:idx])
			if err := p.parseRequestLine(line, req); err != nil {
				return false, err
			}
			buffer.Retrieve(idx + 2)
			p.state = ExpectHeaders

		case ExpectHeaders:
			done, err := p.parseHeaders(buffer, req)
			if err != nil {
				return false, err
			}
			if !done {
				return false, nil
			}
			if p.contentLength > 0 {
				p.state = ExpectBody
			} else {
				p.state = Complete
				return true, nil
			}

		case ExpectBody:
			if buffer.ReadableBytes() < p.contentLength {
				return false, nil
			}
			req.Body = []byte(buffer.RetrieveAsString(p.contentLength))
			p.state = Complete
			return true, nil

		case Complete:
			return true, nil
		}
	}
}

func (p *Parser) parseRequestLine(line string, req *Request) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return fmt.Errorf("%w: bad request line %q", ErrMalformed, line)
	}
	method, target, version := fields[0], fields[1], fields[2]

	req.Method = StringToMethod(method)
	if req.Method == MethodUnknown {
		return fmt.Errorf("%w: unknown method %q", ErrMalformed, method)
	}
	req.Version = StringToVersion(version)
	if req.Version == VersionUnknown {
		return fmt.Errorf("%w: unknown version %q", ErrMalformed, version)
	}
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		req.Path = target[:idx]
		req.Query = target[idx+1:]
	} else {
		req.Path = target
		req.Query = ""
	}
	return nil
}

// parseHeaders consumes complete header lines from buffer until the blank
// line that terminates the header block. Returns done=true once the blank
// line itself has been consumed.
func (p *Parser) parseHeaders(buffer *buf.Buffer, req *Request) (done bool, err error) {
	for {
		idx := buffer.FindCRLF()
		if idx < 0 {
			return false, nil
		}
		if idx == 0 {
			buffer.Retrieve(2)
			return true, nil
		}
		line := string(buffer.Peek()[:idx])
		buffer.Retrieve(idx + 2)

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return false, fmt.Errorf("%w: bad header line %q", ErrMalformed, line)
		}
		name := line[:colon]
		value := strings.TrimLeft(line[colon+1:], " \t")

		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return false, fmt.Errorf("%w: invalid header %q", ErrMalformed, name)
		}
		req.SetHeader(name, value)

		if name == "Content-Length" {
			n, convErr := strconv.Atoi(value)
			if convErr != nil || n < 0 {
				return false, fmt.Errorf("%w: bad Content-Length %q", ErrMalformed, value)
			}
			if p.maxBodySize > 0 && n > p.maxBodySize {
				return false, ErrTooLarge
			}
			p.contentLength = n
		}
	}
}

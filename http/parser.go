package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	MaxHeaderBytes = 1 << 20 // 1MB
	MaxBodySize    = 8 << 20 // 8MB
)

var (
	ErrEmptyRequest         = errors.New("http: empty request")
	ErrMalformedRequestLine = errors.New("http: malformed request line")
	ErrHeaderTooLarge       = errors.New("http: request header too large")
	ErrInvalidContentLength = errors.New("http: invalid content-length")
	ErrBodyTooLarge         = errors.New("http: request body too large")
	ErrShortBody            = errors.New("http: request body shorter than content-length")
)

// ParseRequest reads one request from reader: the request line, the header
// block up to the first blank line and, when Content-Length is positive,
// exactly that many body bytes.
func ParseRequest(reader *bufio.Reader) (*Request, error) {
	var read int

	requestLine, err := readLine(reader, &read)
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyRequest
		}
		return nil, err
	}
	if requestLine == "" {
		return nil, ErrEmptyRequest
	}

	parts := strings.Split(requestLine, " ")
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRequestLine, requestLine)
	}
	method, uri := parts[0], parts[1]

	var headers Headers
	contentLength := 0
	for {
		line, err := readLine(reader, &read)
		if err != nil {
			if err == io.EOF {
				// Headers ended with the stream.
				break
			}
			return nil, err
		}
		if line == "" {
			break
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		headers = headers.set(name, value)

		if strings.EqualFold(name, "Content-Length") {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidContentLength, value)
			}
			// Only a positive length announces a body.
			contentLength = max(n, 0)
		}
	}

	var body []byte
	if contentLength > 0 {
		if contentLength > MaxBodySize {
			return nil, ErrBodyTooLarge
		}
		body = make([]byte, contentLength)
		if _, err := io.ReadFull(reader, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrShortBody
			}
			return nil, err
		}
	}

	return NewRequest(method, uri, headers, body), nil
}

// readLine reads a single line without its CRLF or LF terminator. A final
// line without terminator is returned as is; io.EOF is only returned when
// nothing was read.
func readLine(reader *bufio.Reader, read *int) (string, error) {
	line, err := reader.ReadString('\n')
	*read += len(line)
	if *read > MaxHeaderBytes {
		return "", ErrHeaderTooLarge
	}
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

package http

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const DefaultWriteBufferSize = 4096 // 4kB

var (
	protocolHTTP11      = "HTTP/1.1 "
	contentLengthPrefix = "Content-Length: "
	crlf                = "\r\n"
)

// WriteResponse serializes res onto w: status line, headers in insertion
// order, a Content-Length computed from the UTF-8 body, a blank line and the
// body. Any Content-Length header set on res is ignored.
func WriteResponse(w io.Writer, res *Response) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriterSize(w, DefaultWriteBufferSize)
	}

	bw.WriteString(protocolHTTP11)
	bw.WriteString(strconv.Itoa(res.status))
	bw.WriteByte(' ')
	bw.WriteString(res.reason)
	bw.WriteString(crlf)

	for _, h := range res.headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		bw.WriteString(h.Name)
		bw.WriteString(": ")
		bw.WriteString(h.Value)
		bw.WriteString(crlf)
	}

	bw.WriteString(contentLengthPrefix)
	bw.WriteString(strconv.Itoa(len(res.body)))
	bw.WriteString(crlf)
	bw.WriteString(crlf)
	bw.WriteString(res.body)

	// bufio.Writer keeps the first error; Flush reports it.
	return bw.Flush()
}

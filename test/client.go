// Package test holds helpers for driving a running server over raw TCP.
package test

import (
	"bufio"
	"bytes"
	"io"
	"net"
	nethttp "net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Timeout bounds every dial, write and read a helper performs.
const Timeout = 5 * time.Second

// Reply is a parsed server response.
type Reply struct {
	Status int
	Reason string
	Header nethttp.Header
	Body   string
}

// Raw opens a connection to addr, writes raw when it is not empty, and
// returns every byte the server sends before it closes the connection.
func Raw(t testing.TB, addr, raw string) []byte {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, Timeout)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(Timeout)))

	if raw != "" {
		_, err = io.WriteString(conn, raw)
		require.NoError(t, err)
	}

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return data
}

// Do sends raw to addr and parses the response.
func Do(t testing.TB, addr, raw string) Reply {
	t.Helper()
	return Parse(t, Raw(t, addr, raw))
}

// Parse reads a single HTTP/1.1 response from data.
func Parse(t testing.TB, data []byte) Reply {
	t.Helper()

	res, err := nethttp.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	require.NoError(t, err, "response: %q", data)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	reason := res.Status
	if len(reason) > 4 {
		reason = reason[4:]
	}

	return Reply{
		Status: res.StatusCode,
		Reason: reason,
		Header: res.Header,
		Body:   string(body),
	}
}

// Get builds a bodiless request for path.
func Get(path string) string {
	return "GET " + path + " HTTP/1.1\r\nHost: localhost\r\n\r\n"
}

// Post builds a request carrying body with a matching Content-Length.
func Post(path, body string) string {
	return "POST " + path + " HTTP/1.1\r\nHost: localhost\r\nContent-Length: " +
		strconv.Itoa(len(body)) + "\r\n\r\n" + body
}

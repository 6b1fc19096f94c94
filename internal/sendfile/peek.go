package sendfile

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// maxPeekBytes bounds the non-consuming peek to the length of one HTTP
// request line — enough to see "GET <path> HTTP/1.1\r\n" without reading
// (and thus removing from the kernel's socket buffer) any of the headers
// that follow.
const maxPeekBytes = 512

// peekRequestLine reads up to maxPeekBytes from conn's socket without
// consuming them (MSG_PEEK), so that if the request doesn't match a
// fast-path route the bytes are still there for the normal net/http
// pipeline to read from scratch.
func peekRequestLine(conn *net.TCPConn) ([]byte, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, maxPeekBytes)
	var n int
	var recvErr error
	ctrlErr := raw.Read(func(fd uintptr) bool {
		n, _, recvErr = unix.Recvfrom(int(fd), buf, unix.MSG_PEEK)
		if recvErr == unix.EAGAIN {
			return false // not yet readable, ask the runtime poller to wait
		}
		return true
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	}
	if recvErr != nil && !errors.Is(recvErr, unix.EAGAIN) {
		return nil, recvErr
	}
	return buf[:n], nil
}

// extractGETPath parses the method and path out of a peeked request-line
// buffer. Returns ok=false for anything that isn't a well-formed GET line,
// including one whose path runs past the end of the peek buffer.
func extractGETPath(peekBuf []byte) (string, bool) {
	lineEnd := len(peekBuf)
	for i := 0; i+1 < len(peekBuf); i++ {
		if peekBuf[i] == '\r' && peekBuf[i+1] == '\n' {
			lineEnd = i
			break
		}
	}
	line := peekBuf[:lineEnd]

	const getPrefix = "GET "
	if len(line) <= len(getPrefix) || string(line[:len(getPrefix)]) != getPrefix {
		return "", false
	}
	rest := line[len(getPrefix):]
	sp := indexByte(string(rest), ' ')
	if sp < 0 {
		return "", false
	}
	return string(rest[:sp]), true
}

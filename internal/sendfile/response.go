package sendfile

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

func writeStatusOnly(conn *net.TCPConn, status, reason string, close bool) error {
	conn2 := "keep-alive"
	if close {
		conn2 = "close"
	}
	_, err := fmt.Fprintf(conn, "HTTP/1.1 %s %s\r\nContent-Length: 0\r\nConnection: %s\r\n\r\n", status, reason, conn2)
	return err
}

func writeNotFound(conn *net.TCPConn) error  { return writeStatusOnly(conn, "404", "Not Found", true) }
func writeUnauthorized(conn *net.TCPConn) error {
	return writeStatusOnly(conn, "401", "Unauthorized", true)
}

func writeRangeNotSatisfiable(conn *net.TCPConn, fileSize uint64) error {
	_, err := fmt.Fprintf(conn,
		"HTTP/1.1 416 Range Not Satisfiable\r\nContent-Range: bytes */%d\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
		fileSize)
	return err
}

func writeSegmentHeaders(conn *net.TCPConn, contentLength uint64) error {
	_, err := fmt.Fprintf(conn,
		"HTTP/1.1 200 OK\r\nContent-Type: video/iso.segment\r\nContent-Length: %d\r\nConnection: keep-alive\r\n\r\n",
		contentLength)
	return err
}

func writeDirectHeaders(conn *net.TCPConn, contentType string, fileSize uint64) error {
	_, err := fmt.Fprintf(conn,
		"HTTP/1.1 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\nAccept-Ranges: bytes\r\nConnection: keep-alive\r\n\r\n",
		contentType, fileSize)
	return err
}

func writePartialHeaders(conn *net.TCPConn, contentType string, start, end, fileSize uint64) error {
	_, err := fmt.Fprintf(conn,
		"HTTP/1.1 206 Partial Content\r\nContent-Type: %s\r\nContent-Range: bytes %d-%d/%d\r\nContent-Length: %d\r\nAccept-Ranges: bytes\r\nConnection: keep-alive\r\n\r\n",
		contentType, start, end, fileSize, end-start+1)
	return err
}

// contentTypeForPath guesses a Content-Type from a file extension, for the
// direct/Jellyfin routes which may point at any supported container.
func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".webm":
		return "video/webm"
	case ".ts":
		return "video/mp2t"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}

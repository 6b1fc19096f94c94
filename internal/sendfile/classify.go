// Package sendfile implements the §4.8 Sendfile Server: TCP-level request
// peeking, route classification, and zero-copy byte delivery for HLS
// segments and direct-play file ranges, bypassing the normal net/http
// pipeline for the handful of hot routes that dominate outbound bandwidth.
package sendfile

import "strconv"

// RouteKind identifies which fast-path pattern a request line matched.
type RouteKind int

const (
	RouteNone RouteKind = iota
	RouteSegment
	RouteDirect
	RouteJellyfin
)

// Route is the result of classifying a request path against the fast-path
// patterns. MediaFileID/ItemID are populated depending on Kind.
type Route struct {
	Kind         RouteKind
	MediaFileID  string
	ItemID       string
	SegmentIndex int
}

// ClassifyPath matches fullPath, with any query string removed, against the
// three fast-path patterns:
//
//	/<prefix>/<uuid>/segment_<n>.m4s  -> RouteSegment
//	/<prefix>/<uuid>/direct           -> RouteDirect
//	/Videos/<uuid>/stream             -> RouteJellyfin
//
// Everything else, including malformed variants of these patterns, returns
// Kind == RouteNone so the caller falls through to the normal framework.
func ClassifyPath(streamPrefix, fullPath string) Route {
	path := fullPath
	if i := indexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if rest, ok := stripPrefixSlash(path, "/"+streamPrefix+"/"); ok {
		if route, ok := classifyStreamSuffix(rest); ok {
			return route
		}
		return Route{}
	}

	if rest, ok := stripPrefixSlash(path, "/Videos/"); ok {
		slash := indexByte(rest, '/')
		if slash < 0 {
			return Route{}
		}
		uuidPart, suffix := rest[:slash], rest[slash+1:]
		if len(uuidPart) == 36 && suffix == "stream" {
			return Route{Kind: RouteJellyfin, ItemID: uuidPart}
		}
	}

	return Route{}
}

func classifyStreamSuffix(rest string) (Route, bool) {
	slash := indexByte(rest, '/')
	if slash < 0 {
		return Route{}, false
	}
	uuidPart, suffix := rest[:slash], rest[slash+1:]
	if len(uuidPart) != 36 {
		return Route{}, false
	}

	if suffix == "direct" {
		return Route{Kind: RouteDirect, MediaFileID: uuidPart}, true
	}

	const segPrefix, segSuffix = "segment_", ".m4s"
	if len(suffix) > len(segPrefix)+len(segSuffix) &&
		suffix[:len(segPrefix)] == segPrefix &&
		suffix[len(suffix)-len(segSuffix):] == segSuffix {
		numStr := suffix[len(segPrefix) : len(suffix)-len(segSuffix)]
		n, err := strconv.Atoi(numStr)
		if err != nil || n < 0 {
			return Route{}, false
		}
		return Route{Kind: RouteSegment, MediaFileID: uuidPart, SegmentIndex: n}, true
	}

	return Route{}, false
}

func stripPrefixSlash(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

package sendfile

import (
	"context"
	"net"
	"os"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"
)

// Handlers bundles the ports the fast-path routes read from. It holds no
// mutable state of its own.
type Handlers struct {
	Cache ports.PreparationCache
	Files ports.MediaFileRepository
}

// serveSegment implements spec.md §4.8's Segment route: resolve
// PreparedMedia via the preparation cache, then a single packaged write of
// the segment's moof+mdat-header prefix followed by its video/audio byte
// ranges sent zero-copy from the source file.
func (h Handlers) serveSegment(ctx context.Context, conn *net.TCPConn, mediaFileID string, segIndex int) error {
	prepared, err := h.Cache.GetOrBuild(ctx, mediaFileID)
	if err != nil {
		metrics.SendfileConnectionsTotal.WithLabelValues("segment").Inc()
		return writeNotFound(conn)
	}
	if segIndex < 0 || segIndex >= len(prepared.Segments) {
		return writeNotFound(conn)
	}
	seg := prepared.Segments[segIndex]

	file, err := os.Open(prepared.FilePath)
	if err != nil {
		return writeNotFound(conn)
	}
	defer file.Close()

	prefixLen := uint64(len(seg.MoofBytes) + len(seg.MdatHeader))
	contentLength := prefixLen + seg.DataLength

	_ = setCork(conn, true)
	defer setCork(conn, false)

	if err := writeSegmentHeaders(conn, contentLength); err != nil {
		return err
	}

	start := time.Now()
	prefix := make([]byte, 0, prefixLen)
	prefix = append(prefix, seg.MoofBytes...)
	prefix = append(prefix, seg.MdatHeader...)
	if _, err := conn.Write(prefix); err != nil {
		return err
	}

	for _, r := range seg.VideoDataRanges {
		if err := sendfileRange(conn, file, r.Offset, r.Length); err != nil {
			return err
		}
	}
	for _, r := range seg.AudioDataRanges {
		if err := sendfileRange(conn, file, r.Offset, r.Length); err != nil {
			return err
		}
	}
	metrics.SendfileWriteDuration.Observe(time.Since(start).Seconds())
	metrics.SendfileConnectionsTotal.WithLabelValues("segment").Inc()
	return nil
}

// serveDirect implements the Direct route: look up the media file and
// stream its bytes (honouring an optional Range header) straight from
// disk.
func (h Handlers) serveDirect(ctx context.Context, conn *net.TCPConn, mediaFileID string, r byteRange) error {
	mf, err := h.Files.Get(ctx, mediaFileID)
	if err != nil {
		return writeNotFound(conn)
	}
	metrics.SendfileConnectionsTotal.WithLabelValues("direct").Inc()
	return h.serveFile(conn, mf.Path, r)
}

// serveJellyfin implements the Jellyfin-compatible `/Videos/<uuid>/stream`
// route: mediaSourceId (if present in the query string) selects the exact
// MediaFile; otherwise the item's first file is used.
func (h Handlers) serveJellyfin(ctx context.Context, conn *net.TCPConn, itemID, mediaSourceID string, r byteRange) error {
	var mf domain.MediaFile
	var err error
	if mediaSourceID != "" {
		mf, err = h.Files.Get(ctx, mediaSourceID)
	} else {
		var files []domain.MediaFile
		files, err = h.Files.ListByItem(ctx, itemID)
		if err == nil {
			if len(files) == 0 {
				return writeNotFound(conn)
			}
			mf = files[0]
		}
	}
	if err != nil {
		return writeNotFound(conn)
	}
	metrics.SendfileConnectionsTotal.WithLabelValues("fallthrough").Inc()
	return h.serveFile(conn, mf.Path, r)
}

// serveFile streams path's bytes to conn, honouring r if present.
func (h Handlers) serveFile(conn *net.TCPConn, path string, r byteRange) error {
	file, err := os.Open(path)
	if err != nil {
		return writeNotFound(conn)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return writeNotFound(conn)
	}
	fileSize := uint64(info.Size())
	contentType := contentTypeForPath(path)

	_ = setCork(conn, true)
	defer setCork(conn, false)

	start := time.Now()
	if r.Present {
		rangeStart, rangeEnd, ok := r.resolve(fileSize)
		if !ok {
			return writeRangeNotSatisfiable(conn, fileSize)
		}
		if err := writePartialHeaders(conn, contentType, rangeStart, rangeEnd, fileSize); err != nil {
			return err
		}
		if err := sendfileRange(conn, file, rangeStart, rangeEnd-rangeStart+1); err != nil {
			return err
		}
	} else {
		if err := writeDirectHeaders(conn, contentType, fileSize); err != nil {
			return err
		}
		if err := sendfileRange(conn, file, 0, fileSize); err != nil {
			return err
		}
	}
	metrics.SendfileWriteDuration.Observe(time.Since(start).Seconds())
	return nil
}

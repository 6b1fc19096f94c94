package mp4

import (
	"encoding/binary"
	"io"
)

// boxHeader is a size-prefixed ISOBMFF box header: either the classic 8-byte
// form (be32 size, 4cc type) or the 64-bit extended form used when size==1.
type boxHeader struct {
	typ       string
	bodyStart int64 // offset of the first body byte, absolute in the file
	bodyEnd   int64 // exclusive
}

func (h boxHeader) bodyLen() int64 { return h.bodyEnd - h.bodyStart }

// readBoxHeader reads one box header at offset off within [off, limit) and
// returns it. limit is the exclusive end of the enclosing container (or the
// file size at the top level); size==0 means "extends to limit".
func readBoxHeader(r io.ReaderAt, off, limit int64) (boxHeader, error) {
	if off+8 > limit {
		return boxHeader{}, ErrNeedMoreData
	}
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return boxHeader{}, ErrNeedMoreData
		}
		return boxHeader{}, invalid("read box header at %d: %v", off, err)
	}
	size := uint64(binary.BigEndian.Uint32(hdr[0:4]))
	typ := string(hdr[4:8])
	bodyStart := off + 8

	switch size {
	case 0:
		return boxHeader{typ: typ, bodyStart: bodyStart, bodyEnd: limit}, nil
	case 1:
		if bodyStart+8 > limit {
			return boxHeader{}, ErrNeedMoreData
		}
		var ext [8]byte
		if _, err := r.ReadAt(ext[:], bodyStart); err != nil {
			return boxHeader{}, invalid("read extended box size at %d: %v", bodyStart, err)
		}
		large := binary.BigEndian.Uint64(ext[:])
		bodyStart += 8
		end := off + int64(large)
		if large < 16 || end > limit || end < bodyStart {
			return boxHeader{}, invalid("box %q at %d has invalid 64-bit size %d", typ, off, large)
		}
		return boxHeader{typ: typ, bodyStart: bodyStart, bodyEnd: end}, nil
	default:
		if size < 8 {
			return boxHeader{}, invalid("box %q at %d has invalid size %d", typ, off, size)
		}
		end := off + int64(size)
		if end > limit {
			return boxHeader{}, ErrNeedMoreData
		}
		return boxHeader{typ: typ, bodyStart: bodyStart, bodyEnd: end}, nil
	}
}

// walkBoxes calls fn once per top-level box found in [start, end). fn may
// return errStopWalk to stop early without error.
func walkBoxes(r io.ReaderAt, start, end int64, fn func(boxHeader) error) error {
	off := start
	for off < end {
		hdr, err := readBoxHeader(r, off, end)
		if err != nil {
			return err
		}
		if err := fn(hdr); err != nil {
			if err == errStopWalk {
				return nil
			}
			return err
		}
		off = hdr.bodyEnd
	}
	return nil
}

var errStopWalk = errStopWalkType{}

type errStopWalkType struct{}

func (errStopWalkType) Error() string { return "stop walk" }

// readFull reads exactly len(buf) bytes starting at off, translating EOF
// into ErrNeedMoreData since it means the box body was truncated.
func readFull(r io.ReaderAt, off int64, buf []byte) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrNeedMoreData
	}
	if err != nil {
		return invalid("read at %d: %v", off, err)
	}
	return invalid("short read at %d: got %d want %d", off, n, len(buf))
}

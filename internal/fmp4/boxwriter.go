package fmp4

import "encoding/binary"

// writeBox wraps body with an 8-byte size+type header. Sizes in this
// package never need the 64-bit extended form: a moof is a few hundred
// bytes and an mdat header is fixed at 8 bytes (the payload itself is
// never passed through this builder — see Segment.MdatHeader).
func writeBox(typ string, body []byte) []byte {
	buf := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	copy(buf[4:8], typ)
	copy(buf[8:], body)
	return buf
}

func fullBox(typ string, version byte, flags uint32, payload []byte) []byte {
	body := make([]byte, 4+len(payload))
	body[0] = version
	body[1] = byte(flags >> 16)
	body[2] = byte(flags >> 8)
	body[3] = byte(flags)
	copy(body[4:], payload)
	return writeBox(typ, body)
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

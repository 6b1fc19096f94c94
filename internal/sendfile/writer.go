package sendfile

import (
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"mediavault/internal/domain"
	"mediavault/internal/metrics"
)

// maxSendfileChunk bounds a single sendfile(2) call, matching the ~2 GiB
// Linux kernel limit noted in spec.md §4.8.
const maxSendfileChunk = 0x7ffff000

// eagainBackoff is the sleep applied when an EAGAIN genuinely moved zero
// bytes, giving the receiver time to drain its buffer before retrying.
const eagainBackoff = time.Millisecond

// sendfileRange writes [offset, offset+length) of file to conn using
// sendfile(2), looping through EINTR/EAGAIN/short-count returns until every
// requested byte has been delivered (spec.md §4.8 "partial-send loop").
// It never returns success until all requested bytes are sent.
func sendfileRange(conn *net.TCPConn, file *os.File, offset, length uint64) error {
	if length == 0 {
		return nil
	}
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return domain.IOErr(err)
	}
	fileFD := int(file.Fd())

	remaining := length
	off := int64(offset)
	var opErr error

	ctrlErr := rawConn.Write(func(sockFD uintptr) bool {
		for remaining > 0 {
			count := remaining
			if count > maxSendfileChunk {
				count = maxSendfileChunk
			}
			n, serr := unix.Sendfile(int(sockFD), fileFD, &off, int(count))
			if n > 0 {
				remaining -= uint64(n)
				metrics.SendfileBytesTotal.Add(float64(n))
				continue
			}
			switch serr {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				metrics.SendfileEAGAINRetriesTotal.Inc()
				time.Sleep(eagainBackoff)
				return false // let the runtime poller wait for writability
			case nil:
				// n == 0, no error: source exhausted before count reached.
				opErr = domain.IOErr(fmt.Errorf("sendfile: source ended with %d bytes unsent", remaining))
				return true
			default:
				opErr = domain.IOErr(serr)
				return true
			}
		}
		return true
	})
	if ctrlErr != nil {
		return domain.IOErr(ctrlErr)
	}
	if opErr != nil {
		return opErr
	}
	if remaining > 0 {
		return domain.IOErr(fmt.Errorf("sendfile: %d bytes unsent after write callback returned", remaining))
	}
	return nil
}

// setCork toggles the platform's "buffer small writes until cleared"
// socket option (TCP_CORK on Linux, TCP_NOPUSH on macOS/BSD) so the kernel
// coalesces the HTTP header write with the sendfile payload that follows
// into the minimum number of frames.
func setCork(conn *net.TCPConn, enabled bool) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var optErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		val := 0
		if enabled {
			val = 1
		}
		optErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, corkOption, val)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return optErr
}

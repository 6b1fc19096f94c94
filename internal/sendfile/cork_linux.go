package sendfile

import "golang.org/x/sys/unix"

// corkOption is TCP_CORK on Linux.
const corkOption = unix.TCP_CORK

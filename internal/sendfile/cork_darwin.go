package sendfile

import "golang.org/x/sys/unix"

// corkOption is TCP_NOPUSH on macOS/BSD, the platform's equivalent of
// Linux's TCP_CORK.
const corkOption = unix.TCP_NOPUSH

//go:build !linux && !darwin

package netutil

// SO_REUSEPORT is not part of the stdlib syscall package's constant set on
// every other Unix, and its value differs by platform (0x0200 on Darwin and
// the BSDs, 15 on Linux), so each platform that needs it should add its own
// file here. Until one is added, SetReusePort is a harmless no-op.
const soReusePort = 0

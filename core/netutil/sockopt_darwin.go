//go:build darwin

package netutil

import "syscall"

const soReusePort = syscall.SO_REUSEPORT

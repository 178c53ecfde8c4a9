// Package netutil provides the Socket and Address value types used by the
// acceptor, workers, and connections to talk to the raw TCP stack.
package netutil

import (
	"fmt"
	"net"
)

// Address is an IPv4 host:port pair, the Go counterpart of eventcore's
// net::Address wrapper around sockaddr_in.
type Address struct {
	ip   [4]byte
	port uint16
}

// NewAddress resolves host (a literal IP or DNS name) and port into an Address.
func NewAddress(host string, port uint16) (Address, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return Address{}, fmt.Errorf("resolve address %s: %w", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var a Address
			copy(a.ip[:], v4)
			a.port = port
			return a, nil
		}
	}
	return Address{}, fmt.Errorf("no IPv4 address found for %s", host)
}

// IP returns the dotted-quad string form of the address.
func (a Address) IP() string {
	return net.IPv4(a.ip[0], a.ip[1], a.ip[2], a.ip[3]).String()
}

// Port returns the port number.
func (a Address) Port() uint16 { return a.port }

// String returns "ip:port".
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.IP(), a.port)
}

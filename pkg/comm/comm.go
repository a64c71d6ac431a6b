// Package comm holds the socket plumbing: hostname resolution, local
// address detection, the raw UDP sender and the inbound listener.
package comm

import (
	"net"
)

// Resolver resolves hostnames to IPv4 addresses using the system
// resolver. Plain addresses pass through without a lookup.
type Resolver struct{}

// HostnameToIP resolves a hostname to its first IPv4 address.
func (Resolver) HostnameToIP(host string) (net.IP, bool) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, true
		}
		return nil, false
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil, false
	}
	for _, addr := range addrs {
		if v4 := addr.To4(); v4 != nil {
			return v4, true
		}
	}
	return nil, false
}

// LocalAddrs answers "is this one of our addresses" questions for the
// from-us packet flag. The address set is captured at startup.
type LocalAddrs struct {
	addrs []net.IP
}

// NewLocalAddrs enumerates the host's interface addresses.
func NewLocalAddrs() *LocalAddrs {
	la := &LocalAddrs{}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return la
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if v4 := ipnet.IP.To4(); v4 != nil {
				la.addrs = append(la.addrs, v4)
			}
		}
	}
	return la
}

// IsOurIPAddr reports whether the address belongs to this host.
func (la *LocalAddrs) IsOurIPAddr(ip net.IP) bool {
	for _, own := range la.addrs {
		if own.Equal(ip) {
			return true
		}
	}
	return false
}

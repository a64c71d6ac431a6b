package comm

import (
	"net"
	"testing"
)

func TestResolverLiteralAddresses(t *testing.T) {
	r := Resolver{}

	ip, ok := r.HostnameToIP("10.0.0.1")
	if !ok || !ip.Equal(net.ParseIP("10.0.0.1")) {
		t.Errorf("Literal IPv4 should pass through, got %v %v", ip, ok)
	}
	if len(ip) != net.IPv4len {
		t.Errorf("Expected a 4-byte address, got %d bytes", len(ip))
	}

	if _, ok := r.HostnameToIP("fe80::1"); ok {
		t.Error("IPv6 literals have no IPv4 form")
	}
}

func TestLocalAddrsUnknown(t *testing.T) {
	la := NewLocalAddrs()
	// TEST-NET-3 is never assigned to a real interface.
	if la.IsOurIPAddr(net.ParseIP("203.0.113.77").To4()) {
		t.Error("TEST-NET address should not be ours")
	}
	if la.IsOurIPAddr(nil) {
		t.Error("nil address should not be ours")
	}
}

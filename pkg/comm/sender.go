package comm

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/jafo2128/dmrshark/pkg/ipsc"
)

// RawSender transmits IPSC datagrams over an IPPROTO_RAW socket. The
// raw socket lets us claim UDP source port 62006 even when the master
// radio software already owns it on this host. Needs CAP_NET_RAW.
type RawSender struct {
	fd int
}

// NewRawSender opens the raw socket.
func NewRawSender() (*RawSender, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("can't create raw socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("can't set raw socket non-blocking: %w", err)
	}
	return &RawSender{fd: fd}, nil
}

// SendIPSCPacket wraps a raw IPSC datagram in IP and UDP headers and
// sends it. Failures are returned for the caller's retry logic; the
// datagram stays queued.
func (s *RawSender) SendIPSCPacket(dst net.IP, packet []byte) error {
	v4 := dst.To4()
	if v4 == nil {
		return fmt.Errorf("not an IPv4 destination: %s", dst)
	}

	sa := &unix.SockaddrInet4{Port: ipsc.UDPPort}
	copy(sa.Addr[:], v4)

	wire := ipsc.WrapRawUDP(v4, packet)
	if err := unix.Sendto(s.fd, wire, unix.MSG_DONTWAIT, sa); err != nil {
		return fmt.Errorf("can't send udp packet to %s: %w", dst, err)
	}
	return nil
}

// Close releases the socket.
func (s *RawSender) Close() error {
	return unix.Close(s.fd)
}

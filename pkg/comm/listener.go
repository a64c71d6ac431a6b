package comm

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/jafo2128/dmrshark/pkg/logger"
)

// InboundPacket is one received UDP datagram with the header facts the
// decoder needs.
type InboundPacket struct {
	Data    []byte
	SrcAddr net.IP
	SrcPort int
	DstPort int
}

// Listener receives IPSC traffic on the signalling port and hands the
// datagrams to the tick loop over a channel. The socket is opened with
// SO_REUSEADDR and SO_REUSEPORT so the monitor can sit next to the
// master software.
type Listener struct {
	conn    *net.UDPConn
	port    int
	packets chan InboundPacket
	log     *logger.Logger
}

// NewListener binds the listening socket.
func NewListener(host string, port int, log *logger.Logger) (*Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if serr != nil {
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("can't bind udp listener: %w", err)
	}

	return &Listener{
		conn:    pc.(*net.UDPConn),
		port:    port,
		packets: make(chan InboundPacket, 64),
		log:     log,
	}, nil
}

// Packets returns the inbound channel. It is closed when the receive
// loop ends.
func (l *Listener) Packets() <-chan InboundPacket {
	return l.packets
}

// Run reads datagrams until the context is cancelled or the socket is
// closed.
func (l *Listener) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	defer close(l.packets)
	buf := make([]byte, 2048)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				l.log.Error("udp receive failed", logger.Error(err))
			}
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		l.packets <- InboundPacket{
			Data:    data,
			SrcAddr: addr.IP.To4(),
			SrcPort: addr.Port,
			DstPort: l.port,
		}
	}
}

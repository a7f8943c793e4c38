package netif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

const defaultPingTimeout = 2 * time.Second

var pingSeq atomic.Uint32

// Ping sends one ICMP echo request to host and waits for the matching reply
// until ctx expires. A non-empty iface binds the socket to that interface
// with SO_BINDTODEVICE; a privilege failure while binding is reported as
// ErrBindPermission so the caller can retry unbound.
func (s *System) Ping(ctx context.Context, host, iface string) error {
	dst, err := resolveIPv4(ctx, host)
	if err != nil {
		return err
	}

	conn, datagram, err := listenICMP(ctx, iface)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultPingTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	id := os.Getpid() & 0xffff
	seq := int(pingSeq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("wifiwatchdog")},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("encode echo: %w", err)
	}

	var addr net.Addr = &net.IPAddr{IP: dst}
	if datagram {
		addr = &net.UDPAddr{IP: dst}
	}
	if _, err := conn.WriteTo(payload, addr); err != nil {
		return fmt.Errorf("send echo to %s: %w", host, err)
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("no reply from %s: %w", host, err)
		}
		reply, err := icmp.ParseMessage(ipv4.ICMPTypeEcho.Protocol(), buf[:n])
		if err != nil || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// Datagram sockets get their echo ID rewritten by the kernel.
		if !datagram && echo.ID != id {
			continue
		}
		return nil
	}
}

// listenICMP prefers an unprivileged ICMP datagram socket and falls back to
// a raw socket when the host does not allow those for this group.
func listenICMP(ctx context.Context, iface string) (net.PacketConn, bool, error) {
	conn, err := listenDatagram(iface)
	if err == nil {
		return conn, true, nil
	}
	if errors.Is(err, ErrBindPermission) {
		return nil, false, err
	}
	raw, rawErr := listenRaw(ctx, iface)
	if rawErr != nil {
		if errors.Is(rawErr, ErrBindPermission) {
			return nil, false, rawErr
		}
		return nil, false, fmt.Errorf("icmp socket: %v; raw socket: %w", err, rawErr)
	}
	return raw, false, nil
}

func listenDatagram(iface string) (net.PacketConn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, fmt.Errorf("open icmp socket: %w", err)
	}
	if iface != "" {
		if err := bindToDevice(fd, iface); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind icmp socket: %w", err)
	}
	f := os.NewFile(uintptr(fd), "icmp")
	defer f.Close()
	conn, err := net.FilePacketConn(f)
	if err != nil {
		return nil, fmt.Errorf("wrap icmp socket: %w", err)
	}
	return conn, nil
}

func listenRaw(ctx context.Context, iface string) (net.PacketConn, error) {
	var bindErr error
	lc := net.ListenConfig{}
	if iface != "" {
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			if err := c.Control(func(fd uintptr) {
				bindErr = bindToDevice(int(fd), iface)
			}); err != nil {
				return fmt.Errorf("control: %w", err)
			}
			return bindErr
		}
	}
	conn, err := lc.ListenPacket(ctx, "ip4:icmp", "0.0.0.0")
	if err != nil {
		if bindErr != nil {
			return nil, bindErr
		}
		return nil, fmt.Errorf("open raw icmp socket: %w", err)
	}
	return conn, nil
}

func bindToDevice(fd int, iface string) error {
	err := unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		return fmt.Errorf("SO_BINDTODEVICE %s: %w", iface, ErrBindPermission)
	}
	return fmt.Errorf("SO_BINDTODEVICE %s: %w", iface, err)
}

func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%s is not an IPv4 address", host)
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve %s: no IPv4 address", host)
	}
	return ips[0], nil
}

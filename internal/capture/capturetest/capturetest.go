// Package capturetest provides a synthetic socket and execution context
// for driving capture hooks outside the kernel.
package capturetest

import (
	"encoding/binary"
	"net"

	"go.uber.org/atomic"

	"github.com/your-org/connmon/internal/capture"
	"github.com/your-org/connmon/internal/model"
)

// SocketAddr is where NewSocket places its struct sock.
const SocketAddr = 0xffff888000100000

const socketSize = 64

// Socket is a synthetic struct sock with sock_common laid out the way the
// kernel stores it: addresses and the peer port in network order, the
// local port in host order.
type Socket struct {
	Addr   uint64
	data   [socketSize]byte
	faults map[uint64]bool
}

func NewSocket(saddr, daddr string, sport, dport uint16) *Socket {
	s := &Socket{Addr: SocketAddr, faults: map[uint64]bool{}}
	copy(s.data[capture.OffsetDaddr:], net.ParseIP(daddr).To4())
	copy(s.data[capture.OffsetRcvSaddr:], net.ParseIP(saddr).To4())
	binary.BigEndian.PutUint16(s.data[capture.OffsetDport:], dport)
	binary.NativeEndian.PutUint16(s.data[capture.OffsetNum:], sport)
	return s
}

// Bytes exposes the raw socket memory.
func (s *Socket) Bytes() []byte {
	return s.data[:]
}

// Fault makes reads starting at addr fail.
func (s *Socket) Fault(addr uint64) {
	s.faults[addr] = true
}

func (s *Socket) span(addr uint64, n uint64) ([]byte, error) {
	if s.faults[addr] || addr < s.Addr || addr+n > s.Addr+socketSize {
		return nil, capture.ErrFault
	}
	off := addr - s.Addr
	return s.data[off : off+n], nil
}

func (s *Socket) Read2(addr uint64) ([2]byte, error) {
	var b [2]byte
	src, err := s.span(addr, 2)
	if err != nil {
		return b, err
	}
	copy(b[:], src)
	return b, nil
}

func (s *Socket) Read4(addr uint64) ([4]byte, error) {
	var b [4]byte
	src, err := s.span(addr, 4)
	if err != nil {
		return b, err
	}
	copy(b[:], src)
	return b, nil
}

// Context is a fixed task whose clock advances by one nanosecond per read.
type Context struct {
	Pid, Tid uint32
	Name     [model.CommLen]byte
	ktime    atomic.Uint64
}

func NewContext(pid, tid uint32, comm string) *Context {
	c := &Context{Pid: pid, Tid: tid}
	copy(c.Name[:], comm)
	c.ktime.Store(1000)
	return c
}

func (c *Context) PidTgid() uint64 {
	return uint64(c.Pid)<<32 | uint64(c.Tid)
}

func (c *Context) Comm() [model.CommLen]byte {
	return c.Name
}

func (c *Context) KtimeNs() uint64 {
	return c.ktime.Inc()
}

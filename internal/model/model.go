package model

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Connection is a decoded record, ready for the sink.
type Connection struct {
	Timestamp time.Time `json:"timestamp"`
	KtimeNs   uint64    `json:"ktime_ns"`
	Pid       uint32    `json:"pid"`

	Comm    string `json:"comm"`
	Cmdline string `json:"cmdline"`

	SrcIP     string `json:"src_ip"`
	SrcPort   uint16 `json:"src_port"`
	DstIP     string `json:"dst_ip"`
	DstPort   uint16 `json:"dst_port"`
	Protocol  string `json:"protocol"`
	IsPrivate bool   `json:"is_private"`

	// Filled from /proc by the collector when enrichment is on.
	ExePath   string `json:"exe_path"`
	ParentPid int32  `json:"parent_pid"`
	Username  string `json:"username"`
	Status    string `json:"status"`
}

// Sample is one read from an event channel: a raw record, or the number of
// records the producers had to drop since the previous read.
type Sample struct {
	CPU  int
	Raw  []byte
	Lost uint64
}

// Connection converts r using clock for the wall-clock timestamp.
func (r *Record) Connection(clock Clock) Connection {
	return Connection{
		Timestamp: clock.Time(r.Timestamp),
		KtimeNs:   r.Timestamp,
		Pid:       r.Pid,
		Comm:      unix.ByteSliceToString(r.Comm[:]),
		Cmdline:   unix.ByteSliceToString(r.Cmdline[:]),
		SrcIP:     Ntoa(r.Saddr).String(),
		SrcPort:   r.Sport,
		DstIP:     Ntoa(r.Daddr).String(),
		DstPort:   r.Dport,
		Protocol:  ProtoName(r.Protocol),
		IsPrivate: IsPrivate(r.Daddr),
	}
}

// Ntoa converts a host-order IPv4 address.
func Ntoa(ip uint32) net.IP {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip)).To4()
}

// Aton is the inverse of Ntoa. It returns 0 for anything but IPv4.
func Aton(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}

// IsPrivate reports whether a host-order IPv4 address is in an RFC 1918
// range or loopback.
func IsPrivate(ip uint32) bool {
	addr := Ntoa(ip)
	return addr.IsPrivate() || addr.IsLoopback()
}

func ProtoName(proto uint8) string {
	if proto == ProtoTCP {
		return "tcp"
	}
	return fmt.Sprintf("proto-%d", proto)
}

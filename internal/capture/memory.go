// Package capture holds the connection capture logic that runs inside the
// kernel hooks: the tcp_connect probe, the inet_sock_set_state tracepoint,
// the socket field extractors and the output channel they submit to.
//
// The hooks never touch foreign memory directly. Every read of a socket
// goes through Memory, which copies bytes out or fails; a failed read leaves
// the field zero. Nothing on the producer side blocks or allocates.
package capture

import "errors"

// ErrFault is returned by Memory implementations for unreadable addresses.
var ErrFault = errors.New("bad address")

// Memory is a bounds-checked copy primitive over foreign memory, the
// equivalent of bpf_probe_read_kernel. Bytes come back exactly as stored.
type Memory interface {
	Read2(addr uint64) ([2]byte, error)
	Read4(addr uint64) ([4]byte, error)
}

// Offsets into struct sock_common (include/net/sock.h). struct sock starts
// with __sk_common, so they are offsets from the socket pointer as well.
const (
	OffsetDaddr    = 0  // skc_daddr, network order
	OffsetRcvSaddr = 4  // skc_rcv_saddr, network order
	OffsetDport    = 12 // skc_dport, network order
	OffsetNum      = 14 // skc_num, host order
)

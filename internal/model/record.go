package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"syscall"
)

const (
	// CommLen is TASK_COMM_LEN in linux/sched.h.
	CommLen = 16
	// CmdlineLen bounds the command line copied into a record.
	CmdlineLen = 256
	// RecordSize is sizeof(struct connection_event), trailing padding included.
	RecordSize = 304

	// ProtoTCP is the only protocol either hook emits.
	ProtoTCP = syscall.IPPROTO_TCP
)

// ErrShortRecord is returned when a sample is smaller than a record.
var ErrShortRecord = errors.New("short connection record")

// Record is one connection event as it crosses the kernel/userspace
// boundary. The layout must match struct connection_event in
// internal/bpf/connmon.h; multi-byte fields are in the producer's native
// byte order and all values are already host order.
type Record struct {
	Timestamp uint64
	Pid       uint32
	Comm      [CommLen]byte
	Cmdline   [CmdlineLen]byte
	Saddr     uint32
	Daddr     uint32
	Sport     uint16
	Dport     uint16
	Protocol  uint8
	_         [7]byte
}

// Field offsets inside the encoded record.
const (
	offTimestamp = 0
	offPid       = 8
	offComm      = 12
	offCmdline   = offComm + CommLen
	offSaddr     = offCmdline + CmdlineLen
	offDaddr     = offSaddr + 4
	offSport     = offDaddr + 4
	offDport     = offSport + 2
	offProtocol  = offDport + 2
	offPad       = offProtocol + 1
)

// SetComm stores the task name and duplicates it into the command line,
// which is all the kernel program can capture cheaply.
func (r *Record) SetComm(comm [CommLen]byte) {
	r.Comm = comm
	copy(r.Cmdline[:CommLen], comm[:])
}

// MarshalTo encodes r into b. It does not allocate.
func (r *Record) MarshalTo(b *[RecordSize]byte) {
	ne := binary.NativeEndian
	ne.PutUint64(b[offTimestamp:], r.Timestamp)
	ne.PutUint32(b[offPid:], r.Pid)
	copy(b[offComm:offCmdline], r.Comm[:])
	copy(b[offCmdline:offSaddr], r.Cmdline[:])
	ne.PutUint32(b[offSaddr:], r.Saddr)
	ne.PutUint32(b[offDaddr:], r.Daddr)
	ne.PutUint16(b[offSport:], r.Sport)
	ne.PutUint16(b[offDport:], r.Dport)
	b[offProtocol] = r.Protocol
	for i := offPad; i < RecordSize; i++ {
		b[i] = 0
	}
}

// Decode parses a raw sample. Perf samples may carry alignment bytes after
// the record, so anything past RecordSize is ignored.
func Decode(raw []byte) (Record, error) {
	var r Record
	if len(raw) < RecordSize {
		return r, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRecord, len(raw), RecordSize)
	}
	if err := binary.Read(bytes.NewReader(raw[:RecordSize]), binary.NativeEndian, &r); err != nil {
		return r, fmt.Errorf("decode connection record: %w", err)
	}
	return r, nil
}

// Tuple identifies the connection a record belongs to.
type Tuple struct {
	Saddr, Daddr uint32
	Sport, Dport uint16
	Protocol     uint8
}

func (r *Record) Tuple() Tuple {
	return Tuple{
		Saddr:    r.Saddr,
		Daddr:    r.Daddr,
		Sport:    r.Sport,
		Dport:    r.Dport,
		Protocol: r.Protocol,
	}
}

package capture

import (
	"encoding/binary"

	"github.com/your-org/connmon/internal/model"
)

// Kernel TCP states (include/net/tcp_states.h).
const (
	TCPEstablished = iota + 1
	TCPSynSent
	TCPSynRecv
	TCPFinWait1
	TCPFinWait2
	TCPTimeWait
	TCPClose
	TCPCloseWait
	TCPLastAck
	TCPListen
	TCPClosing
	TCPNewSynRecv
)

// SetStateArgs is the typed payload of sock:inet_sock_set_state. Ports
// arrive in host order; the IPv4 addresses are the raw network-order
// bytes of the kernel's saddr[4] and daddr[4].
type SetStateArgs struct {
	SkAddr   uint64
	OldState int32
	NewState int32
	Sport    uint16
	Dport    uint16
	Family   uint16
	Protocol uint16
	Saddr    [4]byte
	Daddr    [4]byte
}

// InetSockSetState runs for every socket state change and emits a record
// only when a TCP socket enters ESTABLISHED. It always returns 0.
func (h *Hooks) InetSockSetState(args *SetStateArgs) int {
	if args.Protocol != model.ProtoTCP {
		return 0
	}
	if args.NewState != TCPEstablished {
		return 0
	}

	pid, _ := splitPidTgid(h.ctx.PidTgid())

	var rec model.Record
	rec.Timestamp = h.ctx.KtimeNs()
	rec.Pid = pid
	rec.Saddr = binary.BigEndian.Uint32(args.Saddr[:])
	rec.Daddr = binary.BigEndian.Uint32(args.Daddr[:])
	rec.Sport = args.Sport
	rec.Dport = args.Dport
	rec.Protocol = uint8(args.Protocol)
	rec.SetComm(h.ctx.Comm())

	h.out.Submit(rec)
	return 0
}

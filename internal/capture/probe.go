package capture

import "github.com/your-org/connmon/internal/model"

// TCPConnect runs on entry to tcp_connect(struct sock *sk). sk is the
// value of the first argument register. It always returns 0 so the kernel
// call proceeds.
func (h *Hooks) TCPConnect(sk uint64) int {
	pid, _ := splitPidTgid(h.ctx.PidTgid())
	if sk == 0 {
		return 0
	}

	var rec model.Record
	rec.Timestamp = h.ctx.KtimeNs()
	rec.Pid = pid
	rec.Saddr = SourceAddr(h.mem, sk)
	rec.Daddr = DestAddr(h.mem, sk)
	rec.Sport = Port(h.mem, sk, false)
	rec.Dport = Port(h.mem, sk, true)
	rec.Protocol = model.ProtoTCP
	// TODO: read argv from task->mm->arg_start instead of reusing comm.
	rec.SetComm(h.ctx.Comm())

	h.out.Submit(rec)
	return 0
}

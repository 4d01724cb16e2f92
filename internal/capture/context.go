package capture

import "github.com/your-org/connmon/internal/model"

// Context is the execution context a hook runs in, standing in for
// bpf_get_current_pid_tgid, bpf_get_current_comm and bpf_ktime_get_ns.
type Context interface {
	PidTgid() uint64
	Comm() [model.CommLen]byte
	KtimeNs() uint64
}

// Output is the channel records are submitted to. Submit must not block;
// it reports false when the record had to be dropped.
type Output interface {
	Submit(rec model.Record) bool
}

func splitPidTgid(pidTgid uint64) (pid, tid uint32) {
	return uint32(pidTgid >> 32), uint32(pidTgid)
}

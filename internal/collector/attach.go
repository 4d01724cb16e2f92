package collector

import (
	"fmt"
	"io"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"github.com/your-org/connmon/internal/config"
	"github.com/your-org/connmon/internal/logger"
	"github.com/your-org/connmon/internal/metrics"
)

const (
	hookKprobe     = "kprobe"
	hookTracepoint = "tracepoint"

	progTCPConnect = "trace_tcp_connect"
	progSetState   = "trace_inet_sock_set_state"
)

type hook struct {
	name    string
	prog    string
	enabled bool
}

// attachFuncs is replaced in tests.
var attachFuncs = map[string]func(*ebpf.Program) (io.Closer, error){
	hookKprobe: func(prog *ebpf.Program) (io.Closer, error) {
		return link.Kprobe("tcp_connect", prog, nil)
	},
	hookTracepoint: func(prog *ebpf.Program) (io.Closer, error) {
		return link.Tracepoint("sock", "inet_sock_set_state", prog, nil)
	},
}

// attach links every enabled hook it can. A hook that fails is logged and
// skipped; ErrNoHooks is returned when none is attached.
func attach(progs map[string]*ebpf.Program, cfg config.Hooks) ([]io.Closer, error) {
	hooks := []hook{
		{name: hookKprobe, prog: progTCPConnect, enabled: cfg.Kprobe},
		{name: hookTracepoint, prog: progSetState, enabled: cfg.Tracepoint},
	}

	var links []io.Closer
	for _, h := range hooks {
		metrics.SetHookAttached(h.name, false)
		if !h.enabled {
			continue
		}
		prog, ok := progs[h.prog]
		if !ok {
			logger.Log.Warnf("BPF program '%s' not found, %s disabled", h.prog, h.name)
			continue
		}
		l, err := attachFuncs[h.name](prog)
		if err != nil {
			logger.Log.Warnf("attach %s: %v", h.name, err)
			continue
		}
		metrics.SetHookAttached(h.name, true)
		logger.Log.Infof("attached %s [%s]", h.name, h.prog)
		links = append(links, l)
	}

	if len(links) == 0 {
		return nil, fmt.Errorf("attach hooks: %w", ErrNoHooks)
	}
	return links, nil
}

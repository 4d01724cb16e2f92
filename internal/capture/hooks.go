package capture

// Hooks bundles what every hook invocation needs. The same Hooks value is
// shared by all CPUs; it holds no mutable state of its own.
type Hooks struct {
	ctx Context
	mem Memory
	out Output
}

func NewHooks(ctx Context, mem Memory, out Output) *Hooks {
	return &Hooks{ctx: ctx, mem: mem, out: out}
}

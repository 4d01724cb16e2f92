package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sys/unix"

	"github.com/your-org/connmon/internal/config"
	"github.com/your-org/connmon/internal/dedup"
	"github.com/your-org/connmon/internal/enrich"
	"github.com/your-org/connmon/internal/logger"
	"github.com/your-org/connmon/internal/metrics"
	"github.com/your-org/connmon/internal/model"
)

const mapConnections = "connections"

var (
	ErrNotRoot = errors.New("connmon must run as root to load BPF programs")
	ErrNoHooks = errors.New("no kernel hook could be attached")
)

// Sink receives every connection that survives deduplication.
type Sink interface {
	Write(conn model.Connection) error
}

type Collector struct {
	cfg    *config.Config
	clock  model.Clock
	filter *dedup.Filter
}

func New(cfg *config.Config, clock model.Clock) *Collector {
	return &Collector{
		cfg:    cfg,
		clock:  clock,
		filter: dedup.New(cfg.Dedup),
	}
}

// Run loads the BPF object, attaches the enabled hooks and streams
// connections into sink until ctx is cancelled.
func (c *Collector) Run(ctx context.Context, sink Sink) error {
	if unix.Geteuid() != 0 {
		return ErrNotRoot
	}
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("remove memlock rlimit: %w", err)
	}

	bpfPath, err := resolvePath(c.cfg.BPFObject)
	if err != nil {
		return err
	}

	coll, err := c.load(ctx, bpfPath)
	if err != nil {
		return err
	}
	defer coll.Close()

	links, err := attach(coll.Programs, c.cfg.Hooks)
	if err != nil {
		return err
	}
	defer func() {
		for _, l := range links {
			l.Close()
		}
	}()

	eventsMap, ok := coll.Maps[mapConnections]
	if !ok {
		return fmt.Errorf("BPF map '%s' not found", mapConnections)
	}

	reader, err := perf.NewReader(eventsMap, c.cfg.PerfBufferPages*os.Getpagesize())
	if err != nil {
		return fmt.Errorf("create perf reader: %w", err)
	}

	logger.Log.Infof("connmon started with BPF object %s", bpfPath)
	return c.Consume(ctx, &perfSource{rd: reader}, sink)
}

// Consume reads samples from src until it is closed, either by its owner
// or because ctx was cancelled. src is always closed on return.
func (c *Collector) Consume(ctx context.Context, src Source, sink Sink) error {
	defer src.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			src.Close()
		case <-done:
		}
	}()

	for {
		sample, err := src.Read()
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Log.Errorf("read event channel: %v", err)
			continue
		}
		c.handle(sample, sink)
	}
}

func (c *Collector) handle(sample model.Sample, sink Sink) {
	if sample.Lost > 0 {
		metrics.AddLost(sample.Lost)
		logger.Log.Warnf("lost %d connection events on cpu %d", sample.Lost, sample.CPU)
	}
	if sample.Raw == nil {
		return
	}

	rec, err := model.Decode(sample.Raw)
	if err != nil {
		metrics.IncDecodeError()
		logger.Log.Errorf("decode connection event: %v", err)
		return
	}
	metrics.IncEvent()

	if c.filter.Duplicate(&rec) {
		metrics.IncDuplicate()
		return
	}

	conn := rec.Connection(c.clock)
	if c.cfg.Enrich {
		enrich.Process(&conn)
	}

	if err := sink.Write(conn); err != nil {
		logger.Log.Errorf("write connection: %v", err)
	}
}

func (c *Collector) load(ctx context.Context, path string) (*ebpf.Collection, error) {
	var err error
	for attempt := 0; attempt <= c.cfg.LoadRetries; attempt++ {
		if attempt > 0 {
			logger.Log.Warnf("load BPF object failed, retrying in %s (%d/%d): %v",
				c.cfg.RetryDelay, attempt, c.cfg.LoadRetries, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		var coll *ebpf.Collection
		coll, err = loadCollection(path)
		if err == nil {
			return coll, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	return nil, err
}

func loadCollection(path string) (*ebpf.Collection, error) {
	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, fmt.Errorf("load BPF spec from %s: %w", path, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("create BPF collection: %w", err)
	}
	return coll, nil
}

// resolvePath returns path unchanged when it is absolute or exists relative
// to the working directory, and otherwise resolves it next to the binary.
func resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), path), nil
}

// WithSignalCancel returns a context cancelled on SIGINT or SIGTERM.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

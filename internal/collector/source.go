package collector

import (
	"github.com/cilium/ebpf/perf"

	"github.com/your-org/connmon/internal/model"
)

// Source delivers raw connection samples. Read returns an error wrapping
// os.ErrClosed once the source has been closed. capture.Channel satisfies
// it directly; the kernel perf buffer through perfSource.
type Source interface {
	Read() (model.Sample, error)
	Close() error
}

type perfSource struct {
	rd *perf.Reader
}

func (p *perfSource) Read() (model.Sample, error) {
	rec, err := p.rd.Read()
	if err != nil {
		return model.Sample{}, err
	}
	return model.Sample{
		CPU:  rec.CPU,
		Raw:  rec.RawSample,
		Lost: rec.LostSamples,
	}, nil
}

func (p *perfSource) Close() error {
	return p.rd.Close()
}

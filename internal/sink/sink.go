package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/your-org/connmon/internal/logger"
	"github.com/your-org/connmon/internal/model"
)

// Stdout is the output path that selects standard output.
const Stdout = "-"

var errClosed = errors.New("connection writer closed")

// Writer writes decoded connections as JSON lines.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	closer  io.Closer
	encoder *json.Encoder
}

// Open appends to the file at path, or writes to stdout for "-".
func Open(path string) (*Writer, error) {
	if path == Stdout {
		return New(os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	w := New(f)
	w.closer = f
	return w, nil
}

// New writes to out. Closing the Writer does not close out.
func New(out io.Writer) *Writer {
	return &Writer{
		out:     out,
		encoder: json.NewEncoder(out),
	}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return nil
	}
	w.out = nil
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func (w *Writer) Write(c model.Connection) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		return errClosed
	}

	if err := w.encoder.Encode(c); err != nil {
		return fmt.Errorf("encode connection: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"pid":  c.Pid,
		"comm": c.Comm,
		"src":  fmt.Sprintf("%s:%d", c.SrcIP, c.SrcPort),
		"dst":  fmt.Sprintf("%s:%d", c.DstIP, c.DstPort),
	}).Debug("connection")

	return nil
}

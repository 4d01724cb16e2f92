package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/connmon/internal/model"
)

type readResult struct {
	rec model.Record
	err error
}

func TestReadDeliversSlotPublishedAfterClose(t *testing.T) {
	ch, err := NewChannel(4)
	require.NoError(t, err)

	// claim a slot the way Submit does, but hold off publishing it
	pos := ch.head.Load()
	require.True(t, ch.head.CompareAndSwap(pos, pos+1))
	require.NoError(t, ch.Close())

	got := make(chan readResult, 1)
	go func() {
		sample, err := ch.Read()
		if err != nil {
			got <- readResult{err: err}
			return
		}
		rec, err := model.Decode(sample.Raw)
		got <- readResult{rec: rec, err: err}
	}()

	time.Sleep(20 * time.Millisecond)
	s := &ch.slots[pos%ch.size]
	rec := model.Record{Timestamp: 77, Pid: 42, Protocol: model.ProtoTCP}
	rec.MarshalTo(&s.data)
	s.seq.Store(pos + 1)

	select {
	case r := <-got:
		require.NoError(t, r.err)
		assert.Equal(t, uint32(42), r.rec.Pid)
		assert.Equal(t, uint64(77), r.rec.Timestamp)
	case <-time.After(5 * time.Second):
		t.Fatal("Read did not return the late record")
	}

	_, err = ch.Read()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, ch.Lost())
	assert.Zero(t, ch.Len())
}

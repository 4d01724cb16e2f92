package capture_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/connmon/internal/capture"
	"github.com/your-org/connmon/internal/capture/capturetest"
	"github.com/your-org/connmon/internal/model"
)

const sockBase = capturetest.SocketAddr

func newTestChannel(t *testing.T, capacity int) *capture.Channel {
	t.Helper()
	ch, err := capture.NewChannel(capacity)
	require.NoError(t, err)
	return ch
}

func drain(t *testing.T, ch *capture.Channel) []model.Record {
	t.Helper()
	var (
		buf  [model.RecordSize]byte
		recs []model.Record
	)
	for ch.Poll(&buf) {
		rec, err := model.Decode(buf[:])
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return recs
}

func TestExtractorsConvertByteOrder(t *testing.T) {
	mem := capturetest.NewSocket("10.1.2.3", "192.168.7.9", 51000, 8080)

	assert.Equal(t, uint32(0x0a010203), capture.SourceAddr(mem, sockBase))
	assert.Equal(t, uint32(0xc0a80709), capture.DestAddr(mem, sockBase))
	assert.Equal(t, uint16(51000), capture.Port(mem, sockBase, false))
	assert.Equal(t, uint16(8080), capture.Port(mem, sockBase, true))
}

func TestDestPortNetworkOrder(t *testing.T) {
	mem := capturetest.NewSocket("10.0.0.1", "10.0.0.2", 0, 0)
	mem.Bytes()[capture.OffsetDport] = 0x1F
	mem.Bytes()[capture.OffsetDport+1] = 0x90

	assert.Equal(t, uint16(8080), capture.Port(mem, sockBase, true))
}

func TestExtractorsZeroOnFault(t *testing.T) {
	mem := capturetest.NewSocket("10.1.2.3", "192.168.7.9", 51000, 8080)

	// outside the synthetic range
	assert.Zero(t, capture.SourceAddr(mem, 0x1000))
	assert.Zero(t, capture.DestAddr(mem, 0x1000))
	assert.Zero(t, capture.Port(mem, 0x1000, true))
	assert.Zero(t, capture.Port(mem, 0x1000, false))
}

func TestTCPConnect(t *testing.T) {
	mem := capturetest.NewSocket("10.0.0.5", "93.184.216.34", 43512, 443)
	ctx := capturetest.NewContext(1234, 1240, "curl")
	ch := newTestChannel(t, 4)

	ret := capture.NewHooks(ctx, mem, ch).TCPConnect(sockBase)
	assert.Equal(t, 0, ret)

	recs := drain(t, ch)
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, uint64(1001), rec.Timestamp)
	assert.Equal(t, uint32(1234), rec.Pid)
	assert.Equal(t, model.Aton(net.ParseIP("10.0.0.5")), rec.Saddr)
	assert.Equal(t, model.Aton(net.ParseIP("93.184.216.34")), rec.Daddr)
	assert.Equal(t, uint16(43512), rec.Sport)
	assert.Equal(t, uint16(443), rec.Dport)
	assert.Equal(t, uint8(model.ProtoTCP), rec.Protocol)
	assert.Equal(t, ctx.Name, rec.Comm)
	assert.Equal(t, ctx.Name[:], rec.Cmdline[:model.CommLen])
}

func TestTCPConnectNullSocket(t *testing.T) {
	mem := capturetest.NewSocket("10.0.0.5", "10.0.0.6", 1, 2)
	ch := newTestChannel(t, 4)

	ret := capture.NewHooks(capturetest.NewContext(1, 1, "x"), mem, ch).TCPConnect(0)

	assert.Equal(t, 0, ret)
	assert.Zero(t, ch.Len())
	assert.Empty(t, drain(t, ch))
}

func TestTCPConnectPartialRead(t *testing.T) {
	mem := capturetest.NewSocket("10.0.0.5", "10.0.0.6", 5000, 22)
	mem.Fault(sockBase + capture.OffsetDaddr)
	ch := newTestChannel(t, 4)

	capture.NewHooks(capturetest.NewContext(7, 7, "ssh"), mem, ch).TCPConnect(sockBase)

	recs := drain(t, ch)
	require.Len(t, recs, 1)
	assert.Zero(t, recs[0].Daddr)
	assert.Equal(t, model.Aton(net.ParseIP("10.0.0.5")), recs[0].Saddr)
	assert.Equal(t, uint16(5000), recs[0].Sport)
	assert.Equal(t, uint16(22), recs[0].Dport)
}

func establishedArgs(saddr, daddr string, sport, dport uint16) *capture.SetStateArgs {
	args := &capture.SetStateArgs{
		SkAddr:   sockBase,
		OldState: capture.TCPSynSent,
		NewState: capture.TCPEstablished,
		Sport:    sport,
		Dport:    dport,
		Family:   2, // AF_INET
		Protocol: model.ProtoTCP,
	}
	copy(args.Saddr[:], net.ParseIP(saddr).To4())
	copy(args.Daddr[:], net.ParseIP(daddr).To4())
	return args
}

func TestInetSockSetStateEstablished(t *testing.T) {
	ch := newTestChannel(t, 4)
	args := establishedArgs("172.16.0.10", "140.82.112.3", 60000, 22)

	ret := capture.NewHooks(capturetest.NewContext(99, 100, "git"), nil, ch).InetSockSetState(args)
	assert.Equal(t, 0, ret)

	recs := drain(t, ch)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, uint32(99), rec.Pid)
	assert.Equal(t, uint32(0xac10000a), rec.Saddr)
	assert.Equal(t, uint32(0x8c527003), rec.Daddr)
	assert.Equal(t, uint16(60000), rec.Sport)
	assert.Equal(t, uint16(22), rec.Dport)
	assert.Equal(t, uint8(model.ProtoTCP), rec.Protocol)
	assert.Equal(t, "git", string(rec.Comm[:3]))
}

func TestInetSockSetStateIgnoresOtherProtocols(t *testing.T) {
	for _, proto := range []uint16{0, 1, 17, 132, 256 + model.ProtoTCP} {
		ch := newTestChannel(t, 4)
		args := establishedArgs("10.0.0.1", "10.0.0.2", 1, 2)
		args.Protocol = proto

		ret := capture.NewHooks(capturetest.NewContext(1, 1, "x"), nil, ch).InetSockSetState(args)

		assert.Equal(t, 0, ret)
		assert.Zero(t, ch.Len(), "protocol %d", proto)
	}
}

func TestInetSockSetStateIgnoresOtherStates(t *testing.T) {
	for state := int32(capture.TCPSynSent); state <= capture.TCPNewSynRecv; state++ {
		ch := newTestChannel(t, 4)
		args := establishedArgs("10.0.0.1", "10.0.0.2", 1, 2)
		args.OldState = capture.TCPEstablished
		args.NewState = state

		ret := capture.NewHooks(capturetest.NewContext(1, 1, "x"), nil, ch).InetSockSetState(args)

		assert.Equal(t, 0, ret)
		assert.Zero(t, ch.Len(), "state %d", state)
	}
}

func TestInetSockSetStateAddressByteOrder(t *testing.T) {
	ch := newTestChannel(t, 4)
	args := establishedArgs("0.0.0.0", "0.0.0.0", 1, 2)
	args.Saddr = [4]byte{0xc0, 0xa8, 0x01, 0x02}
	args.Daddr = [4]byte{0x08, 0x08, 0x04, 0x04}

	capture.NewHooks(capturetest.NewContext(1, 1, "x"), nil, ch).InetSockSetState(args)

	recs := drain(t, ch)
	require.Len(t, recs, 1)
	assert.Equal(t, uint32(0xc0a80102), recs[0].Saddr)
	assert.Equal(t, uint32(0x08080404), recs[0].Daddr)
	assert.Equal(t, "192.168.1.2", model.Ntoa(recs[0].Saddr).String())
	assert.Equal(t, "8.8.4.4", model.Ntoa(recs[0].Daddr).String())
}

func TestBothPathsSameTuple(t *testing.T) {
	mem := capturetest.NewSocket("10.0.0.5", "1.1.1.1", 40000, 853)
	ctx := capturetest.NewContext(321, 321, "resolved")
	ch := newTestChannel(t, 4)
	hooks := capture.NewHooks(ctx, mem, ch)

	// the tracepoint payload carries the same network-order bytes as sock_common
	args := establishedArgs("0.0.0.0", "0.0.0.0", 40000, 853)
	copy(args.Saddr[:], mem.Bytes()[capture.OffsetRcvSaddr:])
	copy(args.Daddr[:], mem.Bytes()[capture.OffsetDaddr:])

	hooks.TCPConnect(sockBase)
	hooks.InetSockSetState(args)

	recs := drain(t, ch)
	require.Len(t, recs, 2)
	assert.Equal(t, recs[0].Tuple(), recs[1].Tuple())
	assert.Equal(t, model.Aton(net.ParseIP("10.0.0.5")), recs[1].Saddr)
	assert.Equal(t, model.Aton(net.ParseIP("1.1.1.1")), recs[1].Daddr)
	assert.NotEqual(t, recs[0].Timestamp, recs[1].Timestamp)
}

func TestHooksDoNotAllocate(t *testing.T) {
	mem := capturetest.NewSocket("10.0.0.5", "1.1.1.1", 40000, 853)
	ctx := capturetest.NewContext(1, 1, "bench")
	ch := newTestChannel(t, 1)
	hooks := capture.NewHooks(ctx, mem, ch)
	args := establishedArgs("10.0.0.5", "1.1.1.1", 40000, 853)

	// the channel stays full after the first record, so later runs take the drop path too
	allocs := testing.AllocsPerRun(100, func() {
		hooks.TCPConnect(sockBase)
		hooks.InetSockSetState(args)
	})
	assert.Zero(t, allocs)
}

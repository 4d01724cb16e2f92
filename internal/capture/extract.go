package capture

import "encoding/binary"

// SourceAddr returns the socket's bound receive address in host order.
func SourceAddr(mem Memory, sk uint64) uint32 {
	b, err := mem.Read4(sk + OffsetRcvSaddr)
	if err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

// DestAddr returns the peer address in host order.
func DestAddr(mem Memory, sk uint64) uint32 {
	b, err := mem.Read4(sk + OffsetDaddr)
	if err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

// Port returns the peer port when dest is set, otherwise the local port.
// skc_dport is kept in network order, skc_num in host order.
func Port(mem Memory, sk uint64, dest bool) uint16 {
	if dest {
		b, err := mem.Read2(sk + OffsetDport)
		if err != nil {
			return 0
		}
		return binary.BigEndian.Uint16(b[:])
	}

	b, err := mem.Read2(sk + OffsetNum)
	if err != nil {
		return 0
	}
	return binary.NativeEndian.Uint16(b[:])
}

package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// TargetByteOrder is the byte order the monitor expects for multi-byte fields.
var TargetByteOrder = binary.BigEndian

func AppendByte(b []byte, v byte) []byte {
	return append(b, v)
}

func AppendUint16(b []byte, v uint16) []byte {
	return TargetByteOrder.AppendUint16(b, v)
}

func AppendUint32(b []byte, v uint32) []byte {
	return TargetByteOrder.AppendUint32(b, v)
}

// AppendString writes a uint16 length followed by s. With nul set a
// terminating zero byte is appended and counted in the length.
func AppendString(b []byte, s []byte, nul bool) ([]byte, error) {
	size := len(s)
	if nul {
		size++
	}
	if size > 0xffff {
		return b, fmt.Errorf("%w: string of %d bytes", ErrInvalidLength, size)
	}
	b = AppendUint16(b, uint16(size))
	b = append(b, s...)
	if nul {
		b = append(b, 0)
	}
	return b, nil
}

func ExtractUint16(b []byte, off int) (uint16, error) {
	if off < 0 || len(b) < off+2 {
		return 0, fmt.Errorf("%w: uint16 at %d of %d", ErrShortPayload, off, len(b))
	}
	return TargetByteOrder.Uint16(b[off : off+2]), nil
}

func ExtractUint32(b []byte, off int) (uint32, error) {
	if off < 0 || len(b) < off+4 {
		return 0, fmt.Errorf("%w: uint32 at %d of %d", ErrShortPayload, off, len(b))
	}
	return TargetByteOrder.Uint32(b[off : off+4]), nil
}

// HexDump renders b as space separated hex pairs for wire logging.
func HexDump(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

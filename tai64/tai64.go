// Package tai64 encodes instants on the TAI scale as external TAI64 labels.
//
// A TAI64 label is 2^62 plus the number of TAI seconds since
// 1970-01-01 00:00:00 TAI, written as 8 big-endian bytes or as "@" followed
// by 16 hex digits. The caller supplies instants already on the TAI scale;
// no leap-second correction is applied here.
package tai64

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Length of a packed TAI64 label in bytes.
const Length = 8

// base is 2^62, the label of 1970-01-01 00:00:00 TAI.
const base = uint64(1) << 62

// Label is a TAI64 second label.
type Label uint64

// FromTAI labels a TAI instant, truncating sub-second precision.
func FromTAI(tai time.Time) Label {
	return Label(base + uint64(tai.Unix()))
}

// TAI returns the TAI instant the label names.
func (l Label) TAI() time.Time {
	return time.Unix(int64(uint64(l)-base), 0).UTC()
}

// Pack writes the label as Length big-endian bytes.
func (l Label) Pack() []byte {
	buf := make([]byte, Length)
	binary.BigEndian.PutUint64(buf, uint64(l))
	return buf
}

// Unpack reads a label from Length big-endian bytes.
func Unpack(buf []byte) (Label, error) {
	if len(buf) != Length {
		return 0, fmt.Errorf("TAI64 label must be %d bytes, got %d", Length, len(buf))
	}
	return Label(binary.BigEndian.Uint64(buf)), nil
}

// String renders the label in the external text form.
func (l Label) String() string {
	return "@" + hex.EncodeToString(l.Pack())
}

// Parse reads the external text form, "@" followed by 16 hex digits.
func Parse(s string) (Label, error) {
	if !strings.HasPrefix(s, "@") {
		return 0, fmt.Errorf("TAI64 label %q does not begin with '@'", s)
	}
	raw, err := hex.DecodeString(s[1:])
	if err != nil {
		return 0, fmt.Errorf("TAI64 label %q: %w", s, err)
	}
	return Unpack(raw)
}

// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/siemens/oping/types"

	"golang.org/x/sys/unix"
)

// Number is the set of fixed-width types crossing the engine boundary.
type Number interface {
	~int32 | ~uint32 | ~uint8 | ~float64
}

// Width returns the number of bytes a value of type T occupies on the engine
// boundary.
func Width[T Number]() int {
	var v T
	return binary.Size(v)
}

// Encode returns the native-endian encoding of v, for use with
// [Engine.SetOption].
func Encode[T Number](v T) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.NativeEndian, v) // cannot fail for fixed-width values
	return b.Bytes()
}

// GetNumber decodes a native-endian value of type T from the beginning of b.
// It fails with [ErrShortBuffer] if b is narrower than T.
func GetNumber[T Number](b []byte) (T, error) {
	var v T
	if len(b) < binary.Size(v) {
		return v, fmt.Errorf("%w: need %d bytes, got %d", ErrShortBuffer, binary.Size(v), len(b))
	}
	err := binary.Read(bytes.NewReader(b), binary.NativeEndian, &v)
	return v, err
}

// PutNumber writes the native-endian value v into buf and returns the number
// of bytes written. It fails with [ErrShortBuffer] if buf is narrower than T.
func PutNumber[T Number](buf []byte, v T) (int, error) {
	size := binary.Size(v)
	if len(buf) < size {
		return 0, fmt.Errorf("%w: need %d bytes, got %d", ErrShortBuffer, size, len(buf))
	}
	return copy(buf, Encode(v)), nil
}

// PutString writes s into buf, truncating it to the length of buf, and
// returns the number of bytes written.
func PutString(buf []byte, s string) int {
	return copy(buf, s)
}

// Native address family constants.
const (
	AFUnspec = int32(unix.AF_UNSPEC)
	AFInet   = int32(unix.AF_INET)
	AFInet6  = int32(unix.AF_INET6)
)

// NativeFamily maps an address family to its native constant.
func NativeFamily(f types.AddrFamily) int32 {
	if f == types.IPv6 {
		return AFInet6
	}
	return AFInet
}

// FamilyFromNative maps a native address family constant to an address
// family. Unknown values are taken as IPv4.
func FamilyFromNative(af int32) types.AddrFamily {
	switch af {
	case AFInet6:
		return types.IPv6
	default:
		return types.IPv4
	}
}

package index

import (
	"encoding/binary"
	"math"

	"github.com/syntrixbase/pager/pkg/model"
)

// OrderKey layout:
//
//	[ver:1B][type_tag:1B][value bytes...]
//
// Type tags follow the sort order: null=0x00 < number=0x01 < string=0x02 < bool=0x03.
// Strings escape 0x00 as 0x00 0x01 and end with 0x00 0x00 so shorter prefixes
// sort first. For descending order every byte after the version is inverted.
// The document key is not part of the encoding; the shard breaks ties with it.

const orderKeyVersion byte = 0x01

const (
	tagNull   byte = 0x00
	tagNumber byte = 0x01
	tagString byte = 0x02
	tagBool   byte = 0x03
)

// EncodeOrderKey encodes a field value so that bytes.Compare agrees with
// model.CompareValues, reversed when desc is set. Strings of any length are
// accepted.
func EncodeOrderKey(value interface{}, desc bool) []byte {
	buf := make([]byte, 1, 16)
	buf[0] = orderKeyVersion

	switch v := model.NormalizeValue(value).(type) {
	case nil:
		buf = append(buf, tagNull)
	case float64:
		buf = append(buf, tagNumber)
		buf = appendFloat64(buf, v)
	case string:
		buf = append(buf, tagString)
		for i := 0; i < len(v); i++ {
			if v[i] == 0x00 {
				buf = append(buf, 0x00, 0x01)
			} else {
				buf = append(buf, v[i])
			}
		}
		buf = append(buf, 0x00, 0x00)
	case bool:
		buf = append(buf, tagBool)
		if v {
			buf = append(buf, 0x01)
		} else {
			buf = append(buf, 0x00)
		}
	}

	if desc {
		invertBytes(buf[1:])
	}
	return buf
}

// appendFloat64 writes v so that byte order is numeric order:
// positive numbers flip the sign bit, negative numbers flip all bits.
func appendFloat64(buf []byte, v float64) []byte {
	if v == 0 {
		v = 0 // -0 sorts with +0
	}
	bits := math.Float64bits(v)
	if v >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return binary.BigEndian.AppendUint64(buf, bits)
}

func invertBytes(buf []byte) {
	for i := range buf {
		buf[i] = ^buf[i]
	}
}

package mseed

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	steimFrameLen   = 64
	steimFrameWords = 16
)

var ErrSteimFrame = errors.New("mseed: corrupt steim frame")

// diffUnpacker expands one data word with its 2-bit control nibble into
// first differences.
type diffUnpacker func(word, nibble uint32, dst []int32) ([]int32, error)

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// unpack splits word into count fields of the given width, most significant
// field first, starting below the top skip bits.
func unpack(word uint32, skip, count, width uint, dst []int32) []int32 {
	mask := uint32(1)<<width - 1
	for i := uint(0); i < count; i++ {
		shift := 32 - skip - (i+1)*width
		dst = append(dst, signExtend((word>>shift)&mask, width))
	}
	return dst
}

func steim1Diffs(word, nibble uint32, dst []int32) ([]int32, error) {
	switch nibble {
	case 0:
		return dst, nil
	case 1:
		return unpack(word, 0, 4, 8, dst), nil
	case 2:
		return unpack(word, 0, 2, 16, dst), nil
	case 3:
		return append(dst, int32(word)), nil
	}
	return dst, fmt.Errorf("%w: steim1 nibble %d", ErrSteimFrame, nibble)
}

func steim2Diffs(word, nibble uint32, dst []int32) ([]int32, error) {
	dnib := word >> 30
	switch nibble {
	case 0:
		return dst, nil
	case 1:
		return unpack(word, 0, 4, 8, dst), nil
	case 2:
		switch dnib {
		case 1:
			return unpack(word, 2, 1, 30, dst), nil
		case 2:
			return unpack(word, 2, 2, 15, dst), nil
		case 3:
			return unpack(word, 2, 3, 10, dst), nil
		}
	case 3:
		switch dnib {
		case 0:
			return unpack(word, 2, 5, 6, dst), nil
		case 1:
			return unpack(word, 2, 6, 5, dst), nil
		case 2:
			return unpack(word, 4, 7, 4, dst), nil
		}
	}
	return dst, fmt.Errorf("%w: steim2 nibble %d dnib %d", ErrSteimFrame, nibble, dnib)
}

// decodeSteim integrates the first differences stored in Steim frames. The
// first difference of a record refers to the previous record and is replaced
// by the forward integration constant.
func decodeSteim(data []byte, order binary.ByteOrder, n int, unpackFn diffUnpacker) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	if len(data) < steimFrameLen {
		return nil, fmt.Errorf("%w: %d bytes of data", ErrSteimFrame, len(data))
	}

	var (
		x0, xn int32
		diffs  = make([]int32, 0, n+8)
		err    error
	)
	frames := len(data) / steimFrameLen
	for f := 0; f < frames && len(diffs) < n; f++ {
		frame := data[f*steimFrameLen : (f+1)*steimFrameLen]
		ctrl := order.Uint32(frame)
		for w := 1; w < steimFrameWords; w++ {
			word := order.Uint32(frame[4*w:])
			if f == 0 && w == 1 {
				x0 = int32(word)
				continue
			}
			if f == 0 && w == 2 {
				xn = int32(word)
				continue
			}
			nibble := (ctrl >> (30 - 2*uint(w))) & 0x3
			if diffs, err = unpackFn(word, nibble, diffs); err != nil {
				return nil, err
			}
		}
	}
	if len(diffs) < n {
		return nil, fmt.Errorf("%w: decoded %d of %d samples", ErrSteimFrame, len(diffs), n)
	}

	out := make([]float64, n)
	last := x0
	out[0] = float64(last)
	for i := 1; i < n; i++ {
		last += diffs[i]
		out[i] = float64(last)
	}
	if last != xn {
		return nil, fmt.Errorf("%w: last sample %d does not match reverse constant %d", ErrSteimFrame, last, xn)
	}
	return out, nil
}

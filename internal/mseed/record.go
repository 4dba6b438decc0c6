// Package mseed decodes miniSEED 2 data records into traces.
package mseed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Data encoding formats from blockette 1000.
const (
	EncodingInt16   = 1
	EncodingInt32   = 3
	EncodingFloat32 = 4
	EncodingFloat64 = 5
	EncodingSteim1  = 10
	EncodingSteim2  = 11
)

const fixedHeaderLen = 48

var (
	ErrShortRecord         = errors.New("mseed: short record")
	ErrNoBlockette1000     = errors.New("mseed: record has no blockette 1000")
	ErrUnsupportedEncoding = errors.New("mseed: unsupported encoding")
)

// Record is one decoded data record.
type Record struct {
	Sequence   string
	Network    string
	Station    string
	Location   string
	Channel    string
	StartTime  time.Time
	SampleRate float64
	NumSamples int
	Encoding   uint8
	Length     int
	Samples    []float64
}

func (r *Record) id() string {
	return r.Network + "." + r.Station + "." + r.Location + "." + r.Channel
}

// endTime is the time one sample past the last sample.
func (r *Record) endTime() time.Time {
	if r.SampleRate <= 0 {
		return r.StartTime
	}
	return r.StartTime.Add(time.Duration(float64(r.NumSamples) / r.SampleRate * float64(time.Second)))
}

type header struct {
	order        binary.ByteOrder
	numSamples   int
	rateFactor   int16
	rateMult     int16
	activity     uint8
	numBlockette uint8
	correction   int32
	dataOffset   int
	firstBlk     int
}

// recordLength reads only enough of buf to find the record length advertised
// by blockette 1000.
func recordLength(buf []byte) (int, error) {
	if len(buf) < fixedHeaderLen {
		return 0, ErrShortRecord
	}
	h := parseHeader(buf)
	for off, n := h.firstBlk, 0; off != 0 && n < int(h.numBlockette); n++ {
		if off+4 > len(buf) {
			return 0, ErrShortRecord
		}
		typ := h.order.Uint16(buf[off:])
		next := int(h.order.Uint16(buf[off+2:]))
		if typ == 1000 {
			if off+8 > len(buf) {
				return 0, ErrShortRecord
			}
			return 1 << buf[off+6], nil
		}
		if next <= off {
			break
		}
		off = next
	}
	return 0, ErrNoBlockette1000
}

func parseHeader(buf []byte) header {
	order := detectByteOrder(buf)
	return header{
		order:        order,
		numSamples:   int(order.Uint16(buf[30:])),
		rateFactor:   int16(order.Uint16(buf[32:])),
		rateMult:     int16(order.Uint16(buf[34:])),
		activity:     buf[36],
		numBlockette: buf[39],
		correction:   int32(order.Uint32(buf[40:])),
		dataOffset:   int(order.Uint16(buf[44:])),
		firstBlk:     int(order.Uint16(buf[46:])),
	}
}

// detectByteOrder checks whether the BTIME year is plausible in big-endian,
// falling back to little-endian.
func detectByteOrder(buf []byte) binary.ByteOrder {
	year := binary.BigEndian.Uint16(buf[20:])
	day := binary.BigEndian.Uint16(buf[22:])
	if year >= 1900 && year <= 2100 && day >= 1 && day <= 366 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// sampleRate applies the SEED factor/multiplier rules.
func sampleRate(factor, mult int16) float64 {
	f, m := float64(factor), float64(mult)
	switch {
	case factor == 0:
		return 0
	case factor > 0 && mult > 0:
		return f * m
	case factor > 0 && mult < 0:
		return -f / m
	case factor < 0 && mult > 0:
		return -m / f
	case factor < 0 && mult < 0:
		return 1 / (f * m)
	}
	return f
}

func btime(order binary.ByteOrder, b []byte) time.Time {
	year := int(order.Uint16(b[0:]))
	doy := int(order.Uint16(b[2:]))
	hour, minute, sec := int(b[4]), int(b[5]), int(b[6])
	fract := int(order.Uint16(b[8:])) // 0.0001 s
	return time.Date(year, 1, 1, hour, minute, sec, fract*100_000, time.UTC).AddDate(0, 0, doy-1)
}

// ParseRecord decodes one complete record.
func ParseRecord(buf []byte) (*Record, error) {
	if len(buf) < fixedHeaderLen {
		return nil, ErrShortRecord
	}
	h := parseHeader(buf)

	rec := &Record{
		Sequence:   strings.TrimSpace(string(buf[0:6])),
		Station:    strings.TrimSpace(string(buf[8:13])),
		Location:   strings.TrimSpace(string(buf[13:15])),
		Channel:    strings.TrimSpace(string(buf[15:18])),
		Network:    strings.TrimSpace(string(buf[18:20])),
		StartTime:  btime(h.order, buf[20:30]),
		SampleRate: sampleRate(h.rateFactor, h.rateMult),
		NumSamples: h.numSamples,
	}

	// Time correction is in 0.0001 s units and only applies when the
	// "correction applied" activity bit is clear.
	if h.activity&0x02 == 0 && h.correction != 0 {
		rec.StartTime = rec.StartTime.Add(time.Duration(h.correction) * 100 * time.Microsecond)
	}

	var (
		found     bool
		wordOrder binary.ByteOrder = binary.BigEndian
	)
	for off, n := h.firstBlk, 0; off != 0 && n < int(h.numBlockette); n++ {
		if off+4 > len(buf) {
			return nil, ErrShortRecord
		}
		typ := h.order.Uint16(buf[off:])
		next := int(h.order.Uint16(buf[off+2:]))
		switch typ {
		case 1000:
			if off+8 > len(buf) {
				return nil, ErrShortRecord
			}
			rec.Encoding = buf[off+4]
			if buf[off+5] == 0 {
				wordOrder = binary.LittleEndian
			}
			rec.Length = 1 << buf[off+6]
			found = true
		case 1001:
			if off+8 > len(buf) {
				return nil, ErrShortRecord
			}
			rec.StartTime = rec.StartTime.Add(time.Duration(int8(buf[off+5])) * time.Microsecond)
		}
		if next <= off {
			break
		}
		off = next
	}
	if !found {
		return nil, ErrNoBlockette1000
	}
	if rec.Length > len(buf) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRecord, rec.Length, len(buf))
	}
	if h.dataOffset < fixedHeaderLen || h.dataOffset > rec.Length {
		return nil, fmt.Errorf("mseed: %s: invalid data offset %d", rec.id(), h.dataOffset)
	}

	samples, err := decode(rec.Encoding, wordOrder, buf[h.dataOffset:rec.Length], rec.NumSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.id(), err)
	}
	rec.Samples = samples
	return rec, nil
}

func decode(encoding uint8, order binary.ByteOrder, data []byte, n int) ([]float64, error) {
	out := make([]float64, 0, n)
	switch encoding {
	case EncodingInt16:
		if len(data) < 2*n {
			return nil, ErrShortRecord
		}
		for i := 0; i < n; i++ {
			out = append(out, float64(int16(order.Uint16(data[2*i:]))))
		}
	case EncodingInt32:
		if len(data) < 4*n {
			return nil, ErrShortRecord
		}
		for i := 0; i < n; i++ {
			out = append(out, float64(int32(order.Uint32(data[4*i:]))))
		}
	case EncodingFloat32:
		if len(data) < 4*n {
			return nil, ErrShortRecord
		}
		for i := 0; i < n; i++ {
			out = append(out, float64(math.Float32frombits(order.Uint32(data[4*i:]))))
		}
	case EncodingFloat64:
		if len(data) < 8*n {
			return nil, ErrShortRecord
		}
		for i := 0; i < n; i++ {
			out = append(out, math.Float64frombits(order.Uint64(data[8*i:])))
		}
	case EncodingSteim1:
		return decodeSteim(data, order, n, steim1Diffs)
	case EncodingSteim2:
		return decodeSteim(data, order, n, steim2Diffs)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEncoding, encoding)
	}
	return out, nil
}

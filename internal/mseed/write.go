package mseed

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/lox/etna6c/internal/models"
)

// RecordLength is the size of records produced by Write.
const RecordLength = 4096

const dataOffset = 64

// Write encodes tr as big-endian FLOAT64 records of RecordLength bytes.
func Write(w io.Writer, tr *models.Trace) error {
	factor, mult, err := rateFactors(tr.SampleRate)
	if err != nil {
		return err
	}
	perRecord := (RecordLength - dataOffset) / 8
	buf := make([]byte, RecordLength)
	for seq, first := 1, 0; first < len(tr.Data); seq, first = seq+1, first+perRecord {
		last := min(first+perRecord, len(tr.Data))
		for i := range buf {
			buf[i] = 0
		}
		putHeader(buf, tr, seq, first, last-first, factor, mult)
		data := buf[dataOffset:]
		for i, v := range tr.Data[first:last] {
			binary.BigEndian.PutUint64(data[8*i:], math.Float64bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write record %d: %w", seq, err)
		}
	}
	return nil
}

// WriteFile writes every trace of st to path.
func WriteFile(path string, st models.Stream) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	for _, tr := range st {
		if err := Write(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", tr.ID(), err)
		}
	}
	return f.Close()
}

func putHeader(buf []byte, tr *models.Trace, seq, first, n int, factor, mult int16) {
	be := binary.BigEndian
	copy(buf[0:6], fmt.Sprintf("%06d", seq%1000000))
	buf[6] = 'D'
	buf[7] = ' '
	copy(buf[8:20], fmt.Sprintf("%-5.5s%-2.2s%-3.3s%-2.2s", tr.Station, tr.Location, tr.Channel, tr.Network))

	start := tr.SampleTime(first).UTC()
	be.PutUint16(buf[20:], uint16(start.Year()))
	be.PutUint16(buf[22:], uint16(start.YearDay()))
	buf[24] = byte(start.Hour())
	buf[25] = byte(start.Minute())
	buf[26] = byte(start.Second())
	be.PutUint16(buf[28:], uint16(start.Nanosecond()/100_000))
	be.PutUint16(buf[30:], uint16(n))
	be.PutUint16(buf[32:], uint16(factor))
	be.PutUint16(buf[34:], uint16(mult))
	buf[39] = 1 // blockettes
	be.PutUint16(buf[44:], dataOffset)
	be.PutUint16(buf[46:], fixedHeaderLen)

	b := buf[fixedHeaderLen:]
	be.PutUint16(b[0:], 1000)
	b[4] = EncodingFloat64
	b[5] = 1 // big-endian
	b[6] = byte(math.Log2(RecordLength))
}

// rateFactors expresses rate as a SEED factor and multiplier.
func rateFactors(rate float64) (factor, mult int16, err error) {
	switch {
	case rate <= 0:
		return 0, 0, fmt.Errorf("mseed: invalid sample rate %g", rate)
	case rate >= 1 && rate == math.Trunc(rate) && rate <= math.MaxInt16:
		return int16(rate), 1, nil
	case rate < 1 && 1/rate == math.Trunc(1/rate) && 1/rate <= math.MaxInt16:
		return -int16(1 / rate), 1, nil
	}
	for m := 10.0; m <= 10000; m *= 10 {
		if v := rate * m; v == math.Trunc(v) && v <= math.MaxInt16 {
			return int16(v), -int16(m), nil
		}
	}
	return 0, 0, fmt.Errorf("mseed: sample rate %g has no exact factor/multiplier form", rate)
}

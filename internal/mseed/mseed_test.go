package mseed

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/etna6c/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	network, station, location, channel string
	start                               time.Time
	rateFactor, rateMult                int16
	encoding                            uint8
	order                               binary.ByteOrder
	samples                             []int32
}

// build encodes a 512-byte record with blockette 1000 at offset 48 and data
// at offset 64.
func (tr testRecord) build(t *testing.T) []byte {
	t.Helper()
	order := tr.order
	if order == nil {
		order = binary.BigEndian
	}
	buf := make([]byte, 512)
	copy(buf[0:6], "000001")
	buf[6] = 'D'
	copy(buf[8:13], pad(tr.station, 5))
	copy(buf[13:15], pad(tr.location, 2))
	copy(buf[15:18], pad(tr.channel, 3))
	copy(buf[18:20], pad(tr.network, 2))

	start := tr.start.UTC()
	order.PutUint16(buf[20:], uint16(start.Year()))
	order.PutUint16(buf[22:], uint16(start.YearDay()))
	buf[24] = byte(start.Hour())
	buf[25] = byte(start.Minute())
	buf[26] = byte(start.Second())
	order.PutUint16(buf[28:], uint16(start.Nanosecond()/100_000))
	order.PutUint16(buf[30:], uint16(len(tr.samples)))
	order.PutUint16(buf[32:], uint16(tr.rateFactor))
	order.PutUint16(buf[34:], uint16(tr.rateMult))
	buf[39] = 1
	order.PutUint16(buf[44:], 64)
	order.PutUint16(buf[46:], 48)

	order.PutUint16(buf[48:], 1000)
	order.PutUint16(buf[50:], 0)
	buf[52] = tr.encoding
	if order == binary.BigEndian {
		buf[53] = 1
	}
	buf[54] = 9

	data := buf[64:]
	switch tr.encoding {
	case EncodingInt32:
		for i, v := range tr.samples {
			order.PutUint32(data[4*i:], uint32(v))
		}
	case EncodingSteim1:
		encodeSteim1(t, data, order, tr.samples)
	default:
		t.Fatalf("test encoder does not support encoding %d", tr.encoding)
	}
	return buf
}

// encodeSteim1 stores one 32-bit difference per word.
func encodeSteim1(t *testing.T, data []byte, order binary.ByteOrder, samples []int32) {
	t.Helper()
	word := 3 // frame 0: ctrl, X0, Xn
	frame := 0
	var ctrl uint32
	flush := func() {
		order.PutUint32(data[frame*64:], ctrl)
		ctrl = 0
	}
	prev := int32(0)
	for i, s := range samples {
		if word == 16 {
			flush()
			frame++
			word = 1
		}
		require.Less(t, (frame+1)*64, len(data)+1, "too many samples for test record")
		d := s - prev
		if i == 0 {
			d = 0
		}
		prev = s
		order.PutUint32(data[frame*64+4*word:], uint32(d))
		ctrl |= 3 << (30 - 2*uint(word))
		word++
	}
	flush()
	order.PutUint32(data[4:], uint32(samples[0]))
	order.PutUint32(data[8:], uint32(samples[len(samples)-1]))
}

func pad(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

func TestSampleRate(t *testing.T) {
	tests := []struct {
		name         string
		factor, mult int16
		want         float64
	}{
		{"positive factor and multiplier", 100, 1, 100},
		{"negative multiplier divides", 1, -10, 0.1},
		{"negative factor is a period", -10, 1, 0.1},
		{"both negative", -10, -10, 0.01},
		{"zero factor", 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sampleRate(tt.factor, tt.mult), 1e-12)
		})
	}
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, int32(-1), signExtend(0xF, 4))
	assert.Equal(t, int32(7), signExtend(0x7, 4))
	assert.Equal(t, int32(-512), signExtend(0x200, 10))
	assert.Equal(t, int32(-32), signExtend(0x20, 6))
}

func TestSteim2Unpack(t *testing.T) {
	// dnib=2 (two 15-bit): 5 and -3
	minus3 := int32(-3)
	word := uint32(2)<<30 | uint32(5)<<15 | (uint32(minus3) & 0x7FFF)
	got, err := steim2Diffs(word, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{5, -3}, got)

	// nibble 3, dnib=2: seven 4-bit values below 4 unused bits
	word = uint32(2) << 30
	vals := []int32{1, -1, 2, -2, 3, -3, 7}
	for i, v := range vals {
		word |= (uint32(v) & 0xF) << (24 - 4*uint(i))
	}
	got, err = steim2Diffs(word, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, vals, got)

	_, err = steim2Diffs(0, 2, nil)
	assert.ErrorIs(t, err, ErrSteimFrame)
}

func TestParseRecordInt32(t *testing.T) {
	start := time.Date(2019, 9, 4, 15, 52, 0, 500_000_000, time.UTC)
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			buf := testRecord{
				network: "ZR", station: "RS1", channel: "HHZ",
				start: start, rateFactor: 100, rateMult: 1,
				encoding: EncodingInt32, order: order,
				samples: []int32{1, -2, 3, 1 << 20},
			}.build(t)

			rec, err := ParseRecord(buf)
			require.NoError(t, err)
			assert.Equal(t, "ZR", rec.Network)
			assert.Equal(t, "RS1", rec.Station)
			assert.Equal(t, "", rec.Location)
			assert.Equal(t, "HHZ", rec.Channel)
			assert.True(t, rec.StartTime.Equal(start), "start %s", rec.StartTime)
			assert.Equal(t, 100.0, rec.SampleRate)
			assert.Equal(t, 512, rec.Length)
			assert.Equal(t, []float64{1, -2, 3, 1 << 20}, rec.Samples)
		})
	}
}

func TestParseRecordSteim1(t *testing.T) {
	samples := make([]int32, 40)
	for i := range samples {
		samples[i] = int32(1000 * math.Sin(float64(i)/3))
	}
	buf := testRecord{
		network: "ZR", station: "RS1", channel: "HJ1",
		start: time.Date(2019, 9, 4, 0, 0, 0, 0, time.UTC), rateFactor: 200, rateMult: 1,
		encoding: EncodingSteim1, samples: samples,
	}.build(t)

	rec, err := ParseRecord(buf)
	require.NoError(t, err)
	require.Len(t, rec.Samples, len(samples))
	for i, s := range samples {
		assert.Equal(t, float64(s), rec.Samples[i], "sample %d", i)
	}
}

func TestParseRecordSteimIntegrity(t *testing.T) {
	buf := testRecord{
		network: "ZR", station: "RS1", channel: "HJ1",
		start: time.Date(2019, 9, 4, 0, 0, 0, 0, time.UTC), rateFactor: 200, rateMult: 1,
		encoding: EncodingSteim1, samples: []int32{1, 2, 3},
	}.build(t)
	// Corrupt the reverse integration constant.
	binary.BigEndian.PutUint32(buf[64+8:], 99)

	_, err := ParseRecord(buf)
	assert.ErrorIs(t, err, ErrSteimFrame)
}

func TestParseRecordErrors(t *testing.T) {
	_, err := ParseRecord(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortRecord)

	buf := testRecord{
		network: "ZR", station: "RS1", channel: "HHZ",
		start: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), rateFactor: 100, rateMult: 1,
		encoding: EncodingInt32, samples: []int32{1},
	}.build(t)
	buf[52] = 30
	_, err = ParseRecord(buf)
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)

	buf[39] = 0
	_, err = ParseRecord(buf)
	assert.ErrorIs(t, err, ErrNoBlockette1000)
}

func writeRecords(t *testing.T, records ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ZR.RS1..HHZ.mseed")
	var all []byte
	for _, r := range records {
		all = append(all, r...)
	}
	require.NoError(t, os.WriteFile(path, all, 0644))
	return path
}

func ramp(from, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(from + i)
	}
	return out
}

func TestReadJoinsContiguousRecords(t *testing.T) {
	start := time.Date(2019, 9, 4, 15, 52, 0, 0, time.UTC)
	rec := func(at time.Time, from int) []byte {
		return testRecord{
			network: "ZR", station: "RS1", channel: "HHZ",
			start: at, rateFactor: 10, rateMult: 1,
			encoding: EncodingInt32, samples: ramp(from, 100),
		}.build(t)
	}
	path := writeRecords(t,
		rec(start.Add(10*time.Second), 100), // out of order
		rec(start, 0),
		rec(start, 0), // duplicate
	)

	st, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, st, 1)
	tr := st[0]
	assert.Equal(t, "ZR.RS1..HHZ", tr.ID())
	require.Len(t, tr.Data, 200)
	for i, v := range tr.Data {
		require.Equal(t, float64(i), v)
	}
}

func TestReadTrimsOverlappingRecords(t *testing.T) {
	start := time.Date(2019, 9, 4, 15, 52, 0, 0, time.UTC)
	rec := func(at time.Time, from, n int) []byte {
		return testRecord{
			network: "ZR", station: "RS1", channel: "HHZ",
			start: at, rateFactor: 10, rateMult: 1,
			encoding: EncodingInt32, samples: ramp(from, n),
		}.build(t)
	}
	path := writeRecords(t,
		rec(start, 0, 100),
		rec(start.Add(5*time.Second), 50, 100),  // half overlaps the first
		rec(start.Add(12*time.Second), 120, 10), // wholly covered
		rec(start.Add(15*time.Second), 150, 100),
	)

	st, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, st, 1)
	require.Len(t, st[0].Data, 250)
	for i, v := range st[0].Data {
		require.Equal(t, float64(i), v)
	}
}

func TestReadSplitsOnGap(t *testing.T) {
	start := time.Date(2019, 9, 4, 15, 52, 0, 0, time.UTC)
	mk := func(at time.Time) []byte {
		return testRecord{
			network: "ZR", station: "RS1", channel: "HHZ",
			start: at, rateFactor: 10, rateMult: 1,
			encoding: EncodingInt32, samples: ramp(0, 10),
		}.build(t)
	}
	path := writeRecords(t, mk(start), mk(start.Add(5*time.Second)))

	st, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, st, 2)
}

func TestReadSlicesToWindow(t *testing.T) {
	start := time.Date(2019, 9, 4, 15, 52, 0, 0, time.UTC)
	path := writeRecords(t, testRecord{
		network: "ZR", station: "RS1", channel: "HHZ",
		start: start, rateFactor: 10, rateMult: 1,
		encoding: EncodingInt32, samples: ramp(0, 100),
	}.build(t))

	st, err := Read(path, start.Add(2*time.Second), start.Add(5*time.Second))
	require.NoError(t, err)
	require.Len(t, st, 1)
	assert.True(t, st[0].StartTime.Equal(start.Add(2*time.Second)))
	assert.Len(t, st[0].Data, 31)
	assert.Equal(t, 20.0, st[0].Data[0])

	st, err = Read(path, start.Add(time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, st)
}

func TestWriteRoundTrip(t *testing.T) {
	start := time.Date(2019, 9, 9, 12, 18, 0, 0, time.UTC)
	in := &models.Trace{
		Network: "ZR", Station: "RS1", Channel: "HJ2",
		StartTime: start, SampleRate: 200,
		Data: make([]float64, 1200),
	}
	for i := range in.Data {
		in.Data[i] = math.Sin(float64(i) / 7)
	}
	path := filepath.Join(t.TempDir(), "ZR.RS1..HJ2.mseed")
	require.NoError(t, WriteFile(path, models.Stream{in}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3*RecordLength), info.Size())

	st, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, st, 1)
	out := st[0]
	assert.Equal(t, in.ID(), out.ID())
	assert.True(t, out.StartTime.Equal(start))
	assert.Equal(t, 200.0, out.SampleRate)
	assert.Equal(t, in.Data, out.Data)
}

func TestRateFactors(t *testing.T) {
	tests := []struct {
		rate float64
		ok   bool
	}{
		{100, true},
		{0.1, true},
		{12.5, true},
		{0, false},
		{math.Pi, false},
	}
	for _, tt := range tests {
		f, m, err := rateFactors(tt.rate)
		if !tt.ok {
			assert.Error(t, err, "rate %g", tt.rate)
			continue
		}
		require.NoError(t, err, "rate %g", tt.rate)
		assert.Equal(t, tt.rate, sampleRate(f, m), "rate %g", tt.rate)
	}
}

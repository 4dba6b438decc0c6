package mseed

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/lox/etna6c/internal/models"
)

// ParseRecords decodes every record in buf.
func ParseRecords(buf []byte) ([]*Record, error) {
	var records []*Record
	for off := 0; off < len(buf); {
		// Trailing padding after the last record is common in archive files.
		if len(buf)-off < fixedHeaderLen || isBlank(buf[off:off+fixedHeaderLen]) {
			break
		}
		n, err := recordLength(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", off, err)
		}
		if off+n > len(buf) {
			return nil, fmt.Errorf("record at offset %d: %w", off, ErrShortRecord)
		}
		rec, err := ParseRecord(buf[off : off+n])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", off, err)
		}
		records = append(records, rec)
		off += n
	}
	return records, nil
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != 0 && c != ' ' {
			return false
		}
	}
	return true
}

// ReadFile decodes all records of a file and assembles them into traces.
func ReadFile(path string) (models.Stream, error) {
	return Read(path, time.Time{}, time.Time{})
}

// Read decodes a file and returns traces sliced to [start, end]. A zero start
// or end leaves that side open.
func Read(path string, start, end time.Time) (models.Stream, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	records, err := ParseRecords(buf)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var kept []*Record
	for _, r := range records {
		if !end.IsZero() && r.StartTime.After(end) {
			continue
		}
		if !start.IsZero() && r.endTime().Before(start) {
			continue
		}
		kept = append(kept, r)
	}

	var st models.Stream
	for _, tr := range Assemble(kept) {
		if sliced := tr.Slice(start, end); sliced != nil {
			st = append(st, sliced)
		}
	}
	return st, nil
}

// Assemble groups records by channel and joins contiguous ones. Samples
// already covered by an earlier record are dropped; a gap larger than half a
// sample interval starts a new trace.
func Assemble(records []*Record) models.Stream {
	byID := make(map[string][]*Record)
	var ids []string
	for _, r := range records {
		if r.NumSamples == 0 || r.SampleRate <= 0 {
			continue
		}
		id := r.id()
		if _, ok := byID[id]; !ok {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], r)
	}
	sort.Strings(ids)

	var st models.Stream
	for _, id := range ids {
		recs := byID[id]
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].StartTime.Before(recs[j].StartTime)
		})

		var cur *models.Trace
		var curEnd time.Time
		for _, r := range recs {
			tol := time.Duration(0.5 / r.SampleRate * float64(time.Second))
			if cur != nil && r.SampleRate == cur.SampleRate {
				diff := r.StartTime.Sub(curEnd)
				if diff < -tol {
					// Overlap: keep only the samples past the current end.
					skip := int(math.Round(-diff.Seconds() * r.SampleRate))
					if skip < len(r.Samples) {
						cur.Data = append(cur.Data, r.Samples[skip:]...)
						curEnd = r.endTime()
					}
					continue
				}
				if diff <= tol {
					cur.Data = append(cur.Data, r.Samples...)
					curEnd = r.endTime()
					continue
				}
			}
			cur = &models.Trace{
				Network:    r.Network,
				Station:    r.Station,
				Location:   r.Location,
				Channel:    r.Channel,
				StartTime:  r.StartTime,
				SampleRate: r.SampleRate,
				Data:       append([]float64(nil), r.Samples...),
			}
			curEnd = r.endTime()
			st = append(st, cur)
		}
	}
	return st
}

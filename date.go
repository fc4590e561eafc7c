package oracle

import (
	"time"
)

// Helpers for the internal 7-byte DATE encoding. This is the one value
// format the driver reads and writes itself: the layout is a fixed part of
// the wire contract (century and year are stored excess-100, month and day
// are one-based, hour, minute and second are stored plus one). Every other
// type goes through the native codec calls.

func encodeOCIDate(t time.Time) []byte {
	year := t.Year()
	buf := make([]byte, ociDateSize)
	buf[0] = byte(year/100 + 100)
	buf[1] = byte(year%100 + 100)
	buf[2] = byte(t.Month())
	buf[3] = byte(t.Day())
	buf[4] = byte(t.Hour() + 1)
	buf[5] = byte(t.Minute() + 1)
	buf[6] = byte(t.Second() + 1)
	return buf
}

func decodeOCIDate(buf []byte) (time.Time, error) {
	if len(buf) < ociDateSize {
		return time.Time{}, interfaceErr("date buffer is %d bytes, expected %d", len(buf), ociDateSize)
	}
	year := (int(buf[0])-100)*100 + int(buf[1]) - 100
	return time.Date(
		year,
		time.Month(buf[2]),
		int(buf[3]),
		int(buf[4])-1,
		int(buf[5])-1,
		int(buf[6])-1,
		0,
		time.Local,
	), nil
}

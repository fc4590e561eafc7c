package oracle

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"time"
)

// Rows streams the result of a query. Next advances the fetch position;
// the Row view decodes values from the current position's column buffers.
type Rows struct {
	st      *Statement
	fetched uint64
	done    bool
	err     error
}

// Next fetches the next row. It returns false when the stream is exhausted
// or a fetch fails; check Err afterwards.
func (r *Rows) Next(ctx context.Context) bool {
	if r.done || r.err != nil {
		return false
	}
	sc := r.st.sc
	for _, c := range r.st.cols {
		if err := c.rearm(sc.api, sc.env, r.st.stmt, sc.errh); err != nil {
			r.err = err
			return false
		}
	}
	status, err := sc.exec(ctx, "fetch", func() int32 {
		return sc.api.StmtFetch(r.st.stmt, sc.errh, 1)
	})
	if err != nil {
		r.err = err
		return false
	}
	switch {
	case status == OCINoData:
		r.done = true
		return false
	case !isSuccess(status):
		r.err = sc.fail(status)
		return false
	}
	r.fetched++
	return true
}

// Err returns the error that stopped iteration, if any.
func (r *Rows) Err() error { return r.err }

// Count returns the number of rows fetched so far.
func (r *Rows) Count() uint64 { return r.fetched }

// Columns returns the column names of the projection.
func (r *Rows) Columns() []string {
	names := make([]string, len(r.st.cols))
	for i, c := range r.st.cols {
		names[i] = c.name
	}
	return names
}

// Row returns a view over the current fetch position. The view borrows the
// statement's column descriptors and must not be used after the next call
// to Next.
func (r *Rows) Row() *Row { return &Row{rows: r} }

// Close ends iteration. The column descriptors stay with the statement for
// re-execution.
func (r *Rows) Close() error {
	r.done = true
	return nil
}

// Row is a transient view over the current fetch position.
type Row struct {
	rows *Rows
}

func (r *Row) column(pos any) (*Column, error) {
	return r.rows.st.column(pos)
}

// IsNull reports whether the column's value at the current position is
// NULL. pos is a zero-based index or a column name.
func (r *Row) IsNull(pos any) (bool, error) {
	c, err := r.column(pos)
	if err != nil {
		return false, err
	}
	return c.isNull(), nil
}

// Value decodes the column into its natural Go type: string, []byte,
// int64 or float64 for numbers, time.Time for dates and timestamps, a
// string rendering for intervals and rowids, *Cursor and *LOB for the
// resource kinds. A NULL column yields nil with no conversion attempted.
func (r *Row) Value(pos any) (any, error) {
	c, err := r.column(pos)
	if err != nil {
		return nil, err
	}
	if c.isNull() {
		return nil, nil
	}
	sc := r.rows.st.sc
	switch c.kind {
	case colText:
		return string(c.buf[:c.rlen]), nil
	case colBinary:
		out := make([]byte, c.rlen)
		copy(out, c.buf[:c.rlen])
		return out, nil
	case colNumber:
		return r.decodeNumber(c)
	case colFloat:
		return float64(math.Float32frombits(binary.NativeEndian.Uint32(c.buf))), nil
	case colDouble:
		return math.Float64frombits(binary.NativeEndian.Uint64(c.buf)), nil
	case colDate:
		return decodeOCIDate(c.buf)
	case colTimestamp, colTimestampTZ, colTimestampLTZ:
		return r.decodeTimestamp(c)
	case colIntervalYM, colIntervalDS:
		text, status := sc.api.IntervalToText(sc.env, sc.errh, c.handle)
		if !isSuccess(status) {
			return nil, sc.fail(status)
		}
		return text, nil
	case colRowID:
		text, status := sc.api.RowidToText(sc.errh, c.handle)
		if !isSuccess(status) {
			return nil, sc.fail(status)
		}
		return text, nil
	case colCursor:
		return r.Cursor(pos)
	case colCLOB, colBLOB, colBFile:
		return r.LOB(pos)
	default:
		return nil, interfaceErr("cannot convert column %q", c.name)
	}
}

// decodeNumber picks the narrowest faithful Go type for a NUMBER value.
func (r *Row) decodeNumber(c *Column) (any, error) {
	sc := r.rows.st.sc
	text, status := sc.api.NumberToText(sc.errh, c.buf, "TM")
	if !isSuccess(status) {
		return nil, sc.fail(status)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	f, status := sc.api.NumberToFloat(sc.errh, c.buf)
	if !isSuccess(status) {
		return nil, sc.fail(status)
	}
	return f, nil
}

func (r *Row) decodeTimestamp(c *Column) (time.Time, error) {
	sc := r.rows.st.sc
	year, month, day, status := sc.api.DateTimeGetDate(sc.env, sc.errh, c.handle)
	if !isSuccess(status) {
		return time.Time{}, sc.fail(status)
	}
	hour, min, sec, nsec, status := sc.api.DateTimeGetTime(sc.env, sc.errh, c.handle)
	if !isSuccess(status) {
		return time.Time{}, sc.fail(status)
	}
	loc := time.Local
	if c.kind == colTimestampTZ {
		hOff, mOff, status := sc.api.DateTimeGetTimeZoneOffset(sc.env, sc.errh, c.handle)
		if !isSuccess(status) {
			return time.Time{}, sc.fail(status)
		}
		offset := int(hOff)*3600 + int(mOff)*60
		if hOff < 0 {
			offset = int(hOff)*3600 - int(mOff)*60
		}
		loc = time.FixedZone("", offset)
	}
	return time.Date(int(year), time.Month(month), int(day),
		int(hour), int(min), int(sec), int(nsec), loc), nil
}

// String returns the column value as text. Numbers, dates, timestamps,
// intervals and rowids are rendered through the native conversion calls.
func (r *Row) String(pos any) (string, error) {
	c, err := r.column(pos)
	if err != nil {
		return "", err
	}
	if c.isNull() {
		return "", ErrNullValue
	}
	sc := r.rows.st.sc
	switch c.kind {
	case colText:
		return string(c.buf[:c.rlen]), nil
	case colNumber:
		text, status := sc.api.NumberToText(sc.errh, c.buf, "TM")
		if !isSuccess(status) {
			return "", sc.fail(status)
		}
		return text, nil
	case colFloat:
		f := float64(math.Float32frombits(binary.NativeEndian.Uint32(c.buf)))
		return strconv.FormatFloat(f, 'g', -1, 32), nil
	case colDouble:
		f := math.Float64frombits(binary.NativeEndian.Uint64(c.buf))
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case colDate:
		t, err := decodeOCIDate(c.buf)
		if err != nil {
			return "", err
		}
		return t.Format("2006-01-02 15:04:05"), nil
	case colTimestamp:
		return r.timestampText(c, "YYYY-MM-DD HH24:MI:SSXFF")
	case colTimestampTZ, colTimestampLTZ:
		return r.timestampText(c, "YYYY-MM-DD HH24:MI:SSXFF TZH:TZM")
	case colIntervalYM, colIntervalDS:
		text, status := sc.api.IntervalToText(sc.env, sc.errh, c.handle)
		if !isSuccess(status) {
			return "", sc.fail(status)
		}
		return text, nil
	case colRowID:
		text, status := sc.api.RowidToText(sc.errh, c.handle)
		if !isSuccess(status) {
			return "", sc.fail(status)
		}
		return text, nil
	default:
		return "", interfaceErr("cannot convert column %q to text", c.name)
	}
}

func (r *Row) timestampText(c *Column, format string) (string, error) {
	sc := r.rows.st.sc
	text, status := sc.api.DateTimeToText(sc.env, sc.errh, c.handle, format, 3)
	if !isSuccess(status) {
		return "", sc.fail(status)
	}
	return text, nil
}

// Int64 returns the column value as a signed integer.
func (r *Row) Int64(pos any) (int64, error) {
	c, err := r.column(pos)
	if err != nil {
		return 0, err
	}
	if c.isNull() {
		return 0, ErrNullValue
	}
	sc := r.rows.st.sc
	switch c.kind {
	case colNumber:
		n, status := sc.api.NumberToInt(sc.errh, c.buf)
		if !isSuccess(status) {
			return 0, sc.fail(status)
		}
		return n, nil
	case colFloat:
		return int64(math.Float32frombits(binary.NativeEndian.Uint32(c.buf))), nil
	case colDouble:
		return int64(math.Float64frombits(binary.NativeEndian.Uint64(c.buf))), nil
	case colText:
		return strconv.ParseInt(string(c.buf[:c.rlen]), 10, 64)
	default:
		return 0, interfaceErr("cannot convert column %q to an integer", c.name)
	}
}

// Uint64 returns the column value as an unsigned integer.
func (r *Row) Uint64(pos any) (uint64, error) {
	c, err := r.column(pos)
	if err != nil {
		return 0, err
	}
	if c.isNull() {
		return 0, ErrNullValue
	}
	sc := r.rows.st.sc
	switch c.kind {
	case colNumber:
		n, status := sc.api.NumberToUint(sc.errh, c.buf)
		if !isSuccess(status) {
			return 0, sc.fail(status)
		}
		return n, nil
	case colText:
		return strconv.ParseUint(string(c.buf[:c.rlen]), 10, 64)
	default:
		return 0, interfaceErr("cannot convert column %q to an unsigned integer", c.name)
	}
}

// Float64 returns the column value as a float.
func (r *Row) Float64(pos any) (float64, error) {
	c, err := r.column(pos)
	if err != nil {
		return 0, err
	}
	if c.isNull() {
		return 0, ErrNullValue
	}
	sc := r.rows.st.sc
	switch c.kind {
	case colNumber:
		f, status := sc.api.NumberToFloat(sc.errh, c.buf)
		if !isSuccess(status) {
			return 0, sc.fail(status)
		}
		return f, nil
	case colFloat:
		return float64(math.Float32frombits(binary.NativeEndian.Uint32(c.buf))), nil
	case colDouble:
		return math.Float64frombits(binary.NativeEndian.Uint64(c.buf)), nil
	case colText:
		return strconv.ParseFloat(string(c.buf[:c.rlen]), 64)
	default:
		return 0, interfaceErr("cannot convert column %q to a float", c.name)
	}
}

// Bytes returns the column value as raw bytes. Text and binary buffers are
// copied out, truncated to the returned length.
func (r *Row) Bytes(pos any) ([]byte, error) {
	c, err := r.column(pos)
	if err != nil {
		return nil, err
	}
	if c.isNull() {
		return nil, ErrNullValue
	}
	switch c.kind {
	case colText, colBinary:
		out := make([]byte, c.rlen)
		copy(out, c.buf[:c.rlen])
		return out, nil
	default:
		return nil, interfaceErr("cannot convert column %q to bytes", c.name)
	}
}

// Time returns the column value as time.Time. Dates and all three
// timestamp flavors convert.
func (r *Row) Time(pos any) (time.Time, error) {
	c, err := r.column(pos)
	if err != nil {
		return time.Time{}, err
	}
	if c.isNull() {
		return time.Time{}, ErrNullValue
	}
	switch c.kind {
	case colDate:
		return decodeOCIDate(c.buf)
	case colTimestamp, colTimestampTZ, colTimestampLTZ:
		return r.decodeTimestamp(c)
	default:
		return time.Time{}, interfaceErr("cannot convert column %q to a time", c.name)
	}
}

// Cursor takes the nested cursor out of the column. The embedded statement
// handle is yielded at most once per fetched row; a second take fails with
// ErrConsumed.
func (r *Row) Cursor(pos any) (*Cursor, error) {
	c, err := r.column(pos)
	if err != nil {
		return nil, err
	}
	if c.isNull() {
		return nil, ErrNullValue
	}
	if c.kind != colCursor {
		return nil, interfaceErr("column %q is not a cursor", c.name)
	}
	sc := r.rows.st.sc
	h, err := c.takeHandle(sc.api, sc.env, sc.errh)
	if err != nil {
		return nil, err
	}
	return newCursor(sc, h, r.rows.st.longLimit), nil
}

// LOB takes the large-object locator out of the column. The locator is
// yielded at most once per fetched row; a second take fails with
// ErrConsumed.
func (r *Row) LOB(pos any) (*LOB, error) {
	c, err := r.column(pos)
	if err != nil {
		return nil, err
	}
	if c.isNull() {
		return nil, ErrNullValue
	}
	switch c.kind {
	case colCLOB, colBLOB, colBFile:
	default:
		return nil, interfaceErr("column %q is not a LOB", c.name)
	}
	sc := r.rows.st.sc
	h, err := c.takeHandle(sc.api, sc.env, sc.errh)
	if err != nil {
		return nil, err
	}
	dtype := dtypeLob
	if c.kind == colBFile {
		dtype = dtypeFile
	}
	return &LOB{sc: sc.retain(), locator: h, dtype: dtype}, nil
}

// RowID takes the row identifier descriptor out of the column. The
// descriptor is yielded at most once per fetched row; a second take fails
// with ErrConsumed. Use Row.String on the same column to render the rowid
// without consuming it.
func (r *Row) RowID(pos any) (*RowID, error) {
	c, err := r.column(pos)
	if err != nil {
		return nil, err
	}
	if c.isNull() {
		return nil, ErrNullValue
	}
	if c.kind != colRowID {
		return nil, interfaceErr("column %q is not a rowid", c.name)
	}
	sc := r.rows.st.sc
	h, err := c.takeHandle(sc.api, sc.env, sc.errh)
	if err != nil {
		return nil, err
	}
	return &RowID{sc: sc.retain(), desc: h}, nil
}

// LOB holds a large-object locator taken from a fetched row. Streaming
// helpers live with the LOB collaborator layer; the driver core only
// manages the locator's lifetime.
type LOB struct {
	sc      *ServiceContext
	locator uintptr
	dtype   uint32
}

// Close frees the locator and releases its service context reference.
func (l *LOB) Close() error {
	if l.locator != 0 {
		l.sc.api.DescriptorFree(l.locator, l.dtype)
		l.locator = 0
		l.sc.release()
	}
	return nil
}

// RowID holds a row identifier descriptor taken from a fetched row.
type RowID struct {
	sc   *ServiceContext
	desc uintptr
}

// String renders the rowid in its external character form.
func (r *RowID) String() string {
	if r.desc == 0 {
		return ""
	}
	text, status := r.sc.api.RowidToText(r.sc.errh, r.desc)
	if !isSuccess(status) {
		return ""
	}
	return text
}

// Close frees the descriptor and releases its service context reference.
func (r *RowID) Close() error {
	if r.desc != 0 {
		r.sc.api.DescriptorFree(r.desc, dtypeRowid)
		r.desc = 0
		r.sc.release()
	}
	return nil
}

package oracle

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeNative is an in-memory stand-in for the Oracle client library. Tests
// script it with statements keyed by SQL text; it plays back placeholder
// metadata, column metadata and row data, and records the sequence of calls
// so tests can assert on ordering.
//
// NUMBER values travel as NUL-padded decimal strings, which is all the
// codec methods need to honor their contract.
type fakeNative struct {
	mu      sync.Mutex
	seq     uintptr
	scripts map[string]*fakeScript
	stmts   map[uintptr]*fakeStmtState
	params  map[uintptr]fakeParamKey
	calls   []string

	lastErrCode int32
	lastErrMsg  string

	lobInit    map[uintptr]bool
	rowids     map[uintptr]string
	intervals  map[uintptr]string
	timestamps map[uintptr]time.Time

	numberCalls int

	sessionEndStill int
	pingErr         int32
}

// fakeCol describes one projected column of a scripted statement.
type fakeCol struct {
	name     string
	typ      uint16
	size     int
	nullable bool
}

// fakeScript is the behavior of one SQL text: its statement kind, its
// placeholder slots, its projection and the rows it yields.
type fakeScript struct {
	kind  uint16
	binds []string
	dups  []bool
	cols  []fakeCol
	rows  [][]any

	// outs maps 1-based bind positions to values written back on execute;
	// a nil value writes a NULL indicator.
	outs map[int]any

	rowsAffected uint64
	execStill    int
	fetchStill   int
	execErrCode  int32
	execErrMsg   string
}

type fakeBind struct {
	typ  uint16
	buf  []byte
	ind  *int16
	alen *uint32
}

type fakeDef struct {
	typ       uint16
	buf       []byte
	ind       *int16
	rlen      *uint32
	handlePtr *uintptr
}

type fakeStmtState struct {
	sql        string
	script     *fakeScript
	binds      map[uint32]*fakeBind
	defs       map[uint32]*fakeDef
	row        int
	fetched    uint64
	executes   int
	defineOps  int
	execStill  int
	fetchStill int
}

func newFakeNative() *fakeNative {
	return &fakeNative{
		scripts:    make(map[string]*fakeScript),
		stmts:      make(map[uintptr]*fakeStmtState),
		params:     make(map[uintptr]fakeParamKey),
		lobInit:    make(map[uintptr]bool),
		rowids:     make(map[uintptr]string),
		intervals:  make(map[uintptr]string),
		timestamps: make(map[uintptr]time.Time),
	}
}

func (f *fakeNative) script(sql string, s *fakeScript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.dups == nil {
		s.dups = make([]bool, len(s.binds))
	}
	f.scripts[sql] = s
}

func (f *fakeNative) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeNative) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeNative) callCount(name string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeNative) nextHandle() uintptr {
	f.seq++
	return 0x1000 + f.seq
}

func (f *fakeNative) setErr(code int32, msg string) int32 {
	f.lastErrCode = code
	f.lastErrMsg = msg
	return OCIError
}

func (f *fakeNative) EnvCreate(mode uint32) (uintptr, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnvCreate")
	return f.nextHandle(), OCISuccess
}

func (f *fakeNative) HandleAlloc(env uintptr, htype uint32) (uintptr, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("HandleAlloc:%d", htype))
	h := f.nextHandle()
	if htype == htypeStmt {
		f.stmts[h] = &fakeStmtState{
			binds: make(map[uint32]*fakeBind),
			defs:  make(map[uint32]*fakeDef),
		}
	}
	return h, OCISuccess
}

func (f *fakeNative) HandleFree(h uintptr, htype uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("HandleFree:%d", htype))
	if htype == htypeStmt {
		delete(f.stmts, h)
	}
	return OCISuccess
}

func (f *fakeNative) DescriptorAlloc(env uintptr, dtype uint32) (uintptr, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DescriptorAlloc")
	return f.nextHandle(), OCISuccess
}

func (f *fakeNative) DescriptorFree(d uintptr, dtype uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DescriptorFree")
	delete(f.lobInit, d)
	return OCISuccess
}

func (f *fakeNative) AttrGetUint(h uintptr, htype uint32, attr uint32, errh uintptr) (uint64, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if htype == htypeStmt {
		st := f.stmts[h]
		if st == nil || st.script == nil {
			return 0, f.setErr(24337, "statement handle not prepared")
		}
		switch attr {
		case attrStmtType:
			return uint64(st.script.kind), OCISuccess
		case attrParamCount:
			return uint64(len(st.script.cols)), OCISuccess
		case attrRowCount:
			if st.script.kind == StmtSelect {
				return st.fetched, OCISuccess
			}
			return st.script.rowsAffected, OCISuccess
		}
		return 0, OCISuccess
	}
	if htype == dtypeParam {
		col, ok := f.paramCol(h)
		if !ok {
			return 0, f.setErr(24334, "no parameter at this position")
		}
		switch attr {
		case attrDataType:
			return uint64(col.typ), OCISuccess
		case attrDataSize:
			return uint64(col.size), OCISuccess
		case attrIsNull:
			if col.nullable {
				return 1, OCISuccess
			}
			return 0, OCISuccess
		}
	}
	return 0, OCISuccess
}

// Param handles encode the statement handle and column index so attribute
// reads can find their way back to the script.
type fakeParamKey struct {
	stmt uintptr
	pos  int
}

func (f *fakeNative) paramCol(h uintptr) (fakeCol, bool) {
	key, ok := f.params[h]
	if !ok {
		return fakeCol{}, false
	}
	st := f.stmts[key.stmt]
	if st == nil || st.script == nil || key.pos >= len(st.script.cols) {
		return fakeCol{}, false
	}
	return st.script.cols[key.pos], true
}

func (f *fakeNative) AttrGetPtr(h uintptr, htype uint32, attr uint32, errh uintptr) (uintptr, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AttrGetPtr")
	return f.nextHandle(), OCISuccess
}

func (f *fakeNative) AttrGetStr(h uintptr, htype uint32, attr uint32, errh uintptr) (string, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if htype == dtypeParam && attr == attrName {
		col, ok := f.paramCol(h)
		if !ok {
			return "", f.setErr(24334, "no parameter at this position")
		}
		return col.name, OCISuccess
	}
	return "", OCISuccess
}

func (f *fakeNative) AttrSetUint(h uintptr, htype uint32, attr uint32, val uint64, errh uintptr) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("AttrSetUint:%d", attr))
	return OCISuccess
}

func (f *fakeNative) AttrSetStr(h uintptr, htype uint32, attr uint32, val string, errh uintptr) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("AttrSetStr:%d", attr))
	return OCISuccess
}

func (f *fakeNative) ServerAttach(srv, errh uintptr, db string, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ServerAttach")
	return OCISuccess
}

func (f *fakeNative) ServerDetach(srv, errh uintptr, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ServerDetach")
	return OCISuccess
}

func (f *fakeNative) SessionBegin(svc, errh, session uintptr, credt, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SessionBegin")
	return OCISuccess
}

func (f *fakeNative) SessionEnd(svc, errh, session uintptr, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionEndStill > 0 {
		f.sessionEndStill--
		f.record("SessionEnd:still")
		return OCIStillExecuting
	}
	f.record("SessionEnd")
	return OCISuccess
}

func (f *fakeNative) SessionGet(env, errh, authInfo uintptr, db string, mode uint32) (uintptr, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SessionGet")
	return f.nextHandle(), OCISuccess
}

func (f *fakeNative) SessionRelease(svc, errh uintptr, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SessionRelease")
	return OCISuccess
}

func (f *fakeNative) SessionPoolCreate(env, errh, pool uintptr, db, user, pass string, min, max, incr uint32) (string, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SessionPoolCreate")
	return "pool_" + db, OCISuccess
}

func (f *fakeNative) SessionPoolDestroy(pool, errh uintptr, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SessionPoolDestroy")
	return OCISuccess
}

func (f *fakeNative) Ping(svc, errh uintptr) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Ping")
	if f.pingErr != 0 {
		return f.setErr(f.pingErr, "ping failed")
	}
	return OCISuccess
}

func (f *fakeNative) TransCommit(svc, errh uintptr, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TransCommit")
	return OCISuccess
}

func (f *fakeNative) TransRollback(svc, errh uintptr, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TransRollback")
	return OCISuccess
}

func (f *fakeNative) StmtPrepare(stmt, errh uintptr, sql string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StmtPrepare")
	st := f.stmts[stmt]
	script, ok := f.scripts[sql]
	if st == nil || !ok {
		return f.setErr(900, "invalid SQL statement")
	}
	st.sql = sql
	st.script = script
	st.execStill = script.execStill
	st.fetchStill = script.fetchStill
	return OCISuccess
}

func (f *fakeNative) StmtExecute(svc, stmt, errh uintptr, iters, mode uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.stmts[stmt]
	if st == nil || st.script == nil {
		return f.setErr(24337, "statement handle not prepared")
	}
	if st.execStill > 0 {
		st.execStill--
		f.record("StmtExecute:still")
		return OCIStillExecuting
	}
	f.record("StmtExecute")
	if st.script.execErrCode != 0 {
		return f.setErr(st.script.execErrCode, st.script.execErrMsg)
	}
	st.executes++
	st.row = 0
	st.fetched = 0
	for pos, val := range st.script.outs {
		b := st.binds[uint32(pos)]
		if b == nil {
			continue
		}
		f.writeOut(b, val)
	}
	return OCISuccess
}

func (f *fakeNative) writeOut(b *fakeBind, val any) {
	if val == nil {
		if b.ind != nil {
			*b.ind = indNull
		}
		return
	}
	if b.ind != nil {
		*b.ind = indNotNull
	}
	switch v := val.(type) {
	case string:
		n := copy(b.buf, v)
		if b.alen != nil {
			*b.alen = uint32(n)
		}
	case []byte:
		n := copy(b.buf, v)
		if b.alen != nil {
			*b.alen = uint32(n)
		}
	case int64:
		binary.NativeEndian.PutUint64(b.buf, uint64(v))
		if b.alen != nil {
			*b.alen = 8
		}
	case float64:
		binary.NativeEndian.PutUint64(b.buf, math.Float64bits(v))
		if b.alen != nil {
			*b.alen = 8
		}
	case time.Time:
		copy(b.buf, encodeOCIDate(v))
		if b.alen != nil {
			*b.alen = ociDateSize
		}
	}
}

func (f *fakeNative) StmtFetch(stmt, errh uintptr, nrows uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.stmts[stmt]
	if st == nil || st.script == nil {
		return f.setErr(24337, "statement handle not prepared")
	}
	if st.fetchStill > 0 {
		st.fetchStill--
		f.record("StmtFetch:still")
		return OCIStillExecuting
	}
	f.record("StmtFetch")
	if st.row >= len(st.script.rows) {
		return OCINoData
	}
	row := st.script.rows[st.row]
	st.row++
	st.fetched++
	for i, val := range row {
		def := st.defs[uint32(i+1)]
		if def == nil {
			continue
		}
		f.writeCol(def, st.script.cols[i], val)
	}
	return OCISuccess
}

func (f *fakeNative) writeCol(def *fakeDef, col fakeCol, val any) {
	if val == nil {
		if def.ind != nil {
			*def.ind = indNull
		}
		return
	}
	if def.ind != nil {
		*def.ind = indNotNull
	}
	switch col.typ {
	case sqltChr, sqltAfc, sqltLng:
		s := val.(string)
		n := copy(def.buf, s)
		*def.rlen = uint32(n)
	case sqltBin, sqltLbi:
		b := val.([]byte)
		n := copy(def.buf, b)
		*def.rlen = uint32(n)
	case sqltNum, sqltVnu:
		var s string
		switch v := val.(type) {
		case int64:
			s = strconv.FormatInt(v, 10)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case string:
			s = v
		}
		for i := range def.buf {
			def.buf[i] = 0
		}
		n := copy(def.buf, s)
		*def.rlen = uint32(n)
	case sqltIBFloat, sqltBFloat:
		binary.NativeEndian.PutUint32(def.buf, math.Float32bits(val.(float32)))
		*def.rlen = 4
	case sqltIBDouble, sqltBDouble:
		binary.NativeEndian.PutUint64(def.buf, math.Float64bits(val.(float64)))
		*def.rlen = 8
	case sqltDat:
		copy(def.buf, encodeOCIDate(val.(time.Time)))
		*def.rlen = ociDateSize
	case sqltClob, sqltBlob, sqltBFile:
		f.lobInit[*def.handlePtr] = true
	case sqltRdd:
		f.rowids[*def.handlePtr] = val.(string)
	case sqltTimestamp, sqltTimestampTZ, sqltTimestampLTZ:
		f.timestamps[*def.handlePtr] = val.(time.Time)
	case sqltIntervalYM, sqltIntervalDS:
		f.intervals[*def.handlePtr] = val.(string)
	case sqltRSet:
		script := val.(*fakeScript)
		if script.dups == nil {
			script.dups = make([]bool, len(script.binds))
		}
		f.stmts[*def.handlePtr] = &fakeStmtState{
			script: script,
			binds:  make(map[uint32]*fakeBind),
			defs:   make(map[uint32]*fakeDef),
		}
	}
}

func (f *fakeNative) BindInfo(stmt, errh uintptr) ([]string, []bool, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BindInfo")
	st := f.stmts[stmt]
	if st == nil || st.script == nil {
		return nil, nil, f.setErr(24337, "statement handle not prepared")
	}
	return st.script.binds, st.script.dups, OCISuccess
}

func (f *fakeNative) BindByPos(stmt, errh uintptr, pos uint32, typ uint16, buf []byte, ind *int16, alen *uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("BindByPos:%d", pos))
	st := f.stmts[stmt]
	if st == nil {
		return f.setErr(24337, "statement handle not prepared")
	}
	st.binds[pos] = &fakeBind{typ: typ, buf: buf, ind: ind, alen: alen}
	return OCISuccess
}

func (f *fakeNative) DefineByPos(stmt, errh uintptr, pos uint32, typ uint16, buf []byte, ind *int16, rlen *uint32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("DefineByPos:%d", pos))
	st := f.stmts[stmt]
	if st == nil {
		return f.setErr(24337, "statement handle not prepared")
	}
	st.defs[pos] = &fakeDef{typ: typ, buf: buf, ind: ind, rlen: rlen}
	st.defineOps++
	return OCISuccess
}

func (f *fakeNative) DefineHandleByPos(stmt, errh uintptr, pos uint32, typ uint16, handle *uintptr, ind *int16) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("DefineHandleByPos:%d", pos))
	st := f.stmts[stmt]
	if st == nil {
		return f.setErr(24337, "statement handle not prepared")
	}
	st.defs[pos] = &fakeDef{typ: typ, handlePtr: handle, ind: ind}
	st.defineOps++
	return OCISuccess
}

func (f *fakeNative) ParamGet(stmt, errh uintptr, pos uint32) (uintptr, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.stmts[stmt]
	if st == nil || st.script == nil || int(pos) > len(st.script.cols) {
		return 0, f.setErr(24334, "no parameter at this position")
	}
	h := f.nextHandle()
	f.params[h] = fakeParamKey{stmt: stmt, pos: int(pos) - 1}
	return h, OCISuccess
}

func (f *fakeNative) ErrorGet(errh uintptr) (int32, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErrCode, f.lastErrMsg
}

func trimNumber(num []byte) string {
	return strings.TrimRight(string(num), "\x00")
}

func (f *fakeNative) NumberToInt(errh uintptr, num []byte) (int64, int32) {
	f.mu.Lock()
	f.numberCalls++
	f.mu.Unlock()
	n, err := strconv.ParseInt(trimNumber(num), 10, 64)
	if err != nil {
		return 0, f.setErr(1722, "invalid number")
	}
	return n, OCISuccess
}

func (f *fakeNative) NumberToUint(errh uintptr, num []byte) (uint64, int32) {
	f.mu.Lock()
	f.numberCalls++
	f.mu.Unlock()
	n, err := strconv.ParseUint(trimNumber(num), 10, 64)
	if err != nil {
		return 0, f.setErr(1722, "invalid number")
	}
	return n, OCISuccess
}

func (f *fakeNative) NumberToFloat(errh uintptr, num []byte) (float64, int32) {
	f.mu.Lock()
	f.numberCalls++
	f.mu.Unlock()
	v, err := strconv.ParseFloat(trimNumber(num), 64)
	if err != nil {
		return 0, f.setErr(1722, "invalid number")
	}
	return v, OCISuccess
}

func (f *fakeNative) NumberToText(errh uintptr, num []byte, format string) (string, int32) {
	f.mu.Lock()
	f.numberCalls++
	f.mu.Unlock()
	return trimNumber(num), OCISuccess
}

func (f *fakeNative) DateTimeGetDate(env, errh, dt uintptr) (int32, uint8, uint8, int32) {
	f.mu.Lock()
	t, ok := f.timestamps[dt]
	f.mu.Unlock()
	if !ok {
		return 0, 0, 0, f.setErr(1858, "uninitialized datetime")
	}
	return int32(t.Year()), uint8(t.Month()), uint8(t.Day()), OCISuccess
}

func (f *fakeNative) DateTimeGetTime(env, errh, dt uintptr) (uint8, uint8, uint8, uint32, int32) {
	f.mu.Lock()
	t, ok := f.timestamps[dt]
	f.mu.Unlock()
	if !ok {
		return 0, 0, 0, 0, f.setErr(1858, "uninitialized datetime")
	}
	return uint8(t.Hour()), uint8(t.Minute()), uint8(t.Second()), uint32(t.Nanosecond()), OCISuccess
}

func (f *fakeNative) DateTimeGetTimeZoneOffset(env, errh, dt uintptr) (int32, int32, int32) {
	f.mu.Lock()
	t, ok := f.timestamps[dt]
	f.mu.Unlock()
	if !ok {
		return 0, 0, f.setErr(1858, "uninitialized datetime")
	}
	_, off := t.Zone()
	return int32(off / 3600), int32(off % 3600 / 60), OCISuccess
}

func (f *fakeNative) DateTimeConvert(env, errh, from, to uintptr) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timestamps[to] = f.timestamps[from]
	return OCISuccess
}

func (f *fakeNative) DateTimeToText(env, errh, dt uintptr, format string, precision uint8) (string, int32) {
	f.mu.Lock()
	t, ok := f.timestamps[dt]
	f.mu.Unlock()
	if !ok {
		return "", f.setErr(1858, "uninitialized datetime")
	}
	return t.Format("2006-01-02 15:04:05.000"), OCISuccess
}

func (f *fakeNative) IntervalGetYearMonth(env, errh, intv uintptr) (int32, int32, int32) {
	return 0, 0, OCISuccess
}

func (f *fakeNative) IntervalGetDaySecond(env, errh, intv uintptr) (int32, int32, int32, int32, int32, int32) {
	return 0, 0, 0, 0, 0, OCISuccess
}

func (f *fakeNative) IntervalToText(env, errh, intv uintptr) (string, int32) {
	f.mu.Lock()
	s, ok := f.intervals[intv]
	f.mu.Unlock()
	if !ok {
		return "", f.setErr(1867, "uninitialized interval")
	}
	return s, OCISuccess
}

func (f *fakeNative) LobIsInitialized(env, errh, lob uintptr) (bool, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lobInit[lob], OCISuccess
}

func (f *fakeNative) RowidToText(errh, rowid uintptr) (string, int32) {
	f.mu.Lock()
	s, ok := f.rowids[rowid]
	f.mu.Unlock()
	if !ok {
		return "", f.setErr(1410, "invalid ROWID")
	}
	return s, OCISuccess
}

func (f *fakeNative) ClientVersion() (int32, int32, int32, int32, int32) {
	return 21, 3, 0, 0, 0
}

// fakeConnect opens a blocking-mode connection against a fresh fake.
func fakeConnect(cfg Config, f *fakeNative) (*Connection, error) {
	cfg.api = f
	if cfg.Database == "" {
		cfg.Database = "localhost:1521/TESTPDB"
	}
	if cfg.Username == "" {
		cfg.Username = "tester"
		cfg.Password = "secret"
	}
	return Connect(cfg)
}

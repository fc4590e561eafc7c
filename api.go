package oracle

// nativeAPI is the driver's view of the Oracle Call Interface. The engine
// talks exclusively to this interface; the purego-backed implementation in
// native.go is the production one, package tests substitute an in-memory
// surface.
//
// Every call returns an OCI status. A call returns exactly one of success,
// success-with-info, no-data, still-executing or error; still-executing is
// only ever observed on a session in non-blocking mode and is consumed by
// the polling adapter, never by callers of this interface's users.
//
// Buffers passed to BindByPos and DefineByPos must stay alive and in place
// until the statement is re-bound, re-defined or released: the native layer
// keeps their addresses and writes through them on execute and fetch.
type nativeAPI interface {
	// Handle and descriptor management.
	EnvCreate(mode uint32) (env uintptr, status int32)
	HandleAlloc(env uintptr, htype uint32) (uintptr, int32)
	HandleFree(h uintptr, htype uint32) int32
	DescriptorAlloc(env uintptr, dtype uint32) (uintptr, int32)
	DescriptorFree(d uintptr, dtype uint32) int32

	// Attribute access.
	AttrGetUint(h uintptr, htype uint32, attr uint32, errh uintptr) (uint64, int32)
	AttrGetPtr(h uintptr, htype uint32, attr uint32, errh uintptr) (uintptr, int32)
	AttrGetStr(h uintptr, htype uint32, attr uint32, errh uintptr) (string, int32)
	AttrSetUint(h uintptr, htype uint32, attr uint32, val uint64, errh uintptr) int32
	AttrSetStr(h uintptr, htype uint32, attr uint32, val string, errh uintptr) int32

	// Server, session and transaction calls.
	ServerAttach(srv, errh uintptr, db string, mode uint32) int32
	ServerDetach(srv, errh uintptr, mode uint32) int32
	SessionBegin(svc, errh, session uintptr, credt, mode uint32) int32
	SessionEnd(svc, errh, session uintptr, mode uint32) int32
	SessionGet(env, errh, authInfo uintptr, db string, mode uint32) (svc uintptr, status int32)
	SessionRelease(svc, errh uintptr, mode uint32) int32
	SessionPoolCreate(env, errh, pool uintptr, db, user, pass string, min, max, incr uint32) (name string, status int32)
	SessionPoolDestroy(pool, errh uintptr, mode uint32) int32
	Ping(svc, errh uintptr) int32
	TransCommit(svc, errh uintptr, mode uint32) int32
	TransRollback(svc, errh uintptr, mode uint32) int32

	// Statement calls.
	StmtPrepare(stmt, errh uintptr, sql string) int32
	StmtExecute(svc, stmt, errh uintptr, iters, mode uint32) int32
	StmtFetch(stmt, errh uintptr, nrows uint32) int32
	// BindInfo reports the statement's placeholder names in placeholder
	// order. dup[i] is set when slot i repeats an earlier name; such slots
	// carry no entry of their own in the name index.
	BindInfo(stmt, errh uintptr) (names []string, dup []bool, status int32)
	BindByPos(stmt, errh uintptr, pos uint32, typ uint16, buf []byte, ind *int16, alen *uint32) int32
	DefineByPos(stmt, errh uintptr, pos uint32, typ uint16, buf []byte, ind *int16, rlen *uint32) int32
	// DefineHandleByPos defines a column whose output is a descriptor or
	// statement handle (cursor, LOB locator, rowid, timestamp, interval).
	// The native layer writes through handle on fetch.
	DefineHandleByPos(stmt, errh uintptr, pos uint32, typ uint16, handle *uintptr, ind *int16) int32
	ParamGet(stmt, errh uintptr, pos uint32) (param uintptr, status int32)

	// Error retrieval.
	ErrorGet(errh uintptr) (code int32, message string)

	// Type codecs. These are opaque capabilities over the native value
	// encodings; the materializer dispatches to them and never interprets
	// the raw bytes itself (the fixed 7-byte date layout is the one
	// exception, see date.go).
	NumberToInt(errh uintptr, num []byte) (int64, int32)
	NumberToUint(errh uintptr, num []byte) (uint64, int32)
	NumberToFloat(errh uintptr, num []byte) (float64, int32)
	NumberToText(errh uintptr, num []byte, format string) (string, int32)
	DateTimeGetDate(env, errh, dt uintptr) (year int32, month, day uint8, status int32)
	DateTimeGetTime(env, errh, dt uintptr) (hour, min, sec uint8, nsec uint32, status int32)
	DateTimeGetTimeZoneOffset(env, errh, dt uintptr) (hourOff, minOff int32, status int32)
	DateTimeConvert(env, errh, from, to uintptr) int32
	DateTimeToText(env, errh, dt uintptr, format string, precision uint8) (string, int32)
	IntervalGetYearMonth(env, errh, intv uintptr) (years, months int32, status int32)
	IntervalGetDaySecond(env, errh, intv uintptr) (days, hours, mins, secs, nsecs int32, status int32)
	IntervalToText(env, errh, intv uintptr) (string, int32)
	LobIsInitialized(env, errh, lob uintptr) (bool, int32)
	RowidToText(errh, rowid uintptr) (string, int32)
	ClientVersion() (major, minor, update, patch, portPatch int32)
}

// isSuccess reports whether a status is a completed, non-error outcome.
func isSuccess(status int32) bool {
	return status == OCISuccess || status == OCISuccessWithInfo
}

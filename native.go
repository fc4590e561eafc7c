package oracle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Library loader
var (
	ociLibOnce    sync.Once
	ociLibLoaded  bool
	ociLibError   error
	ociLibPath    string
	ociLibHandler unsafe.Pointer
)

// Dynamically loaded OCI function pointers
var (
	fnEnvNlsCreate        unsafe.Pointer
	fnHandleAlloc         unsafe.Pointer
	fnHandleFree          unsafe.Pointer
	fnDescriptorAlloc     unsafe.Pointer
	fnDescriptorFree      unsafe.Pointer
	fnAttrGet             unsafe.Pointer
	fnAttrSet             unsafe.Pointer
	fnServerAttach        unsafe.Pointer
	fnServerDetach        unsafe.Pointer
	fnSessionBegin        unsafe.Pointer
	fnSessionEnd          unsafe.Pointer
	fnSessionGet          unsafe.Pointer
	fnSessionRelease      unsafe.Pointer
	fnSessionPoolCreate   unsafe.Pointer
	fnSessionPoolDestroy  unsafe.Pointer
	fnPing                unsafe.Pointer
	fnTransCommit         unsafe.Pointer
	fnTransRollback       unsafe.Pointer
	fnStmtPrepare         unsafe.Pointer
	fnStmtExecute         unsafe.Pointer
	fnStmtFetch2          unsafe.Pointer
	fnStmtGetBindInfo     unsafe.Pointer
	fnBindByPos2          unsafe.Pointer
	fnDefineByPos2        unsafe.Pointer
	fnParamGet            unsafe.Pointer
	fnErrorGet            unsafe.Pointer
	fnNumberToInt         unsafe.Pointer
	fnNumberToReal        unsafe.Pointer
	fnNumberToText        unsafe.Pointer
	fnDateTimeGetDate     unsafe.Pointer
	fnDateTimeGetTime     unsafe.Pointer
	fnDateTimeGetTZOffset unsafe.Pointer
	fnDateTimeConvert     unsafe.Pointer
	fnDateTimeToText      unsafe.Pointer
	fnIntervalGetYM       unsafe.Pointer
	fnIntervalGetDS       unsafe.Pointer
	fnIntervalToText      unsafe.Pointer
	fnLobLocatorIsInit    unsafe.Pointer
	fnRowidToChar         unsafe.Pointer
	fnClientVersion       unsafe.Pointer
)

// ClientAvailable returns true if the Oracle client library was found and
// all required entry points resolved.
func ClientAvailable() bool {
	loadOCILibrary()
	return ociLibLoaded
}

// ClientLibraryError returns any error that occurred while loading the
// Oracle client library.
func ClientLibraryError() error {
	loadOCILibrary()
	return ociLibError
}

// Attempts to load the Oracle client library
func loadOCILibrary() {
	ociLibOnce.Do(func() {
		ociLibPath = findOCILibraryPath()
		if ociLibPath == "" {
			ociLibError = errors.New("oracle client library not found")
			return
		}

		handler, err := loadDynamicLibrary(ociLibPath)
		if err != nil {
			ociLibError = fmt.Errorf("failed to load oracle client library: %v", err)
			return
		}
		ociLibHandler = handler

		if err := resolveOCIFunctions(); err != nil {
			closeLibrary(ociLibHandler)
			ociLibError = err
			return
		}

		ociLibLoaded = true
	})
}

// Find the path to the Oracle client library based on environment and OS
// conventions. GO_ORACLE_LIB overrides everything; otherwise ORACLE_HOME
// and the usual instant client locations are probed, and finally the bare
// library name is returned so the system loader can search its own path.
func findOCILibraryPath() string {
	if path := os.Getenv("GO_ORACLE_LIB"); path != "" {
		return path
	}

	var libName string
	switch runtime.GOOS {
	case "windows":
		libName = "oci.dll"
	case "darwin":
		libName = "libclntsh.dylib"
	default:
		libName = "libclntsh.so"
	}

	var dirs []string
	if home := os.Getenv("ORACLE_HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, "lib"), home)
	}
	dirs = append(dirs,
		"/usr/lib/oracle/client64/lib",
		"/opt/oracle/instantclient",
		"/usr/local/lib",
	)

	for _, dir := range dirs {
		candidate := filepath.Join(dir, libName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	// Let the dynamic loader search its default path.
	return libName
}

func resolveOCIFunctions() error {
	symbols := []struct {
		name string
		ptr  *unsafe.Pointer
	}{
		{"OCIEnvNlsCreate", &fnEnvNlsCreate},
		{"OCIHandleAlloc", &fnHandleAlloc},
		{"OCIHandleFree", &fnHandleFree},
		{"OCIDescriptorAlloc", &fnDescriptorAlloc},
		{"OCIDescriptorFree", &fnDescriptorFree},
		{"OCIAttrGet", &fnAttrGet},
		{"OCIAttrSet", &fnAttrSet},
		{"OCIServerAttach", &fnServerAttach},
		{"OCIServerDetach", &fnServerDetach},
		{"OCISessionBegin", &fnSessionBegin},
		{"OCISessionEnd", &fnSessionEnd},
		{"OCISessionGet", &fnSessionGet},
		{"OCISessionRelease", &fnSessionRelease},
		{"OCISessionPoolCreate", &fnSessionPoolCreate},
		{"OCISessionPoolDestroy", &fnSessionPoolDestroy},
		{"OCIPing", &fnPing},
		{"OCITransCommit", &fnTransCommit},
		{"OCITransRollback", &fnTransRollback},
		{"OCIStmtPrepare", &fnStmtPrepare},
		{"OCIStmtExecute", &fnStmtExecute},
		{"OCIStmtFetch2", &fnStmtFetch2},
		{"OCIStmtGetBindInfo", &fnStmtGetBindInfo},
		{"OCIBindByPos2", &fnBindByPos2},
		{"OCIDefineByPos2", &fnDefineByPos2},
		{"OCIParamGet", &fnParamGet},
		{"OCIErrorGet", &fnErrorGet},
		{"OCINumberToInt", &fnNumberToInt},
		{"OCINumberToReal", &fnNumberToReal},
		{"OCINumberToText", &fnNumberToText},
		{"OCIDateTimeGetDate", &fnDateTimeGetDate},
		{"OCIDateTimeGetTime", &fnDateTimeGetTime},
		{"OCIDateTimeGetTimeZoneOffset", &fnDateTimeGetTZOffset},
		{"OCIDateTimeConvert", &fnDateTimeConvert},
		{"OCIDateTimeToText", &fnDateTimeToText},
		{"OCIIntervalGetYearMonth", &fnIntervalGetYM},
		{"OCIIntervalGetDaySecond", &fnIntervalGetDS},
		{"OCIIntervalToText", &fnIntervalToText},
		{"OCILobLocatorIsInit", &fnLobLocatorIsInit},
		{"OCIRowidToChar", &fnRowidToChar},
		{"OCIClientVersion", &fnClientVersion},
	}

	for _, sym := range symbols {
		ptr, err := getSymbol(ociLibHandler, sym.name)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %v", sym.name, err)
		}
		*sym.ptr = ptr
	}
	return nil
}

// defaultAPI loads the Oracle client library and returns the production
// native call surface.
func defaultAPI() (nativeAPI, error) {
	loadOCILibrary()
	if !ociLibLoaded {
		return nil, ociLibError
	}
	return ociClient{}, nil
}

// ociClient implements nativeAPI over the dynamically loaded client library.
type ociClient struct{}

// ociCall invokes a resolved OCI entry point and returns its sword status.
func ociCall(fn unsafe.Pointer, args ...uintptr) int32 {
	r1, _, _ := purego.SyscallN(uintptr(fn), args...)
	return int32(r1)
}

func bufRef(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// strBytes returns a NUL-terminated copy of s. OCI takes (pointer, length)
// pairs almost everywhere, but the terminator keeps the few OCI_NTV flavors
// safe too.
func strBytes(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// goStringN reads n bytes of native memory as a string.
func goStringN(ptr uintptr, n int) string {
	if ptr == 0 || n <= 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
}

func (ociClient) EnvCreate(mode uint32) (uintptr, int32) {
	var env uintptr
	st := ociCall(fnEnvNlsCreate,
		uintptr(unsafe.Pointer(&env)), uintptr(mode),
		0, 0, 0, 0, 0, 0,
		0, 0) // charset, ncharset: environment defaults
	return env, st
}

func (ociClient) HandleAlloc(env uintptr, htype uint32) (uintptr, int32) {
	var h uintptr
	st := ociCall(fnHandleAlloc, env, uintptr(unsafe.Pointer(&h)), uintptr(htype), 0, 0)
	return h, st
}

func (ociClient) HandleFree(h uintptr, htype uint32) int32 {
	return ociCall(fnHandleFree, h, uintptr(htype))
}

func (ociClient) DescriptorAlloc(env uintptr, dtype uint32) (uintptr, int32) {
	var d uintptr
	st := ociCall(fnDescriptorAlloc, env, uintptr(unsafe.Pointer(&d)), uintptr(dtype), 0, 0)
	return d, st
}

func (ociClient) DescriptorFree(d uintptr, dtype uint32) int32 {
	return ociCall(fnDescriptorFree, d, uintptr(dtype))
}

func (ociClient) AttrGetUint(h uintptr, htype, attr uint32, errh uintptr) (uint64, int32) {
	var val uint64
	st := ociCall(fnAttrGet, h, uintptr(htype), uintptr(unsafe.Pointer(&val)), 0, uintptr(attr), errh)
	return val, st
}

func (ociClient) AttrGetPtr(h uintptr, htype, attr uint32, errh uintptr) (uintptr, int32) {
	var val uintptr
	st := ociCall(fnAttrGet, h, uintptr(htype), uintptr(unsafe.Pointer(&val)), 0, uintptr(attr), errh)
	return val, st
}

func (ociClient) AttrGetStr(h uintptr, htype, attr uint32, errh uintptr) (string, int32) {
	var ptr uintptr
	var size uint32
	st := ociCall(fnAttrGet, h, uintptr(htype),
		uintptr(unsafe.Pointer(&ptr)), uintptr(unsafe.Pointer(&size)), uintptr(attr), errh)
	if !isSuccess(st) {
		return "", st
	}
	return goStringN(ptr, int(size)), st
}

func (ociClient) AttrSetUint(h uintptr, htype, attr uint32, val uint64, errh uintptr) int32 {
	return ociCall(fnAttrSet, h, uintptr(htype), uintptr(unsafe.Pointer(&val)), 0, uintptr(attr), errh)
}

func (ociClient) AttrSetStr(h uintptr, htype, attr uint32, val string, errh uintptr) int32 {
	b := strBytes(val)
	return ociCall(fnAttrSet, h, uintptr(htype), bufRef(b), uintptr(len(val)), uintptr(attr), errh)
}

func (ociClient) ServerAttach(srv, errh uintptr, db string, mode uint32) int32 {
	b := strBytes(db)
	return ociCall(fnServerAttach, srv, errh, bufRef(b), uintptr(len(db)), uintptr(mode))
}

func (ociClient) ServerDetach(srv, errh uintptr, mode uint32) int32 {
	return ociCall(fnServerDetach, srv, errh, uintptr(mode))
}

func (ociClient) SessionBegin(svc, errh, session uintptr, credt, mode uint32) int32 {
	return ociCall(fnSessionBegin, svc, errh, session, uintptr(credt), uintptr(mode))
}

func (ociClient) SessionEnd(svc, errh, session uintptr, mode uint32) int32 {
	return ociCall(fnSessionEnd, svc, errh, session, uintptr(mode))
}

func (ociClient) SessionGet(env, errh, authInfo uintptr, db string, mode uint32) (uintptr, int32) {
	var svc uintptr
	var found byte
	b := strBytes(db)
	st := ociCall(fnSessionGet,
		env, errh, uintptr(unsafe.Pointer(&svc)), authInfo,
		bufRef(b), uintptr(len(db)),
		0, 0, 0, 0, // tag in/out
		uintptr(unsafe.Pointer(&found)), uintptr(mode))
	return svc, st
}

func (ociClient) SessionRelease(svc, errh uintptr, mode uint32) int32 {
	return ociCall(fnSessionRelease, svc, errh, 0, 0, uintptr(mode))
}

func (ociClient) SessionPoolCreate(env, errh, pool uintptr, db, user, pass string, min, max, incr uint32) (string, int32) {
	var namePtr uintptr
	var nameLen uint32
	dbB, userB, passB := strBytes(db), strBytes(user), strBytes(pass)
	st := ociCall(fnSessionPoolCreate,
		env, errh, pool,
		uintptr(unsafe.Pointer(&namePtr)), uintptr(unsafe.Pointer(&nameLen)),
		bufRef(dbB), uintptr(len(db)),
		uintptr(min), uintptr(max), uintptr(incr),
		bufRef(userB), uintptr(len(user)),
		bufRef(passB), uintptr(len(pass)),
		uintptr(modeDefault))
	if !isSuccess(st) {
		return "", st
	}
	return goStringN(namePtr, int(nameLen)), st
}

func (ociClient) SessionPoolDestroy(pool, errh uintptr, mode uint32) int32 {
	return ociCall(fnSessionPoolDestroy, pool, errh, uintptr(mode))
}

func (ociClient) Ping(svc, errh uintptr) int32 {
	return ociCall(fnPing, svc, errh, uintptr(modeDefault))
}

func (ociClient) TransCommit(svc, errh uintptr, mode uint32) int32 {
	return ociCall(fnTransCommit, svc, errh, uintptr(mode))
}

func (ociClient) TransRollback(svc, errh uintptr, mode uint32) int32 {
	return ociCall(fnTransRollback, svc, errh, uintptr(mode))
}

func (ociClient) StmtPrepare(stmt, errh uintptr, sql string) int32 {
	const ociNtvSyntax = 1
	b := strBytes(sql)
	return ociCall(fnStmtPrepare, stmt, errh, bufRef(b), uintptr(len(sql)),
		uintptr(ociNtvSyntax), uintptr(modeDefault))
}

func (ociClient) StmtExecute(svc, stmt, errh uintptr, iters, mode uint32) int32 {
	return ociCall(fnStmtExecute, svc, stmt, errh, uintptr(iters), 0, 0, 0, uintptr(mode))
}

func (ociClient) StmtFetch(stmt, errh uintptr, nrows uint32) int32 {
	const ociFetchNext = 2
	return ociCall(fnStmtFetch2, stmt, errh, uintptr(nrows), uintptr(ociFetchNext), 0, uintptr(modeDefault))
}

func (c ociClient) BindInfo(stmt, errh uintptr) ([]string, []bool, int32) {
	count, st := c.AttrGetUint(stmt, htypeStmt, attrBindCount, errh)
	if !isSuccess(st) {
		return nil, nil, st
	}
	if count == 0 {
		return nil, nil, OCISuccess
	}
	n := int(count)
	bindNames := make([]uintptr, n)
	bindNameLens := make([]uint8, n)
	indNames := make([]uintptr, n)
	indNameLens := make([]uint8, n)
	dups := make([]uint8, n)
	handles := make([]uintptr, n)
	var found int32

	st = ociCall(fnStmtGetBindInfo,
		stmt, errh,
		uintptr(count), 1, uintptr(unsafe.Pointer(&found)),
		uintptr(unsafe.Pointer(&bindNames[0])), uintptr(unsafe.Pointer(&bindNameLens[0])),
		uintptr(unsafe.Pointer(&indNames[0])), uintptr(unsafe.Pointer(&indNameLens[0])),
		uintptr(unsafe.Pointer(&dups[0])), uintptr(unsafe.Pointer(&handles[0])))
	if !isSuccess(st) && st != OCINoData {
		return nil, nil, st
	}

	names := make([]string, 0, n)
	dup := make([]bool, 0, n)
	for i := 0; i < int(found) && i < n; i++ {
		names = append(names, goStringN(bindNames[i], int(bindNameLens[i])))
		dup = append(dup, dups[i] != 0)
	}
	return names, dup, OCISuccess
}

func (ociClient) BindByPos(stmt, errh uintptr, pos uint32, typ uint16, buf []byte, ind *int16, alen *uint32) int32 {
	var bindp uintptr
	var indRef, alenRef uintptr
	if ind != nil {
		indRef = uintptr(unsafe.Pointer(ind))
	}
	if alen != nil {
		alenRef = uintptr(unsafe.Pointer(alen))
	}
	return ociCall(fnBindByPos2,
		stmt, uintptr(unsafe.Pointer(&bindp)), errh,
		uintptr(pos), bufRef(buf), uintptr(len(buf)), uintptr(typ),
		indRef, alenRef, 0, 0, 0, uintptr(modeDefault))
}

func (ociClient) DefineByPos(stmt, errh uintptr, pos uint32, typ uint16, buf []byte, ind *int16, rlen *uint32) int32 {
	var defp uintptr
	return ociCall(fnDefineByPos2,
		stmt, uintptr(unsafe.Pointer(&defp)), errh,
		uintptr(pos), bufRef(buf), uintptr(len(buf)), uintptr(typ),
		uintptr(unsafe.Pointer(ind)), uintptr(unsafe.Pointer(rlen)), 0, uintptr(modeDefault))
}

func (ociClient) DefineHandleByPos(stmt, errh uintptr, pos uint32, typ uint16, handle *uintptr, ind *int16) int32 {
	var defp uintptr
	size := unsafe.Sizeof(*handle)
	if typ == sqltRSet {
		size = 0
	}
	return ociCall(fnDefineByPos2,
		stmt, uintptr(unsafe.Pointer(&defp)), errh,
		uintptr(pos), uintptr(unsafe.Pointer(handle)), size, uintptr(typ),
		uintptr(unsafe.Pointer(ind)), 0, 0, uintptr(modeDefault))
}

func (ociClient) ParamGet(stmt, errh uintptr, pos uint32) (uintptr, int32) {
	var param uintptr
	st := ociCall(fnParamGet, stmt, uintptr(htypeStmt), errh,
		uintptr(unsafe.Pointer(&param)), uintptr(pos))
	return param, st
}

func (ociClient) ErrorGet(errh uintptr) (int32, string) {
	var code int32
	buf := make([]byte, 3024)
	st := ociCall(fnErrorGet, errh, 1, 0,
		uintptr(unsafe.Pointer(&code)), bufRef(buf), uintptr(len(buf)), uintptr(htypeError))
	if st == OCINoData {
		return 0, ""
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return code, string(buf[:n])
}

func (ociClient) NumberToInt(errh uintptr, num []byte) (int64, int32) {
	const ociNumberSigned = 2
	var val int64
	st := ociCall(fnNumberToInt, errh, bufRef(num), 8, ociNumberSigned, uintptr(unsafe.Pointer(&val)))
	return val, st
}

func (ociClient) NumberToUint(errh uintptr, num []byte) (uint64, int32) {
	const ociNumberUnsigned = 0
	var val uint64
	st := ociCall(fnNumberToInt, errh, bufRef(num), 8, ociNumberUnsigned, uintptr(unsafe.Pointer(&val)))
	return val, st
}

func (ociClient) NumberToFloat(errh uintptr, num []byte) (float64, int32) {
	var val float64
	st := ociCall(fnNumberToReal, errh, bufRef(num), 8, uintptr(unsafe.Pointer(&val)))
	return val, st
}

func (ociClient) NumberToText(errh uintptr, num []byte, format string) (string, int32) {
	buf := make([]byte, 64)
	size := uint32(len(buf))
	f := strBytes(format)
	st := ociCall(fnNumberToText, errh, bufRef(num),
		bufRef(f), uintptr(len(format)), 0, 0,
		uintptr(unsafe.Pointer(&size)), bufRef(buf))
	if !isSuccess(st) {
		return "", st
	}
	return string(buf[:size]), st
}

func (ociClient) DateTimeGetDate(env, errh, dt uintptr) (int32, uint8, uint8, int32) {
	var year int16
	var month, day uint8
	st := ociCall(fnDateTimeGetDate, env, errh, dt,
		uintptr(unsafe.Pointer(&year)), uintptr(unsafe.Pointer(&month)), uintptr(unsafe.Pointer(&day)))
	return int32(year), month, day, st
}

func (ociClient) DateTimeGetTime(env, errh, dt uintptr) (uint8, uint8, uint8, uint32, int32) {
	var hour, min, sec uint8
	var fsec uint32
	st := ociCall(fnDateTimeGetTime, env, errh, dt,
		uintptr(unsafe.Pointer(&hour)), uintptr(unsafe.Pointer(&min)),
		uintptr(unsafe.Pointer(&sec)), uintptr(unsafe.Pointer(&fsec)))
	return hour, min, sec, fsec, st
}

func (ociClient) DateTimeGetTimeZoneOffset(env, errh, dt uintptr) (int32, int32, int32) {
	var hourOff, minOff int8
	st := ociCall(fnDateTimeGetTZOffset, env, errh, dt,
		uintptr(unsafe.Pointer(&hourOff)), uintptr(unsafe.Pointer(&minOff)))
	return int32(hourOff), int32(minOff), st
}

func (ociClient) DateTimeConvert(env, errh, from, to uintptr) int32 {
	return ociCall(fnDateTimeConvert, env, errh, from, to)
}

func (ociClient) DateTimeToText(env, errh, dt uintptr, format string, precision uint8) (string, int32) {
	buf := make([]byte, 128)
	size := uint32(len(buf))
	f := strBytes(format)
	st := ociCall(fnDateTimeToText, env, errh, dt,
		bufRef(f), uintptr(len(format)), uintptr(precision),
		0, 0,
		uintptr(unsafe.Pointer(&size)), bufRef(buf))
	if !isSuccess(st) {
		return "", st
	}
	return string(buf[:size]), st
}

func (ociClient) IntervalGetYearMonth(env, errh, intv uintptr) (int32, int32, int32) {
	var years, months int32
	st := ociCall(fnIntervalGetYM, env, errh,
		uintptr(unsafe.Pointer(&years)), uintptr(unsafe.Pointer(&months)), intv)
	return years, months, st
}

func (ociClient) IntervalGetDaySecond(env, errh, intv uintptr) (int32, int32, int32, int32, int32, int32) {
	var days, hours, mins, secs, nsecs int32
	st := ociCall(fnIntervalGetDS, env, errh,
		uintptr(unsafe.Pointer(&days)), uintptr(unsafe.Pointer(&hours)),
		uintptr(unsafe.Pointer(&mins)), uintptr(unsafe.Pointer(&secs)),
		uintptr(unsafe.Pointer(&nsecs)), intv)
	return days, hours, mins, secs, nsecs, st
}

func (ociClient) IntervalToText(env, errh, intv uintptr) (string, int32) {
	buf := make([]byte, 64)
	var resultLen uintptr
	st := ociCall(fnIntervalToText, env, errh, intv,
		9, 5, // leading field and fractional second precision
		bufRef(buf), uintptr(len(buf)), uintptr(unsafe.Pointer(&resultLen)))
	if !isSuccess(st) {
		return "", st
	}
	return string(buf[:resultLen]), st
}

func (ociClient) LobIsInitialized(env, errh, lob uintptr) (bool, int32) {
	var init int32
	st := ociCall(fnLobLocatorIsInit, env, errh, lob, uintptr(unsafe.Pointer(&init)))
	return init != 0, st
}

func (ociClient) RowidToText(errh, rowid uintptr) (string, int32) {
	buf := make([]byte, 20)
	size := uint16(len(buf))
	st := ociCall(fnRowidToChar, rowid, bufRef(buf), uintptr(unsafe.Pointer(&size)), errh)
	if !isSuccess(st) {
		return "", st
	}
	return string(buf[:size]), st
}

func (ociClient) ClientVersion() (int32, int32, int32, int32, int32) {
	var major, minor, update, patch, portPatch int32
	ociCall(fnClientVersion,
		uintptr(unsafe.Pointer(&major)), uintptr(unsafe.Pointer(&minor)),
		uintptr(unsafe.Pointer(&update)), uintptr(unsafe.Pointer(&patch)),
		uintptr(unsafe.Pointer(&portPatch)))
	return major, minor, update, patch, portPatch
}

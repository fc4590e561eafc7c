package oracle

// columnKind is the closed set of column buffer variants. Decoding
// dispatches on it; the one-shot kinds (cursor, LOB locators, rowid) hand
// their embedded resource out at most once per fetched row.
type columnKind uint8

const (
	colUndefined columnKind = iota
	colText
	colBinary
	colNumber
	colFloat
	colDouble
	colDate
	colTimestamp
	colTimestampTZ
	colTimestampLTZ
	colIntervalYM
	colIntervalDS
	colCursor
	colCLOB
	colBLOB
	colBFile
	colRowID
)

func kindOf(typ uint16) columnKind {
	switch typ {
	case sqltNum, sqltVnu:
		return colNumber
	case sqltIBFloat, sqltBFloat:
		return colFloat
	case sqltIBDouble, sqltBDouble, sqltFlt:
		return colDouble
	case sqltDat:
		return colDate
	case sqltTimestamp:
		return colTimestamp
	case sqltTimestampTZ:
		return colTimestampTZ
	case sqltTimestampLTZ:
		return colTimestampLTZ
	case sqltIntervalYM:
		return colIntervalYM
	case sqltIntervalDS:
		return colIntervalDS
	case sqltBin, sqltLbi:
		return colBinary
	case sqltClob:
		return colCLOB
	case sqltBlob:
		return colBLOB
	case sqltBFile:
		return colBFile
	case sqltRdd:
		return colRowID
	case sqltRSet:
		return colCursor
	default:
		// CHAR, VARCHAR2, LONG and anything unrecognized fetch as text.
		return colText
	}
}

// Column describes one projected column and owns its output buffer. The
// descriptor set for a statement is built once, on the first successful
// execution, and reused unconditionally by later executions of the same
// prepared statement or cursor.
type Column struct {
	name     string
	pos      int // 0-based
	typ      uint16
	size     int
	nullable bool
	kind     columnKind

	// Exactly one of buf and handle is populated, per kind. The native
	// layer writes into them in place on fetch; nothing is copied eagerly.
	buf    []byte
	handle uintptr
	taken  bool

	ind  int16
	rlen uint32
}

// Name returns the column name as reported by the native layer.
func (c *Column) Name() string { return c.name }

// Nullable reports whether the column allows NULLs.
func (c *Column) Nullable() bool { return c.nullable }

// isNull reports whether the last fetched value was NULL.
func (c *Column) isNull() bool { return c.ind == indNull }

func (c *Column) isOneShot() bool {
	switch c.kind {
	case colCursor, colCLOB, colBLOB, colBFile, colRowID:
		return true
	}
	return false
}

// newColumn describes the column at pos and sets up its output buffer.
func newColumn(api nativeAPI, env, stmt, errh uintptr, pos, longLimit int) (*Column, error) {
	param, status := api.ParamGet(stmt, errh, uint32(pos+1))
	if !isSuccess(status) {
		return nil, nativeErr(api, errh, status)
	}
	typ, status := api.AttrGetUint(param, dtypeParam, attrDataType, errh)
	if !isSuccess(status) {
		return nil, nativeErr(api, errh, status)
	}
	size, status := api.AttrGetUint(param, dtypeParam, attrDataSize, errh)
	if !isSuccess(status) {
		return nil, nativeErr(api, errh, status)
	}
	name, status := api.AttrGetStr(param, dtypeParam, attrName, errh)
	if !isSuccess(status) {
		return nil, nativeErr(api, errh, status)
	}
	nullable, status := api.AttrGetUint(param, dtypeParam, attrIsNull, errh)
	if !isSuccess(status) {
		return nil, nativeErr(api, errh, status)
	}

	c := &Column{
		name:     name,
		pos:      pos,
		typ:      uint16(typ),
		size:     int(size),
		nullable: nullable != 0,
		kind:     kindOf(uint16(typ)),
		ind:      indNull,
	}
	if c.typ == sqltLng || c.typ == sqltLbi {
		// LONG and LONG RAW report no usable size; fetch into a resizable
		// buffer capped at the configured ceiling.
		c.size = longLimit
	}
	if err := c.define(api, env, stmt, errh); err != nil {
		return nil, err
	}
	return c, nil
}

// define allocates the output buffer or descriptor for the column's kind
// and registers it with the native layer.
func (c *Column) define(api nativeAPI, env, stmt, errh uintptr) error {
	var status int32
	switch c.kind {
	case colText:
		c.buf = globalBufferPool.Get(c.size)
		status = api.DefineByPos(stmt, errh, uint32(c.pos+1), sqltChr, c.buf, &c.ind, &c.rlen)
	case colBinary:
		c.buf = globalBufferPool.Get(c.size)
		status = api.DefineByPos(stmt, errh, uint32(c.pos+1), sqltBin, c.buf, &c.ind, &c.rlen)
	case colNumber:
		c.buf = make([]byte, ociNumberSize)
		status = api.DefineByPos(stmt, errh, uint32(c.pos+1), sqltVnu, c.buf, &c.ind, &c.rlen)
	case colFloat:
		c.buf = make([]byte, 4)
		status = api.DefineByPos(stmt, errh, uint32(c.pos+1), sqltBFloat, c.buf, &c.ind, &c.rlen)
	case colDouble:
		c.buf = make([]byte, 8)
		status = api.DefineByPos(stmt, errh, uint32(c.pos+1), sqltBDouble, c.buf, &c.ind, &c.rlen)
	case colDate:
		c.buf = make([]byte, ociDateSize)
		status = api.DefineByPos(stmt, errh, uint32(c.pos+1), sqltDat, c.buf, &c.ind, &c.rlen)
	case colTimestamp:
		return c.defineDescriptor(api, env, stmt, errh, dtypeTimestamp, sqltTimestamp)
	case colTimestampTZ:
		return c.defineDescriptor(api, env, stmt, errh, dtypeTimestampTZ, sqltTimestampTZ)
	case colTimestampLTZ:
		return c.defineDescriptor(api, env, stmt, errh, dtypeTimestampLTZ, sqltTimestampLTZ)
	case colIntervalYM:
		return c.defineDescriptor(api, env, stmt, errh, dtypeIntervalYM, sqltIntervalYM)
	case colIntervalDS:
		return c.defineDescriptor(api, env, stmt, errh, dtypeIntervalDS, sqltIntervalDS)
	case colCLOB:
		return c.defineDescriptor(api, env, stmt, errh, dtypeLob, sqltClob)
	case colBLOB:
		return c.defineDescriptor(api, env, stmt, errh, dtypeLob, sqltBlob)
	case colBFile:
		return c.defineDescriptor(api, env, stmt, errh, dtypeFile, sqltBFile)
	case colRowID:
		return c.defineDescriptor(api, env, stmt, errh, dtypeRowid, sqltRdd)
	case colCursor:
		h, st := api.HandleAlloc(env, htypeStmt)
		if !isSuccess(st) {
			return nativeErr(api, errh, st)
		}
		c.handle = h
		status = api.DefineHandleByPos(stmt, errh, uint32(c.pos+1), sqltRSet, &c.handle, &c.ind)
	default:
		return interfaceErr("column %q has unsupported data type %d", c.name, c.typ)
	}
	if !isSuccess(status) {
		return nativeErr(api, errh, status)
	}
	return nil
}

func (c *Column) defineDescriptor(api nativeAPI, env, stmt, errh uintptr, dtype uint32, sqlt uint16) error {
	d, status := api.DescriptorAlloc(env, dtype)
	if !isSuccess(status) {
		return nativeErr(api, errh, status)
	}
	c.handle = d
	status = api.DefineHandleByPos(stmt, errh, uint32(c.pos+1), sqlt, &c.handle, &c.ind)
	if !isSuccess(status) {
		return nativeErr(api, errh, status)
	}
	return nil
}

// resize grows the output buffer of a LONG or LONG RAW column before the
// first fetch that needs it. Other kinds ignore the request.
func (c *Column) resize(api nativeAPI, stmt, errh uintptr, size int) error {
	if c.typ != sqltLng && c.typ != sqltLbi {
		return nil
	}
	if size <= len(c.buf) {
		return nil
	}
	old := c.buf
	c.buf = globalBufferPool.Get(size)
	globalBufferPool.Put(old)
	typ := sqltChr
	if c.typ == sqltLbi {
		typ = sqltBin
	}
	status := api.DefineByPos(stmt, errh, uint32(c.pos+1), typ, c.buf, &c.ind, &c.rlen)
	if !isSuccess(status) {
		return nativeErr(api, errh, status)
	}
	return nil
}

// rearm prepares the column for the next fetched row. A one-shot column
// whose handle was taken gets a fresh resource and a fresh define, since
// ownership of the previous one left with the caller.
func (c *Column) rearm(api nativeAPI, env, stmt, errh uintptr) error {
	if !c.isOneShot() {
		return nil
	}
	c.taken = false
	if c.handle != 0 {
		return nil
	}
	switch c.kind {
	case colCursor:
		h, status := api.HandleAlloc(env, htypeStmt)
		if !isSuccess(status) {
			return nativeErr(api, errh, status)
		}
		c.handle = h
		status = api.DefineHandleByPos(stmt, errh, uint32(c.pos+1), sqltRSet, &c.handle, &c.ind)
		if !isSuccess(status) {
			return nativeErr(api, errh, status)
		}
		return nil
	case colCLOB:
		return c.defineDescriptor(api, env, stmt, errh, dtypeLob, sqltClob)
	case colBLOB:
		return c.defineDescriptor(api, env, stmt, errh, dtypeLob, sqltBlob)
	case colBFile:
		return c.defineDescriptor(api, env, stmt, errh, dtypeFile, sqltBFile)
	case colRowID:
		return c.defineDescriptor(api, env, stmt, errh, dtypeRowid, sqltRdd)
	}
	return nil
}

// takeHandle transfers the embedded resource out of a one-shot column.
// A second take on the same row fails instead of duplicating ownership of
// a live native resource.
func (c *Column) takeHandle(api nativeAPI, env, errh uintptr) (uintptr, error) {
	if !c.isOneShot() {
		return 0, interfaceErr("column %q does not hold a resource handle", c.name)
	}
	if c.taken || c.handle == 0 {
		return 0, ErrConsumed
	}
	switch c.kind {
	case colCLOB, colBLOB, colBFile:
		init, status := api.LobIsInitialized(env, errh, c.handle)
		if isSuccess(status) && !init {
			return 0, ErrConsumed
		}
	}
	h := c.handle
	c.handle = 0
	c.taken = true
	return h, nil
}

// free releases whatever the column still owns. Taken handles belong to
// whoever took them.
func (c *Column) free(api nativeAPI) {
	if c.buf != nil {
		globalBufferPool.Put(c.buf)
		c.buf = nil
	}
	if c.handle == 0 {
		return
	}
	switch c.kind {
	case colCursor:
		api.HandleFree(c.handle, htypeStmt)
	case colTimestamp:
		api.DescriptorFree(c.handle, dtypeTimestamp)
	case colTimestampTZ:
		api.DescriptorFree(c.handle, dtypeTimestampTZ)
	case colTimestampLTZ:
		api.DescriptorFree(c.handle, dtypeTimestampLTZ)
	case colIntervalYM:
		api.DescriptorFree(c.handle, dtypeIntervalYM)
	case colIntervalDS:
		api.DescriptorFree(c.handle, dtypeIntervalDS)
	case colCLOB, colBLOB:
		api.DescriptorFree(c.handle, dtypeLob)
	case colBFile:
		api.DescriptorFree(c.handle, dtypeFile)
	case colRowID:
		api.DescriptorFree(c.handle, dtypeRowid)
	}
	c.handle = 0
}

package oracle

// Cursor wraps a nested cursor returned by a query or an OUT argument of a
// PL/SQL call. It owns the implicit statement handle behind the cursor and
// shares the parent's service context, so fetching from it contends for the
// same single-operation window in non-blocking mode.
type Cursor struct {
	st *Statement
}

// newCursor adopts a statement handle taken out of a REF CURSOR column.
// The handle already carries an executed query; only the column definitions
// remain to be built.
func newCursor(sc *ServiceContext, handle uintptr, longLimit int) *Cursor {
	return &Cursor{
		st: &Statement{
			sc:        sc.retain(),
			stmt:      handle,
			kind:      StmtSelect,
			longLimit: longLimit,
		},
	}
}

// Rows begins streaming the cursor's result set. The column descriptor set
// is built on the first call and reused afterwards.
func (c *Cursor) Rows() (*Rows, error) {
	if c.st.closed.Load() {
		return nil, interfaceErr("cursor is closed")
	}
	if err := c.st.defineColumns(); err != nil {
		return nil, err
	}
	return &Rows{st: c.st}, nil
}

// Columns returns the cursor projection's column names.
func (c *Cursor) Columns() ([]string, error) {
	if err := c.st.defineColumns(); err != nil {
		return nil, err
	}
	names := make([]string, len(c.st.cols))
	for i, col := range c.st.cols {
		names[i] = col.name
	}
	return names, nil
}

// SetLongBufferSize raises the LONG fetch ceiling for the cursor's columns.
func (c *Cursor) SetLongBufferSize(size int) error {
	return c.st.SetLongBufferSize(size)
}

// RowCount returns the number of rows fetched from the cursor so far.
func (c *Cursor) RowCount() (uint64, error) {
	return c.st.RowCount()
}

// Close frees the cursor's statement handle and releases its reference on
// the service context.
func (c *Cursor) Close() error {
	return c.st.Close()
}

package oracle

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Statement represents a prepared statement. It owns the native statement
// handle, the parameter binder when the statement declares placeholders,
// and the write-once column descriptor set for query-shaped statements.
type Statement struct {
	sc        *ServiceContext
	stmt      uintptr
	sql       string
	kind      uint16
	params    *Params
	longLimit int

	// Column descriptors are built once, on the first successful execution
	// of a query, and back every later execution of this statement.
	colsOnce   sync.Once
	cols       []*Column
	colsByName map[string]int
	colsErr    error

	cached bool
	closed atomic.Bool
	mu     sync.Mutex
}

// prepare creates a statement on the given service context. The context's
// reference count is bumped; Close releases it.
func prepare(sc *ServiceContext, sql string, longLimit int) (*Statement, error) {
	h, status := sc.api.HandleAlloc(sc.env, htypeStmt)
	if !isSuccess(status) {
		return nil, sc.fail(status)
	}
	if status := sc.api.StmtPrepare(h, sc.errh, sql); !isSuccess(status) {
		sc.api.HandleFree(h, htypeStmt)
		return nil, sc.fail(status)
	}
	kind, status := sc.api.AttrGetUint(h, htypeStmt, attrStmtType, sc.errh)
	if !isSuccess(status) {
		sc.api.HandleFree(h, htypeStmt)
		return nil, sc.fail(status)
	}
	params, err := newParams(sc.api, h, sc.errh)
	if err != nil {
		sc.api.HandleFree(h, htypeStmt)
		return nil, err
	}
	return &Statement{
		sc:        sc.retain(),
		stmt:      h,
		sql:       sql,
		kind:      uint16(kind),
		params:    params,
		longLimit: longLimit,
	}, nil
}

// Kind returns the statement kind (StmtSelect, StmtInsert, ...).
func (s *Statement) Kind() uint16 { return s.kind }

// IsQuery reports whether the statement is query-shaped.
func (s *Statement) IsQuery() bool { return s.kind == StmtSelect }

// ParamCount returns the number of placeholder slots the statement
// declares.
func (s *Statement) ParamCount() int {
	if s.params == nil {
		return 0
	}
	return s.params.count()
}

// Params exposes the binder's post-execution output metadata. It is nil
// for statements without placeholders.
func (s *Statement) Params() *Params { return s.params }

// SetLongBufferSize raises the fetch buffer ceiling for LONG and LONG RAW
// columns. Call it before the first fetch that needs the larger size.
func (s *Statement) SetLongBufferSize(size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size > s.longLimit {
		s.longLimit = size
	}
	for _, c := range s.cols {
		if err := c.resize(s.sc.api, s.stmt, s.sc.errh, size); err != nil {
			return err
		}
	}
	return nil
}

// bind resolves the argument list against the statement's placeholders.
// Unbound placeholders and zero-capacity outputs fail here, before any
// execute round trip.
func (s *Statement) bind(args []ToSQL) error {
	if s.params == nil {
		if len(args) > 0 {
			return interfaceErr("statement declares no parameter placeholders, got %d argument(s)", len(args))
		}
		return nil
	}
	return s.params.bindArgs(args)
}

// Execute runs a non-query statement and returns the number of affected
// rows. Arguments are bound in caller order; see Named, Out, List and Skip
// for the non-scalar forms.
func (s *Statement) Execute(ctx context.Context, args ...any) (uint64, error) {
	if s.closed.Load() {
		return 0, interfaceErr("statement is closed")
	}
	if s.kind == StmtSelect {
		return 0, interfaceErr("statement is a query, use Query to run it")
	}
	bindArgs, err := asArgs(args)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bind(bindArgs); err != nil {
		return 0, err
	}
	status, err := s.sc.exec(ctx, "execute", func() int32 {
		return s.sc.api.StmtExecute(s.sc.svc, s.stmt, s.sc.errh, 1, modeDefault)
	})
	if err != nil {
		return 0, err
	}
	if !isSuccess(status) {
		return 0, s.sc.fail(status)
	}
	if s.params != nil {
		if err := s.params.writeBack(bindArgs); err != nil {
			return 0, err
		}
	}
	return s.rowCount()
}

// Query runs a query-shaped statement and returns a row stream. The column
// descriptor set is built on the first call and reused by every later one.
func (s *Statement) Query(ctx context.Context, args ...any) (*Rows, error) {
	if s.closed.Load() {
		return nil, interfaceErr("statement is closed")
	}
	if s.kind != StmtSelect {
		return nil, interfaceErr("cannot run %s statement as a query", stmtKindName(s.kind))
	}
	bindArgs, err := asArgs(args)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bind(bindArgs); err != nil {
		return nil, err
	}
	status, err := s.sc.exec(ctx, "query", func() int32 {
		return s.sc.api.StmtExecute(s.sc.svc, s.stmt, s.sc.errh, 0, modeDefault)
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, s.sc.fail(status)
	}
	if err := s.defineColumns(); err != nil {
		return nil, err
	}
	return &Rows{st: s}, nil
}

// defineColumns builds the column descriptor set. Initialization is
// strictly write-once per statement: repeat executions reuse the existing
// set unconditionally.
func (s *Statement) defineColumns() error {
	s.colsOnce.Do(func() {
		count, status := s.sc.api.AttrGetUint(s.stmt, htypeStmt, attrParamCount, s.sc.errh)
		if !isSuccess(status) {
			s.colsErr = s.sc.fail(status)
			return
		}
		cols := make([]*Column, 0, count)
		byName := make(map[string]int, count)
		for i := 0; i < int(count); i++ {
			col, err := newColumn(s.sc.api, s.sc.env, s.stmt, s.sc.errh, i, s.longLimit)
			if err != nil {
				s.colsErr = err
				return
			}
			cols = append(cols, col)
			if _, exists := byName[col.name]; !exists {
				byName[col.name] = i
			}
		}
		s.cols = cols
		s.colsByName = byName
	})
	return s.colsErr
}

// Columns returns the descriptor set, nil before the first query.
func (s *Statement) Columns() []*Column { return s.cols }

// column resolves a projection position: an int index or a column name,
// matched case-sensitively first and uppercased as a fallback.
func (s *Statement) column(pos any) (*Column, error) {
	switch v := pos.(type) {
	case int:
		if v < 0 || v >= len(s.cols) {
			return nil, interfaceErr("column position %d is out of range, the projection has %d column(s)", v, len(s.cols))
		}
		return s.cols[v], nil
	case string:
		if i, ok := s.colsByName[v]; ok {
			return s.cols[i], nil
		}
		if i, ok := s.colsByName[strings.ToUpper(v)]; ok {
			return s.cols[i], nil
		}
		return nil, interfaceErr("projection does not contain column %q", v)
	default:
		return nil, interfaceErr("column position must be an int or a string, got %T", pos)
	}
}

// rowCount reads the statement's processed row count attribute.
func (s *Statement) rowCount() (uint64, error) {
	n, status := s.sc.api.AttrGetUint(s.stmt, htypeStmt, attrRowCount, s.sc.errh)
	if !isSuccess(status) {
		return 0, s.sc.fail(status)
	}
	return n, nil
}

// RowCount returns the number of rows processed by the most recent
// execution: rows affected for DML, rows fetched so far for queries.
func (s *Statement) RowCount() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowCount()
}

// Close releases the statement. A statement living in a connection's cache
// stays prepared; its resources are freed when the cache evicts it or the
// connection closes.
func (s *Statement) Close() error {
	if s.cached {
		return nil
	}
	s.destroy()
	return nil
}

// destroy frees the columns and native handle and drops the statement's
// reference on the service context.
func (s *Statement) destroy() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.cols {
		c.free(s.sc.api)
	}
	s.cols = nil
	if s.stmt != 0 {
		s.sc.api.HandleFree(s.stmt, htypeStmt)
		s.stmt = 0
	}
	s.sc.release()
}

func stmtKindName(kind uint16) string {
	switch kind {
	case StmtSelect:
		return "SELECT"
	case StmtUpdate:
		return "UPDATE"
	case StmtDelete:
		return "DELETE"
	case StmtInsert:
		return "INSERT"
	case StmtCreate:
		return "CREATE"
	case StmtDrop:
		return "DROP"
	case StmtAlter:
		return "ALTER"
	case StmtBegin:
		return "PL/SQL block"
	case StmtDeclare:
		return "DECLARE"
	case StmtCall:
		return "CALL"
	case StmtMerge:
		return "MERGE"
	default:
		return "unknown"
	}
}

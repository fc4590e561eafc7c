package oracle

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Connection is a single authenticated database session. It owns a service
// context and a bounded prepared statement cache.
//
// A Connection is safe for concurrent use in blocking mode; in non-blocking
// mode concurrent operations race for the single in-flight slot and the
// losers fail with ErrContextBusy.
type Connection struct {
	sc        *ServiceContext
	stmts     *lru.Cache[string, *Statement]
	longLimit int
	closed    atomic.Bool
}

// Connect opens a connection described by cfg. The login itself always runs
// in blocking mode; when cfg.Nonblocking is set the session is switched
// over once it is established.
func Connect(cfg Config) (*Connection, error) {
	api := cfg.api
	if api == nil {
		var err error
		if api, err = defaultAPI(); err != nil {
			return nil, err
		}
	}
	log := cfg.logger()

	sc := newServiceContext(api, log, cfg.Nonblocking)
	// The login sequence is blocking-only; in non-blocking mode it runs on
	// its own goroutine so the caller's goroutine stays cheap to park.
	var err error
	if cfg.Nonblocking {
		done := make(chan error, 1)
		go func() { done <- attach(sc, cfg) }()
		err = <-done
	} else {
		err = attach(sc, cfg)
	}
	if err != nil {
		sc.release()
		return nil, err
	}
	log.Debug("session established", "context", sc.id, "database", cfg.Database,
		"user", cfg.Username, "nonblocking", cfg.Nonblocking)

	conn := &Connection{sc: sc, longLimit: cfg.longLimit()}
	if size := cfg.stmtCacheSize(); size > 0 {
		cache, err := newStmtCache(size)
		if err != nil {
			conn.Close()
			return nil, err
		}
		conn.stmts = cache
	}
	return conn, nil
}

// newStmtCache builds the per-connection statement cache. Evicted
// statements are destroyed; handing one out again after eviction is not
// possible since the cache is the only holder of cached entries.
func newStmtCache(size int) (*lru.Cache[string, *Statement], error) {
	cache, err := lru.NewWithEvict(size, func(_ string, st *Statement) {
		st.destroy()
	})
	if err != nil {
		return nil, interfaceErr("statement cache: %v", err)
	}
	return cache, nil
}

// attach builds the handle group and logs the session in. On failure the
// partially built handles are left to the context's teardown.
func attach(sc *ServiceContext, cfg Config) error {
	env, status := sc.api.EnvCreate(modeThreaded | modeObject)
	if status != OCISuccess {
		return NewError(ErrNative, "cannot create an environment handle")
	}
	sc.env = env

	errh, status := sc.api.HandleAlloc(env, htypeError)
	if !isSuccess(status) {
		return NewError(ErrNative, "cannot allocate an error handle")
	}
	sc.errh = errh

	server, status := sc.api.HandleAlloc(env, htypeServer)
	if !isSuccess(status) {
		return sc.fail(status)
	}
	sc.server = server
	svc, status := sc.api.HandleAlloc(env, htypeSvcCtx)
	if !isSuccess(status) {
		return sc.fail(status)
	}
	sc.svc = svc
	session, status := sc.api.HandleAlloc(env, htypeSession)
	if !isSuccess(status) {
		return sc.fail(status)
	}
	sc.session = session

	if status := sc.api.ServerAttach(server, errh, cfg.Database, modeDefault); !isSuccess(status) {
		return sc.fail(status)
	}
	if status := sc.api.AttrSetUint(svc, htypeSvcCtx, attrServer, uint64(server), errh); !isSuccess(status) {
		return sc.fail(status)
	}
	if status := sc.api.AttrSetStr(session, htypeSession, attrUsername, cfg.Username, errh); !isSuccess(status) {
		return sc.fail(status)
	}
	if status := sc.api.AttrSetStr(session, htypeSession, attrPassword, cfg.Password, errh); !isSuccess(status) {
		return sc.fail(status)
	}
	sc.api.AttrSetStr(session, htypeSession, attrDriverName, driverName, errh)

	if status := sc.api.SessionBegin(svc, errh, session, modeCredRdbms, modeDefault); !isSuccess(status) {
		return sc.fail(status)
	}
	if status := sc.api.AttrSetUint(svc, htypeSvcCtx, attrSession, uint64(session), errh); !isSuccess(status) {
		return sc.fail(status)
	}
	if cfg.CallTimeout > 0 {
		ms := uint64(cfg.CallTimeout.Milliseconds())
		if status := sc.api.AttrSetUint(svc, htypeSvcCtx, attrCallTimeout, ms, errh); !isSuccess(status) {
			return sc.fail(status)
		}
	}
	if cfg.Nonblocking {
		if status := sc.api.AttrSetUint(server, htypeServer, attrNonblockingMode, 1, errh); !isSuccess(status) {
			return sc.fail(status)
		}
	}
	return nil
}

// Prepare readies a statement for execution. Statements are cached per
// connection by SQL text; a cache hit returns the already prepared
// statement with its column definitions intact.
func (c *Connection) Prepare(ctx context.Context, sql string) (*Statement, error) {
	if c.closed.Load() {
		return nil, interfaceErr("connection is closed")
	}
	if c.stmts != nil {
		if st, ok := c.stmts.Get(sql); ok {
			return st, nil
		}
	}
	st, err := prepare(c.sc, sql, c.longLimit)
	if err != nil {
		return nil, err
	}
	if c.stmts != nil {
		st.cached = true
		c.stmts.Add(sql, st)
	}
	return st, nil
}

// Execute prepares and runs a non-query statement in one call.
func (c *Connection) Execute(ctx context.Context, sql string, args ...any) (uint64, error) {
	st, err := c.Prepare(ctx, sql)
	if err != nil {
		return 0, err
	}
	defer st.Close()
	return st.Execute(ctx, args...)
}

// Query prepares and runs a query in one call. The rows borrow the cached
// statement; finish iterating before preparing the same SQL again.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	st, err := c.Prepare(ctx, sql)
	if err != nil {
		return nil, err
	}
	rows, err := st.Query(ctx, args...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return rows, nil
}

// Ping verifies the server round trip.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return interfaceErr("connection is closed")
	}
	status, err := c.sc.exec(ctx, "ping", func() int32 {
		return c.sc.api.Ping(c.sc.svc, c.sc.errh)
	})
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return c.sc.fail(status)
	}
	return nil
}

// Commit commits the current transaction.
func (c *Connection) Commit(ctx context.Context) error {
	return c.endTransaction(ctx, "commit")
}

// Rollback rolls the current transaction back.
func (c *Connection) Rollback(ctx context.Context) error {
	return c.endTransaction(ctx, "rollback")
}

// Busy reports whether an operation is currently in flight on this
// connection. Only meaningful in non-blocking mode.
func (c *Connection) Busy() bool {
	return c.sc.activeOp.Load() != 0
}

// Nonblocking reports whether the session runs in non-blocking mode.
func (c *Connection) Nonblocking() bool {
	return c.sc.nonblocking
}

// Close releases the connection. Cached statements are destroyed first;
// statements and rows still held elsewhere keep the underlying session
// alive until their own Close, and the final teardown runs detached in
// non-blocking mode. Use Drain to join it on shutdown.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.stmts != nil {
		c.stmts.Purge()
		c.stmts = nil
	}
	c.sc.release()
	return nil
}

package oracle

import (
	"context"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// SessionPool maintains a server-side pool of authenticated sessions.
// Acquire hands out pooled connections; closing such a connection returns
// its session to the pool instead of logging it out.
type SessionPool struct {
	api  nativeAPI
	log  hclog.Logger
	cfg  PoolConfig
	env  uintptr
	errh uintptr
	pool uintptr
	name string

	closed atomic.Bool
}

// NewSessionPool creates a session pool sized by cfg.
func NewSessionPool(cfg PoolConfig, logger hclog.Logger) (*SessionPool, error) {
	api, err := defaultAPI()
	if err != nil {
		return nil, err
	}
	return newSessionPool(api, cfg, logger)
}

func newSessionPool(api nativeAPI, cfg PoolConfig, logger hclog.Logger) (*SessionPool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	p := &SessionPool{api: api, log: logger, cfg: cfg}

	env, status := api.EnvCreate(modeThreaded | modeObject)
	if status != OCISuccess {
		return nil, NewError(ErrNative, "cannot create an environment handle")
	}
	p.env = env
	errh, status := api.HandleAlloc(env, htypeError)
	if !isSuccess(status) {
		p.freeHandles()
		return nil, NewError(ErrNative, "cannot allocate an error handle")
	}
	p.errh = errh
	pool, status := api.HandleAlloc(env, htypeSPool)
	if !isSuccess(status) {
		err := nativeErr(api, errh, status)
		p.freeHandles()
		return nil, err
	}
	p.pool = pool

	name, status := api.SessionPoolCreate(env, errh, pool, cfg.Database,
		cfg.Username, cfg.Password, uint32(cfg.Min), uint32(cfg.Max), uint32(cfg.Increment))
	if !isSuccess(status) {
		err := nativeErr(api, errh, status)
		p.freeHandles()
		return nil, err
	}
	p.name = name
	p.log.Debug("session pool created", "database", cfg.Database,
		"min", cfg.Min, "max", cfg.Max)
	return p, nil
}

// Acquire takes a session from the pool and wraps it in a connection.
// Closing the connection releases the session back to the pool.
func (p *SessionPool) Acquire(ctx context.Context) (*Connection, error) {
	if p.closed.Load() {
		return nil, interfaceErr("session pool is closed")
	}

	sc := newServiceContext(p.api, p.log, p.cfg.Nonblocking)
	sc.pool = p
	sc.env = p.env

	errh, status := p.api.HandleAlloc(p.env, htypeError)
	if !isSuccess(status) {
		sc.release()
		return nil, NewError(ErrNative, "cannot allocate an error handle")
	}
	sc.errh = errh

	auth, status := p.api.HandleAlloc(p.env, htypeAuth)
	if !isSuccess(status) {
		err := nativeErr(p.api, errh, status)
		sc.release()
		return nil, err
	}
	defer p.api.HandleFree(auth, htypeAuth)
	p.api.AttrSetStr(auth, htypeAuth, attrDriverName, driverName, errh)

	svc, status := p.api.SessionGet(p.env, errh, auth, p.name, modeSessGetSPool)
	if !isSuccess(status) {
		err := nativeErr(p.api, errh, status)
		sc.release()
		return nil, err
	}
	sc.svc = svc

	if p.cfg.Nonblocking {
		server, status := p.api.AttrGetPtr(svc, htypeSvcCtx, attrServer, errh)
		if !isSuccess(status) {
			err := nativeErr(p.api, errh, status)
			sc.release()
			return nil, err
		}
		if status := p.api.AttrSetUint(server, htypeServer, attrNonblockingMode, 1, errh); !isSuccess(status) {
			err := nativeErr(p.api, errh, status)
			sc.release()
			return nil, err
		}
	}
	if p.cfg.CallTimeout > 0 {
		ms := uint64(p.cfg.CallTimeout.Milliseconds())
		p.api.AttrSetUint(svc, htypeSvcCtx, attrCallTimeout, ms, errh)
	}

	conn := &Connection{sc: sc, longLimit: p.connLongLimit()}
	if size := p.connStmtCacheSize(); size > 0 {
		cache, err := newStmtCache(size)
		if err != nil {
			conn.Close()
			return nil, err
		}
		conn.stmts = cache
	}
	return conn, nil
}

func (p *SessionPool) connLongLimit() int {
	if p.cfg.LongBufferSize > 0 {
		return p.cfg.LongBufferSize
	}
	return defaultLongBufferSize
}

func (p *SessionPool) connStmtCacheSize() int {
	switch {
	case p.cfg.StmtCacheSize > 0:
		return p.cfg.StmtCacheSize
	case p.cfg.StmtCacheSize < 0:
		return 0
	default:
		return defaultStmtCacheSize
	}
}

// Close destroys the pool. Sessions still checked out are forced closed by
// the server side of the pool; release outstanding connections first.
func (p *SessionPool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if p.pool != 0 {
		if status := p.api.SessionPoolDestroy(p.pool, p.errh, modeDefault); !isSuccess(status) {
			err = nativeErr(p.api, p.errh, status)
		}
	}
	p.freeHandles()
	return err
}

func (p *SessionPool) freeHandles() {
	if p.pool != 0 {
		p.api.HandleFree(p.pool, htypeSPool)
		p.pool = 0
	}
	if p.errh != 0 {
		p.api.HandleFree(p.errh, htypeError)
		p.errh = 0
	}
	if p.env != 0 {
		p.api.HandleFree(p.env, htypeEnv)
		p.env = 0
	}
}

package oracle

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// ServiceContext is the shared connection/session handle group used to
// issue native calls. It is reference-counted between the Connection and
// the Statement/Rows family created from it; the last release triggers
// teardown.
//
// In non-blocking mode at most one operation may be in flight against a
// context at any time. The session is not reentrant, so a second attempt
// fails fast with ErrContextBusy instead of interleaving native calls.
type ServiceContext struct {
	id  uuid.UUID
	api nativeAPI
	log hclog.Logger

	env     uintptr
	errh    uintptr
	svc     uintptr
	session uintptr
	server  uintptr
	pool    *SessionPool

	nonblocking bool

	refs     atomic.Int64
	activeOp atomic.Uint64
	released atomic.Bool
	regKey   uint64
}

// opSeq issues process-unique active-operation tokens.
var opSeq atomic.Uint64

func newServiceContext(api nativeAPI, log hclog.Logger, nonblocking bool) *ServiceContext {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	sc := &ServiceContext{
		id:          uuid.New(),
		api:         api,
		log:         log,
		nonblocking: nonblocking,
	}
	sc.refs.Store(1)
	sc.regKey = registerContext(sc)
	return sc
}

// ID returns the correlation id used in log output for this context.
func (sc *ServiceContext) ID() string {
	return sc.id.String()
}

func (sc *ServiceContext) retain() *ServiceContext {
	sc.refs.Add(1)
	return sc
}

// release drops one reference; the last one detaches the teardown job.
func (sc *ServiceContext) release() {
	if sc.refs.Add(-1) == 0 {
		sc.teardown()
	}
}

// exec runs one native call family against this context. In blocking mode
// the call simply blocks. In non-blocking mode the active-operation token
// is taken first, then the call is polled through the adapter until it
// reaches a definitive status.
//
// When ctx is cancelled mid-poll the native operation is still running and
// cannot be stopped; the call is handed to a detached goroutine that polls
// it to completion, and only then is the token released. Until that happens
// new operations on this context keep failing with ErrContextBusy.
func (sc *ServiceContext) exec(ctx context.Context, op string, call pollFunc) (int32, error) {
	if !sc.nonblocking {
		return call(), nil
	}
	token := opSeq.Add(1)
	if !sc.activeOp.CompareAndSwap(0, token) {
		return OCIError, ErrContextBusy
	}
	for {
		status := call()
		if status != OCIStillExecuting {
			sc.activeOp.CompareAndSwap(token, 0)
			return status, nil
		}
		select {
		case <-ctx.Done():
			sc.log.Debug("operation abandoned, draining", "op", op, "context", sc.id)
			detachedJobs.Add(1)
			go func() {
				defer detachedJobs.Done()
				pollToCompletion(call)
				sc.activeOp.CompareAndSwap(token, 0)
				sc.log.Debug("abandoned operation finished", "op", op, "context", sc.id)
			}()
			return OCIStillExecuting, ctx.Err()
		default:
			runtime.Gosched()
		}
	}
}

// fail maps a terminal native status to a driver error, pulling the code
// and message from this context's error handle.
func (sc *ServiceContext) fail(status int32) error {
	return nativeErr(sc.api, sc.errh, status)
}

// teardown snapshots the raw handles into a self-contained release job and,
// in non-blocking mode, hands it to a detached goroutine. The job owns
// copies of everything it touches: by the time it runs, this struct may be
// gone.
func (sc *ServiceContext) teardown() {
	if !sc.released.CompareAndSwap(false, true) {
		return
	}
	job := releaseJob{
		api:     sc.api,
		log:     sc.log,
		id:      sc.id,
		regKey:  sc.regKey,
		env:     sc.env,
		errh:    sc.errh,
		svc:     sc.svc,
		session: sc.session,
		server:  sc.server,
		pool:    sc.pool,
	}
	sc.svc, sc.session, sc.server, sc.errh = 0, 0, 0, 0

	if !sc.nonblocking {
		if err := job.run(); err != nil {
			job.log.Error("service context release failed", "context", job.id, "error", err)
		}
		return
	}
	detachedJobs.Add(1)
	go func() {
		defer detachedJobs.Done()
		if err := job.run(); err != nil {
			job.log.Error("service context release failed", "context", job.id, "error", err)
		}
	}()
}

// releaseJob owns copies of the handles it frees. Session end is awaited to
// completion before server detach is issued.
type releaseJob struct {
	api     nativeAPI
	log     hclog.Logger
	id      uuid.UUID
	regKey  uint64
	env     uintptr
	errh    uintptr
	svc     uintptr
	session uintptr
	server  uintptr
	pool    *SessionPool
}

func (j releaseJob) run() error {
	defer unregisterContext(j.regKey)

	var errs *multierror.Error
	fail := func(status int32) {
		if err := nativeErr(j.api, j.errh, status); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if j.pool != nil {
		if j.svc != 0 {
			fail(pollToCompletion(func() int32 {
				return j.api.SessionRelease(j.svc, j.errh, modeDefault)
			}))
		}
	} else {
		if j.svc != 0 && j.session != 0 {
			fail(pollToCompletion(func() int32 {
				return j.api.SessionEnd(j.svc, j.errh, j.session, modeDefault)
			}))
		}
		if j.server != 0 {
			fail(pollToCompletion(func() int32 {
				return j.api.ServerDetach(j.server, j.errh, modeDefault)
			}))
		}
		if j.session != 0 {
			j.api.HandleFree(j.session, htypeSession)
		}
		if j.server != 0 {
			j.api.HandleFree(j.server, htypeServer)
		}
		if j.svc != 0 {
			j.api.HandleFree(j.svc, htypeSvcCtx)
		}
	}
	if j.errh != 0 {
		j.api.HandleFree(j.errh, htypeError)
	}
	// Pooled contexts borrow the pool's environment; standalone ones own
	// theirs.
	if j.env != 0 && j.pool == nil {
		j.api.HandleFree(j.env, htypeEnv)
	}
	return errs.ErrorOrNil()
}

// detachedJobs tracks release jobs and abandoned operations so shutdown
// can join them.
var detachedJobs sync.WaitGroup

// liveContexts is the process-wide registry of service contexts. Entries
// hold weak references: a context that is garbage collected without being
// released disappears from the registry on its own.
var liveContexts struct {
	mu   sync.Mutex
	seq  uint64
	refs map[uint64]weak.Pointer[ServiceContext]
}

func registerContext(sc *ServiceContext) uint64 {
	liveContexts.mu.Lock()
	defer liveContexts.mu.Unlock()
	if liveContexts.refs == nil {
		liveContexts.refs = make(map[uint64]weak.Pointer[ServiceContext])
	}
	liveContexts.seq++
	key := liveContexts.seq
	liveContexts.refs[key] = weak.Make(sc)
	return key
}

func unregisterContext(key uint64) {
	liveContexts.mu.Lock()
	defer liveContexts.mu.Unlock()
	delete(liveContexts.refs, key)
}

// countLiveContexts prunes collected entries and returns the remainder.
func countLiveContexts() int {
	liveContexts.mu.Lock()
	defer liveContexts.mu.Unlock()
	for key, ref := range liveContexts.refs {
		if ref.Value() == nil {
			delete(liveContexts.refs, key)
		}
	}
	return len(liveContexts.refs)
}

// Drain waits until every registered service context has been released and
// all detached release jobs have finished. Call it on shutdown, after the
// last connection is closed. It returns a join failure when ctx expires
// with contexts still live or jobs still running.
func Drain(ctx context.Context) error {
	const pollInterval = 10 * time.Millisecond

	for {
		runtime.GC()
		n := countLiveContexts()
		if n == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return joinErr("shutdown drain: %d service context(s) still referenced", n)
		case <-time.After(pollInterval):
		}
	}

	done := make(chan struct{})
	go func() {
		detachedJobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return joinErr("shutdown drain: detached release jobs did not finish")
	}
}

package oracle

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecMutualExclusion(t *testing.T) {
	f := newFakeNative()
	sc := newServiceContext(f, nil, true)
	defer sc.release()

	// Hold the in-flight slot and verify a second operation fails fast.
	sc.activeOp.Store(99)
	_, err := sc.exec(context.Background(), "probe", func() int32 { return OCISuccess })
	if !errors.Is(err, ErrContextBusy) {
		t.Fatalf("err = %v, want ErrContextBusy", err)
	}
	sc.activeOp.Store(0)

	status, err := sc.exec(context.Background(), "probe", func() int32 { return OCISuccess })
	if err != nil || status != OCISuccess {
		t.Fatalf("exec after release = (%d, %v)", status, err)
	}
	if sc.activeOp.Load() != 0 {
		t.Errorf("token must be released after a completed operation")
	}
}

func TestExecCancelKeepsContextBusy(t *testing.T) {
	f := newFakeNative()
	sc := newServiceContext(f, nil, true)
	defer sc.release()

	var finish atomic.Bool
	call := func() int32 {
		if finish.Load() {
			return OCISuccess
		}
		return OCIStillExecuting
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sc.exec(ctx, "slow", call)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The abandoned operation is still running; the context stays busy.
	_, err = sc.exec(context.Background(), "next", func() int32 { return OCISuccess })
	if !errors.Is(err, ErrContextBusy) {
		t.Fatalf("err = %v, want ErrContextBusy while draining", err)
	}

	// Let the detached drain finish; the slot frees up.
	finish.Store(true)
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err = sc.exec(context.Background(), "next", func() int32 { return OCISuccess })
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("context still busy after drain: %v", err)
		}
		runtime.Gosched()
	}
}

func TestExecBlockingModeIgnoresToken(t *testing.T) {
	f := newFakeNative()
	sc := newServiceContext(f, nil, false)
	defer sc.release()

	// Blocking mode has no in-flight slot to contend for.
	sc.activeOp.Store(99)
	status, err := sc.exec(context.Background(), "probe", func() int32 { return OCISuccess })
	if err != nil || status != OCISuccess {
		t.Fatalf("exec = (%d, %v)", status, err)
	}
}

func TestTeardownOrder(t *testing.T) {
	f := newFakeNative()
	f.sessionEndStill = 2
	conn, err := fakeConnect(Config{Nonblocking: true}, f)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	// The session must be fully ended, including its still-executing polls,
	// before the server link is detached.
	log := f.callLog()
	end, detach := -1, -1
	for i, c := range log {
		switch c {
		case "SessionEnd":
			end = i
		case "ServerDetach":
			detach = i
		}
	}
	if end == -1 || detach == -1 {
		t.Fatalf("missing teardown calls in %v", log)
	}
	if end > detach {
		t.Errorf("session end at %d after server detach at %d", end, detach)
	}
	if f.callCount("SessionEnd:still") != 2 {
		t.Errorf("session end polls = %d, want 2", f.callCount("SessionEnd:still"))
	}
}

func TestTeardownWaitsForLastReference(t *testing.T) {
	f := newFakeNative()
	f.script(employeeQuery, employeeScript())
	conn, err := fakeConnect(Config{StmtCacheSize: -1}, f)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	st, err := conn.Prepare(context.Background(), employeeQuery)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// The statement still holds a reference; the session must survive.
	if f.callCount("SessionEnd") != 0 {
		t.Fatalf("session ended while a statement was still alive")
	}
	rows, err := st.Query(context.Background(), 103)
	if err != nil {
		t.Fatalf("query after connection close: %v", err)
	}
	if !rows.Next(context.Background()) {
		t.Fatalf("fetch: %v", rows.Err())
	}
	rows.Close()
	st.Close()
	if f.callCount("SessionEnd") != 1 {
		t.Errorf("closing the last reference must end the session")
	}
}

func TestDrainReportsLiveContexts(t *testing.T) {
	f := newFakeNative()
	conn, err := fakeConnect(Config{}, f)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	err = Drain(ctx)
	cancel()
	if !IsError(err, ErrJoin) {
		t.Fatalf("drain with a live connection = %v, want a join error", err)
	}

	conn.Close()
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Drain(ctx); err != nil {
		t.Fatalf("drain after close: %v", err)
	}
}

package app

import (
	"context"
	"testing"
)

type okPing struct{}

func (okPing) Err() error { return nil }

type errPing struct{ err error }

func (e errPing) Err() error { return e.err }

type fakeRedis struct {
	ok  bool
	err error
}

func (f fakeRedis) Ping(context.Context) RedisPingResult {
	if f.ok {
		return okPing{}
	}
	return errPing{err: f.err}
}

type fakePool struct{ err error }

func (f fakePool) Ping(context.Context) error { return f.err }

func TestBuildReadinessChecks_Redis(t *testing.T) {
	db, red := BuildReadinessChecks(nil, fakeRedis{ok: true})
	if err := red(context.Background()); err != nil {
		t.Fatalf("redis check: %v", err)
	}
	if err := db(context.Background()); err == nil {
		t.Fatalf("expected db not configured error")
	}

	_, red = BuildReadinessChecks(nil, fakeRedis{ok: false, err: context.DeadlineExceeded})
	if err := red(context.Background()); err == nil {
		t.Fatalf("expected redis error")
	}
}

func TestBuildReadinessChecks_DB(t *testing.T) {
	db, red := BuildReadinessChecks(fakePool{}, nil)
	if err := db(context.Background()); err != nil {
		t.Fatalf("db check: %v", err)
	}
	if err := red(context.Background()); err == nil {
		t.Fatalf("expected redis not configured error")
	}

	db, _ = BuildReadinessChecks(fakePool{err: context.DeadlineExceeded}, nil)
	if err := db(context.Background()); err == nil {
		t.Fatalf("expected db error")
	}
}

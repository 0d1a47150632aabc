package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shutdownd/pkg/logx"
)

type fakeSession struct {
	mu   sync.Mutex
	got  []string
	fail bool
}

func (f *fakeSession) Send(msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("session gone")
	}
	f.got = append(f.got, msg)
	return nil
}

func (f *fakeSession) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func TestBroadcastInlineDelivery(t *testing.T) {
	t.Parallel()
	svc := New(Config{RatePerSec: 5}, logx.Nop())

	a := &fakeSession{}
	b := &fakeSession{}
	svc.Attach(a)
	svc.Attach(b)

	svc.Broadcast("restart in 1 hour")

	if got := a.messages(); len(got) != 1 || got[0] != "restart in 1 hour" {
		t.Fatalf("session a got %v", got)
	}
	if got := b.messages(); len(got) != 1 {
		t.Fatalf("session b got %v", got)
	}
}

func TestDetachStopsDelivery(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, logx.Nop())

	a := &fakeSession{}
	id := svc.Attach(a)
	svc.Detach(id)

	svc.Broadcast("hello")
	if got := a.messages(); len(got) != 0 {
		t.Fatalf("detached session got %v", got)
	}
	if svc.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d", svc.SessionCount())
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	svc := New(Config{RatePerSec: 100}, logx.Nop())
	ctx := context.Background()

	if svc.Enabled() {
		t.Fatal("service should start disabled")
	}
	svc.Start(ctx)
	if !svc.Enabled() {
		t.Fatal("service should be enabled after Start")
	}
	svc.Stop(ctx)
	if svc.Enabled() {
		t.Fatal("service should be disabled after Stop")
	}
}

func TestFailingSessionDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, logx.Nop())

	bad := &fakeSession{fail: true}
	good := &fakeSession{}
	svc.Attach(bad)
	svc.Attach(good)

	svc.Broadcast("notice")
	if got := good.messages(); len(got) != 1 {
		t.Fatalf("healthy session got %v", got)
	}
}

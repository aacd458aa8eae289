package websocket

import "testing"

func TestPendingCallsResolveDeliversToWaiter(t *testing.T) {
	p := newPendingCalls()
	wait := p.register("echo1")

	p.resolve(map[string]any{"echo": "echo1", "status": "ok"})

	select {
	case resp := <-wait:
		if resp["status"] != "ok" {
			t.Fatalf("status = %v, want ok", resp["status"])
		}
	default:
		t.Fatal("expected response to be delivered")
	}
}

func TestPendingCallsResolveDropsUnmatchedEcho(t *testing.T) {
	p := newPendingCalls()
	p.register("echo1")

	p.resolve(map[string]any{"echo": "unknown", "status": "ok"})

	p.mu.Lock()
	_, stillPending := p.waiters["echo1"]
	p.mu.Unlock()
	if !stillPending {
		t.Fatal("resolve with unmatched echo should not touch other waiters")
	}
}

func TestPendingCallsCancelRemovesWaiter(t *testing.T) {
	p := newPendingCalls()
	p.register("echo1")
	p.cancel("echo1")

	p.mu.Lock()
	_, ok := p.waiters["echo1"]
	p.mu.Unlock()
	if ok {
		t.Fatal("expected waiter to be removed after cancel")
	}
}

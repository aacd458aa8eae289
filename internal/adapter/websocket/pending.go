package websocket

import "sync"

// pendingCalls correlates outbound API calls with their echo-tagged
// response frame, since the broker answers asynchronously on the same
// connection every event arrives on.
type pendingCalls struct {
	mu      sync.Mutex
	waiters map[string]chan map[string]any
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{waiters: make(map[string]chan map[string]any)}
}

func (p *pendingCalls) register(echo string) <-chan map[string]any {
	ch := make(chan map[string]any, 1)
	p.mu.Lock()
	p.waiters[echo] = ch
	p.mu.Unlock()
	return ch
}

func (p *pendingCalls) cancel(echo string) {
	p.mu.Lock()
	delete(p.waiters, echo)
	p.mu.Unlock()
}

// resolve delivers a response frame to its waiter, if one is still
// registered; responses with no matching echo (or arriving after timeout)
// are dropped.
func (p *pendingCalls) resolve(resp map[string]any) {
	echo, _ := resp["echo"].(string)
	if echo == "" {
		return
	}

	p.mu.Lock()
	ch, ok := p.waiters[echo]
	if ok {
		delete(p.waiters, echo)
	}
	p.mu.Unlock()

	if ok {
		ch <- resp
	}
}

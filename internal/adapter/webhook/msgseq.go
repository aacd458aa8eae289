package webhook

import "sync"

// msgSeqCounter generates increasing msg_seq values per reply-to message id
// so repeated replies to the same inbound message stay unique, bounded to a
// fixed number of tracked message ids (oldest evicted first).
type msgSeqCounter struct {
	mu       sync.Mutex
	limit    int
	order    []string
	counters map[string]int
}

func newMsgSeqCounter(limit int) *msgSeqCounter {
	return &msgSeqCounter{limit: limit, counters: make(map[string]int)}
}

func (c *msgSeqCounter) next(msgID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msgID == "" {
		msgID = "_"
	}

	if _, ok := c.counters[msgID]; !ok {
		if len(c.order) >= c.limit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.counters, oldest)
		}
		c.order = append(c.order, msgID)
	}

	c.counters[msgID]++
	return c.counters[msgID]
}

package telegraph

import "sync"

// lanes runs handlers concurrently across senders while keeping each
// sender's messages in arrival order. A sender's lane exists only while it
// has queued work.
type lanes struct {
	mu    sync.Mutex
	queue map[string][]InboundMessage
	wg    sync.WaitGroup
}

func newLanes() *lanes {
	return &lanes{queue: make(map[string][]InboundMessage)}
}

// laneKey identifies a sender across platforms.
func laneKey(msg InboundMessage) string {
	return msg.Platform + ":" + msg.UserID
}

// dispatch queues msg on its sender's lane, starting a worker for the lane
// if none is running.
func (l *lanes) dispatch(msg InboundMessage, handle func(InboundMessage)) {
	key := laneKey(msg)

	l.mu.Lock()
	q, running := l.queue[key]
	l.queue[key] = append(q, msg)
	l.mu.Unlock()
	if running {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			l.mu.Lock()
			q := l.queue[key]
			if len(q) == 0 {
				delete(l.queue, key)
				l.mu.Unlock()
				return
			}
			next := q[0]
			l.queue[key] = q[1:]
			l.mu.Unlock()

			handle(next)
		}
	}()
}

// wait blocks until every queued message has been handled.
func (l *lanes) wait() {
	l.wg.Wait()
}

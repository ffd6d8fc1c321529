package review

import (
	"slices"
	"sync"
	"time"
)

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = time.Minute
	// maxBackoff は指数バックオフの最大遅延（1時間）。
	maxBackoff = time.Hour
)

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大1時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

type backoffState struct {
	failures int
	next     time.Time
}

// backoffTracker は審査に失敗したアセスメントの再試行時刻をプロセス内で管理する。
// 再起動すると失敗履歴は失われ、次のサイクルで全件が再試行される。
type backoffTracker struct {
	mu    sync.Mutex
	now   func() time.Time
	state map[int64]backoffState
}

func newBackoffTracker(now func() time.Time) *backoffTracker {
	return &backoffTracker{now: now, state: make(map[int64]backoffState)}
}

func (t *backoffTracker) due(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.state[id]
	return !ok || !t.now().Before(st.next)
}

// backingOff は現在再試行時刻に達していないIDを昇順で返す。
func (t *backoffTracker) backingOff() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var ids []int64
	for id, st := range t.state {
		if now.Before(st.next) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (t *backoffTracker) fail(id int64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state[id]
	delay := CalculateBackoff(st.failures)
	st.failures++
	st.next = t.now().Add(delay)
	t.state[id] = st
	return delay
}

func (t *backoffTracker) succeed(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, id)
}

package syncbus

import (
	"sync"
	"time"
)

// Indicator tracks the cosmetic "syncing" state shown for a short window after a receive.
type Indicator struct {
	mu         sync.Mutex
	window     time.Duration
	now        func() time.Time
	lastAt     time.Time
	lastOrigin string
	received   uint64
}

type IndicatorStatus struct {
	Syncing        bool   `json:"syncing"`
	LastReceivedAt int64  `json:"lastReceivedAt,omitempty"`
	LastOrigin     string `json:"lastOrigin,omitempty"`
	Received       uint64 `json:"received"`
}

func NewIndicator(window time.Duration) *Indicator {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Indicator{window: window, now: time.Now}
}

func (i *Indicator) Mark(origin string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastAt = i.now()
	i.lastOrigin = origin
	i.received++
}

func (i *Indicator) Status() IndicatorStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	st := IndicatorStatus{LastOrigin: i.lastOrigin, Received: i.received}
	if !i.lastAt.IsZero() {
		st.LastReceivedAt = i.lastAt.UnixMilli()
		st.Syncing = i.now().Sub(i.lastAt) < i.window
	}
	return st
}

package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Set or Advance is called.
// Tickers fire during Advance, once per elapsed interval, dropping ticks
// the reader has not consumed. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	next     time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		next:     f.current.Add(d),
		interval: d,
		ch:       make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	return &Ticker{
		C: t.ch,
		stop: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			t.stopped = true
		},
	}
}

// Set jumps to t without firing tickers.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
	for _, tk := range f.tickers {
		tk.next = t.Add(tk.interval)
	}
}

// Advance moves the clock forward by d and fires every ticker whose
// deadline has passed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)

	live := f.tickers[:0]
	for _, tk := range f.tickers {
		if tk.stopped {
			continue
		}
		for !tk.next.After(f.current) {
			select {
			case tk.ch <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.interval)
		}
		live = append(live, tk)
	}
	f.tickers = live
}

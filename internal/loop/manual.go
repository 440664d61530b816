package loop

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual is a Dispatcher driven by hand, for tests. Posted callbacks run on
// Drain, round trips run on Resolve in any order, and timers fire on Advance
// against a virtual clock.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	posted []func()
	jobs   []*Job
	timers []*manualTimer
	seq    int
}

// Job is a round trip captured by Manual.Go.
type Job struct {
	work func(ctx context.Context) func()
	done bool
}

type manualTimer struct {
	at      time.Time
	every   time.Duration
	fn      func()
	stopped bool
	seq     int
}

func (t *manualTimer) Stop() {
	t.stopped = true
}

// NewManual creates a manual dispatcher whose clock starts at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the virtual clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Post queues fn until the next Drain.
func (m *Manual) Post(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, fn)
	return true
}

// Go captures work until Resolve is called for it.
func (m *Manual) Go(work func(ctx context.Context) func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, &Job{work: work})
}

// Pending returns how many captured round trips have not been resolved.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if !j.done {
			n++
		}
	}
	return n
}

// Resolve runs the i-th unresolved round trip and its completion, then
// drains anything they posted.
func (m *Manual) Resolve(i int) {
	m.mu.Lock()
	var job *Job
	idx := 0
	for _, j := range m.jobs {
		if j.done {
			continue
		}
		if idx == i {
			job = j
			break
		}
		idx++
	}
	if job != nil {
		job.done = true
	}
	m.mu.Unlock()

	if job == nil {
		return
	}
	if done := job.work(context.Background()); done != nil {
		done()
	}
	m.Drain()
}

// ResolveAll resolves round trips in issue order until none remain.
func (m *Manual) ResolveAll() {
	for m.Pending() > 0 {
		m.Resolve(0)
	}
}

// Drain runs posted callbacks until the queue is empty.
func (m *Manual) Drain() {
	for {
		m.mu.Lock()
		if len(m.posted) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.posted[0]
		m.posted = m.posted[1:]
		m.mu.Unlock()
		fn()
	}
}

// AfterFunc schedules fn at now+d on the virtual clock.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Handle {
	return m.schedule(d, 0, fn)
}

// Every schedules fn every d on the virtual clock.
func (m *Manual) Every(d time.Duration, fn func()) Handle {
	return m.schedule(d, d, fn)
}

func (m *Manual) schedule(d, every time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{at: m.now.Add(d), every: every, fn: fn, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers in time order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
		m.Drain()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
	m.Drain()
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if !m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].at.Before(m.timers[j].at)
		}
		return m.timers[i].seq < m.timers[j].seq
	})

	for _, t := range m.timers {
		if t.at.After(target) {
			return nil
		}
		m.now = t.at
		if t.every > 0 {
			t.at = t.at.Add(t.every)
		} else {
			t.stopped = true
		}
		return t
	}
	return nil
}

// ActiveTimers counts timers that have not been stopped or fired.
func (m *Manual) ActiveTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

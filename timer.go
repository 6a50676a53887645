package loopwire

import "time"

// TimerID identifies a registered Timer (§3 "Timer").
type TimerID uint64

// Timer is a recurring or single-shot callback driven by the Loop.
type Timer struct {
	id         TimerID
	interval   time.Duration
	singleShot bool
	fn         func()
	lastFire   time.Time
}

// ID returns the timer's stable identifier.
func (t *Timer) ID() TimerID { return t.id }

// AddTimer registers a timer and returns its stable id (§4.B "add_timer").
// A zero interval fires the timer on every iteration but never more than
// once per iteration (§8 boundary behaviour).
func (l *Loop) AddTimer(fn func(), interval time.Duration, singleShot bool) TimerID {
	l.mu.Lock()
	l.nextTimerID++
	id := TimerID(l.nextTimerID)
	l.timers = append(l.timers, &Timer{
		id:         id,
		interval:   interval,
		singleShot: singleShot,
		fn:         fn,
		lastFire:   time.Now(),
	})
	l.mu.Unlock()
	l.signalWork()
	return id
}

// RemoveTimer unregisters a timer; idempotent (§4.B "remove_timer").
func (l *Loop) RemoveTimer(id TimerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, t := range l.timers {
		if t.id == id {
			l.timers = append(l.timers[:i:i], l.timers[i+1:]...)
			return
		}
	}
}

// fireReadyTimers fires every ready timer in registration order (§5:
// "Timers with equal readiness times fire in registration order within
// one iteration"), resetting last_fire to the fire moment (drift-tolerant
// cadence, §3/§9 open question #1), and returns the time remaining until
// the next timer not fired this pass becomes ready.
func (l *Loop) fireReadyTimers() time.Duration {
	l.mu.Lock()
	snapshot := make([]*Timer, len(l.timers))
	copy(snapshot, l.timers)
	l.mu.Unlock()

	var minWait time.Duration = -1
	now := time.Now()

	for _, tm := range snapshot {
		elapsed := now.Sub(tm.lastFire)
		if elapsed >= tm.interval {
			fn := tm.fn
			l.Spawn(fn)
			tm.lastFire = time.Now()
			l.metrics.timersFired.Add(1)
			if tm.singleShot {
				l.RemoveTimer(tm.id)
			}
			continue
		}
		remain := tm.interval - elapsed
		if minWait < 0 || remain < minWait {
			minWait = remain
		}
	}

	if minWait < 0 {
		return 0
	}
	return minWait
}

package loopwire

import "github.com/arwx/loopwire/metrics"

// loopMetrics bundles the instruments a Loop records through, all created
// from a single metrics.Provider (teacher package, adapted unchanged).
type loopMetrics struct {
	postedClosures metrics.Counter
	tasksSpawned   metrics.Counter
	tasksResumed   metrics.Counter
	timersFired    metrics.Counter
}

func newLoopMetrics(p metrics.Provider) loopMetrics {
	return loopMetrics{
		postedClosures: p.Counter("loopwire.posted_closures", metrics.WithUnit("1")),
		tasksSpawned:   p.Counter("loopwire.tasks_spawned", metrics.WithUnit("1")),
		tasksResumed:   p.Counter("loopwire.tasks_resumed", metrics.WithUnit("1")),
		timersFired:    p.Counter("loopwire.timers_fired", metrics.WithUnit("1")),
	}
}

func newNoopLoopMetrics() loopMetrics {
	return newLoopMetrics(metrics.NewNoopProvider())
}

// WithMetrics records loop activity (posted closures, task spawns and
// resumes, timer firings) through the given metrics.Provider. The default
// is a no-op provider.
func WithMetrics(p metrics.Provider) Option {
	return func(l *Loop) { l.metrics = newLoopMetrics(p) }
}

package task

// Spawn creates a task wrapping fut, hands its first poll step to pool, and
// returns a Handle observing its eventual result. This is the executor's
// side of spec.md §4.3/§4.4's "spawn enqueues a task for its first poll";
// the reactor and any timers are expected to drive further polls purely by
// waking the Waker handed to fut.Poll.
func Spawn[T any](pool *Pool, fut Future[T]) (*Handle[T], error) {
	t := newTaskState(fut, func(r runnable) {
		// Distribute errors here are unrecoverable for this wake episode:
		// there is no caller left to report to, so the task is cancelled
		// instead of silently stalling forever.
		if err := pool.Distribute(r); err != nil {
			r.cancel()
		}
	})
	h := newHandle(t)
	if err := pool.Distribute(t); err != nil {
		t.cancel()
		return nil, err
	}
	return h, nil
}

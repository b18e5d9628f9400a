package scheduler

// Reload is the pending-reload signal between the file watcher and the
// render loop. Notifications that arrive while one is pending coalesce.
type Reload struct {
	ch chan struct{}
}

// NewReload returns a signal with nothing pending.
func NewReload() *Reload {
	return &Reload{ch: make(chan struct{}, 1)}
}

// Notify marks a reload as pending. It never blocks.
func (r *Reload) Notify() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

// Pending reports whether a reload was requested and clears the request.
func (r *Reload) Pending() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}

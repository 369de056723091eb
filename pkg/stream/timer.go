package stream

import "time"

type ticker struct {
	stop chan struct{}
	done chan struct{}
}

// startTicker calls fn every interval in a goroutine until Stop is called.
func startTicker(interval time.Duration, fn func()) *ticker {
	t := &ticker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				fn()
			}
		}
	}()

	return t
}

// Stop does not block. Use Wait to wait for the goroutine to exit.
func (x *ticker) Stop() {
	select {
	case <-x.stop:
	default:
		close(x.stop)
	}
}

func (x *ticker) Wait() {
	<-x.done
}

// Done returns true after the goroutine exited.
func (x *ticker) Done() bool {
	select {
	case <-x.done:
		return true
	default:
		return false
	}
}

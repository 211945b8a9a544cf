package autoexport

import (
	"sync"

	"go.uber.org/zap"

	"mediastudio/client/uploader"
)

// QueueView is the read-only slice of the upload queue the coordinator
// watches.
type QueueView interface {
	Snapshot() []uploader.Task
	Subscribe(fn func())
}

// Coordinator bridges upload completion to export start. While armed it
// watches the queue; once every visible task is uploaded or cancelled it
// fires the registered callback exactly once, then disarms itself so later
// uploads cannot re-trigger it. A failed task blocks firing until the user
// retries or removes it.
type Coordinator struct {
	mu     sync.Mutex
	queue  QueueView
	armed  bool
	fn     func()
	logger *zap.Logger
}

func New(queue QueueView, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		queue:  queue,
		logger: logger,
	}
	queue.Subscribe(c.check)
	return c
}

// Arm registers (or clears) the callback. If the queue is already settled
// the callback fires asynchronously, never from inside Arm, so the caller
// finishes its own setup first.
func (c *Coordinator) Arm(enabled bool, fn func()) {
	c.mu.Lock()
	c.armed = enabled && fn != nil
	if c.armed {
		c.fn = fn
	} else {
		c.fn = nil
	}
	c.mu.Unlock()

	if enabled {
		go c.check()
	}
}

// Armed reports whether a callback is pending.
func (c *Coordinator) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

func (c *Coordinator) check() {
	if !c.ready() {
		return
	}

	c.mu.Lock()
	if !c.armed || c.fn == nil {
		c.mu.Unlock()
		return
	}
	fn := c.fn
	c.armed = false
	c.fn = nil
	c.mu.Unlock()

	c.logger.Info("all uploads settled, starting export")
	fn()
}

// ready is true when every visible task is uploaded or cancelled. A failed
// task never silently counts as done.
func (c *Coordinator) ready() bool {
	for _, task := range c.queue.Snapshot() {
		switch task.Status {
		case uploader.StatusUploaded, uploader.StatusCancelled:
		default:
			return false
		}
	}
	return true
}

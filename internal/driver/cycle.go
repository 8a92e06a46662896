package driver

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// cycler runs a transfer function at a fixed period and fans the
// resulting samples out to subscribers. Backends embed it.
type cycler struct {
	period   time.Duration
	logger   *zap.Logger
	transfer func() (Sample, error)

	mu       sync.RWMutex
	handlers []Handler
	errFuncs []func(error)
	tick     uint64

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func newCycler(period time.Duration, logger *zap.Logger, transfer func() (Sample, error)) *cycler {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &cycler{
		period:   period,
		logger:   logger,
		transfer: transfer,
	}
}

// Subscribe adds a tick handler.
func (c *cycler) Subscribe(h Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// OnError adds an error callback.
func (c *cycler) OnError(f func(error)) {
	c.mu.Lock()
	c.errFuncs = append(c.errFuncs, f)
	c.mu.Unlock()
}

// Period returns the cycle interval.
func (c *cycler) Period() time.Duration {
	return c.period
}

func (c *cycler) start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.wg.Add(1)
	go c.loop(c.stopChan)

	c.logger.Info("cycle started", zap.Duration("period", c.period))
}

func (c *cycler) stop() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.runMu.Unlock()

	c.wg.Wait()
	c.logger.Info("cycle stopped")
}

func (c *cycler) loop(stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.step()
		}
	}
}

// step performs one transfer and dispatches the sample.
func (c *cycler) step() {
	s, err := c.transfer()
	if err != nil {
		c.reportError(err)
		return
	}
	c.dispatch(s)
}

func (c *cycler) dispatch(s Sample) {
	c.mu.Lock()
	c.tick++
	s.Tick = c.tick
	handlers := make([]Handler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		c.safeCall(h, s)
	}
}

// safeCall keeps one misbehaving handler from stopping the cycle.
func (c *cycler) safeCall(h Handler, s Sample) {
	defer func() {
		if r := recover(); r != nil {
			c.reportError(fmt.Errorf("tick handler panic: %v", r))
		}
	}()
	h(s)
}

func (c *cycler) reportError(err error) {
	c.mu.RLock()
	funcs := make([]func(error), len(c.errFuncs))
	copy(funcs, c.errFuncs)
	c.mu.RUnlock()

	if len(funcs) == 0 {
		c.logger.Error("driver error", zap.Error(err))
		return
	}
	for _, f := range funcs {
		f(err)
	}
}

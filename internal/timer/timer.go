package timer

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Interval is the display refresh cadence.
const Interval = time.Second

// Zero is the display for "no running session".
const Zero = "00:00:00"

// Format renders whole seconds as HH:MM:SS. Hours are not wrapped at 24.
func Format(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Elapsed returns the whole seconds between start and now, floored, never negative.
func Elapsed(start, now time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Display returns the elapsed time since start, or Zero when start is nil.
func Display(start *time.Time, now time.Time) string {
	if start == nil {
		return Zero
	}
	return Format(Elapsed(*start, now))
}

// Timer recomputes the elapsed display for a start instant on a fixed cadence
// and hands each value to onTick.
type Timer struct {
	interval time.Duration
	now      func() time.Time
	onTick   func(string)
	logger   *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a stopped timer. A nil now defaults to time.Now and a
// non-positive interval to Interval.
func New(interval time.Duration, now func() time.Time, onTick func(string), logger *zap.Logger) *Timer {
	if interval <= 0 {
		interval = Interval
	}
	if now == nil {
		now = time.Now
	}
	return &Timer{
		interval: interval,
		now:      now,
		onTick:   onTick,
		logger:   logger,
	}
}

// Start shows the elapsed time since start immediately and then on every
// tick. Any previous loop is stopped first. A nil start resets the display
// to Zero and leaves the timer stopped.
func (t *Timer) Start(start *time.Time) {
	t.Stop()

	if start == nil {
		t.emit(Zero)
		return
	}

	begin := *start
	stop := make(chan struct{})

	t.mu.Lock()
	t.stopChan = stop
	t.wg.Add(1)
	t.mu.Unlock()

	t.emit(Display(&begin, t.now()))
	go t.loop(begin, stop)

	t.logger.Debug("Timer started",
		zap.Time("start", begin),
		zap.Duration("interval", t.interval),
	)
}

// Stop ends the recomputation loop and waits for it to exit. Safe to call repeatedly.
func (t *Timer) Stop() {
	t.mu.Lock()
	stop := t.stopChan
	t.stopChan = nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	t.wg.Wait()
	t.logger.Debug("Timer stopped")
}

// Running reports whether a recomputation loop is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopChan != nil
}

func (t *Timer) loop(start time.Time, stop <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Stop may race with a pending tick.
			select {
			case <-stop:
				return
			default:
			}
			t.emit(Display(&start, t.now()))
		case <-stop:
			return
		}
	}
}

func (t *Timer) emit(value string) {
	if t.onTick != nil {
		t.onTick(value)
	}
}

// Package notify fans challan events out to notification channels.
//
// Each channel runs in its own goroutine with its own deadline. A channel
// that errors, panics or times out is logged and counted, and never affects
// the other channels or the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/metrics"
)

// DefaultChannelTimeout bounds a single channel's handling of one event.
const DefaultChannelTimeout = 5 * time.Second

// publishGrace is how long Publish waits past the channel timeout for
// channels that ignore their context.
const publishGrace = 100 * time.Millisecond

// Channel receives published events.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Deliver handles one event. Returning an error only affects logging.
	Deliver(ctx context.Context, event domain.Event) error
}

// Publisher is what the challan services depend on.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// Bus dispatches every event to all registered channels.
type Bus struct {
	channels []Channel
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBus creates a bus. The channel list is fixed for the bus lifetime.
func NewBus(logger *slog.Logger, timeout time.Duration, channels ...Channel) *Bus {
	if timeout <= 0 {
		timeout = DefaultChannelTimeout
	}
	return &Bus{
		channels: channels,
		timeout:  timeout,
		logger:   logger.With("component", "notify"),
	}
}

// Channels returns the names of the registered channels in order.
func (b *Bus) Channels() []string {
	names := make([]string, len(b.channels))
	for i, ch := range b.channels {
		names[i] = ch.Name()
	}
	return names
}

// Publish delivers the event to every channel and waits for them, for at
// most the channel timeout plus a short grace period. Channels still running
// after that are logged and left to finish in the background. It never
// fails. Delivery is detached from ctx cancellation so a request that ends
// early does not cut notifications short.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	base := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		running = make(map[string]bool, len(b.channels))
		wg      sync.WaitGroup
	)
	for _, ch := range b.channels {
		name := ch.Name()
		mu.Lock()
		running[name] = true
		mu.Unlock()

		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(running, name)
				mu.Unlock()
			}()
			b.deliver(base, ch, event)
		}(ch)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(b.timeout + publishGrace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		mu.Lock()
		stuck := make([]string, 0, len(running))
		for name := range running {
			stuck = append(stuck, name)
		}
		mu.Unlock()
		sort.Strings(stuck)

		b.logger.Warn("Notification channels still running after timeout",
			"event_kind", event.Kind,
			"channels", stuck,
			"timeout", b.timeout,
		)
		for _, name := range stuck {
			metrics.NotificationDelivered(name, "stuck")
		}
	}
}

func (b *Bus) deliver(ctx context.Context, ch Channel, event domain.Event) {
	name := ch.Name()
	logger := b.logger.With("channel", name, "event_kind", event.Kind)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Notification channel panicked", "panic", fmt.Sprint(r))
			metrics.NotificationDelivered(name, "panic")
		}
	}()

	if err := ch.Deliver(ctx, event); err != nil {
		logger.Error("Notification channel failed", "error", err)
		metrics.NotificationDelivered(name, "error")
		return
	}
	metrics.NotificationDelivered(name, "ok")
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc struct {
	ChannelName string
	Fn          func(ctx context.Context, event domain.Event) error
}

// Name returns the channel name.
func (f ChannelFunc) Name() string { return f.ChannelName }

// Deliver calls the wrapped function.
func (f ChannelFunc) Deliver(ctx context.Context, event domain.Event) error {
	return f.Fn(ctx, event)
}

// Package dispatch runs post-commit side effects on a bounded worker pool.
// Failures are logged and swallowed; they never reach the caller.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/service"
	"github.com/tablepos/engine/internal/ticket"
)

const (
	taskTimeout      = 10 * time.Second
	maxBlockingTasks = 1024
)

// Notifier pushes order changes to connected clients.
type Notifier interface {
	NotifyOrderChanged(ctx context.Context, order database.Order) error
}

// Dispatcher executes service events asynchronously.
type Dispatcher struct {
	pool     *ants.Pool
	notifier Notifier
	printer  ticket.Printer
	log      zerolog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates a Dispatcher with the given number of workers.
func New(workers int, notifier Notifier, printer ticket.Printer, logger zerolog.Logger) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{notifier: notifier, printer: printer, log: logger, now: time.Now}
	pool, err := ants.NewPool(workers, ants.WithMaxBlockingTasks(maxBlockingTasks))
	if err != nil {
		return nil, fmt.Errorf("create dispatch pool: %w", err)
	}
	d.pool = pool
	return d, nil
}

// Dispatch queues every event. It returns once the events are queued, not
// when they have run.
func (d *Dispatcher) Dispatch(events []service.Event) {
	for _, ev := range events {
		d.wg.Add(1)
		err := d.pool.Submit(func() {
			defer d.wg.Done()
			defer func() {
				if p := recover(); p != nil {
					d.warn(ev, fmt.Errorf("panic: %v", p), "side effect panicked")
				}
			}()
			d.run(ev)
		})
		if err != nil {
			d.wg.Done()
			d.warn(ev, err, "dispatch queue rejected event")
		}
	}
}

func (d *Dispatcher) run(ev service.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	var err error
	switch ev.Kind {
	case service.EventOrderChanged:
		if d.notifier != nil {
			err = d.notifier.NotifyOrderChanged(ctx, ev.Order)
		}
	case service.EventKitchenTicket:
		if d.printer != nil && len(ev.Lines) > 0 {
			err = d.printer.Print(ctx, ticket.New(ev.Order, ev.Lines, ev.Print, d.now()))
		}
	default:
		err = fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if err != nil {
		d.warn(ev, err, "side effect failed")
	}
}

func (d *Dispatcher) warn(ev service.Event, err error, msg string) {
	d.log.Warn().
		Err(err).
		Str("event", ev.Kind).
		Str("order_id", ev.Order.ID.String()).
		Msg(msg)
}

// Wait blocks until every queued event has run.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for queued events and releases the workers.
func (d *Dispatcher) Close() {
	d.Wait()
	d.pool.Release()
}

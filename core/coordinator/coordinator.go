package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/kmathy/carlink/core/event"
	"github.com/kmathy/carlink/core/garage"
	"github.com/kmathy/carlink/core/logger"
	"github.com/kmathy/carlink/core/metrics"
	"github.com/kmathy/carlink/core/model"
	"github.com/kmathy/carlink/core/notify"
	"github.com/kmathy/carlink/core/operation"
	"github.com/kmathy/carlink/core/refresh"
	"github.com/kmathy/carlink/internal/eventbus"
)

// DefaultSettleDelay is how long the coordinator waits after a completed
// operation before refreshing the affected domain. The backend does not
// reflect a finished operation immediately.
const DefaultSettleDelay = time.Second

// CommandSender issues a command against a vehicle and returns the operation
// id the bus will use to report its outcome. Implemented by the REST client.
type CommandSender interface {
	SendCommand(ctx context.Context, vin string, cmd model.CommandSpec) (operationID string, err error)
}

// Config wires a Coordinator to its collaborators.
type Config struct {
	Fetcher refresh.Fetcher
	Sender  CommandSender
	Garage  garage.Store
	Sink    metrics.Sink
	Log     logger.Logger

	// DebounceWindow defaults to refresh.DefaultWindow when zero.
	DebounceWindow time.Duration
	// OperationTimeout defaults to operation.DefaultTimeout when zero.
	OperationTimeout time.Duration
	// SettleDelay defaults to DefaultSettleDelay when zero. Negative
	// disables the post-operation refresh.
	SettleDelay time.Duration
}

// Coordinator reconciles the two service channels into one consistent view:
// commands acknowledged over HTTP are matched to their bus-delivered
// outcomes, and bus-signalled state changes are turned into debounced
// retrievals plus update notifications.
//
// All bus messages funnel through a single loop goroutine, so tracker and
// scheduler bookkeeping is never mutated concurrently by the transport.
type Coordinator struct {
	tracker   *operation.Tracker
	scheduler *refresh.Scheduler
	registry  *notify.Registry
	events    *eventbus.TypedBus[event.Event]
	garage    garage.Store
	sender    CommandSender
	sink      metrics.Sink
	log       logger.Logger

	opTimeout   time.Duration
	settleDelay time.Duration

	msgs      chan rawMessage
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

type rawMessage struct {
	topic   string
	payload []byte
}

// New creates a Coordinator and starts its dispatch loop.
func New(cfg Config) *Coordinator {
	if cfg.Log == nil {
		panic("coordinator: nil logger")
	}
	if cfg.Sink == nil {
		cfg.Sink = metrics.NopSink{}
	}
	if cfg.Garage == nil {
		cfg.Garage = garage.NewMemoryStore()
	}
	settle := cfg.SettleDelay
	switch {
	case settle == 0:
		settle = DefaultSettleDelay
	case settle < 0:
		settle = 0
	}
	c := &Coordinator{
		tracker:     operation.NewTracker(cfg.Log),
		registry:    notify.NewRegistry(cfg.Log),
		events:      eventbus.NewTyped[event.Event](),
		garage:      cfg.Garage,
		sender:      cfg.Sender,
		sink:        cfg.Sink,
		log:         cfg.Log,
		opTimeout:   cfg.OperationTimeout,
		settleDelay: settle,
		msgs:        make(chan rawMessage, 64),
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
	c.scheduler = refresh.NewScheduler(cfg.Fetcher, cfg.DebounceWindow, c.onRefreshDone, cfg.Log)
	go c.loop()
	return c
}

// HandleMessage is the single ingestion point for bus messages. It is safe
// to call from transport callbacks; messages are queued and processed one at
// a time in arrival order.
func (c *Coordinator) HandleMessage(topic string, payload []byte) {
	select {
	case c.msgs <- rawMessage{topic: topic, payload: payload}:
	case <-c.done:
	}
}

func (c *Coordinator) loop() {
	defer close(c.loopDone)
	for {
		select {
		case msg := <-c.msgs:
			c.process(msg)
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) process(msg rawMessage) {
	// The broker emits empty retained messages on subscription.
	if len(msg.payload) == 0 {
		return
	}
	ev, err := event.Decode(msg.topic, msg.payload)
	if err != nil {
		c.log.Warnf("dropping message: %v", err)
		return
	}
	c.events.Publish(ev)

	switch ev.Kind {
	case event.TypeOperation:
		c.handleOperation(ev)
	case event.TypeServiceEvent:
		if domain, ok := domainForServiceTopic(ev.Service.Topic); ok {
			c.scheduler.Request(refresh.Key{VIN: ev.VIN, Domain: domain})
		} else {
			c.log.Warnf("service event on unmapped topic %s, no refresh", ev.Service.Topic)
		}
	case event.TypeVehicleEvent:
		c.scheduler.Request(refresh.Key{VIN: ev.VIN, Domain: model.DomainStatus})
	case event.TypeAccountEvent:
		// Informational only, already published to event subscribers.
	}
}

func (c *Coordinator) handleOperation(ev event.Event) {
	op := ev.Operation
	c.tracker.Resolve(op.RequestID, op.Status, op.ErrorCode)
	if !op.Status.Terminal() || op.Status == event.StatusError {
		return
	}
	domain, ok := domainForOperation(op.Operation)
	if !ok {
		return
	}
	key := refresh.Key{VIN: ev.VIN, Domain: domain}
	if c.settleDelay == 0 {
		c.scheduler.Request(key)
		return
	}
	time.AfterFunc(c.settleDelay, func() {
		select {
		case <-c.done:
		default:
			c.scheduler.Request(key)
		}
	})
}

func (c *Coordinator) onRefreshDone(out refresh.Outcome) {
	if out.Err == nil {
		c.garage.Set(out.Key.VIN, out.Key.Domain, out.Data)
	}
	if err := c.sink.RecordRefresh(metrics.RefreshRecord{
		VIN:     out.Key.VIN,
		Domain:  out.Key.Domain,
		Success: out.Err == nil,
		Elapsed: out.Elapsed,
	}); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
	// Listeners are notified for failures too; they observe the stale
	// snapshot and its fetch time in the garage.
	c.registry.Notify(out.Key.VIN)
}

// SubscribeEvents delivers every decoded bus event, regardless of vehicle or
// kind.
func (c *Coordinator) SubscribeEvents() <-chan event.Event { return c.events.Subscribe() }

// UnsubscribeEvents removes a subscription created by SubscribeEvents.
func (c *Coordinator) UnsubscribeEvents(ch <-chan event.Event) { c.events.Unsubscribe(ch) }

// SubscribeUpdates registers fn to run whenever a refresh for vin finishes.
func (c *Coordinator) SubscribeUpdates(vin string, fn notify.Listener) notify.Handle {
	return c.registry.Subscribe(vin, fn)
}

// UnsubscribeUpdates removes an update subscription.
func (c *Coordinator) UnsubscribeUpdates(h notify.Handle) { c.registry.Unsubscribe(h) }

// RequestRefresh schedules a debounced retrieval for one vehicle domain. It
// never blocks; completion is observed via SubscribeUpdates.
func (c *Coordinator) RequestRefresh(vin string, domain model.Domain) {
	c.scheduler.Request(refresh.Key{VIN: vin, Domain: domain})
}

// Garage exposes the cached vehicle data for pull-based listeners.
func (c *Coordinator) Garage() garage.Store { return c.garage }

// Track registers interest in an operation id issued elsewhere and returns
// the channel its single Result will arrive on.
func (c *Coordinator) Track(operationID, vin string, timeout time.Duration) (<-chan operation.Result, error) {
	if timeout <= 0 {
		timeout = c.opTimeout
	}
	return c.tracker.Register(operationID, vin, timeout)
}

// AwaitOperation blocks until the operation resolves, times out, or ctx is
// cancelled.
func (c *Coordinator) AwaitOperation(ctx context.Context, operationID, vin string, timeout time.Duration) (operation.Result, error) {
	ch, err := c.Track(operationID, vin, timeout)
	if err != nil {
		return operation.Result{}, err
	}
	return c.await(ctx, ch)
}

// RunCommand sends the command and waits for its bus-reported outcome.
func (c *Coordinator) RunCommand(ctx context.Context, vin string, cmd model.CommandSpec) (operation.Result, error) {
	opID, err := c.sender.SendCommand(ctx, vin, cmd)
	if err != nil {
		return operation.Result{}, err
	}
	return c.AwaitOperation(ctx, opID, vin, c.opTimeout)
}

func (c *Coordinator) await(ctx context.Context, ch <-chan operation.Result) (operation.Result, error) {
	select {
	case res := <-ch:
		if err := c.sink.RecordOperation(metrics.OperationRecord{
			OperationID: res.OperationID,
			VIN:         res.VIN,
			Status:      string(res.Status),
			ErrorCode:   res.ErrorCode,
			Elapsed:     res.Elapsed,
		}); err != nil {
			c.log.Errorf("metrics error: %v", err)
		}
		return res, nil
	case <-ctx.Done():
		return operation.Result{}, ctx.Err()
	}
}

// Close shuts the loop down, cancels all pending operations and stops
// accepting refresh requests. In-flight retrievals drain before it returns.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.loopDone
		c.tracker.Close()
		c.scheduler.Close()
		c.events.Close()
	})
}

// domainForServiceTopic maps a service-event topic path to the data domain
// it invalidates.
func domainForServiceTopic(topic string) (model.Domain, bool) {
	switch topic {
	case "charging":
		return model.DomainCharging, true
	case "air-conditioning", "auxiliary-heating":
		return model.DomainAirConditioning, true
	case "departure":
		return model.DomainPositions, true
	case "vehicle-status/access", "vehicle-status/lights":
		return model.DomainStatus, true
	}
	return "", false
}

// domainForOperation maps an operation name to the domain a completed run of
// it invalidates. Operations with no cached domain (honk, flash) map to
// nothing.
func domainForOperation(name string) (model.Domain, bool) {
	switch name {
	case "start-charging", "stop-charging", "update-charge-limit",
		"update-charge-mode", "update-charging-current", "update-care-mode",
		"update-auto-unlock-plug", "update-battery-support",
		"update-minimal-soc", "update-charging-profiles":
		return model.DomainCharging, true
	case "start-air-conditioning", "stop-air-conditioning",
		"set-air-conditioning-target-temperature",
		"set-air-conditioning-at-unlock", "set-air-conditioning-seats-heating",
		"set-air-conditioning-timers",
		"set-air-conditioning-without-external-power",
		"start-window-heating", "stop-window-heating", "windows-heating",
		"start-active-ventilation", "stop-active-ventilation",
		"start-auxiliary-heating", "stop-auxiliary-heating":
		return model.DomainAirConditioning, true
	case "lock", "unlock", "wakeup":
		return model.DomainStatus, true
	case "update-departure-timers":
		return model.DomainDeparture, true
	}
	return "", false
}

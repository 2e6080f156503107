// Package dispatch consumes per-channel job queues and drives delivery:
// provider selection, the resilience stack around the outbound send, and the
// notification status transitions that record the outcome.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/config"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
	"github.com/relay-io/relaycore/pkg/notification"
	"github.com/relay-io/relaycore/pkg/observability"
	"github.com/relay-io/relaycore/pkg/provider"
	"github.com/relay-io/relaycore/pkg/queue"
	"github.com/relay-io/relaycore/pkg/resilience"
)

// providerOverrideKey is the job metadata key carrying an explicit provider
// choice that bypasses priority ordering.
const providerOverrideKey = "provider"

// Dispatcher is the per-channel delivery pipeline. It is the sole mutator of
// notification delivery status.
type Dispatcher struct {
	cfg       *config.Config
	selector  *provider.Selector
	store     notification.Store
	queue     queue.Queue
	retry     *resilience.RetryExecutor
	breakers  *resilience.BreakerGroup
	bulkhead  *resilience.Bulkhead
	telemetry *observability.TelemetryProvider
	logger    logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher assembles the pipeline. The telemetry provider may be nil.
func NewDispatcher(cfg *config.Config, sel *provider.Selector, store notification.Store, q queue.Queue, tel *observability.TelemetryProvider) *Dispatcher {
	log := cfg.LoggerInstance
	if log == nil {
		log = logger.Discard
	}
	return &Dispatcher{
		cfg:      cfg,
		selector: sel,
		store:    store,
		queue:    q,
		retry:    resilience.NewRetryExecutor(log),
		breakers: resilience.NewBreakerGroup(resilience.BreakerConfig{
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
		}, log),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			DefaultMaxConcurrent: cfg.Bulkhead.DefaultMaxConcurrent,
			QueueTimeout:         cfg.Bulkhead.QueueTimeout,
		}, log),
		telemetry: tel,
		logger:    log,
	}
}

// Start launches `workers` consumer goroutines for each of the given channels.
// It is a no-op if the dispatcher is already running.
func (d *Dispatcher) Start(ctx context.Context, channels []channel.Channel, workers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	if workers <= 0 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.started = true

	for _, ch := range channels {
		for i := 0; i < workers; i++ {
			d.wg.Add(1)
			go d.consume(runCtx, ch)
		}
	}
	d.logger.Info("Dispatcher started", "channels", len(channels), "workersPerChannel", workers)
}

// Stop cancels the consumers and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) consume(ctx context.Context, ch channel.Channel) {
	defer d.wg.Done()

	for {
		job, err := d.queue.Dequeue(ctx, ch)
		if err != nil {
			switch {
			case err == queue.ErrNoJob:
				continue
			case err == queue.ErrQueueClosed || ctx.Err() != nil:
				return
			default:
				d.logger.Error("Dequeue failed", "channel", ch.String(), "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
		}

		if err := d.Process(ctx, job); err != nil {
			d.logger.Warn("Job failed",
				"jobId", job.ID, "channel", ch.String(), "tenant", job.TenantID, "error", err)
		}
	}
}

// Process delivers one job end to end: select a provider, send through the
// resilience stack, and record the terminal status. A returned error means the
// notification was marked failed; the outer queueing system owns redelivery.
func (d *Dispatcher) Process(ctx context.Context, job *queue.Job) error {
	if d.telemetry != nil {
		var span trace.Span
		ctx, span = d.telemetry.StartSpan(ctx, "dispatch.process", job.Channel.String(), job.TenantID)
		defer span.End()
		d.telemetry.RecordDispatch(ctx, job.Channel.String())
	}

	requested := ""
	if v, ok := job.Metadata[providerOverrideKey].(string); ok {
		requested = v
	}

	p, err := d.selector.Select(ctx, job.Channel, job.TenantID, requested)
	if err != nil {
		return d.fail(ctx, job, "", err)
	}

	req := &provider.DeliveryRequest{
		Recipient: job.Recipient,
		Content:   job.Content,
		Options:   job.Metadata,
	}

	start := time.Now()
	result, err := d.send(ctx, p, job, req)
	elapsed := time.Since(start)

	if d.telemetry != nil {
		d.telemetry.RecordOutcome(ctx, job.Channel.String(), p.Name(), err == nil, elapsed)
	}
	if err != nil {
		return d.fail(ctx, job, p.Name(), err)
	}
	return d.succeed(ctx, job, p.Name(), result)
}

// send runs the provider call inside bulkhead -> circuit breaker -> retry,
// each layer applied only when enabled. The provider's DeliveryResult is
// lifted into an error so the resilience layers can act on retryability.
func (d *Dispatcher) send(ctx context.Context, p provider.Provider, job *queue.Job, req *provider.DeliveryRequest) (*provider.DeliveryResult, error) {
	var result *provider.DeliveryResult

	attempt := func(ctx context.Context) error {
		result = p.Send(ctx, req)
		if result.Success {
			return nil
		}
		// A failed result without detail still becomes a send failure.
		if result.Error == nil {
			return errors.New(errors.ErrSendFailed, "provider reported failure without detail").
				WithProvider(p.Name()).
				WithTenant(job.TenantID)
		}
		return errors.New(result.Error.Code, result.Error.Message).
			WithProvider(p.Name()).
			WithTenant(job.TenantID).
			WithRetryable(result.Error.Retryable)
	}

	guarded := func(ctx context.Context) error {
		if !d.cfg.Breaker.Enabled {
			return d.withRetry(ctx, p.Name(), attempt)
		}
		return d.breakers.Breaker(p.Name()).Execute(func() error {
			return d.withRetry(ctx, p.Name(), attempt)
		})
	}

	var err error
	if d.cfg.Bulkhead.Enabled {
		err = d.bulkhead.Execute(ctx, p.Name(), 0, guarded)
	} else {
		err = guarded(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) withRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if !d.cfg.Retry.Enabled {
		return op(ctx)
	}
	return d.retry.ExecuteWithRetry(ctx, fmt.Sprintf("send:%s", name), resilience.RetryConfig{
		MaxRetries:   d.cfg.Retry.MaxRetries,
		InitialDelay: d.cfg.Retry.InitialDelay,
		MaxDelay:     d.cfg.Retry.MaxDelay,
		Multiplier:   d.cfg.Retry.Multiplier,
	}, op)
}

func (d *Dispatcher) succeed(ctx context.Context, job *queue.Job, providerName string, result *provider.DeliveryResult) error {
	now := time.Now()
	if err := d.store.MarkSent(ctx, job.TenantID, job.NotificationID, now); err != nil {
		return fmt.Errorf("marking notification %d sent: %w", job.NotificationID, err)
	}

	if err := d.store.AppendEvent(ctx, &notification.Event{
		NotificationID: job.NotificationID,
		TenantID:       job.TenantID,
		Type:           notification.EventSent,
		Provider:       providerName,
		MessageID:      result.MessageID,
		Timestamp:      now,
	}); err != nil {
		d.logger.Warn("Appending sent event failed",
			"notificationId", job.NotificationID, "error", err)
	}

	d.logger.Info("Notification sent",
		"notificationId", job.NotificationID, "tenant", job.TenantID,
		"channel", job.Channel.String(), "provider", providerName,
		"messageId", result.MessageID)
	return nil
}

// fail records the failure and returns the original error so the caller's
// queueing layer sees the job as failed and can redeliver.
func (d *Dispatcher) fail(ctx context.Context, job *queue.Job, providerName string, cause error) error {
	now := time.Now()
	if err := d.store.MarkFailed(ctx, job.TenantID, job.NotificationID, now, cause.Error()); err != nil {
		d.logger.Error("Marking notification failed errored",
			"notificationId", job.NotificationID, "error", err)
	}

	if err := d.store.AppendEvent(ctx, &notification.Event{
		NotificationID: job.NotificationID,
		TenantID:       job.TenantID,
		Type:           notification.EventFailed,
		Provider:       providerName,
		Reason:         cause.Error(),
		Timestamp:      now,
	}); err != nil {
		d.logger.Warn("Appending failed event failed",
			"notificationId", job.NotificationID, "error", err)
	}

	return cause
}

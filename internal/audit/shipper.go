// Package audit ships committed audit rows to an external destination.
// Audit rows are written transactionally with the mutations they describe;
// shipping is a strictly post-commit concern. The shipper is asynchronous and
// lossy by design — a slow or unreachable destination must never block or
// fail a mutation, so entries are queued in memory and dropped (with a
// metric) when the queue overflows. The database row remains the durable
// record either way; the webhook feed exists for SIEMs and log aggregators
// with their own retention.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/safego"
	"github.com/insureline/insureline/internal/telemetry"
	"github.com/insureline/insureline/pkg/checksum"
)

// Shipper receives audit rows after their transaction commits.
type Shipper interface {
	// Enqueue queues an entry for delivery. It never blocks.
	Enqueue(entry *models.AuditLog)
	// Close flushes pending entries and stops the shipper.
	Close() error
}

// WebhookOptions configures a WebhookShipper.
type WebhookOptions struct {
	// URL is the webhook endpoint. Batches are POSTed as JSON arrays.
	URL string
	// Headers are additional HTTP headers to send, typically authentication.
	Headers map[string]string
	// Timeout bounds a single delivery attempt. Defaults to 10s.
	Timeout time.Duration
	// BatchSize is how many entries trigger an immediate flush. Defaults to 50.
	BatchSize int
	// FlushInterval flushes a partial batch after this long. Defaults to 15s.
	FlushInterval time.Duration
}

// WebhookShipper batches audit rows and POSTs them to a webhook.
type WebhookShipper struct {
	opts   WebhookOptions
	client *http.Client

	entryCh   chan *models.AuditLog
	doneCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

const shipperQueueDepth = 1000

// NewWebhookShipper creates a shipper and starts its delivery loop.
func NewWebhookShipper(opts WebhookOptions) (*WebhookShipper, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("webhook shipper requires a URL")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 15 * time.Second
	}

	ws := &WebhookShipper{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		entryCh: make(chan *models.AuditLog, shipperQueueDepth),
		doneCh:  make(chan struct{}),
	}

	ws.wg.Add(1)
	safego.Go(func() {
		defer ws.wg.Done()
		ws.run()
	})

	return ws, nil
}

// Enqueue queues an entry for delivery. When the queue is full the entry is
// dropped and counted; the database row is still the durable record.
func (ws *WebhookShipper) Enqueue(entry *models.AuditLog) {
	select {
	case ws.entryCh <- entry:
	default:
		telemetry.AuditShipErrorsTotal.Inc()
		slog.Warn("audit shipper queue full, dropping entry",
			"action", entry.Action, "resource_type", entry.ResourceType)
	}
}

// run batches entries and flushes on size, interval, or shutdown.
func (ws *WebhookShipper) run() {
	ticker := time.NewTicker(ws.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*models.AuditLog, 0, ws.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ws.deliver(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-ws.entryCh:
			batch = append(batch, entry)
			if len(batch) >= ws.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ws.doneCh:
			// Drain whatever made it into the queue before shutdown.
			for {
				select {
				case entry := <-ws.entryCh:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliver POSTs one batch. Failures are logged and counted, not retried; the
// next batch carries on.
func (ws *WebhookShipper) deliver(batch []*models.AuditLog) {
	start := time.Now()
	err := ws.post(batch)
	telemetry.AuditShipDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.AuditShipErrorsTotal.Inc()
		slog.Error("failed to ship audit batch", "error", err, "entries", len(batch))
	}
}

func (ws *WebhookShipper) post(batch []*models.AuditLog) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal audit batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.opts.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	// Collectors use the digest to detect truncated or tampered batches.
	if digest, err := checksum.CalculateSHA256(bytes.NewReader(data)); err == nil {
		req.Header.Set("X-Audit-Digest", "sha256:"+digest)
	}
	for k, v := range ws.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Close flushes pending entries and stops the delivery loop.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() { close(ws.doneCh) })
	ws.wg.Wait()
	return nil
}

package workers

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"tripwise-backend/metrics"
	"tripwise-backend/models"
	"tripwise-backend/utils"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// StaleClaimError is recorded on messages whose dispatch pass died mid-send.
const StaleClaimError = "delivery outcome unknown: dispatch interrupted"

// DispatchResult summarizes one pass.
type DispatchResult struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}

// Dispatcher drains PENDING outbound messages through a Sender. Every claimed
// message ends the pass in SUCCESS or FAILED.
type Dispatcher struct {
	DB          *gorm.DB
	Sender      Sender
	Clock       clock.Clock
	Metrics     *metrics.Collector
	BatchSize   int
	Concurrency int
	CountryCode string
}

func NewDispatcher(db *gorm.DB, sender Sender, clk clock.Clock, m *metrics.Collector, batchSize, concurrency int, countryCode string) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 20
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		DB:          db,
		Sender:      sender,
		Clock:       clk,
		Metrics:     m,
		BatchSize:   batchSize,
		Concurrency: concurrency,
		CountryCode: countryCode,
	}
}

// Trigger runs one pass; it lets producers kick the dispatcher after enqueueing.
func (d *Dispatcher) Trigger(ctx context.Context) error {
	_, err := d.RunOnce(ctx)
	return err
}

// RunOnce claims up to BatchSize pending messages and delivers them. Missing
// provider credentials fail the whole pass before anything is claimed;
// individual delivery failures only mark their own message FAILED.
func (d *Dispatcher) RunOnce(ctx context.Context) (*DispatchResult, error) {
	if err := d.Sender.Ready(); err != nil {
		log.Printf("❌ [DISPATCH] Provider not configured: %v", err)
		return nil, errors.Trace(err)
	}
	start := time.Now()

	claimed, err := d.claim(ctx)
	if err != nil {
		return nil, err
	}
	result := &DispatchResult{}
	if len(claimed) == 0 {
		return result, nil
	}
	log.Printf("📤 [DISPATCH] Claimed %d message(s)", len(claimed))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)
	for _, msg := range claimed {
		msg := msg
		g.Go(func() error {
			status := d.deliver(gctx, msg)
			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if status == models.MessageSuccess {
				result.Success++
			} else {
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.Metrics.ObserveDispatch(time.Since(start).Seconds())
	log.Printf("✅ [DISPATCH] Pass done: processed=%d success=%d failed=%d", result.Processed, result.Success, result.Failed)
	return result, nil
}

// claim moves the oldest pending messages to SENDING in a single statement so
// concurrent passes never claim the same row.
func (d *Dispatcher) claim(ctx context.Context) ([]models.OutboundMessage, error) {
	db := d.DB.WithContext(ctx)
	lock := ""
	if db.Dialector.Name() == "postgres" {
		lock = " FOR UPDATE SKIP LOCKED"
	}
	now := d.Clock.Now()
	query := fmt.Sprintf(`
		UPDATE outbound_messages
		SET status = ?, claimed_at = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM outbound_messages
			WHERE status = ?
			ORDER BY created_at ASC, id ASC
			LIMIT ?%s
		)
		RETURNING id`, lock)

	var ids []string
	if err := db.Raw(query, models.MessageSending, now, now, models.MessagePending, d.BatchSize).
		Scan(&ids).Error; err != nil {
		return nil, errors.Annotate(err, "claim pending messages")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var msgs []models.OutboundMessage
	if err := db.Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, errors.Annotate(err, "load claimed messages")
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// deliver sends one claimed message and records its terminal status.
func (d *Dispatcher) deliver(ctx context.Context, msg models.OutboundMessage) string {
	phone, err := utils.NormalizePhone(msg.Recipient, d.CountryCode)
	if err != nil {
		d.finish(ctx, msg, models.MessageFailed, err.Error())
		return models.MessageFailed
	}
	if err := d.Sender.Send(ctx, phone, msg.Content); err != nil {
		log.Printf("❌ [DISPATCH] Message %s to %s failed: %v", msg.ID, phone, err)
		d.finish(ctx, msg, models.MessageFailed, err.Error())
		return models.MessageFailed
	}
	d.finish(ctx, msg, models.MessageSuccess, "")
	return models.MessageSuccess
}

// finish commits a terminal status. It runs even if the pass context was
// cancelled so the row does not stay in SENDING.
func (d *Dispatcher) finish(ctx context.Context, msg models.OutboundMessage, status, errText string) {
	now := d.Clock.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if status == models.MessageSuccess {
		updates["sent_at"] = now
		updates["error"] = nil
	} else {
		updates["error"] = errText
	}
	res := d.DB.WithContext(context.WithoutCancel(ctx)).
		Model(&models.OutboundMessage{}).
		Where("id = ? AND status = ?", msg.ID, models.MessageSending).
		Updates(updates)
	if res.Error != nil {
		log.Printf("❌ [DISPATCH] Failed to record %s for message %s: %v", status, msg.ID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		log.Printf("⚠️ [DISPATCH] Message %s was no longer SENDING when recording %s", msg.ID, status)
		return
	}
	d.Metrics.MessageDispatched(status)
}

// ReconcileStale fails messages claimed more than olderThan ago that never
// reached a terminal state. They are not retried.
func (d *Dispatcher) ReconcileStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := d.Clock.Now()
	res := d.DB.WithContext(ctx).
		Model(&models.OutboundMessage{}).
		Where("status = ? AND claimed_at < ?", models.MessageSending, now.Add(-olderThan)).
		Updates(map[string]interface{}{
			"status":     models.MessageFailed,
			"error":      StaleClaimError,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, errors.Annotate(res.Error, "reconcile stale claims")
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 [DISPATCH] Marked %d stale SENDING message(s) as FAILED", res.RowsAffected)
		for i := int64(0); i < res.RowsAffected; i++ {
			d.Metrics.MessageDispatched(models.MessageFailed)
		}
	}
	return res.RowsAffected, nil
}

package workflow

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakePublisher struct {
	fail     bool
	received []config.LedgerEventMessage
}

func (p *fakePublisher) Publish(_ context.Context, msg config.LedgerEventMessage) (string, error) {
	if p.fail {
		return "", errors.New("broker unavailable")
	}
	p.received = append(p.received, msg)
	return "msg-" + msg.EventType, nil
}

func setupWorkflowDB(t *testing.T) (context.Context, *gorm.DB) {
	t.Helper()
	t.Setenv("LEDGER_EVENTS_ENABLED", "true")
	config.ResetSettings()
	t.Cleanup(config.ResetSettings)

	db, err := config.OpenDatabase(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	config.SetDB(db)
	utils.SetEntityLocker(utils.NewLocalEntityLocker(5 * time.Second))
	t.Cleanup(func() {
		config.SetDB(nil)
		utils.SetEntityLocker(nil)
	})
	return utils.SetActorInContext(context.Background(), utils.Actor{Id: "u-1", Name: "Tester"}), db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func createAdvance(t *testing.T, ctx context.Context, amount int64) *models.SupplierAdvance {
	t.Helper()
	a, err := models.CreateAdvance(ctx, &models.NewSupplierAdvance{
		SupplierId:    "sup-1",
		Amount:        decimal.NewFromInt(amount),
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("CreateAdvance: %v", err)
	}
	return a
}

func TestDispatchOncePublishesPendingEvents(t *testing.T) {
	ctx, db := setupWorkflowDB(t)
	first := createAdvance(t, ctx, 10)
	createAdvance(t, ctx, 20)

	pub := &fakePublisher{}
	d := NewOutboxDispatcher(db, quietLogger(), pub)
	if sent := d.DispatchOnce(ctx); sent != 2 {
		t.Fatalf("expected 2 sent, got %d", sent)
	}
	if len(pub.received) != 2 || pub.received[0].ReferenceId != first.ID {
		t.Fatalf("expected events in id order, got %+v", pub.received)
	}

	events, err := models.ListLedgerEvents(ctx, models.LedgerEventFilter{PublishStatus: models.OutboxPublishStatusSent})
	if err != nil {
		t.Fatalf("ListLedgerEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 SENT events, got %d", len(events))
	}
	for _, e := range events {
		if e.PublishedAt == nil || e.PubSubMessageId == nil || *e.PubSubMessageId != "msg-ADVANCE_CREATED" || e.PublishAttempts != 1 {
			t.Fatalf("unexpected publish metadata %+v", e)
		}
	}

	if sent := d.DispatchOnce(ctx); sent != 0 {
		t.Fatalf("expected nothing left to send, got %d", sent)
	}
}

func TestDispatchOnceBacksOffThenGoesDead(t *testing.T) {
	ctx, db := setupWorkflowDB(t)
	createAdvance(t, ctx, 10)

	pub := &fakePublisher{fail: true}
	d := NewOutboxDispatcher(db, quietLogger(), pub)
	d.InitialBackoff = time.Hour
	d.MaxAttempts = 2

	if sent := d.DispatchOnce(ctx); sent != 0 {
		t.Fatalf("expected no sends, got %d", sent)
	}
	failed, err := models.ListLedgerEvents(ctx, models.LedgerEventFilter{PublishStatus: models.OutboxPublishStatusFailed})
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected one FAILED event, got %d (%v)", len(failed), err)
	}
	if failed[0].NextAttemptAt == nil || failed[0].LastPublishError == nil {
		t.Fatalf("expected retry metadata, got %+v", failed[0])
	}

	// not due yet
	d.DispatchOnce(ctx)
	if got, _ := models.ListLedgerEvents(ctx, models.LedgerEventFilter{PublishStatus: models.OutboxPublishStatusFailed}); len(got) != 1 || got[0].PublishAttempts != 1 {
		t.Fatalf("expected the event to wait for its backoff, got %+v", got)
	}

	// make it due; the second failure exhausts the budget
	if err := db.Model(&models.LedgerEvent{}).Where("id = ?", failed[0].ID).UpdateColumn("next_attempt_at", nil).Error; err != nil {
		t.Fatalf("reset next attempt: %v", err)
	}
	d.DispatchOnce(ctx)
	dead, err := models.ListLedgerEvents(ctx, models.LedgerEventFilter{PublishStatus: models.OutboxPublishStatusDead})
	if err != nil || len(dead) != 1 {
		t.Fatalf("expected one DEAD event, got %d (%v)", len(dead), err)
	}

	requeued, err := models.RequeueDeadLedgerEvents(ctx)
	if err != nil || requeued != 1 {
		t.Fatalf("RequeueDeadLedgerEvents: %d (%v)", requeued, err)
	}
	pub.fail = false
	if sent := d.DispatchOnce(ctx); sent != 1 {
		t.Fatalf("expected the requeued event to publish, got %d", sent)
	}
}

func TestPublishBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{20, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := publishBackoff(5*time.Second, tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: want %s, got %s", tt.attempt, tt.want, got)
		}
	}
}

func TestRunReconciliation(t *testing.T) {
	ctx, _ := setupWorkflowDB(t)
	createAdvance(t, ctx, 10)

	summary, err := RunReconciliation(ctx, quietLogger())
	if err != nil {
		t.Fatalf("RunReconciliation: %v", err)
	}
	if summary.Mismatches != 0 || summary.AdvancesChecked != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

package service

import (
	"context"
	"fmt"
	"strconv"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const systemActor = "system"

// ActivityRecorder turns domain events into activity-log entries
type ActivityRecorder struct {
	repo   ActivityRepository
	logger *zap.Logger
}

// NewActivityRecorder creates a new activity recorder
func NewActivityRecorder(repo ActivityRepository) *ActivityRecorder {
	return &ActivityRecorder{repo: repo, logger: util.GetLogger()}
}

// Handle records one event. Redelivered events are skipped.
func (r *ActivityRecorder) Handle(ctx context.Context, eventType string, event interface{}) error {
	ctx, span := util.StartSpan(ctx, "ActivityRecorder.Handle")
	defer span.End()

	entry, base, err := activityEntry(event)
	if err != nil {
		return err
	}

	processed, err := r.repo.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		r.logger.Debug("Event already recorded", zap.String("event_id", base.EventID))
		return nil
	}

	entry.CreatedAt = base.Timestamp
	if err := r.repo.AppendActivity(ctx, entry); err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}

	if err := r.repo.MarkEventProcessed(ctx, base.EventID, eventType); err != nil {
		r.logger.Error("Failed to mark event processed", zap.String("event_id", base.EventID), zap.Error(err))
	}
	return nil
}

func activityEntry(event interface{}) (*models.ActivityLogEntry, models.BaseEvent, error) {
	orderEntry := func(action string, id int64, number, detail string) *models.ActivityLogEntry {
		return &models.ActivityLogEntry{
			Actor:      systemActor,
			Action:     action,
			EntityType: "order",
			EntityID:   strconv.FormatInt(id, 10),
			Detail:     fmt.Sprintf("%s %s", number, detail),
		}
	}

	switch e := event.(type) {
	case *models.OrderCreatedEvent:
		return orderEntry("order_created", e.OrderID, e.OrderNumber,
			fmt.Sprintf("%s ₹%d, ₹%d due now", e.PaymentMethod, e.TotalAmount, e.AmountPayable)), e.BaseEvent, nil
	case *models.OrderConfirmedEvent:
		return orderEntry("order_confirmed", e.OrderID, e.OrderNumber,
			fmt.Sprintf("%s via %s, payment %s", e.PaymentStatus, e.Source, e.PaymentID)), e.BaseEvent, nil
	case *models.OrderExpiredEvent:
		return orderEntry("order_expired", e.OrderID, e.OrderNumber, e.Reason), e.BaseEvent, nil
	case *models.PaymentFailedEvent:
		return orderEntry("payment_failed", e.OrderID, e.OrderNumber, e.Reason), e.BaseEvent, nil
	case *models.LateCaptureEvent:
		return orderEntry("payment_captured_after_expiry", e.OrderID, e.OrderNumber,
			fmt.Sprintf("payment %s ₹%d needs refund", e.PaymentID, e.Amount)), e.BaseEvent, nil
	case *models.OrderStatusChangedEvent:
		entry := orderEntry("status_changed", e.OrderID, e.OrderNumber, e.From+" → "+e.To)
		entry.Actor = e.Actor
		return entry, e.BaseEvent, nil
	case *models.AdminActionEvent:
		return &models.ActivityLogEntry{
			Actor:      e.Actor,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Detail:     e.Detail,
		}, e.BaseEvent, nil
	default:
		return nil, models.BaseEvent{}, fmt.Errorf("activity: unsupported event %T", event)
	}
}

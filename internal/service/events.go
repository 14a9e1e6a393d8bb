package service

import (
	"context"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// publishAdminAction emits an ADMIN_ACTION event; failures are logged only
func publishAdminAction(ctx context.Context, events EventPublisher, logger *zap.Logger, actor, action, entityType, entityID, detail string) {
	event := &models.AdminActionEvent{
		BaseEvent:  newBaseEvent(models.EventTypeAdminAction),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	}
	if err := events.PublishAdminAction(ctx, event); err != nil {
		logger.Error("Failed to publish AdminAction event",
			zap.String("action", action),
			zap.String("entity", entityType+":"+entityID),
			zap.Error(err))
	}
}

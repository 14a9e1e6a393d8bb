package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderConfirmed publishes OrderConfirmed event
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderExpired publishes OrderExpired event
func (ep *EventPublisher) PublishOrderExpired(ctx context.Context, event *models.OrderExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishLateCapture publishes LateCapture event
func (ep *EventPublisher) PublishLateCapture(ctx context.Context, event *models.LateCaptureEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishAdminAction publishes AdminAction event
func (ep *EventPublisher) PublishAdminAction(ctx context.Context, event *models.AdminActionEvent) error {
	key := fmt.Sprintf("%s-%s", event.EntityType, event.EntityID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// HandlerFunc receives a decoded event: one of the *models.…Event types
type HandlerFunc func(ctx context.Context, eventType string, event interface{}) error

// eventDecoders allocates the concrete payload for each known event type
var eventDecoders = map[string]func() interface{}{
	models.EventTypeOrderCreated:       func() interface{} { return &models.OrderCreatedEvent{} },
	models.EventTypeOrderConfirmed:     func() interface{} { return &models.OrderConfirmedEvent{} },
	models.EventTypeOrderExpired:       func() interface{} { return &models.OrderExpiredEvent{} },
	models.EventTypePaymentFailed:      func() interface{} { return &models.PaymentFailedEvent{} },
	models.EventTypeOrderStatusChanged: func() interface{} { return &models.OrderStatusChangedEvent{} },
	models.EventTypeAdminAction:        func() interface{} { return &models.AdminActionEvent{} },
	models.EventTypeLateCapture:        func() interface{} { return &models.LateCaptureEvent{} },
}

// EventHandler handles incoming events
type EventHandler struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]HandlerFunc),
		logger:   util.GetLogger(),
	}
}

// On registers a handler for one event type
func (eh *EventHandler) On(eventType string, handler HandlerFunc) {
	eh.handlers[eventType] = handler
}

// OnAll registers the same handler for every known event type
func (eh *EventHandler) OnAll(handler HandlerFunc) {
	for eventType := range eventDecoders {
		eh.handlers[eventType] = handler
	}
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	handler, ok := eh.handlers[baseEvent.EventType]
	newEvent, known := eventDecoders[baseEvent.EventType]
	if !ok || !known {
		eh.logger.Info("Unhandled event type", zap.String("type", baseEvent.EventType))
		return nil
	}

	event := newEvent()
	if err := json.Unmarshal(msg.Value, event); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
	}
	return handler(ctx, baseEvent.EventType, event)
}

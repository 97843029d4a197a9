package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/client"
	"marketplace-orders/internal/config"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"

	"gorm.io/datatypes"
)

type WebhookResult struct {
	// Processed is true when this delivery ran its handler.
	Processed bool
	// Duplicate is true when the (event id, entity id) pair was seen before.
	Duplicate bool
	OrderID   *string
	EventType string
}

// WebhookReplayGuard runs a handler at most once per (event id, entity id).
type WebhookReplayGuard interface {
	ProcessIfNew(ctx context.Context, event *model.WebhookEvent, handler func(ctx context.Context) error) (*WebhookResult, error)
}

type webhookReplayGuardImpl struct {
	events repository.WebhookEventRepository
	log    *slog.Logger
}

func NewWebhookReplayGuard(events repository.WebhookEventRepository, log *slog.Logger) WebhookReplayGuard {
	return &webhookReplayGuardImpl{
		events: events,
		log:    log,
	}
}

// ProcessIfNew claims the pair by inserting it, then runs handler. The record
// stays even when handler fails, a redelivery is not a retry.
func (g *webhookReplayGuardImpl) ProcessIfNew(ctx context.Context, event *model.WebhookEvent, handler func(ctx context.Context) error) (*WebhookResult, error) {
	err := g.events.Insert(ctx, event)
	if repository.IsDuplicateKey(err) {
		result := &WebhookResult{Duplicate: true, EventType: event.EventType}

		previous, ferr := g.events.Find(ctx, event.EventID, event.EntityID)
		if ferr != nil {
			g.log.WarnContext(ctx, "duplicate webhook but previous record unreadable",
				slog.String("event_id", event.EventID), slog.Any("err", ferr))
			return result, nil
		}

		result.OrderID = previous.OrderID
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}

	result := &WebhookResult{Processed: true, OrderID: event.OrderID, EventType: event.EventType}
	if err := handler(ctx); err != nil {
		g.log.ErrorContext(ctx, "webhook handler failed",
			slog.String("event_id", event.EventID),
			slog.String("entity_id", event.EntityID),
			slog.String("event_type", event.EventType),
			slog.Any("err", err))
	}
	return result, nil
}

type WebhookService interface {
	// HandleWebhook only returns an error for a missing or invalid signature.
	// Every other outcome is acknowledged to the gateway.
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) (*WebhookResult, error)
}

type webhookServiceImpl struct {
	verifier PaymentVerifier
	guard    WebhookReplayGuard
	uow      repository.UnitOfWork
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	cfg      config.Gateway
	log      *slog.Logger
}

func NewWebhookService(
	verifier PaymentVerifier,
	guard WebhookReplayGuard,
	uow repository.UnitOfWork,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	cfg config.Gateway,
	log *slog.Logger,
) WebhookService {
	return &webhookServiceImpl{
		verifier: verifier,
		guard:    guard,
		uow:      uow,
		orders:   orders,
		payments: payments,
		cfg:      cfg,
		log:      log,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (*WebhookResult, error) {
	if err := s.verifier.VerifyWebhookSignature(body, headers.Get(s.cfg.SignatureHeader)); err != nil {
		return nil, err
	}

	var event model.GatewayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.ErrorContext(ctx, "undecodable webhook payload acknowledged", slog.Any("err", err))
		return &WebhookResult{}, nil
	}

	eventID := webhookEventID(headers.Get(s.cfg.EventIDHeader), &event, body)
	payment := event.Payload.Payment.Entity

	entityID := payment.ID
	if entityID == "" {
		entityID = event.Payload.Order.Entity.ID
	}
	if entityID == "" {
		entityID = event.Event
	}

	gatewayOrderID := payment.OrderID
	if gatewayOrderID == "" {
		gatewayOrderID = event.Payload.Order.Entity.ID
	}

	var order *model.Order
	if gatewayOrderID != "" {
		found, err := s.orders.FindByGatewayOrderID(ctx, gatewayOrderID)
		switch {
		case err == nil:
			order = found
		case repository.IsNotFound(err):
			s.log.WarnContext(ctx, "webhook for unknown gateway order",
				slog.String("gateway_order_id", gatewayOrderID), slog.String("event_id", eventID))
		default:
			s.log.ErrorContext(ctx, "resolve webhook order", slog.Any("err", err))
		}
	}

	record := &model.WebhookEvent{
		EventID:   eventID,
		EntityID:  entityID,
		EventType: event.Event,
		Payload:   datatypes.JSON(body),
	}
	if order != nil {
		record.OrderID = &order.ID
	}

	result, err := s.guard.ProcessIfNew(ctx, record, func(ctx context.Context) error {
		return s.apply(ctx, order, &event)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "webhook not recorded, acknowledged anyway",
			slog.String("event_id", eventID), slog.Any("err", err))
		return &WebhookResult{EventType: event.Event}, nil
	}

	if result.Duplicate {
		s.log.InfoContext(ctx, "duplicate webhook ignored",
			slog.String("event_id", eventID), slog.String("entity_id", entityID))
	}
	return result, nil
}

// webhookEventID prefers the delivery header, then the payload id, then a
// digest of the body so identical redeliveries still collide.
func webhookEventID(header string, event *model.GatewayWebhookEvent, body []byte) string {
	if id := strings.TrimSpace(header); id != "" {
		return id
	}
	if event.ID != "" {
		return event.ID
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (s *webhookServiceImpl) apply(ctx context.Context, order *model.Order, event *model.GatewayWebhookEvent) error {
	switch event.Event {
	case model.WebhookPaymentCaptured, model.WebhookOrderPaid:
		if order == nil {
			return errors.New("no order for captured payment")
		}
		return s.markPaid(ctx, order, &event.Payload.Payment.Entity)
	case model.WebhookPaymentFailed:
		if order == nil {
			return errors.New("no order for failed payment")
		}
		return s.markFailed(ctx, order)
	default:
		s.log.DebugContext(ctx, "ignoring webhook event type", slog.String("event_type", event.Event))
		return nil
	}
}

func (s *webhookServiceImpl) markPaid(ctx context.Context, order *model.Order, payment *model.GatewayPaymentEntity) error {
	if payment.Amount > 0 {
		paid := client.FromMinorUnits(payment.Amount, s.cfg.MinorUnitExponent)
		if paid.Sub(order.Total).Abs().GreaterThan(s.cfg.AmountEpsilon) {
			return apperror.PaymentVerification("amount mismatch: paid %s, order total %s",
				paid.StringFixed(2), order.Total.StringFixed(2))
		}
	}

	updates := map[string]interface{}{}
	if payment.ID != "" {
		updates["gateway_payment_id"] = payment.ID
	}

	return s.uow.Do(ctx, func(w *repository.Work) error {
		if payment.ID != "" {
			if err := s.payments.MarkCaptured(ctx, w.DB, payment.ID); err != nil {
				return fmt.Errorf("mark payment captured: %w", err)
			}
		}

		moved, err := s.orders.UpdatePaymentStatus(ctx, w.DB, order.ID, model.PaymentStatusPaid, updates)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		if !moved {
			// already paid, or refunded since
			return nil
		}

		if order.Status != model.OrderStatusPending {
			return nil
		}

		err = s.orders.TransitionStatus(ctx, w.DB, order.ID, model.OrderStatusPending, model.OrderStatusProcessing, nil)
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("advance paid order: %w", err)
		}

		return s.orders.AppendHistory(ctx, w.DB, &model.OrderStatusEvent{
			OrderID: order.ID,
			From:    model.OrderStatusPending,
			To:      model.OrderStatusProcessing,
			ActorID: gatewayActor.ID,
			Note:    "payment captured",
		})
	})
}

func (s *webhookServiceImpl) markFailed(ctx context.Context, order *model.Order) error {
	return s.uow.Do(ctx, func(w *repository.Work) error {
		moved, err := s.orders.UpdatePaymentStatus(ctx, w.DB, order.ID, model.PaymentStatusFailed, nil)
		if err != nil {
			return fmt.Errorf("mark order payment failed: %w", err)
		}
		if !moved {
			s.log.InfoContext(ctx, "payment failure ignored, order already settled",
				slog.String("order_id", order.ID), slog.String("payment_status", string(order.PaymentStatus)))
		}
		return nil
	})
}

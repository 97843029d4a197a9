package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/config"
	"marketplace-orders/internal/dto"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const catalogLookupConcurrency = 8

type CreateOrderResult struct {
	Order     *model.Order
	Duplicate bool
	// set when the sequential compensation strategy handled the write
	Degraded bool
}

type StatusChange struct {
	Status         model.OrderStatus
	Notes          string
	TrackingNumber string
	Carrier        string
}

type OrderService interface {
	CreateOrder(ctx context.Context, customerID, idempotencyKey string, req *dto.CreateOrderRequest) (*CreateOrderResult, error)
	UpdateStatus(ctx context.Context, orderID string, actor Actor, change StatusChange) (*model.Order, error)
	Cancel(ctx context.Context, orderID string, actor Actor, reason string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string, actor Actor) (*model.Order, error)
	ListOrders(ctx context.Context, actor Actor, filter repository.OrderFilter) ([]*model.Order, int64, error)
}

// OrderServiceDeps bundles the collaborators of the order orchestrator.
type OrderServiceDeps struct {
	UnitOfWork  repository.UnitOfWork
	Orders      repository.OrderRepository
	Products    repository.ProductRepository
	Payments    repository.PaymentRepository
	Carts       repository.CartRepository
	Inventory   InventoryLedger
	Commissions CommissionLedger
	Idempotency IdempotencyGuard
	Verifier    PaymentVerifier
	Notifier    OrderNotifier
	Dispatcher  *Dispatcher
	Order       config.Order
	Commission  config.Commission
	Currency    string
	Log         *slog.Logger
}

type orderServiceImpl struct {
	uow         repository.UnitOfWork
	orders      repository.OrderRepository
	products    repository.ProductRepository
	payments    repository.PaymentRepository
	carts       repository.CartRepository
	inventory   InventoryLedger
	commissions CommissionLedger
	idempotency IdempotencyGuard
	verifier    PaymentVerifier
	notifier    OrderNotifier
	dispatcher  *Dispatcher
	cfg         config.Order
	commission  config.Commission
	pricing     PricePolicy
	currency    string
	log         *slog.Logger
}

func NewOrderService(deps OrderServiceDeps) OrderService {
	return &orderServiceImpl{
		uow:         deps.UnitOfWork,
		orders:      deps.Orders,
		products:    deps.Products,
		payments:    deps.Payments,
		carts:       deps.Carts,
		inventory:   deps.Inventory,
		commissions: deps.Commissions,
		idempotency: deps.Idempotency,
		verifier:    deps.Verifier,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		cfg:         deps.Order,
		commission:  deps.Commission,
		pricing: PricePolicy{
			TolerancePercent: deps.Order.PriceTolerancePercent,
			ClampToLower:     deps.Order.PriceClampToLower,
		},
		currency: deps.Currency,
		log:      deps.Log,
	}
}

type resolvedLine struct {
	item       model.OrderItem
	commission CommissionLine
	// stock read from the catalog before any write
	stock int
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, customerID, idempotencyKey string, req *dto.CreateOrderRequest) (*CreateOrderResult, error) {
	if err := s.validateCreate(customerID, req); err != nil {
		return nil, err
	}

	key, err := NormalizeIdempotencyKey(idempotencyKey, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	existing, err := s.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.CustomerID != customerID {
			return nil, keyOwnedElsewhere(key)
		}
		s.log.InfoContext(ctx, "duplicate order request",
			slog.String("order_id", existing.ID), slog.String("idempotency_key", key))
		return &CreateOrderResult{Order: existing, Duplicate: true}, nil
	}

	lines, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = line.item
	}
	total := model.SumLines(items)

	method := model.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))

	var verified *VerifiedPayment
	if !s.isDeferred(method) {
		if req.Payment == nil {
			return nil, apperror.Validation("payment proof is required for payment method %s", method)
		}
		verified, err = s.verifier.Verify(ctx, VerifyPaymentRequest{
			GatewayOrderID:   strings.TrimSpace(req.Payment.GatewayOrderID),
			GatewayPaymentID: strings.TrimSpace(req.Payment.GatewayPaymentID),
			Signature:        strings.TrimSpace(req.Payment.Signature),
			ExpectedAmount:   total,
		})
		if err != nil {
			s.log.WarnContext(ctx, "payment verification failed",
				slog.String("customer_id", customerID), slog.Any("err", err))
			return nil, err
		}
	}

	order := s.newOrder(customerID, key, method, req, items, total, verified)

	err = s.uow.Do(ctx, func(w *repository.Work) error {
		return s.persist(ctx, w, order, verified, lines)
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return s.resolveDuplicate(ctx, customerID, key, verified, err)
		}
		return nil, err
	}

	degraded := s.uow.Mode() == repository.ModeSequential
	s.log.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("total", order.Total.StringFixed(2)),
		slog.Bool("degraded", degraded))

	s.afterPlacement(ctx, order)

	return &CreateOrderResult{Order: order, Degraded: degraded}, nil
}

func (s *orderServiceImpl) validateCreate(customerID string, req *dto.CreateOrderRequest) error {
	if strings.TrimSpace(customerID) == "" {
		return apperror.Validation("customer id is required")
	}
	if req == nil || len(req.Items) == 0 {
		return apperror.Validation("order must contain at least one item")
	}

	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return apperror.Validation("items[%d]: product id is required", i)
		}
		if item.Quantity < s.cfg.MinLineQuantity || item.Quantity > s.cfg.MaxLineQuantity {
			return apperror.Validation("items[%d]: quantity must be between %d and %d",
				i, s.cfg.MinLineQuantity, s.cfg.MaxLineQuantity)
		}
		if item.Price.Valid && item.Price.Decimal.IsNegative() {
			return apperror.Validation("items[%d]: price cannot be negative", i)
		}
		if len(item.Customization) > 0 && !json.Valid(item.Customization) {
			return apperror.Validation("items[%d]: customization must be valid JSON", i)
		}
	}

	addr := req.ShippingAddress
	if strings.TrimSpace(addr.Line1) == "" || strings.TrimSpace(addr.City) == "" || strings.TrimSpace(addr.PostalCode) == "" {
		return apperror.Validation("shipping address requires line1, city and postal code")
	}

	if strings.TrimSpace(req.PaymentMethod) == "" {
		return apperror.Validation("payment method is required")
	}
	return nil
}

func (s *orderServiceImpl) isDeferred(method model.PaymentMethod) bool {
	for _, m := range s.cfg.DeferredPaymentMethods {
		if strings.EqualFold(strings.TrimSpace(m), string(method)) {
			return true
		}
	}
	return false
}

// resolveLines reads the catalog for every line in parallel. Nothing is mutated here.
func (s *orderServiceImpl) resolveLines(ctx context.Context, items []dto.LineItem) ([]resolvedLine, error) {
	lines := make([]resolvedLine, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogLookupConcurrency)

	for i := range items {
		g.Go(func() error {
			line, err := s.resolveLine(gctx, &items[i])
			if err != nil {
				return err
			}
			lines[i] = *line
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *orderServiceImpl) resolveLine(ctx context.Context, item *dto.LineItem) (*resolvedLine, error) {
	product, err := s.products.FindByID(ctx, item.ProductID)
	if repository.IsNotFound(err) {
		return nil, apperror.NotFound("product %s not found", item.ProductID)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
	}

	if !product.Purchasable() {
		return nil, apperror.NotAvailable("product %s is not available for purchase", product.ID)
	}

	var variant *model.ProductVariant
	stock := product.Stock
	if item.VariantID != nil {
		variant, err = s.products.FindVariant(ctx, product.ID, *item.VariantID)
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("variant %s of product %s not found", *item.VariantID, product.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("load variant %s: %w", *item.VariantID, err)
		}
		stock = variant.Stock
	}

	// early answer from the snapshot; the ledger decides for real
	if stock < item.Quantity {
		return nil, apperror.InsufficientStock(product.ID, stock)
	}

	catalogPrice := model.EffectivePrice(product, variant)
	price, adjusted := s.pricing.Trusted(item.Price, catalogPrice)
	if adjusted {
		s.log.WarnContext(ctx, "client price diverged from catalog, clamped",
			slog.String("product_id", product.ID),
			slog.String("client_price", item.Price.Decimal.String()),
			slog.String("catalog_price", catalogPrice.String()),
			slog.String("charged_price", price.String()))
	}

	size, color := item.Size, item.Color
	if variant != nil {
		if size == "" {
			size = variant.Size
		}
		if color == "" {
			color = variant.Color
		}
	}

	commissionType, commissionRate := product.CommissionType, product.CommissionRate
	if commissionType == "" {
		commissionType = model.CommissionType(s.commission.DefaultType)
		commissionRate = s.commission.DefaultRate
	}

	orderItem := model.OrderItem{
		ProductID: product.ID,
		VariantID: item.VariantID,
		SellerID:  product.SellerID,
		Name:      product.Name,
		Quantity:  item.Quantity,
		UnitPrice: price,
		Size:      size,
		Color:     color,
	}
	if len(item.Customization) > 0 {
		orderItem.Customization = datatypes.JSON(item.Customization)
	}

	return &resolvedLine{
		item:  orderItem,
		stock: stock,
		commission: CommissionLine{
			SellerID:  product.SellerID,
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Type:      commissionType,
			Rate:      commissionRate,
		},
	}, nil
}

func (s *orderServiceImpl) newOrder(
	customerID, key string,
	method model.PaymentMethod,
	req *dto.CreateOrderRequest,
	items []model.OrderItem,
	total decimal.Decimal,
	verified *VerifiedPayment,
) *model.Order {
	number := "ORD-" + ulid.Make().String()

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	order := &model.Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		CustomerID:      customerID,
		Items:           items,
		Total:           total,
		Currency:        s.currency,
		ShippingAddress: datatypes.NewJSONType(req.ShippingAddress),
		BillingAddress:  datatypes.NewJSONType(billing),
		PaymentMethod:   method,
		PaymentStatus:   model.PaymentStatusPending,
		Status:          model.OrderStatusPending,
		InvoiceRef:      "INV-" + strings.TrimPrefix(number, "ORD-"),
	}
	if key != "" {
		order.IdempotencyKey = &key
	}

	if verified != nil {
		gatewayOrderID := verified.Payment.GatewayOrderID
		gatewayPaymentID := verified.Payment.GatewayPaymentID
		order.GatewayOrderID = &gatewayOrderID
		order.GatewayPaymentID = &gatewayPaymentID

		// an authorized payment stays pending until payment.captured or order.paid arrives
		if verified.Payment.Status == model.GatewayPaymentCaptured {
			order.PaymentStatus = model.PaymentStatusPaid
			order.Status = model.OrderStatusProcessing
		}
	}

	order.History = []model.OrderStatusEvent{{
		To:      order.Status,
		ActorID: customerID,
		Note:    "order placed",
	}}

	return order
}

// persist is the unit of work: order row, payment record, stock reservations
// and commissions commit together or not at all.
func (s *orderServiceImpl) persist(ctx context.Context, w *repository.Work, order *model.Order, verified *VerifiedPayment, lines []resolvedLine) error {
	if err := s.orders.Create(ctx, w.DB, order); err != nil {
		return fmt.Errorf("store order: %w", err)
	}
	w.OnRollback(func(db *gorm.DB) error {
		return s.orders.Delete(db.Statement.Context, db, order.ID)
	})

	if verified != nil {
		payment := *verified.Payment
		payment.OrderID = order.ID
		if err := s.payments.Create(ctx, w.DB, &payment); err != nil {
			return fmt.Errorf("store payment: %w", err)
		}
		w.OnRollback(func(db *gorm.DB) error {
			return s.payments.Delete(db.Statement.Context, db, payment.GatewayPaymentID)
		})
	}

	// earlier lines of this order on the same stock row shrink what later lines saw
	reserved := make(map[string]int, len(lines))
	for _, line := range lines {
		row := stockRowKey(line.item.ProductID, line.item.VariantID)
		observed := line.stock - reserved[row]
		if err := s.inventory.Reserve(ctx, w, line.item.ProductID, line.item.VariantID, line.item.Quantity, observed); err != nil {
			return err
		}
		reserved[row] += line.item.Quantity
	}

	commissionLines := make([]CommissionLine, len(lines))
	for i, line := range lines {
		commissionLines[i] = line.commission
	}
	if _, err := s.commissions.Record(ctx, w, order.ID, commissionLines); err != nil {
		return err
	}

	return nil
}

// keyOwnedElsewhere answers a key another customer already used. The other
// order is never returned.
func keyOwnedElsewhere(key string) error {
	return apperror.New(apperror.KindConflict, "idempotency key %q was already used by another customer", key)
}

func stockRowKey(productID string, variantID *string) string {
	if variantID == nil {
		return productID
	}
	return productID + "/" + *variantID
}

// resolveDuplicate turns a unique violation into the right answer: the winner's
// order for a reused idempotency key, a verification failure for a reused payment.
func (s *orderServiceImpl) resolveDuplicate(ctx context.Context, customerID, key string, verified *VerifiedPayment, cause error) (*CreateOrderResult, error) {
	if key != "" {
		existing, err := s.idempotency.Lookup(ctx, key)
		if err == nil && existing != nil {
			if existing.CustomerID != customerID {
				return nil, keyOwnedElsewhere(key)
			}
			s.log.InfoContext(ctx, "lost idempotency race, returning existing order",
				slog.String("order_id", existing.ID), slog.String("idempotency_key", key))
			return &CreateOrderResult{Order: existing, Duplicate: true}, nil
		}
	}

	if verified != nil {
		used, err := s.payments.Exists(ctx, verified.Payment.GatewayPaymentID)
		if err == nil && used {
			return nil, apperror.PaymentVerification("payment %s is already attached to another order",
				verified.Payment.GatewayPaymentID)
		}
	}

	return nil, apperror.Wrap(cause, apperror.KindConflict, "order conflicts with an existing record")
}

func (s *orderServiceImpl) afterPlacement(ctx context.Context, order *model.Order) {
	if err := s.carts.Clear(ctx, order.CustomerID); err != nil {
		s.log.ErrorContext(ctx, "cart clear failed, retry manually",
			slog.String("order_id", order.ID),
			slog.String("customer_id", order.CustomerID),
			slog.Any("err", err))
	}

	s.dispatch("order-placed", order.ID, func(ctx context.Context) error {
		return s.notifier.OrderPlaced(ctx, order)
	})
}

func (s *orderServiceImpl) dispatch(name, orderID string, run func(ctx context.Context) error) {
	if s.dispatcher == nil || s.notifier == nil {
		return
	}
	s.dispatcher.Submit(Task{Name: name, OrderID: orderID, Run: run})
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID string, actor Actor, change StatusChange) (*model.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeTransition(actor, order, change.Status); err != nil {
		return nil, err
	}

	from := order.Status
	to, err := from.Transition(change.Status)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{}
	switch to {
	case model.OrderStatusShipped:
		updates["shipped_at"] = now
		if change.TrackingNumber != "" {
			updates["tracking_number"] = change.TrackingNumber
		}
		if change.Carrier != "" {
			updates["carrier"] = change.Carrier
		}
	case model.OrderStatusDelivered:
		updates["delivered_at"] = now
	case model.OrderStatusCanceled:
		updates["canceled_at"] = now
		updates["canceled_by"] = actor.ID
		updates["cancel_reason"] = change.Notes
	case model.OrderStatusRefunded:
		updates["refunded_at"] = now
	}

	err = s.uow.Do(ctx, func(w *repository.Work) error {
		if err := s.orders.TransitionStatus(ctx, w.DB, order.ID, from, to, updates); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return apperror.New(apperror.KindConflict, "order %s changed concurrently, reload and retry", order.ID)
			}
			return fmt.Errorf("transition order: %w", err)
		}
		w.OnRollback(func(db *gorm.DB) error {
			return s.orders.TransitionStatus(db.Statement.Context, db, order.ID, to, from, nil)
		})

		switch to {
		case model.OrderStatusDelivered:
			if err := s.commissions.Approve(ctx, w, order.ID); err != nil {
				return err
			}
		case model.OrderStatusCanceled, model.OrderStatusRefunded:
			if err := s.commissions.Cancel(ctx, w, order.ID); err != nil {
				return err
			}
			if from.BeforeShipment() {
				for _, item := range order.Items {
					if err := s.inventory.Restore(ctx, w, item.ProductID, item.VariantID, item.Quantity); err != nil {
						return err
					}
				}
			}
		}

		return s.orders.AppendHistory(ctx, w.DB, &model.OrderStatusEvent{
			OrderID: order.ID,
			From:    from,
			To:      to,
			ActorID: actor.ID,
			Note:    change.Notes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order status changed",
		slog.String("order_id", order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor_id", actor.ID))

	if (to == model.OrderStatusCanceled || to == model.OrderStatusRefunded) &&
		order.PaymentStatus == model.PaymentStatusPaid && order.GatewayPaymentID != nil {
		s.refund(ctx, order, change.Notes)
	}

	updated, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.dispatch("order-status-changed", updated.ID, func(ctx context.Context) error {
		return s.notifier.OrderStatusChanged(ctx, updated, from, to)
	})

	return updated, nil
}

// refund asks the gateway to return the payment. A failure is logged for
// reconciliation and never undoes the status change that triggered it.
func (s *orderServiceImpl) refund(ctx context.Context, order *model.Order, reason string) {
	if reason == "" {
		reason = "order " + order.OrderNumber + " canceled"
	}

	refundID, err := s.verifier.Refund(ctx, *order.GatewayPaymentID, order.Total, reason)
	if err != nil {
		s.log.ErrorContext(ctx, "refund failed, manual reconciliation needed",
			slog.String("order_id", order.ID),
			slog.String("gateway_payment_id", *order.GatewayPaymentID),
			slog.Any("err", err))
		return
	}

	err = s.uow.Do(ctx, func(w *repository.Work) error {
		_, err := s.orders.UpdatePaymentStatus(ctx, w.DB, order.ID, model.PaymentStatusRefunded, map[string]interface{}{
			"refund_ref": refundID,
		})
		return err
	})
	if err != nil {
		s.log.ErrorContext(ctx, "refund issued but not recorded",
			slog.String("order_id", order.ID),
			slog.String("refund_ref", refundID),
			slog.Any("err", err))
	}
}

func (s *orderServiceImpl) Cancel(ctx context.Context, orderID string, actor Actor, reason string) (*model.Order, error) {
	return s.UpdateStatus(ctx, orderID, actor, StatusChange{
		Status: model.OrderStatusCanceled,
		Notes:  reason,
	})
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string, actor Actor) (*model.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !canView(actor, order) {
		return nil, apperror.Forbidden("order %s is not visible to %s", orderID, actor.ID)
	}
	return order, nil
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, actor Actor, filter repository.OrderFilter) ([]*model.Order, int64, error) {
	switch actor.Role {
	case RoleAdmin:
	case RoleSeller:
		filter.SellerID = actor.ID
		filter.CustomerID = ""
	default:
		filter.CustomerID = actor.ID
		filter.SellerID = ""
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func (s *orderServiceImpl) loadOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if repository.IsNotFound(err) {
		return nil, apperror.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return order, nil
}

func sellsOn(sellerID string, order *model.Order) bool {
	return slices.ContainsFunc(order.Items, func(item model.OrderItem) bool {
		return item.SellerID == sellerID
	})
}

func canView(actor Actor, order *model.Order) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleSeller:
		return sellsOn(actor.ID, order)
	default:
		return order.CustomerID == actor.ID
	}
}

// authorizeTransition: admins move anything, sellers move orders carrying
// their products, customers may only cancel their own orders.
func (s *orderServiceImpl) authorizeTransition(actor Actor, order *model.Order, to model.OrderStatus) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleSeller:
		if sellsOn(actor.ID, order) {
			return nil
		}
	case RoleCustomer:
		if to == model.OrderStatusCanceled && order.CustomerID == actor.ID {
			return nil
		}
	}
	return apperror.Forbidden("%s %s may not move order %s to %s", actor.Role, actor.ID, order.ID, to)
}

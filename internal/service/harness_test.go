package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-orders/internal/config"
	"marketplace-orders/internal/dto"
	"marketplace-orders/internal/logger"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"
	"marketplace-orders/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec_test"
)

type recordingNotifier struct {
	mu      sync.Mutex
	placed  []string
	changed []string
}

func (n *recordingNotifier) OrderPlaced(ctx context.Context, order *model.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, order.ID)
	return nil
}

func (n *recordingNotifier) OrderStatusChanged(ctx context.Context, order *model.Order, from, to model.OrderStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, string(from)+"->"+string(to))
	return nil
}

func (n *recordingNotifier) Placed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.placed...)
}

type harness struct {
	db        *gorm.DB
	uow       repository.UnitOfWork
	gateway   *testutil.FakeGateway
	verifier  PaymentVerifier
	orders    OrderService
	webhooks  WebhookService
	orderRepo repository.OrderRepository
	notifier  *recordingNotifier
	cfg       *config.Config
	deps      OrderServiceDeps
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.Gateway{
			KeyID:             "key_id",
			KeySecret:         testKeySecret,
			WebhookSecret:     testWebhookSecret,
			SignatureHeader:   "X-Razorpay-Signature",
			EventIDHeader:     "X-Razorpay-Event-Id",
			Timeout:           2 * time.Second,
			Currency:          "INR",
			MinorUnitExponent: 2,
			AmountEpsilon:     decimal.RequireFromString("0.01"),
		},
		Order: config.Order{
			MinLineQuantity:        1,
			MaxLineQuantity:        10,
			PriceTolerancePercent:  decimal.NewFromInt(10),
			PriceClampToLower:      true,
			DeferredPaymentMethods: []string{"cod"},
		},
		Commission: config.Commission{
			DefaultType: "percentage",
			DefaultRate: decimal.NewFromInt(10),
		},
		Dispatch: config.Dispatch{
			Workers:     2,
			QueueSize:   64,
			MaxAttempts: 2,
			Backoff:     time.Millisecond,
		},
	}
}

// newHarness wires the full pipeline on sqlite. mode is "on" (atomic) or "off" (sequential).
func newHarness(t *testing.T, mode string, products ...model.Product) *harness {
	t.Helper()
	return newHarnessOn(t, testutil.NewDB(t), mode, products...)
}

func newHarnessOn(t *testing.T, db *gorm.DB, mode string, products ...model.Product) *harness {
	t.Helper()

	testutil.Seed(t, db, products...)

	cfg := testConfig()
	log := logger.Discard()
	uow := repository.NewUnitOfWork(context.Background(), db, mode, log)

	gateway := testutil.NewFakeGateway()
	verifier, err := NewPaymentVerifier(gateway, &cfg.Gateway, log)
	require.NoError(t, err)

	dispatcher := NewDispatcher(cfg.Dispatch, log)
	dispatcher.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
	})

	orderRepo := repository.NewOrderRepository(db)
	notifier := &recordingNotifier{}

	deps := OrderServiceDeps{
		UnitOfWork:  uow,
		Orders:      orderRepo,
		Products:    repository.NewProductRepository(db),
		Payments:    repository.NewPaymentRepository(db),
		Carts:       repository.NewCartRepository(db),
		Inventory:   NewInventoryLedger(repository.NewInventoryRepository(db)),
		Commissions: NewCommissionLedger(repository.NewCommissionRepository(db), repository.NewSellerRepository(db)),
		Idempotency: NewIdempotencyGuard(orderRepo),
		Verifier:    verifier,
		Notifier:    notifier,
		Dispatcher:  dispatcher,
		Order:       cfg.Order,
		Commission:  cfg.Commission,
		Currency:    cfg.Gateway.Currency,
		Log:         log,
	}
	orders := NewOrderService(deps)

	webhooks := NewWebhookService(
		verifier,
		NewWebhookReplayGuard(repository.NewWebhookEventRepository(db), log),
		uow,
		orderRepo,
		deps.Payments,
		cfg.Gateway,
		log,
	)

	return &harness{
		db:        db,
		uow:       uow,
		gateway:   gateway,
		verifier:  verifier,
		orders:    orders,
		webhooks:  webhooks,
		orderRepo: orderRepo,
		notifier:  notifier,
		cfg:       cfg,
		deps:      deps,
	}
}

// catalogGate holds every catalog read until n of them have happened, so
// concurrent orders all see the same stock before any of them writes.
type catalogGate struct {
	repository.ProductRepository
	reads sync.WaitGroup
}

func newCatalogGate(products repository.ProductRepository, n int) *catalogGate {
	g := &catalogGate{ProductRepository: products}
	g.reads.Add(n)
	return g
}

func (g *catalogGate) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	product, err := g.ProductRepository.FindByID(ctx, productID)
	g.reads.Done()
	g.reads.Wait()
	return product, err
}

func address() model.Address {
	return model.Address{Name: "Asha", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"}
}

func codRequest(items ...dto.LineItem) *dto.CreateOrderRequest {
	return &dto.CreateOrderRequest{
		Items:           items,
		ShippingAddress: address(),
		PaymentMethod:   "cod",
	}
}

func line(productID string, qty int) dto.LineItem {
	return dto.LineItem{ProductID: productID, Quantity: qty}
}

// prepaidRequest builds a request whose payment proof is signed correctly.
func prepaidRequest(gatewayOrderID, paymentID string, items ...dto.LineItem) *dto.CreateOrderRequest {
	return &dto.CreateOrderRequest{
		Items:           items,
		ShippingAddress: address(),
		PaymentMethod:   "online",
		Payment: &dto.PaymentProof{
			GatewayOrderID:   gatewayOrderID,
			GatewayPaymentID: paymentID,
			Signature:        Sign(testKeySecret, gatewayOrderID+"|"+paymentID),
		},
	}
}

var (
	customer = Actor{ID: "c1", Role: RoleCustomer}
	admin    = Actor{ID: "admin", Role: RoleAdmin}
)

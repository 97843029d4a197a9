package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`

	Database   Database   `envPrefix:"DB_"`
	Gateway    Gateway    `envPrefix:"GATEWAY_"`
	BrainTree  Braintree  `envPrefix:"BRAINTREE_"`
	Order      Order      `envPrefix:"ORDER_"`
	Commission Commission `envPrefix:"COMMISSION_"`
	Webhook    Webhook    `envPrefix:"WEBHOOK_"`
	Dispatch   Dispatch   `envPrefix:"DISPATCH_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"mysql"` // mysql, sqlite
	// auto checks the store once at startup, on/off force the strategy
	Transactions string `env:"TRANSACTIONS" envDefault:"auto"`
}

type Gateway struct {
	Provider        string        `env:"PROVIDER" envDefault:"rest"` // rest, braintree
	BaseApiURL      string        `env:"BASE_API_URL"`
	KeyID           string        `env:"KEY_ID"`
	KeySecret       string        `env:"KEY_SECRET"`
	WebhookSecret   string        `env:"WEBHOOK_SECRET,required,notEmpty"`
	SignatureHeader string        `env:"SIGNATURE_HEADER" envDefault:"X-Razorpay-Signature"`
	EventIDHeader   string        `env:"EVENT_ID_HEADER" envDefault:"X-Razorpay-Event-Id"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"10s"`
	Currency        string        `env:"CURRENCY" envDefault:"INR"`
	// gateway amounts are in minor units (paise): amount = major * 10^exp
	MinorUnitExponent int32           `env:"MINOR_UNIT_EXPONENT" envDefault:"2"`
	AmountEpsilon     decimal.Decimal `env:"AMOUNT_EPSILON" envDefault:"0.01"`
}

// SigningSecret is the secret checkout signatures are computed with.
func (g Gateway) SigningSecret() string {
	if g.KeySecret != "" {
		return g.KeySecret
	}
	return g.WebhookSecret
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Order struct {
	MinLineQuantity        int             `env:"MIN_LINE_QUANTITY" envDefault:"1"`
	MaxLineQuantity        int             `env:"MAX_LINE_QUANTITY" envDefault:"10"`
	PriceTolerancePercent  decimal.Decimal `env:"PRICE_TOLERANCE_PERCENT" envDefault:"10"`
	PriceClampToLower      bool            `env:"PRICE_CLAMP_TO_LOWER" envDefault:"true"`
	DeferredPaymentMethods []string        `env:"DEFERRED_PAYMENT_METHODS" envDefault:"cod" envSeparator:","`
}

type Commission struct {
	DefaultType string          `env:"DEFAULT_TYPE" envDefault:"percentage"`
	DefaultRate decimal.Decimal `env:"DEFAULT_RATE" envDefault:"10"`
}

type Webhook struct {
	Retention     time.Duration `env:"RETENTION" envDefault:"720h"`
	PruneInterval time.Duration `env:"PRUNE_INTERVAL" envDefault:"1h"`
}

type Dispatch struct {
	Workers     int           `env:"WORKERS" envDefault:"4"`
	QueueSize   int           `env:"QUEUE_SIZE" envDefault:"256"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	Backoff     time.Duration `env:"BACKOFF" envDefault:"2s"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

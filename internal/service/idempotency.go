package service

import (
	"context"
	"fmt"
	"strings"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"
)

const maxIdempotencyKeyLength = 128

// IdempotencyGuard finds the order an idempotency key already produced.
// Uniqueness itself lives in the orders table (unique, NULL-able key column),
// so two racing requests with one key leave exactly one row.
type IdempotencyGuard interface {
	Lookup(ctx context.Context, key string) (*model.Order, error)
}

type idempotencyGuardImpl struct {
	orderRepo repository.OrderRepository
}

func NewIdempotencyGuard(orderRepo repository.OrderRepository) IdempotencyGuard {
	return &idempotencyGuardImpl{
		orderRepo: orderRepo,
	}
}

// Lookup returns nil, nil when the key has not been used.
func (g *idempotencyGuardImpl) Lookup(ctx context.Context, key string) (*model.Order, error) {
	if key == "" {
		return nil, nil
	}

	order, err := g.orderRepo.FindByIdempotencyKey(ctx, key)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return order, nil
}

// NormalizeIdempotencyKey picks the header value over the body value.
func NormalizeIdempotencyKey(header, body string) (string, error) {
	key := strings.TrimSpace(header)
	if key == "" {
		key = strings.TrimSpace(body)
	}
	if len(key) > maxIdempotencyKeyLength {
		return "", apperror.Validation("idempotency key longer than %d characters", maxIdempotencyKeyLength)
	}
	return key, nil
}

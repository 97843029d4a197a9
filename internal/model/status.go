package model

import (
	"marketplace-orders/internal/apperror"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCanceled   OrderStatus = "canceled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// orderTransitions is the full lifecycle graph. Statuses without an entry are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCanceled:   nil,
	OrderStatusRefunded:   nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderTransitions[st]; !ok {
		return "", apperror.Validation("unknown order status %q", s)
	}
	return st, nil
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// BeforeShipment reports whether goods have not left the warehouse yet.
func (s OrderStatus) BeforeShipment() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

func (s OrderStatus) AllowedTargets() []OrderStatus {
	return orderTransitions[s]
}

// Transition validates s → next against the lifecycle graph.
func (s OrderStatus) Transition(next OrderStatus) (OrderStatus, error) {
	allowed := s.AllowedTargets()
	for _, t := range allowed {
		if t == next {
			return next, nil
		}
	}

	targets := make([]string, 0, len(allowed))
	for _, t := range allowed {
		targets = append(targets, string(t))
	}
	return s, apperror.InvalidTransition(string(s), string(next), targets)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// payment status only moves forward; paid → refunded is the one reversal
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:  {PaymentStatusPaid},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

// PaymentSources lists the statuses from which next is reachable.
func PaymentSources(next PaymentStatus) []PaymentStatus {
	var from []PaymentStatus
	for src, targets := range paymentTransitions {
		for _, t := range targets {
			if t == next {
				from = append(from, src)
			}
		}
	}
	return from
}

func (s PaymentStatus) CanMoveTo(next PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

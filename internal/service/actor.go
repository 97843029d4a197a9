package service

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
	// the payment gateway, for history entries written by webhooks
	RoleGateway Role = "gateway"
)

// Actor is the authenticated caller of an order operation.
type Actor struct {
	ID   string
	Role Role
}

var gatewayActor = Actor{ID: "payment-gateway", Role: RoleGateway}

package orders

import (
	"github.com/google/uuid"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

// ParticipantRole is the actor's relationship to an order.
type ParticipantRole string

const (
	RoleBuyer  ParticipantRole = "buyer"
	RoleSeller ParticipantRole = "seller"
	RoleSystem ParticipantRole = "system"
)

// ParticipantRoleFor resolves the actor's role on the order. The second
// return is false when the actor is neither buyer nor seller.
func ParticipantRoleFor(order *models.Order, actorID uuid.UUID) (ParticipantRole, bool) {
	switch actorID {
	case order.BuyerID:
		return RoleBuyer, true
	case order.SellerID:
		return RoleSeller, true
	default:
		return "", false
	}
}

// CanPay gates the PENDING to PAID transition: buyer only.
func CanPay(role ParticipantRole) bool {
	return role == RoleBuyer
}

// CanShip gates the PAID to SHIPPED transition: seller only.
func CanShip(role ParticipantRole) bool {
	return role == RoleSeller
}

// CanConfirm gates the SHIPPED to COMPLETED transition: buyer only.
func CanConfirm(role ParticipantRole) bool {
	return role == RoleBuyer
}

// CanCancel gates cancellation per current status: a PENDING order is
// cancellable by either side, a PAID order by the buyer only. Later
// states are never cancellable.
func CanCancel(role ParticipantRole, status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending:
		return role == RoleBuyer || role == RoleSeller
	case enums.OrderStatusPaid:
		return role == RoleBuyer
	default:
		return false
	}
}

// Cancellable reports whether the status allows cancellation at all,
// independent of who is asking. Used to order guard checks so state
// errors win over role errors on uncancellable orders.
func Cancellable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusPaid
}

package orders

import (
	"testing"

	"github.com/google/uuid"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

func TestParticipantRoleFor(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := &models.Order{BuyerID: buyerID, SellerID: sellerID}

	if role, ok := ParticipantRoleFor(order, buyerID); !ok || role != RoleBuyer {
		t.Fatalf("expected buyer, got %s ok=%v", role, ok)
	}
	if role, ok := ParticipantRoleFor(order, sellerID); !ok || role != RoleSeller {
		t.Fatalf("expected seller, got %s ok=%v", role, ok)
	}
	if _, ok := ParticipantRoleFor(order, uuid.New()); ok {
		t.Fatal("stranger must not resolve to a role")
	}
}

func TestTransitionRoleGuards(t *testing.T) {
	if !CanPay(RoleBuyer) || CanPay(RoleSeller) {
		t.Fatal("pay is buyer-only")
	}
	if !CanShip(RoleSeller) || CanShip(RoleBuyer) {
		t.Fatal("ship is seller-only")
	}
	if !CanConfirm(RoleBuyer) || CanConfirm(RoleSeller) {
		t.Fatal("confirm is buyer-only")
	}
}

func TestCancelGuardPerStatus(t *testing.T) {
	cases := []struct {
		role   ParticipantRole
		status enums.OrderStatus
		want   bool
	}{
		{RoleBuyer, enums.OrderStatusPending, true},
		{RoleSeller, enums.OrderStatusPending, true},
		{RoleBuyer, enums.OrderStatusPaid, true},
		{RoleSeller, enums.OrderStatusPaid, false},
		{RoleBuyer, enums.OrderStatusShipped, false},
		{RoleSeller, enums.OrderStatusShipped, false},
		{RoleBuyer, enums.OrderStatusCompleted, false},
		{RoleBuyer, enums.OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		if got := CanCancel(tc.role, tc.status); got != tc.want {
			t.Errorf("CanCancel(%s, %s) = %v, want %v", tc.role, tc.status, got, tc.want)
		}
	}
}

func TestCancellable(t *testing.T) {
	if !Cancellable(enums.OrderStatusPending) || !Cancellable(enums.OrderStatusPaid) {
		t.Fatal("pending and paid are cancellable")
	}
	if Cancellable(enums.OrderStatusShipped) || Cancellable(enums.OrderStatusCompleted) || Cancellable(enums.OrderStatusCancelled) {
		t.Fatal("shipped and terminal states are not cancellable")
	}
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/danielvega/tradeyard-backend/pkg/db"
	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
	pkgerrors "github.com/danielvega/tradeyard-backend/pkg/errors"
	"github.com/danielvega/tradeyard-backend/pkg/listing"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/outbox"
	"github.com/danielvega/tradeyard-backend/pkg/outbox/payloads"
)

// ReasonExpired marks cancellations driven by the expiration reaper.
const ReasonExpired = "expired"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryGateway wraps the listing service's atomic availability
// transitions. Reserve is the sole double-sell guard; the remaining calls
// are compensations and finalizations that may be retried.
type InventoryGateway interface {
	GetBrief(ctx context.Context, itemID uuid.UUID) (*listing.ItemBrief, error)
	Reserve(ctx context.Context, itemID, orderID uuid.UUID) (bool, error)
	Release(ctx context.Context, itemID, orderID uuid.UUID) (bool, error)
	MarkSold(ctx context.Context, itemID, orderID uuid.UUID) (bool, error)
	Activate(ctx context.Context, itemID, orderID uuid.UUID) (bool, error)
}

// Service owns the order state machine. Every mutation goes through one of
// these transitions; nothing else writes the orders table.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	Get(ctx context.Context, orderID, actorID uuid.UUID) (*OrderView, error)
	List(ctx context.Context, userID uuid.UUID, filters ListFilters) ([]OrderView, error)
	Pay(ctx context.Context, input TransitionInput) (*OrderView, error)
	Ship(ctx context.Context, input TransitionInput) (*OrderView, error)
	Confirm(ctx context.Context, input TransitionInput) (*OrderView, error)
	Cancel(ctx context.Context, input CancelInput) (*OrderView, error)
	Expire(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo           Repository
	tx             txRunner
	outbox         outboxPublisher
	inventory      InventoryGateway
	logg           *logger.Logger
	pendingTimeout time.Duration
}

// NewService builds the order workflow service with the required dependencies.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, inventory InventoryGateway, logg *logger.Logger, pendingTimeout time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory gateway required")
	}
	if pendingTimeout <= 0 {
		return nil, fmt.Errorf("pending timeout must be positive")
	}
	return &service{
		repo:           repo,
		tx:             tx,
		outbox:         ob,
		inventory:      inventory,
		logg:           logg,
		pendingTimeout: pendingTimeout,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	brief, err := s.inventory.GetBrief(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if brief.Status != enums.ItemStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeItemNotActive, "item is not available for purchase")
	}
	if brief.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeSelfPurchase, "cannot purchase your own listing")
	}
	if input.PriceExpected != nil && !input.PriceExpected.Equal(brief.Price) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing price changed, refresh and retry")
	}

	// Fast-fail only. The authoritative double-sell guard is the reserve
	// CAS below plus the partial unique index on open orders.
	if _, err := s.repo.FindOpenByItem(ctx, input.ItemID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateOpenOrder, "item already has an open order")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open orders")
	}

	order := &models.Order{
		ID:            uuid.New(),
		ItemID:        input.ItemID,
		BuyerID:       input.BuyerID,
		SellerID:      brief.SellerID,
		PriceSnapshot: brief.Price,
		Note:          input.Note,
		Status:        enums.OrderStatusPending,
		Version:       1,
	}

	applied, err := s.inventory.Reserve(ctx, input.ItemID, order.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeReservationConflict, "item was reserved by another buyer")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_orders_open_item") {
				return pkgerrors.New(pkgerrors.CodeDuplicateOpenOrder, "item already has an open order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
		return s.emitStatusEvent(ctx, tx, order, enums.EventOrderCreated, enums.OrderStatusPending, "", actorRef(input.BuyerID, RoleBuyer))
	})
	if err != nil {
		// The reservation is already held; hand it back so the listing
		// does not stay stuck in RESERVED.
		s.releaseBestEffort(ctx, order.ItemID, order.ID)
		return nil, err
	}

	view := NewOrderView(order)
	return &view, nil
}

func (s *service) Get(ctx context.Context, orderID, actorID uuid.UUID) (*OrderView, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if _, ok := ParticipantRoleFor(order, actorID); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotParticipant, "not a participant in this order")
	}
	view := NewOrderView(order)
	return &view, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, filters ListFilters) ([]OrderView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	views := make([]OrderView, 0, len(rows))
	for i := range rows {
		views = append(views, NewOrderView(&rows[i]))
	}
	return views, nil
}

func (s *service) Pay(ctx context.Context, input TransitionInput) (*OrderView, error) {
	var result *models.Order
	var transitioned bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		role, ok := ParticipantRoleFor(order, input.ActorID)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotParticipant, "not a participant in this order")
		}
		if !CanPay(role) {
			return pkgerrors.New(pkgerrors.CodeForbiddenRole, "only the buyer can pay")
		}
		if order.Status != enums.OrderStatusPending {
			// Retried payment after the status already advanced. Succeed
			// without touching the row or emitting anything.
			result = order
			return nil
		}

		if err := s.applyCAS(ctx, repo, order, enums.OrderStatusPaid, false); err != nil {
			return err
		}
		result = order
		transitioned = true
		return s.emitStatusEvent(ctx, tx, order, enums.EventOrderPaid, enums.OrderStatusPaid, "", actorRef(input.ActorID, role))
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.markSoldBestEffort(ctx, result.ItemID, result.ID)
	}

	view := NewOrderView(result)
	return &view, nil
}

func (s *service) Ship(ctx context.Context, input TransitionInput) (*OrderView, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		role, ok := ParticipantRoleFor(order, input.ActorID)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotParticipant, "not a participant in this order")
		}
		if !CanShip(role) {
			return pkgerrors.New(pkgerrors.CodeForbiddenRole, "only the seller can ship")
		}
		if order.Status != enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order has not been paid")
		}

		if err := s.applyCAS(ctx, repo, order, enums.OrderStatusShipped, false); err != nil {
			return err
		}
		result = order
		return s.emitStatusEvent(ctx, tx, order, enums.EventOrderShipped, enums.OrderStatusShipped, "", actorRef(input.ActorID, role))
	})
	if err != nil {
		return nil, err
	}
	view := NewOrderView(result)
	return &view, nil
}

func (s *service) Confirm(ctx context.Context, input TransitionInput) (*OrderView, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		role, ok := ParticipantRoleFor(order, input.ActorID)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotParticipant, "not a participant in this order")
		}
		if !CanConfirm(role) {
			return pkgerrors.New(pkgerrors.CodeForbiddenRole, "only the buyer can confirm receipt")
		}
		if order.Status != enums.OrderStatusShipped {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order has not been shipped")
		}

		if err := s.applyCAS(ctx, repo, order, enums.OrderStatusCompleted, true); err != nil {
			return err
		}
		result = order

		actor := actorRef(input.ActorID, role)
		if err := s.emitStatusEvent(ctx, tx, order, enums.EventOrderConfirmed, enums.OrderStatusCompleted, "", actor); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderCompletedEvent{
				OrderID:     order.ID,
				ItemID:      order.ItemID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				CompletedAt: *order.ClosedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	view := NewOrderView(result)
	return &view, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderView, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		role, ok := ParticipantRoleFor(order, input.ActorID)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotParticipant, "not a participant in this order")
		}
		if !Cancellable(order.Status) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order can no longer be cancelled")
		}
		if !CanCancel(role, order.Status) {
			return pkgerrors.New(pkgerrors.CodeForbiddenRole, "paid orders are cancellable by the buyer only")
		}

		if err := s.applyCAS(ctx, repo, order, enums.OrderStatusCancelled, true); err != nil {
			return err
		}
		result = order
		return s.emitStatusEvent(ctx, tx, order, enums.EventOrderCanceled, enums.OrderStatusCancelled, input.Reason, actorRef(input.ActorID, role))
	})
	if err != nil {
		return nil, err
	}

	s.activateBestEffort(ctx, result.ItemID, result.ID)

	view := NewOrderView(result)
	return &view, nil
}

// Expire is the reaper's entry point. It re-checks the PENDING guard at
// execution time so racing with a concurrent pay() is safe.
func (s *service) Expire(ctx context.Context, orderID uuid.UUID) error {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order is no longer pending")
		}
		if time.Since(order.CreatedAt) < s.pendingTimeout {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "order has not timed out yet")
		}

		if err := s.applyCAS(ctx, repo, order, enums.OrderStatusCancelled, true); err != nil {
			return err
		}
		result = order
		return s.emitStatusEvent(ctx, tx, order, enums.EventOrderCanceled, enums.OrderStatusCancelled, ReasonExpired, systemActor())
	})
	if err != nil {
		return err
	}

	s.activateBestEffort(ctx, result.ItemID, result.ID)
	return nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// applyCAS persists the transition guarded by the version the order was
// read at, then mirrors the change onto the in-memory struct.
func (s *service) applyCAS(ctx context.Context, repo Repository, order *models.Order, next enums.OrderStatus, closing bool) error {
	updates := map[string]any{"status": next}
	var closedAt time.Time
	if closing {
		closedAt = time.Now()
		updates["closed_at"] = closedAt
	}

	applied, err := repo.UpdateStatusCAS(ctx, order.ID, order.Version, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !applied {
		return pkgerrors.New(pkgerrors.CodeStaleVersion, "order state changed concurrently")
	}

	order.Status = next
	order.Version++
	if closing {
		order.ClosedAt = &closedAt
	}
	return nil
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, order *models.Order, eventType enums.OutboxEventType, newStatus enums.OrderStatus, reason string, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			ItemID:     order.ItemID,
			BuyerID:    order.BuyerID,
			SellerID:   order.SellerID,
			NewStatus:  newStatus,
			Price:      order.PriceSnapshot,
			Reason:     reason,
			OccurredAt: time.Now(),
		},
	})
}

// Best-effort inventory corrections. The order row is authoritative; a
// listing-side outage here is logged for reconciliation, never rolled back.

func (s *service) releaseBestEffort(ctx context.Context, itemID, orderID uuid.UUID) {
	if _, err := s.inventory.Release(ctx, itemID, orderID); err != nil {
		s.logInventoryFailure(ctx, "release", itemID, orderID, err)
	}
}

func (s *service) markSoldBestEffort(ctx context.Context, itemID, orderID uuid.UUID) {
	if _, err := s.inventory.MarkSold(ctx, itemID, orderID); err != nil {
		s.logInventoryFailure(ctx, "mark_sold", itemID, orderID, err)
	}
}

func (s *service) activateBestEffort(ctx context.Context, itemID, orderID uuid.UUID) {
	if _, err := s.inventory.Activate(ctx, itemID, orderID); err != nil {
		s.logInventoryFailure(ctx, "activate", itemID, orderID, err)
	}
}

func (s *service) logInventoryFailure(ctx context.Context, op string, itemID, orderID uuid.UUID, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation": op,
		"item_id":   itemID.String(),
		"order_id":  orderID.String(),
	})
	s.logg.Error(logCtx, "inventory compensation failed, needs reconciliation", err)
}

func actorRef(userID uuid.UUID, role ParticipantRole) *outbox.ActorRef {
	id := userID
	return &outbox.ActorRef{UserID: &id, Role: string(role)}
}

func systemActor() *outbox.ActorRef {
	return &outbox.ActorRef{Role: string(RoleSystem)}
}

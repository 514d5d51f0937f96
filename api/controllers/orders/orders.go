package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielvega/tradeyard-backend/api/middleware"
	"github.com/danielvega/tradeyard-backend/api/responses"
	"github.com/danielvega/tradeyard-backend/api/validators"
	internalorders "github.com/danielvega/tradeyard-backend/internal/orders"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
	pkgerrors "github.com/danielvega/tradeyard-backend/pkg/errors"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
)

type createOrderRequest struct {
	ItemID        string           `json:"item_id" validate:"required,uuid"`
	PriceExpected *decimal.Decimal `json:"price_expected,omitempty"`
	Note          *string          `json:"note,omitempty" validate:"omitempty,max=500"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=200"`
}

// Create places a new order for a listing. Reservation conflicts and
// duplicate open orders surface as 409s.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		view, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			BuyerID:       actorID,
			ItemID:        itemID,
			PriceExpected: req.PriceExpected,
			Note:          req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// Detail returns an order visible to one of its participants.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// List returns the actor's orders, optionally narrowed by role and status.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.List(r.Context(), actorID, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// Pay marks a pending order as paid. Only the buyer may pay.
func Pay(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, svc.Pay)
}

// Ship marks a paid order as shipped. Only the seller may ship.
func Ship(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, svc.Ship)
}

// Confirm completes a shipped order. Only the buyer may confirm receipt.
func Confirm(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(logg, svc.Confirm)
}

// Cancel closes an open order and frees the listing.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID: orderID,
			ActorID: actorID,
			Reason:  strings.TrimSpace(req.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type transitionFunc func(ctx context.Context, input internalorders.TransitionInput) (*internalorders.OrderView, error)

func transition(logg *logger.Logger, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := fn(r.Context(), internalorders.TransitionInput{OrderID: orderID, ActorID: actorID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func buildListFilters(r *http.Request) (internalorders.ListFilters, error) {
	filters := internalorders.ListFilters{}

	switch role := strings.TrimSpace(r.URL.Query().Get("role")); role {
	case "":
	case "buyer":
		filters.Role = internalorders.RoleBuyer
	case "seller":
		filters.Role = internalorders.RoleSeller
	default:
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer or seller").WithDetails(map[string]any{"field": "role"})
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}

	limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
	if err != nil {
		return filters, err
	}
	filters.Limit = limit

	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 10000)
	if err != nil {
		return filters, err
	}
	filters.Offset = offset

	return filters, nil
}

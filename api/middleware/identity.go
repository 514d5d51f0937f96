package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/danielvega/tradeyard-backend/api/responses"
	pkgerrors "github.com/danielvega/tradeyard-backend/pkg/errors"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
)

const userIDHeader = "X-User-Id"

// Identity resolves the acting user from the gateway-injected header.
// Authentication happens upstream; this service trusts the header and only
// checks that it is present and a well-formed id.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(userIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

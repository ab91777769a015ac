package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"venue-tickets-api/services/auth"
	"venue-tickets-api/utils"
)

type contextKey string

const CheckoutContextKey contextKey = "checkout_id"

// TokenValidator is satisfied by auth.JWTService.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// CheckoutAuth requires a bearer token issued for the checkout named by the
// {id} route variable.
func CheckoutAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			checkoutID, err := tokens.ValidateToken(parts[1])
			if err != nil {
				log.Printf("Checkout token rejected from %s: %v", r.RemoteAddr, err)

				message := "Invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "Token expired"
				}
				utils.SendErrorResponse(w, http.StatusUnauthorized, message)
				return
			}

			if routeID := mux.Vars(r)["id"]; routeID != "" && routeID != checkoutID {
				log.Printf("[CheckoutID: %s] Token used for another checkout %s", checkoutID, routeID)
				utils.SendErrorResponse(w, http.StatusForbidden, "Token does not match checkout")
				return
			}

			ctx := context.WithValue(r.Context(), CheckoutContextKey, checkoutID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CheckoutIDFromContext returns the checkout id set by CheckoutAuth.
func CheckoutIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CheckoutContextKey).(string)
	return id
}

package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CartSessionCookie names the cookie carrying the anonymous cart token.
const CartSessionCookie = "velora_cart_session"

const cartSessionMaxAge = 30 * 24 * time.Hour

// CartSession ensures every visitor carries a cart-session token. An
// existing cookie is reused; otherwise a fresh UUID is issued. The token
// keys the anonymous Redis cart until login merges it away.
func CartSession(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(CartSessionCookie); err == nil {
				if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				token = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CartSessionCookie,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cartSessionMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithSessionToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Package authenticate verifies the bearer JWT on every request under
// /v1 and stores the resolved user in request-scoped context, grounded on
// the teacher's token-lookup middleware of the same name but swapping the
// opaque-token DB lookup for JWT verification.
package authenticate

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"wfsync/entity"
	"wfsync/internal/identitystore"
	"wfsync/lib/api/cont"
	"wfsync/lib/api/response"
	"wfsync/lib/sl"
)

// Authenticate resolves a bearer token to its subject user id.
type Authenticate interface {
	VerifyToken(token string) (userID string, err error)
}

// UserLookup resolves a verified subject id to the full user record.
type UserLookup interface {
	GetUserByID(id string) (*entity.User, error)
}

func New(log *slog.Logger, auth Authenticate, users UserLookup) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", id),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			header := r.Header.Get("Authorization")
			if header == "" {
				authFailed(ww, r, "Authorization header not found")
				return
			}
			token := header
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
			if token == "" {
				authFailed(ww, r, "Token not found")
				return
			}

			if auth == nil || users == nil {
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(ww, r, response.Error("auth service unavailable"))
				return
			}

			userID, err := auth.VerifyToken(token)
			if err != nil {
				logger = logger.With(sl.Err(err))
				authFailed(ww, r, "Unauthorized: invalid or expired token")
				return
			}
			user, err := users.GetUserByID(userID)
			if err != nil {
				if err == identitystore.ErrNotFound {
					authFailed(ww, r, fmt.Sprintf("Unauthorized: %v", err))
					return
				}
				logger.Error("lookup user", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(ww, r, response.Error("internal error"))
				return
			}
			logger = logger.With(slog.String("user_id", user.ID))

			ctx := cont.PutUser(r.Context(), user)
			ww.Header().Set("X-Request-ID", id)
			next.ServeHTTP(ww, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/donkeyideas/kamioi-backend/src/database"
	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/utils"
)

// AuthMiddleware validates the bearer token and ensures a live session row
// still backs it, then stamps the user ID onto the request context.
func (h *UserHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		userIDStr, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		if _, err := models.GetAuthSessionByToken(database.DB, tokenString); err != nil {
			logger.L.Warn("AuthMiddleware: No session for valid token", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			logger.L.Error("AuthMiddleware: Token subject is not a user ID", "sub", userIDStr)
			utils.SendJSONError(w, "Invalid token subject", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	}
}

// internal/handlers/utils.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tictactoe-service/internal/auth"
	"tictactoe-service/internal/models"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// identityFromRequest resolves the auth_token cookie to a user record. The
// token string doubles as the caller's session key, which room ownership is
// tied to.
func (s *Server) identityFromRequest(r *http.Request) (*models.User, string, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		return nil, "", fmt.Errorf("missing auth_token cookie")
	}
	return s.resolveToken(r, token)
}

// resolveToken validates a raw token and loads its user.
func (s *Server) resolveToken(r *http.Request, token string) (*models.User, string, error) {
	userIDStr, err := auth.ResolveIdentity(token)
	if err != nil {
		return nil, "", fmt.Errorf("invalid token: %w", err)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid user id in token: %w", err)
	}
	user, err := s.Users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, "", fmt.Errorf("unknown user in token: %w", err)
	}
	return user, token, nil
}

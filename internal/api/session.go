package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/ideclab/asistente-mga/internal/models"
	"github.com/ideclab/asistente-mga/internal/store"
)

// generateSessionID creates a random session identifier in the form
// "sess_<hex>" using 8 random bytes.
func generateSessionID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return "sess_" + hex.EncodeToString(bytes), nil
}

// sessionFromRequest loads the session named by the request cookie, creating
// a fresh session (and setting the cookie) when none exists. A cookie whose
// session is no longer stored is re-seeded at the start step under the same
// id, so stale clients recover instead of erroring.
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*models.Session, error) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		sess, err := s.store.GetSession(c.Value)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load session %s: %w", c.Value, err)
		}
		s.logger.Debug("Server.sessionFromRequest: re-seeding stale session", "session", c.Value)
		fresh := models.NewSession(c.Value, s.engine.StartStepID())
		if err := s.store.SaveSession(fresh); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
		return &fresh, nil
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}
	fresh := models.NewSession(id, s.engine.StartStepID())
	if err := s.store.SaveSession(fresh); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Debug("Server.sessionFromRequest: created session", "session", id)
	return &fresh, nil
}

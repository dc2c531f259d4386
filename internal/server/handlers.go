package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"idlegate/internal/constants"
	"idlegate/internal/idle"
	"idlegate/internal/security"
	"idlegate/internal/session"
	"idlegate/internal/storage"
	"idlegate/internal/types"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

// sessionFromRequest resolves the signed session cookie.
func (s *Server) sessionFromRequest(r *http.Request) (*session.Session, bool) {
	cookie, err := r.Cookie(constants.SessionCookieName)
	if err != nil {
		return nil, false
	}
	id, ok := session.VerifyCookieValue(cookie.Value)
	if !ok {
		return nil, false
	}
	return s.Sessions.Get(id)
}

func (s *Server) requireSession(next func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, constants.MsgUnauthorized)
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: constants.SessionCookieSameSite,
	})
}

// idleStateFor scopes the shared idle keys to one session.
func (s *Server) idleStateFor(sessionID string) storage.Store {
	return storage.Scoped(s.IdleStore, "idle:"+sessionID+":")
}

func (s *Server) clearIdleState(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
	defer cancel()
	st := s.idleStateFor(sessionID)
	for _, key := range []string{constants.KeyLastActiveAt, constants.KeyReset, constants.KeyForceLogout} {
		if err := st.Delete(ctx, key); err != nil {
			log.Printf("Failed to clear idle state %s for %s: %v", key, sessionID, err)
			return
		}
	}
}

// endSession deletes the session, sends whatever tabs it still has to the
// exempt route and drops its shared idle state. It is safe to call for a
// session that is already gone.
func (s *Server) endSession(sessionID, userID, reason string) {
	if _, ok := s.Sessions.Get(sessionID); !ok {
		return
	}
	s.Sessions.Delete(sessionID)
	s.AuditLogger.LogSignOut(userID, sessionID, reason)
	log.Printf("👋 Signed out %s (%s): %s", userID, sessionID, reason)

	// tabs parked on the exempt route never saw the forced logout
	s.Tabs.SignOutSession(sessionID, reason)
	s.clearIdleState(sessionID)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	s.Tabs.HandleStats(w, r)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": constants.Version,
	})
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		return
	}

	clientIP := security.GetClientIP(r)
	if !s.BruteProtector.Check(clientIP) {
		s.AuditLogger.LogBruteForce(clientIP, constants.MaxAuthAttempts)
		writeError(w, http.StatusTooManyRequests, constants.MsgTooManyAttempts)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxLoginBodySize)

	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, constants.MsgInvalidJSON)
		return
	}

	req.UserID = strings.TrimSpace(security.SanitizeInput(req.UserID))
	if !security.ValidateUserID(req.UserID) {
		count, blocked := s.BruteProtector.RecordFailure(clientIP)
		s.AuditLogger.LogAuthFailure(clientIP, req.UserID, "invalid user id")
		if blocked {
			s.AuditLogger.LogBruteForce(clientIP, count)
		}
		writeError(w, http.StatusBadRequest, constants.MsgInvalidUser)
		return
	}
	s.BruteProtector.RecordSuccess(clientIP)

	sess := session.New(req.UserID, s.Config.Session.Duration.Duration)
	s.Sessions.Save(sess)

	if s.Config.Idle.TouchOnSignIn {
		// A sign-in counts as activity for the new session's clock.
		ctx, cancel := context.WithTimeout(r.Context(), constants.StorageTimeout)
		if err := idle.SeedClock(ctx, s.idleStateFor(sess.ID), sess.CreatedAt); err != nil {
			log.Printf("Idle clock not seeded for %s: %v", sess.ID, err)
		}
		cancel()
	}

	s.setSessionCookie(w, r, session.SignCookieValue(sess.ID), int(s.Config.Session.Duration.Seconds()))
	s.AuditLogger.LogAuthSuccess(clientIP, sess.UserID, sess.ID)
	log.Printf("🔑 Signed in %s (%s)", sess.UserID, sess.ID)

	writeJSON(w, http.StatusOK, types.SessionResponse{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		return
	}

	if sess, ok := s.sessionFromRequest(r); ok {
		s.endSession(sess.ID, sess.UserID, "logout")
	}

	s.setSessionCookie(w, r, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleMe(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, types.SessionResponse{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *Server) HandleTabs(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, types.TabsResponse{
		UserID: sess.UserID,
		Tabs:   s.Tabs.Tabs(sess.ID),
	})
}

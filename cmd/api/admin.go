package main

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// adminRequest is the body every admin endpoint expects.
type adminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IP       string `json:"ip,omitempty"`
}

type adminHandler func(w http.ResponseWriter, r *http.Request, req adminRequest)

// admin checks the credentials in the body before calling next.
func (s *server) admin(next adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !s.validAdmin(req) {
			s.log.Warn("admin auth failed", "path", r.URL.Path, "username", req.Username)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid credentials"})
			return
		}
		next(w, r, req)
	}
}

func (s *server) validAdmin(req adminRequest) bool {
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.AdminPass)) == 1
	return userOK && passOK
}

func (s *server) handleLogin(w http.ResponseWriter, _ *http.Request, _ adminRequest) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *server) handleIPLogs(w http.ResponseWriter, _ *http.Request, _ adminRequest) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": s.ipLog.Entries()})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request, _ adminRequest) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"stats":      s.ipLog.Stats(),
		"pixels":     s.canvas.Len(),
		"faultCodes": s.analyzer.TableSize(),
	})
}

const recentActivityLimit = 20

func (s *server) handleRecentActivity(w http.ResponseWriter, _ *http.Request, _ adminRequest) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "activity": s.ipLog.Recent(recentActivityLimit)})
}

// handleBanIP acknowledges the request. Nothing is persisted or enforced.
func (s *server) handleBanIP(w http.ResponseWriter, _ *http.Request, req adminRequest) {
	s.log.Info("ban requested", "ip", req.IP)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "IP " + req.IP + " has been banned"})
}

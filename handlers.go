package integrations

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Seann-Moser/integrations/items"
	"github.com/Seann-Moser/integrations/oauth/oclient"
	"github.com/Seann-Moser/integrations/session"
)

const closeWindowHTML = `<html><script>window.close();</script></html>`

// identity reads user_id and org_id from the form, letting a signed-in
// session override them.
func identity(r *http.Request) (string, string, error) {
	if err := r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("%w: %v", oclient.ErrMissingParameter, err)
	}
	userID, orgID := session.Identity(r, r.PostForm.Get("user_id"), r.PostForm.Get("org_id"))
	if userID == "" || orgID == "" {
		return "", "", missing("user_id", "org_id")
	}
	return userID, orgID, nil
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	p, err := s.provider(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	userID, orgID, err := identity(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	authURL, err := p.OAuth.Authorize(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, authURL)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	p, err := s.provider(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if _, err := p.OAuth.Callback(r.Context(), oclient.ParseCallback(r.URL.Query())); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(closeWindowHTML))
}

func (s *Server) credentials(w http.ResponseWriter, r *http.Request) {
	p, err := s.provider(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	userID, orgID, err := identity(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	cred, err := p.OAuth.ConsumeCredentials(r.Context(), userID, orgID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) {
	p, err := s.provider(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if p.Items == nil {
		writeError(w, r, s.logger, fmt.Errorf("%w: %s has no item collections", ErrUnknownProvider, p.Name))
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, r, s.logger, fmt.Errorf("%w: %v", items.ErrInvalidCredentials, err))
		return
	}
	raw := r.PostForm.Get("credentials")
	if raw == "" {
		writeError(w, r, s.logger, fmt.Errorf("%w: credentials form field is empty", items.ErrInvalidCredentials))
		return
	}
	res, err := p.Items.Load(r.Context(), []byte(raw))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed")); detailed {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusOK, res.Items)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	p, err := s.provider(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, r, s.logger, fmt.Errorf("%w: %v", oclient.ErrMissingParameter, err))
		return
	}
	_, orgID := session.Identity(r, "", r.PostForm.Get("org_id"))
	raw := r.PostForm.Get("credentials")
	if orgID == "" || raw == "" {
		writeError(w, r, s.logger, missing("org_id", "credentials"))
		return
	}
	var cred oclient.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		writeError(w, r, s.logger, fmt.Errorf("%w: %v", items.ErrInvalidCredentials, err))
		return
	}
	next, err := p.OAuth.Refresh(r.Context(), orgID, cred)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

type healthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Providers: s.Providers()})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	session.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"hangoutsync/internal/domain"
	"hangoutsync/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type idTokenRequest struct {
	IDToken string `json:"idToken"`
}

func (a *api) limited(w http.ResponseWriter, r *http.Request, keys ...string) bool {
	now := time.Now()
	a.loginLimiter.Sweep(now)
	for _, k := range append([]string{"ip:" + clientIP(r)}, keys...) {
		if !a.loginLimiter.Allow(k, now) {
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
			return true
		}
	}
	return false
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req service.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if a.limited(w, r) {
		return
	}
	out, err := a.accounts.Register(r.Context(), req)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "password": "required"}))
		return
	}
	if a.limited(w, r, "login:"+req.Email) {
		return
	}

	out, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleAuthGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleIDToken(w, r, a.accounts.LoginWithGoogle)
}

func (a *api) handleAuthApple(w http.ResponseWriter, r *http.Request) {
	a.handleIDToken(w, r, a.accounts.LoginWithApple)
}

func (a *api) handleIDToken(w http.ResponseWriter, r *http.Request, login func(context.Context, string) (service.SignIn, error)) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"idToken": "required"}))
		return
	}
	if a.limited(w, r) {
		return
	}
	out, err := login(r.Context(), req.IDToken)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, out)
}

package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/khayami66/study-support-bot/internal/apperror"
	"github.com/khayami66/study-support-bot/internal/model"
)

// RequireToken rejects requests whose bearer token does not equal token.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ListRules returns the active rules in configured order.
func (h *Handler) ListRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.rules.Rules())
}

// AddRule creates or replaces a rule.
func (h *Handler) AddRule(w http.ResponseWriter, r *http.Request) {
	var rule model.PointRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		h.log.Error("failed to decode json", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request payload",
		})
		return
	}

	if err := h.validate.Struct(rule); err != nil {
		h.log.Warn("validation failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, apperror.CustomValidationError(err))
		return
	}

	h.rules.Add(rule)
	writeJSON(w, http.StatusCreated, rule)
}

// DeleteRule removes the rule named by the keyword URL parameter.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	keyword, err := keywordParam(r)
	if err != nil {
		h.log.Warn("invalid rule keyword", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid keyword"})
		return
	}
	if !h.rules.Remove(keyword) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// keywordParam returns the decoded keyword segment. chi matches on RawPath when the
// request carries one, and the parameter is then still escaped.
func keywordParam(r *http.Request) (string, error) {
	keyword := chi.URLParam(r, "keyword")
	if r.URL.RawPath == "" {
		return keyword, nil
	}
	return url.PathUnescape(keyword)
}

package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"banklink/internal/aggregator"
	"banklink/internal/log"
)

const (
	msgLinkTokenFailed = "Failed to create link token"
	msgMissingToken    = "public_token is required"
)

type linkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

// handlePlaidLinkToken issues a token for Plaid Link in the browser.
func (s *Server) handlePlaidLinkToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.linker.CreateLinkToken(r.Context())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Link token creation failed",
			log.FieldError, err,
			log.FieldTextCode, aggregator.TextCode(err))
		writeError(w, err, msgLinkTokenFailed)
		return
	}
	writeJSON(w, http.StatusOK, linkTokenResponse{LinkToken: token})
}

// handlePlaidExchange trades Plaid Link's public token for an access token.
func (s *Server) handlePlaidExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || strings.TrimSpace(req.PublicToken) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMissingToken})
		return
	}

	logger := log.FromContext(r.Context())
	tokens, err := s.linker.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		logger.WarnContext(r.Context(), "Public token exchange failed",
			log.FieldOperation, log.OpExchange,
			log.FieldError, err,
			log.FieldTextCode, aggregator.TextCode(err))
		writeError(w, err, aggregator.MsgExchangeFailed)
		return
	}
	if err := s.spending.StoreTokens(r.Context(), tokens); err != nil {
		logger.ErrorContext(r.Context(), "Failed to store tokens", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: aggregator.MsgExchangeFailed})
		return
	}
	writeJSON(w, http.StatusOK, linkStatusResponse{Status: "linked"})
}

package http

import (
	"context"
	"errors"
	"net/http"

	"banklink/internal/aggregator"
	"banklink/internal/linking"
	"banklink/internal/log"
	"banklink/internal/relay"
)

type linkResponse struct {
	SessionID string `json:"session_id"`
	AuthURL   string `json:"auth_url"`
}

type linkStatusResponse struct {
	Status string `json:"status"`
}

// handleLink starts a handshake. Redirect mode navigates away; popup mode
// returns the URL for the window the page has already opened.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	if s.initiator == nil {
		http.NotFound(w, r)
		return
	}

	attempt, err := s.initiator.BeginLink(r.Context(), s.linkMode)
	if err != nil {
		if s.linkMode == linking.ModeRedirect && !isHTMX(r) {
			s.renderIndex(w, r, http.StatusBadGateway, aggregator.UserMessage(err, aggregator.MsgLinkInitiationFailed))
			return
		}
		writeError(w, err, aggregator.MsgLinkInitiationFailed)
		return
	}

	if s.linkMode == linking.ModeRedirect {
		if isHTMX(r) {
			w.Header().Set("HX-Redirect", attempt.AuthURL)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Redirect(w, r, attempt.AuthURL, http.StatusSeeOther)
		return
	}

	s.pending.Register(attempt.SessionID, attempt.Pending)
	writeJSON(w, http.StatusOK, linkResponse{SessionID: attempt.SessionID, AuthURL: attempt.AuthURL})
}

type callbackData struct {
	Outcome string
	Mode    string
	Message string
	Code    string
	DelayMs int64
}

// handleCallback is where the provider returns the browser.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.callback == nil {
		http.NotFound(w, r)
		return
	}

	res := s.callback.HandleReturn(r.Context(), r.URL.Query(), s.linkMode)

	if res.Outcome == linking.OutcomeAborted && res.Mode == linking.ModeRedirect {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	if res.Outcome == linking.OutcomeError {
		status = http.StatusBadGateway
	}
	s.render(w, r, status, "callback.html", callbackData{
		Outcome: string(res.Outcome),
		Mode:    string(res.Mode),
		Message: res.Message,
		Code:    res.TextCode,
		DelayMs: res.Delay().Milliseconds(),
	})
}

// handleLinkWait long-polls a popup attempt until its tokens arrive.
func (s *Server) handleLinkWait(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	pending, ok := s.pending.Claim(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "No pending link attempt"})
		return
	}
	defer s.pending.Release(id)

	ctx, cancel := context.WithTimeout(r.Context(), s.linkTimeout)
	defer cancel()

	logger := log.FromContext(r.Context())
	_, err := pending.Wait(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, linkStatusResponse{Status: "linked"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusRequestTimeout, errorResponse{Error: linking.MsgLinkTimedOut})
	case errors.Is(err, relay.ErrClosed), errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusConflict, linkStatusResponse{Status: "cancelled"})
	default:
		logger.ErrorContext(r.Context(), "Link attempt failed after callback",
			log.FieldSessionID, id,
			log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: linking.MsgUnknown})
	}
}

// handleLinkCancel is called by the page when the popup was blocked or closed.
func (s *Server) handleLinkCancel(w http.ResponseWriter, r *http.Request) {
	if s.initiator == nil {
		http.NotFound(w, r)
		return
	}
	if id := r.FormValue("id"); id != "" {
		s.pending.Cancel(id)
	}
	if err := s.initiator.Cancel(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to cancel link attempt", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: linking.MsgUnknown})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	if err := s.spending.Unlink(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Unlink failed",
			log.FieldOperation, log.OpUnlink,
			log.FieldError, err)
		http.Error(w, "failed to unlink account", http.StatusInternalServerError)
		return
	}
	if isHTMX(r) {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

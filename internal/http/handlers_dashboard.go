package http

import (
	"context"
	"errors"
	"net/http"

	"banklink/internal/core"
	"banklink/internal/log"
	"banklink/internal/services"
)

type indexData struct {
	Provider string
	LinkMode string
	Linked   bool
	Plaid    bool
	Error    string
}

// handleIndex renders the dashboard shell; the figures load via /ui/summary.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, "")
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	linked, err := s.spending.IsLinked(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Link status lookup failed", log.FieldError, err)
	}
	s.render(w, r, status, "index.html", indexData{
		Provider: s.spending.Provider().String(),
		LinkMode: string(s.linkMode),
		Linked:   linked,
		Plaid:    s.linker != nil,
		Error:    errMsg,
	})
}

type summaryData struct {
	Linked  bool
	State   string
	Message string
	Daily   string
	Weekly  string
	Monthly string
	Count   int
}

// handleSummary returns the spending summary partial. ?refresh=1 bypasses
// the transaction cache.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.summaryTimeout)
	defer cancel()

	if r.URL.Query().Get("refresh") == "1" {
		s.spending.Refresh()
	}

	view, err := s.spending.View(ctx)
	if errors.Is(err, services.ErrNotLinked) {
		s.render(w, r, http.StatusOK, "summary.html", summaryData{})
		return
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Summary failed", log.FieldOperation, log.OpSummarize, log.FieldError, err)
		view = core.SpendingView{State: core.ViewError, Message: "Failed to load transactions"}
	}

	data := summaryData{
		Linked:  true,
		State:   string(view.State),
		Message: view.Message,
		Count:   view.Summary.Count,
	}
	if figures := view.Figures(); len(figures) == 3 {
		data.Daily, data.Weekly, data.Monthly = figures[0], figures[1], figures[2]
	}
	s.render(w, r, http.StatusOK, "summary.html", data)
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

type ensureProfileRequest struct {
	Email string `json:"email"`
}

func (s *Server) ensureProfile(w http.ResponseWriter, r *http.Request) {
	var req ensureProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, created, err := s.svc.EnsureProfile(r.Context(), chi.URLParam(r, "userID"), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, p)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) applyActions(w http.ResponseWriter, r *http.Request) {
	var tally trust.ActionTally
	if err := decodeJSON(r, &tally); err != nil {
		s.writeError(w, r, err)
		return
	}
	change, err := s.svc.ApplyActions(r.Context(), chi.URLParam(r, "userID"), tally)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

type revealRequest struct {
	Percent *int `json:"percent"`
}

func (s *Server) setReveal(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Percent == nil {
		s.writeError(w, r, sentinel.Invalid("percent", "is required"))
		return
	}
	change, err := s.svc.SetRevealPercent(r.Context(), chi.URLParam(r, "userID"), *req.Percent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

type sobrietyRequest struct {
	SobrietyDate string `json:"sobriety_date"`
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, sentinel.Invalid("sobriety_date", "expected YYYY-MM-DD or RFC 3339, got %q", raw)
}

func (s *Server) setSobrietyDate(w http.ResponseWriter, r *http.Request) {
	var req sobrietyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseDate(req.SobrietyDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	journey, err := s.svc.SetSobrietyDate(r.Context(), chi.URLParam(r, "userID"), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, journey)
}

type photoRequest struct {
	OriginalPhotoURL string `json:"original_photo_url"`
	AvatarURL        string `json:"avatar_url"`
}

func (s *Server) setPhoto(w http.ResponseWriter, r *http.Request) {
	var req photoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.SetPhoto(r.Context(), chi.URLParam(r, "userID"), req.OriginalPhotoURL, req.AvatarURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) celebrate(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Celebrate(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "milestoneID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) journey(w http.ResponseWriter, r *http.Request) {
	j, err := s.svc.Journey(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) revealState(w http.ResponseWriter, r *http.Request) {
	grid, err := queryInt(r, "grid", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.RevealState(r.Context(), chi.URLParam(r, "userID"), grid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.svc.Events(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

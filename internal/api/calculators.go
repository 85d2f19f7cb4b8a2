package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/veilmatch/internal/milestone"
	"github.com/MikeSquared-Agency/veilmatch/internal/reveal"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/service"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

type nextScoreRequest struct {
	Current int               `json:"current"`
	Tally   trust.ActionTally `json:"tally"`
}

type scoreResponse struct {
	Score    int         `json:"score"`
	Level    trust.Level `json:"level"`
	Label    string      `json:"label"`
	Fraction float64     `json:"fraction"`
}

// nextScore handles POST /api/v1/trust/next
func (s *Server) nextScore(w http.ResponseWriter, r *http.Request) {
	var req nextScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := trust.NextScore(req.Current, req.Tally)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	level := trust.LevelFromScore(score)
	writeJSON(w, http.StatusOK, scoreResponse{
		Score:    score,
		Level:    level,
		Label:    level.Label(),
		Fraction: level.Fraction(),
	})
}

// revealGrid handles GET /api/v1/reveal/grid?score=&grid=
func (s *Server) revealGrid(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("score") == "" {
		s.writeError(w, r, sentinel.Invalid("score", "is required"))
		return
	}
	score, err := queryInt(r, "score", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	grid, err := queryInt(r, "grid", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	state, err := s.svc.GridForScore(score, grid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type tierResponse struct {
	reveal.ClipRegion
	CSS string `json:"css"`
}

// revealTier handles GET /api/v1/reveal/tiers/{percent}
func (s *Server) revealTier(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "percent")
	percent, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, r, sentinel.Invalid("percent", "not an integer: %q", raw))
		return
	}
	tier, err := reveal.ParseTier(percent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	clip := tier.Clip()
	writeJSON(w, http.StatusOK, tierResponse{ClipRegion: clip, CSS: clip.CSS()})
}

type milestonesResponse struct {
	Days       int                       `json:"days"`
	Milestones []service.MilestoneStatus `json:"milestones"`
	Next       *milestone.Milestone      `json:"next,omitempty"`
	DaysToNext int                       `json:"days_to_next"`
}

// milestones handles GET /api/v1/milestones?days=
func (s *Server) milestones(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if days < 0 {
		s.writeError(w, r, sentinel.Invalid("days", "must not be negative, got %d", days))
		return
	}

	catalog := s.svc.Catalog()
	resp := milestonesResponse{
		Days:       days,
		Milestones: service.Ladder(catalog, days, nil),
	}
	if next, ok := catalog.Next(days); ok {
		resp.Next = &next
		resp.DaysToNext = next.Days - days
	}
	writeJSON(w, http.StatusOK, resp)
}

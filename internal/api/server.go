// Package api provides the HTTP surface of the town simulation: game
// creation and loading, policy submission (the turn-advance boundary),
// the inbox, and health. Narrow plumbing around the engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/talgya/townhall/internal/demographics"
	"github.com/talgya/townhall/internal/engine"
	"github.com/talgya/townhall/internal/game"
	"github.com/talgya/townhall/internal/llm"
	"github.com/talgya/townhall/internal/mail"
	"github.com/talgya/townhall/internal/persistence"
)

const maxNameLen = 50

// Server serves the game over HTTP.
type Server struct {
	DB       *persistence.DB
	Engine   *engine.Engine
	Registry *demographics.Registry
	LLM      *llm.Client // may be nil; used for health reporting
	Port     int

	// Per-IP rate limit for all game routes.
	RateMax    int
	RateWindow time.Duration

	locks *saveLocks
}

// Handler builds the full route tree. Split from Start so tests can drive
// the server through httptest.
func (s *Server) Handler() http.Handler {
	if s.locks == nil {
		s.locks = newSaveLocks()
	}

	rateMax := s.RateMax
	if rateMax <= 0 {
		rateMax = 100
	}
	window := s.RateWindow
	if window <= 0 {
		window = 15 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(NewRateLimiter(rateMax, window).Middleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/game", func(r chi.Router) {
			r.Post("/create", s.handleCreate)
			r.Get("/load/{player}/{save}", s.handleLoad)
			r.Get("/saves/{player}", s.handleSaves)
			r.Post("/policy", s.handlePolicy)
			r.Get("/emails/{player}/{save}", s.handleEmails)
			r.Post("/emails/{id}/read", s.handleEmailRead)
			r.Post("/test-llm", s.handleTestLLM)
		})
	})

	return r
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

type createRequest struct {
	PlayerName string `json:"playerName"`
	SaveName   string `json:"saveName"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := validateName("playerName", req.PlayerName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateName("saveName", req.SaveName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	state := game.NewGameState(s.Registry.Seed())
	saveID, err := s.DB.CreateSave(req.PlayerName, req.SaveName, state)
	if err != nil {
		slog.Error("create save failed", "error", err, "player", req.PlayerName)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	welcome := mail.Welcome(state)
	if err := s.DB.AddEmails(req.PlayerName, req.SaveName, []mail.Email{welcome}); err != nil {
		slog.Warn("welcome email store failed", "error", err)
	}

	slog.Info("new game created", "player", req.PlayerName, "save", req.SaveName, "save_id", saveID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Game created successfully",
		"gameSaveId": saveID,
		"gameState":  state,
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	saveName := chi.URLParam(r, "save")

	state, err := s.DB.LoadSave(player, saveName)
	if errors.Is(err, persistence.ErrSaveNotFound) {
		writeError(w, http.StatusNotFound, "game save not found")
		return
	}
	if err != nil {
		slog.Error("load save failed", "error", err, "player", player, "save", saveName)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"gameState": state,
	})
}

func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")

	saves, err := s.DB.ListSaves(player)
	if err != nil {
		slog.Error("list saves failed", "error", err, "player", player)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if saves == nil {
		saves = []persistence.SaveInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"saves":   saves,
	})
}

type policyRequest struct {
	PlayerName  string             `json:"playerName"`
	SaveName    string             `json:"saveName"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Effects     map[string]float64 `json:"effects,omitempty"`
}

// handlePolicy is the turn-advance boundary: it validates the proposal,
// runs one atomic turn under the per-save lock, persists the new state,
// and stores the demographic reaction letters.
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := validateName("playerName", req.PlayerName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateName("saveName", req.SaveName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	// One writer per save: concurrent proposals against the same save
	// would compute from the same base state and lose an update.
	lock := s.locks.get(req.PlayerName, req.SaveName)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.DB.LoadSave(req.PlayerName, req.SaveName)
	if errors.Is(err, persistence.ErrSaveNotFound) {
		writeError(w, http.StatusNotFound, "game save not found")
		return
	}
	if err != nil {
		slog.Error("load save failed", "error", err, "player", req.PlayerName, "save", req.SaveName)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	proposal := engine.Proposal{
		Title:       req.Title,
		Description: req.Description,
		Effects:     req.Effects,
	}

	result, err := s.Engine.AdvanceTurn(r.Context(), state, proposal)
	var pErr *engine.ProposalError
	if errors.As(err, &pErr) {
		writeError(w, http.StatusBadRequest, pErr.Error())
		return
	}
	if err != nil {
		// Caller cancelled mid-turn; nothing was applied.
		slog.Warn("turn aborted", "error", err, "player", req.PlayerName, "save", req.SaveName)
		writeError(w, http.StatusInternalServerError, "turn aborted")
		return
	}

	// A computed state that fails to persist must not be reported as
	// success.
	if err := s.DB.UpdateSave(req.PlayerName, req.SaveName, result.NewState); err != nil {
		slog.Error("persist turn failed", "error", err, "player", req.PlayerName, "save", req.SaveName)
		writeError(w, http.StatusInternalServerError, "failed to save game state")
		return
	}

	newEmails := mail.PolicyReactions(result.Policy, result.Reactions, result.NewState.Demographics)
	if err := s.DB.AddEmails(req.PlayerName, req.SaveName, newEmails); err != nil {
		slog.Warn("reaction email store failed", "error", err)
	}

	slog.Info("turn advanced",
		"player", req.PlayerName,
		"save", req.SaveName,
		"turn", result.NewState.TurnNumber,
		"policy", result.Policy.Title,
		"approval", result.NewState.ApprovalRating,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"newTurnNumber":        result.NewState.TurnNumber,
		"demographicResponses": result.Reactions,
		"gameState":            result.NewState,
		"newEmails":            newEmails,
	})
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	saveName := chi.URLParam(r, "save")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	emails, err := s.DB.Emails(player, saveName, limit)
	if err != nil {
		slog.Error("query emails failed", "error", err, "player", player, "save", saveName)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"emails":  emails,
	})
}

func (s *Server) handleEmailRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ok, err := s.DB.MarkEmailRead(id)
	if err != nil {
		slog.Error("mark email read failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type testLLMRequest struct {
	Demographic string `json:"demographic"`
	Policy      string `json:"policy"`
}

// handleTestLLM evaluates one policy against one catalog demographic
// without touching any save. Diagnostic endpoint.
func (s *Server) handleTestLLM(w http.ResponseWriter, r *http.Request) {
	var req testLLMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Demographic == "" || req.Policy == "" {
		writeError(w, http.StatusBadRequest, "demographic and policy are required")
		return
	}

	demo := s.Registry.Get(req.Demographic)
	if demo == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":               false,
			"error":                 "invalid demographic",
			"availableDemographics": s.Registry.IDs(),
		})
		return
	}

	reaction := s.Engine.Reactions.Evaluate(r.Context(), demo, req.Policy)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"demographic": demo.Name,
		"policy":      req.Policy,
		"response":    reaction,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	dbMessage := "database connection healthy"
	if err := s.DB.Ping(); err != nil {
		dbStatus = "error"
		dbMessage = err.Error()
	}

	llmStatus := "ok"
	llmMessage := "LLM service available"
	if !s.LLM.Enabled() {
		llmStatus = "disabled"
		llmMessage = "no API key configured; evaluations use neutral fallback"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := s.LLM.Ping(ctx); err != nil {
			llmStatus = "error"
			llmMessage = "LLM service unavailable"
		}
	}

	status := "healthy"
	if dbStatus != "ok" || llmStatus == "error" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  status,
		"services": map[string]any{
			"database": map[string]string{"status": dbStatus, "message": dbMessage},
			"llm":      map[string]string{"status": llmStatus, "message": llmMessage},
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func validateName(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if utf8.RuneCountInString(value) > maxNameLen {
		return field + " exceeds 50 characters"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

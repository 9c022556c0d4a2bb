package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/fetcher"
	"github.com/elonfeng/toolrank/pkg/gate"
	"github.com/elonfeng/toolrank/pkg/ranking"
	"github.com/elonfeng/toolrank/pkg/stage"
)

// Server provides the HTTP trigger surface. Every stage endpoint is
// stateless: an invocation runs one batch job to completion and replies with
// the stage result contract.
type Server struct {
	store    store.Store
	fetchers []fetcher.Fetcher
	gate     *gate.Gate
	ranker   *ranking.Orchestrator
	secret   string
	port     int
}

// New creates the HTTP server.
func New(s store.Store, fetchers []fetcher.Fetcher, g *gate.Gate, r *ranking.Orchestrator, secret string, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:    s,
		fetchers: fetchers,
		gate:     g,
		ranker:   r,
		secret:   secret,
		port:     port,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("toolrank server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler returns the routed handler without binding a listener. Tests use it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/sync", s.handleSyncAll)
	mux.HandleFunc("/api/v1/sync/", s.handleSyncOne)
	mux.HandleFunc("/api/v1/rank", s.handleRank)
	mux.HandleFunc("/api/v1/trends/compute", s.handleTrends)
	mux.HandleFunc("/api/v1/candidates/evaluate", s.handleEvaluate)
	mux.HandleFunc("/api/v1/categories/aggregate", s.handleCategories)
	mux.HandleFunc("/api/v1/benchmarks/submit", s.handleBenchmarkSubmit)
	mux.HandleFunc("/api/v1/tools", s.handleTools)
	mux.HandleFunc("/api/v1/candidates", s.handleCandidates)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	return mux
}

// authorized checks the static shared-secret bearer credential. Unauthorized
// callers get a bare rejection with no informative body.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{})
		return false
	}
	return true
}

func (s *Server) requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	return s.authorized(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	// Fetchers run strictly sequentially; each throttles its own provider.
	combined := &stage.Result{Success: true}
	for _, f := range s.fetchers {
		res := fetcher.Run(r.Context(), s.store, f)
		combined.Total += res.Total
		combined.Updated += res.Updated
		combined.Skipped += res.Skipped
		combined.Errors = append(combined.Errors, res.Errors...)
		if !res.Success {
			combined.Success = false
		}
	}
	writeJSON(w, http.StatusOK, combined)
}

func (s *Server) handleSyncOne(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/v1/sync/")
	for _, f := range s.fetchers {
		if f.SourceKey() == key {
			writeJSON(w, http.StatusOK, fetcher.Run(r.Context(), s.store, f))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown source " + key})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	now := time.Now().UTC()
	res := stage.Run(r.Context(), s.store, ranking.SourceKey, func(ctx context.Context) (*stage.Result, error) {
		return s.ranker.Recompute(ctx, now)
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	now := time.Now().UTC()
	res := stage.Run(r.Context(), s.store, ranking.TrendSourceKey, func(ctx context.Context) (*stage.Result, error) {
		return s.ranker.ComputeTrends(ctx, now)
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	res := stage.Run(r.Context(), s.store, gate.SourceKey, s.gate.Evaluate)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	now := time.Now().UTC()
	res := stage.Run(r.Context(), s.store, ranking.CategorySourceKey, func(ctx context.Context) (*stage.Result, error) {
		return s.ranker.AggregateCategories(ctx, now)
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBenchmarkSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}

	// The run log is keyed by the same source the scores land under.
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "custombench"
	}
	res := stage.Run(r.Context(), s.store, source, func(ctx context.Context) (*stage.Result, error) {
		return fetcher.IngestBenchmarkPayload(ctx, s.store, source, body)
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !s.authorized(w, r) {
		return
	}

	tools, err := s.store.ListTools(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	sortToolsByRank(tools)
	writeJSON(w, http.StatusOK, map[string]any{"data": tools, "count": len(tools)})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !s.authorized(w, r) {
		return
	}

	candidates, err := s.store.ListCandidates(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": candidates, "count": len(candidates)})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !s.authorized(w, r) {
		return
	}

	runs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": runs, "count": len(runs)})
}

// sortToolsByRank orders ranked tools first, unranked (rank 0) last.
func sortToolsByRank(tools []store.Tool) {
	sort.SliceStable(tools, func(i, j int) bool {
		ri, rj := tools[i].Rank, tools[j].Rank
		if ri == 0 {
			return false
		}
		if rj == 0 {
			return true
		}
		return ri < rj
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

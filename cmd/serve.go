package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/model"
	"github.com/sells-group/mapscrap/internal/pipeline"
	"github.com/sells-group/mapscrap/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for launching and inspecting runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		api := newServer(ctx, st, func(ctx context.Context) (runner, func(), error) {
			env, err := initScrape(ctx, cfg.Browser.Headless)
			if err != nil {
				return nil, nil, err
			}
			return env.Pipeline, env.Close, nil
		}, serverDefaults{
			Target:  cfg.Search.Target,
			Workers: cfg.Enrich.Workers,
			OutRoot: cfg.Output.Dir,
			XLSX:    cfg.Output.XLSX,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		api.wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runnerFactory opens a browser-backed runner for one run. The returned func
// releases it.
type runnerFactory func(ctx context.Context) (runner, func(), error)

// serverDefaults fills request fields the client leaves out.
type serverDefaults struct {
	Target  int
	Workers int
	OutRoot string
	XLSX    bool
}

// server launches runs in the background, one at a time since they share a
// single browser, and serves the run store.
type server struct {
	ctx      context.Context
	store    store.Store
	open     runnerFactory
	defaults serverDefaults

	// busy holds a token while a run owns the browser.
	busy chan struct{}
	wg   sync.WaitGroup
}

func newServer(ctx context.Context, st store.Store, open runnerFactory, defaults serverDefaults) *server {
	return &server{
		ctx:      ctx,
		store:    st,
		open:     open,
		defaults: defaults,
		busy:     make(chan struct{}, 1),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/businesses", s.handleListBusinesses)
	})
	return r
}

// wait blocks until background runs have finished.
func (s *server) wait() {
	s.wg.Wait()
}

type createRunRequest struct {
	Query   string `json:"query"`
	Target  int    `json:"target"`
	Workers int    `json:"workers"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Target < 0 || req.Workers < 0 {
		respondError(w, http.StatusBadRequest, "target and workers must not be negative")
		return
	}
	if req.Target == 0 {
		req.Target = s.defaults.Target
	}
	if req.Workers == 0 {
		req.Workers = s.defaults.Workers
	}

	select {
	case s.busy <- struct{}{}:
	default:
		respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	run, err := s.store.CreateRun(r.Context(), req.Query, req.Target, req.Workers)
	if err != nil {
		<-s.busy
		zap.L().Error("create run", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	s.wg.Add(1)
	go s.execute(run.ID, pipeline.Request{Query: req.Query, Target: req.Target, Workers: req.Workers})

	respondJSON(w, http.StatusAccepted, run)
}

// execute runs one request in the background and releases the browser token.
func (s *server) execute(runID string, req pipeline.Request) {
	defer s.wg.Done()
	defer func() { <-s.busy }()

	log := zap.L().With(zap.String("run_id", runID), zap.String("query", req.Query))

	rn, release, err := s.open(s.ctx)
	if err != nil {
		log.Error("open browser", zap.Error(err))
		if ferr := s.store.FailRun(context.WithoutCancel(s.ctx), runID, model.RunStats{}, err); ferr != nil {
			log.Warn("record run failure", zap.Error(ferr))
		}
		return
	}
	defer release()

	res, err := executeRun(s.ctx, rn, s.store, runID, req, s.defaults.OutRoot, s.defaults.XLSX)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return
	}
	log.Info("run finished", zap.Int("businesses", len(res.Businesses)), zap.Bool("partial", res.Partial))
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Query:  q.Get("query"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	businesses, err := s.store.ListBusinesses(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if businesses == nil {
		businesses = []model.Business{}
	}
	respondJSON(w, http.StatusOK, businesses)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("store request", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

// Package server wires the ledgers, persistence and HTTP routes together.
// It is the composition root: every dependency is constructed here and
// handed down, so the rest of the codebase stays free of globals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgecredit/forgecredit/internal/auth"
	"github.com/forgecredit/forgecredit/internal/config"
	"github.com/forgecredit/forgecredit/internal/event"
	"github.com/forgecredit/forgecredit/internal/handler"
	"github.com/forgecredit/forgecredit/internal/ledger"
	"github.com/forgecredit/forgecredit/internal/middleware"
	"github.com/forgecredit/forgecredit/internal/observability/metrics"
	sqliteRepo "github.com/forgecredit/forgecredit/internal/repository/sqlite"
)

// Component identities under which the workflow and settlement ledgers act
// on the registries they depend on. The matching capabilities are granted
// at startup.
const (
	workflowComponentID   = "application-workflow"
	settlementComponentID = "settlement-ledger"
)

// Server owns the router, the database and the ledger core.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain: database, event recorder, bank,
// the four ledgers and their capability grants, then the HTTP routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	sink := event.NewRecorder(s.db, s.logger)
	bank := ledger.NewMemoryBank()

	identity := ledger.NewIdentityRegistry(s.cfg.Admin, sink, s.logger)
	projects := ledger.NewProjectRegistry(s.cfg.Admin, sink, s.logger)
	workflow := ledger.NewApplicationWorkflow(identity, projects, ledger.WorkflowConfig{
		ComponentID:   workflowComponentID,
		MinMatchScore: s.cfg.MinMatchScore,
		MaxPerIssue:   s.cfg.MaxApplications,
	}, sink, s.logger)
	settlement := ledger.NewSettlementLedger(identity, projects, bank, ledger.SettlementConfig{
		ComponentID:  settlementComponentID,
		Admin:        s.cfg.Admin,
		FeeBps:       s.cfg.FeeBps,
		FeeCollector: s.cfg.FeeCollector,
		MinTip:       s.cfg.MinTip,
	}, s.db, sink, s.logger)

	// The workflow assigns issues and the settlement ledger updates
	// reputation; both act through explicit grants rather than admin rights.
	if err := projects.Grant(s.cfg.Admin, workflowComponentID, ledger.CapIssueAssigner); err != nil {
		return fmt.Errorf("granting issue-assigner: %w", err)
	}
	if err := identity.Grant(s.cfg.Admin, settlementComponentID, ledger.CapReputationUpdater); err != nil {
		return fmt.Errorf("granting reputation-updater: %w", err)
	}

	metrics.RegisterOpenIssues(func() int { return projects.Stats().OpenIssues })

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.HTTPMiddleware)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	identityHandler := handler.NewIdentityHandler(identity)
	projectHandler := handler.NewProjectHandler(projects)
	workflowHandler := handler.NewWorkflowHandler(workflow)
	settlementHandler := handler.NewSettlementHandler(settlement)
	eventsHandler := handler.NewEventsHandler(s.db)
	bankHandler := handler.NewBankHandler(bank, s.cfg.Admin)

	requireCaller, err := s.callerMiddleware()
	if err != nil {
		return err
	}

	s.router.Route("/api", func(r chi.Router) {
		// Public reads.
		r.Get("/profiles", identityHandler.List)
		r.Get("/profiles/top", identityHandler.Top)
		r.Get("/profiles/handle/{handle}", identityHandler.GetByHandle)
		r.Get("/profiles/{owner}", identityHandler.Get)
		r.Get("/profiles/{owner}/issues/active", projectHandler.ContributorActive)
		r.Get("/profiles/{owner}/issues/completed", projectHandler.ContributorCompleted)
		r.Get("/profiles/{owner}/applications", workflowHandler.ByContributor)
		r.Get("/profiles/{owner}/review-queue", workflowHandler.PendingForMaintainer)
		r.Get("/identity/stats", identityHandler.Stats)

		r.Get("/repos", projectHandler.ListRepos)
		r.Get("/repos/lookup", projectHandler.RepoByExternalID)
		r.Get("/repos/{repoID}", projectHandler.GetRepo)
		r.Get("/issues", projectHandler.ListIssues)
		r.Get("/issues/lookup", projectHandler.IssueByExternalID)
		r.Get("/issues/{issueID}", projectHandler.GetIssue)
		r.Get("/issues/{issueID}/applications", workflowHandler.ByIssue)
		r.Get("/issues/{issueID}/applications/top", workflowHandler.TopApplicants)
		r.Get("/issues/{issueID}/tips", settlementHandler.TipsByIssue)
		r.Get("/projects/stats", projectHandler.Stats)

		r.Get("/applications/{appID}", workflowHandler.Get)

		r.Get("/tips/recent", settlementHandler.RecentTips)
		r.Get("/tips/top-tippers", settlementHandler.TopTippers)
		r.Get("/tips/top-earners", settlementHandler.TopEarners)
		r.Get("/parties/{party}/totals", settlementHandler.PartyTotals)
		r.Get("/settlement/stats", settlementHandler.Stats)

		r.Get("/events", eventsHandler.Recent)
		r.Get("/events/count", eventsHandler.Count)
		r.Get("/bank/{account}/balance", bankHandler.Balance)

		// Mutations require an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(requireCaller)

			r.Post("/profiles", identityHandler.Create)
			r.Put("/profiles", identityHandler.Update)
			r.Post("/profiles/{owner}/reputation", identityHandler.SetReputation)
			r.Post("/identity/grants", identityHandler.Grant)
			r.Delete("/identity/grants", identityHandler.Revoke)

			r.Post("/repos", projectHandler.CreateRepo)
			r.Put("/repos/{repoID}", projectHandler.UpdateRepo)
			r.Post("/repos/{repoID}/deactivate", projectHandler.DeactivateRepo)
			r.Post("/repos/{repoID}/reactivate", projectHandler.ReactivateRepo)
			r.Post("/repos/{repoID}/transfer", projectHandler.TransferOwnership)

			r.Post("/issues", projectHandler.CreateIssue)
			r.Put("/issues/{issueID}", projectHandler.UpdateIssue)
			r.Post("/issues/{issueID}/assign", projectHandler.AssignIssue)
			r.Post("/issues/{issueID}/start", projectHandler.StartIssue)
			r.Post("/issues/{issueID}/complete", projectHandler.CompleteIssue)
			r.Post("/issues/{issueID}/close", projectHandler.CloseIssue)
			r.Post("/issues/{issueID}/unassign", projectHandler.UnassignIssue)

			r.Post("/applications", workflowHandler.Apply)
			r.Post("/applications/batch-review", workflowHandler.BatchReview)
			r.Post("/applications/{appID}/accept", workflowHandler.Accept)
			r.Post("/applications/{appID}/reject", workflowHandler.Reject)
			r.Post("/applications/{appID}/withdraw", workflowHandler.Withdraw)

			r.Post("/tips", settlementHandler.Tip)
			r.Post("/tips/batch", settlementHandler.BatchTip)
			r.Post("/tips/issue", settlementHandler.TipIssue)
			r.Post("/tips/split", settlementHandler.SplitTip)

			r.Post("/settlement/fee", settlementHandler.UpdateFee)
			r.Post("/settlement/collector", settlementHandler.UpdateFeeCollector)
			r.Post("/settlement/withdraw", settlementHandler.WithdrawFees)
			r.Post("/settlement/min-tip", settlementHandler.UpdateMinTip)
			r.Post("/settlement/pause", settlementHandler.SetPaused)

			r.Post("/bank/mint", bankHandler.Mint)
		})
	})

	return nil
}

// callerMiddleware returns the auth middleware for mutating routes. Without
// a JWT secret the API runs read-only and every mutation is rejected.
func (s *Server) callerMiddleware() (func(http.Handler) http.Handler, error) {
	if s.cfg.JWTSecret == "" {
		s.logger.Warn("no JWT secret configured, mutations disabled")
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"unauthorized","message":"server is running read-only"}`, http.StatusUnauthorized)
			})
		}, nil
	}
	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	return auth.RequireCaller(tokens), nil
}

// Start runs the server until SIGINT or SIGTERM, then drains in-flight
// requests and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

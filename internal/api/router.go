package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptlab/promptlab/internal/analyzer"
	"github.com/promptlab/promptlab/internal/api/handlers"
	"github.com/promptlab/promptlab/internal/api/middleware"
	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/config"
	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/optimizer"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/store"
	"github.com/promptlab/promptlab/internal/tester"
)

// Deps carries the wired infrastructure the router serves from. DB, Redis
// and Queue are optional; handlers degrade when they are nil.
type Deps struct {
	Store store.Store
	DB    *pgxpool.Pool
	Redis *redis.Client
	Queue *queue.Client
	Cfg   *config.Config
}

type Router struct {
	mux   *chi.Mux
	deps  Deps
	llmGW llm.Gateway
}

func NewRouter(deps Deps) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		deps:  deps,
		llmGW: llm.NewGateway(deps.Cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	cfg := rt.deps.Cfg

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	var summaryCache *cache.Cache
	if rt.deps.Redis != nil {
		summaryCache = cache.NewCache(rt.deps.Redis)
	}

	analyzerSvc := analyzer.New(rt.llmGW, rt.deps.Store, cfg.LLM.AnalysisModel, slog.Default())
	testerSvc := tester.New(rt.llmGW, rt.deps.Store, cfg.LLM.DefaultModel, cfg.LLM.AnalysisModel, slog.Default())
	optimizerSvc := optimizer.New(rt.llmGW, rt.deps.Store, cfg.LLM.AnalysisModel, slog.Default())

	promptH := handlers.NewPromptHandler(rt.deps.Store)
	versionH := handlers.NewVersionHandler(rt.deps.Store, analyzerSvc, summaryCache, rt.deps.Queue)
	analysisH := handlers.NewAnalysisHandler(analyzerSvc)
	testH := handlers.NewTestHandler(rt.deps.Store, testerSvc, summaryCache, rt.deps.Queue)
	optimizeH := handlers.NewOptimizeHandler(optimizerSvc)
	llmH := handlers.NewLLMHandler(rt.llmGW)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.Auth.APIKeyHeader, cfg.Auth.APIKey))

		r.Route("/prompts", func(r chi.Router) {
			r.Post("/", promptH.Create)
			r.Get("/", promptH.List)
			r.Get("/{id}", promptH.Get)
			r.Put("/{id}", promptH.Update)
			r.Delete("/{id}", promptH.Delete)

			r.Post("/{id}/versions", promptH.CreateVersion)
			r.Get("/{id}/versions", promptH.ListVersions)
			r.Get("/{id}/versions/current", promptH.CurrentVersion)

			r.Post("/{id}/test-cases", testH.CreateCase)
			r.Get("/{id}/test-cases", testH.ListCases)
		})

		r.Route("/versions", func(r chi.Router) {
			r.Get("/{id}", versionH.Get)
			r.Post("/{id}/analyses", versionH.Analyze)
			r.Get("/{id}/analyses", versionH.ListAnalyses)
			r.Get("/{id}/summary", versionH.Summary)
			r.Post("/{id}/tests", testH.RunAll)
			r.Get("/{id}/tests", testH.Results)
			r.Get("/{id}/tests/summary", testH.TestSummary)
			r.Get("/{id}/report", testH.Report)
		})

		r.Route("/test-cases", func(r chi.Router) {
			r.Delete("/{id}", testH.DeleteCase)
			r.Post("/{id}/run", testH.RunCase)
		})

		r.Post("/analyze", analysisH.Analyze)
		r.Post("/compare", testH.Compare)
		r.Post("/optimize", optimizeH.Generate)
		r.Post("/optimize/save", optimizeH.SaveVariant)

		r.Route("/llm", func(r chi.Router) {
			r.Post("/chat", llmH.Chat)
			r.Get("/models", llmH.Models)
		})
	})

	return r
}

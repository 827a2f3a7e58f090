/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers and roles to
  routes.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: One zap line per request
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the frontend
  5. Authenticate:  Session cookie or bearer token (under /api, except auth)

ROLE GUARDS:
  Admins pass every guard. Other roles per route:
    submit/edit/resubmit   exec, director, manager, member
    manager queue/decide   exec, director, manager
    director queue         exec, director
    director decide        exec, director, manager
    team listings          exec, director, manager (own team);
                           exec, director (own org)
  The workflow still checks the caller against the entry's approver ids.

ROUTE GROUPS:
  /api/auth/*           Login, logout, current caller
  /api/criteria/*       Catalog
  /api/rewards/*        Entries and attachments
  /api/approvals/*      Approval queues and decisions
  /api/members/*        Members and directory sync
  /api/leaderboards/*   Rankings, stats, export
  /api/consent/*        Consent log
  /api/admin/*          Admin accounts and jobs
  /api/scenarios/*      Demo data (dev only)
  /healthz              Database ping
  /metrics              Prometheus

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/middleware.go: Authenticate and RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/recognition-engine/auth"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/logging"
	"github.com/warp/recognition-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	// Every non-admin role can own entries. Approver ids on the entry decide
	// who may act, so the approval guards only keep members out.
	member := auth.RequireRole(generic.RoleExec, generic.RoleDirector, generic.RoleManager, generic.RoleMember)
	director := auth.RequireRole(generic.RoleExec, generic.RoleDirector)
	approver := auth.RequireRole(generic.RoleExec, generic.RoleDirector, generic.RoleManager)
	admin := auth.RequireAdmin()

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/admin/login", h.AdminLogin)
			r.Post("/login", h.MemberLogin)
			if h.devLogin {
				r.Post("/dev-login/{id}", h.DevLogin)
			}
			r.Post("/logout", h.Logout)
			r.With(auth.Authenticate(h.sessions, h.cookieName)).Get("/me", h.Me)
		})

		// Scenario routes
		if h.devLogin {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(h.sessions, h.cookieName))

			// Catalog routes
			r.Route("/criteria", func(r chi.Router) {
				r.Get("/", h.ListCriteria)
				r.With(member).Get("/mine", h.MyCriteria)
				r.Get("/{track}/{id}", h.GetCriteria)
				r.With(admin).Post("/", h.CreateCriteria)
				r.With(admin).Put("/{track}/{id}", h.UpdateCriteria)
				r.With(admin).Delete("/{track}/{id}", h.DeleteCriteria)
				r.With(admin).Post("/{track}/publish", h.PublishCriteria)
				r.With(admin).Post("/{track}/import", h.ImportCriteria)
			})

			// Entry routes
			r.Route("/rewards", func(r chi.Router) {
				r.With(member).Post("/", h.SubmitEntry)
				r.Get("/mine", h.ListMyEntries)
				r.Get("/{id}", h.GetEntry)
				r.With(member).Put("/{id}", h.UpdateEntry)
				r.With(admin).Delete("/{id}", h.DeleteEntry)
				r.With(admin).Put("/{id}/admin", h.OverrideEntry)
				r.With(member).Post("/{id}/resubmit", h.ResubmitEntry)
				r.Get("/{id}/files", h.DownloadAttachment)
			})

			// Approval routes
			r.Route("/approvals", func(r chi.Router) {
				r.With(approver).Get("/manager", h.ManagerQueue)
				r.With(director).Get("/director", h.DirectorQueue)
				r.With(approver).Get("/declined", h.DeclinedEntries)
				r.With(approver).Put("/manager/{id}", h.Decide(generic.StageManager))
				r.With(approver).Put("/director/{id}", h.Decide(generic.StageDirector))
			})

			// Member routes
			r.Route("/members", func(r chi.Router) {
				r.With(admin).Get("/", h.ListMembers)
				r.With(admin).Post("/sync", h.SyncDirectory)
				r.Get("/{id}", h.GetMember)
				r.With(admin).Delete("/{id}", h.DeactivateMember)
				r.With(approver).Get("/{id}/reports", h.DirectReports)
				r.With(director).Get("/{id}/director-reports", h.DirectorReports)
			})

			// Leaderboard routes
			r.Route("/leaderboards", func(r chi.Router) {
				r.Get("/", h.Leaderboard)
				r.Get("/stats", h.LeaderboardStats)
				r.Get("/top", h.TopByRole)
				r.Get("/me", h.MyLeaderboard)
				r.With(admin).Get("/export", h.ExportLeaderboard)
				r.Get("/alias/{alias}", h.LeaderboardByAlias)
				r.Get("/{id}", h.LeaderboardByEmployee)
			})

			// Consent routes
			r.Route("/consent", func(r chi.Router) {
				r.Get("/", h.GetConsent)
				r.Put("/", h.SaveConsent)
				r.With(admin).Get("/all", h.ListConsents)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(admin)
				r.Post("/users", h.CreateAdmin)
				r.Get("/jobs/sync", h.SyncStatus)
			})
		})
	})

	// Serve static files (SPA build)
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}
	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
			path := filepath.Join(staticDir, filepath.Clean("/"+req.URL.Path))
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, req, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, req)
		})
	}

	return r
}

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/service"
)

// DatabaseChecker reports database health for the /health endpoint.
type DatabaseChecker interface {
	Health(ctx context.Context) error
}

// Router wires the API handlers into a chi mux.
type Router struct {
	authHandler       *AuthHandler
	userHandler       *UserHandler
	groupHandler      *GroupHandler
	invitationHandler *InvitationHandler
	clientHandler     *ClientHandler
	sampleHandler     *SampleHandler
	worksheetHandler  *WorksheetHandler
	authService       *service.AuthService
	db                DatabaseChecker
	metricsPath       string
	logger            zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler       *AuthHandler
	UserHandler       *UserHandler
	GroupHandler      *GroupHandler
	InvitationHandler *InvitationHandler
	ClientHandler     *ClientHandler
	SampleHandler     *SampleHandler
	WorksheetHandler  *WorksheetHandler
	AuthService       *service.AuthService
	DB                DatabaseChecker

	// MetricsPath mounts the Prometheus endpoint when non-empty.
	MetricsPath string

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		authHandler:       config.AuthHandler,
		userHandler:       config.UserHandler,
		groupHandler:      config.GroupHandler,
		invitationHandler: config.InvitationHandler,
		clientHandler:     config.ClientHandler,
		sampleHandler:     config.SampleHandler,
		worksheetHandler:  config.WorksheetHandler,
		authService:       config.AuthService,
		db:                config.DB,
		metricsPath:       config.MetricsPath,
		logger:            config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(rt.logger))
	r.Use(loggingMiddleware(rt.logger))

	r.Get("/health", rt.handleHealth)
	if rt.metricsPath != "" {
		r.Handle(rt.metricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", rt.authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(rt.authService))

			r.Post("/auth/logout", rt.authHandler.Logout)
			r.Get("/auth/sessions", rt.authHandler.Sessions)
			r.Get("/auth/me", rt.authHandler.Me)

			r.Route("/users", func(r chi.Router) {
				r.Get("/online", rt.userHandler.ListOnline)
				r.Post("/ping", rt.userHandler.Ping)
				r.Put("/me/profile", rt.userHandler.UpdateProfile)
				r.Post("/me/setup", rt.userHandler.CompleteSetup)
				r.Post("/me/keys/export", rt.userHandler.ExportPrivateKey)
				r.Post("/me/keys/rotate", rt.userHandler.RotateKeys)
				r.Get("/{userID}", rt.userHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleManager))
					r.Post("/", rt.userHandler.Create)
					r.Get("/", rt.userHandler.List)
					r.Put("/{userID}/role", rt.userHandler.SetRole)
					r.Put("/{userID}/active", rt.userHandler.SetActive)
					r.Delete("/{userID}", rt.userHandler.Delete)
				})
			})

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", rt.groupHandler.Create)
				r.Get("/", rt.groupHandler.List)
				r.Get("/mine", rt.groupHandler.Mine)
				r.Get("/{groupID}", rt.groupHandler.Get)
				r.Get("/{groupID}/members", rt.groupHandler.Members)
				r.Post("/{groupID}/members", rt.groupHandler.AddMember)
				r.Delete("/{groupID}/members/{userID}", rt.groupHandler.RemoveMember)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Post("/", rt.invitationHandler.Invite)
				r.Get("/", rt.invitationHandler.ListPending)
				r.Post("/{invitationID}/accept", rt.invitationHandler.Accept)
				r.Post("/{invitationID}/decline", rt.invitationHandler.Decline)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", rt.clientHandler.List)
				r.Get("/{clientID}", rt.clientHandler.Get)
				r.Get("/{clientID}/stats", rt.clientHandler.Stats)
				r.Get("/{clientID}/projects", rt.clientHandler.ListProjects)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleManager))
					r.Post("/", rt.clientHandler.Create)
					r.Put("/{clientID}", rt.clientHandler.Update)
					r.Post("/{clientID}/toggle", rt.clientHandler.ToggleActive)
					r.Delete("/{clientID}", rt.clientHandler.Delete)
					r.Post("/{clientID}/projects", rt.clientHandler.CreateProject)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/{projectID}", rt.clientHandler.GetProject)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleManager))
					r.Put("/{projectID}/status", rt.clientHandler.SetProjectStatus)
					r.Delete("/{projectID}", rt.clientHandler.DeleteProject)
				})
			})

			r.Route("/batches", func(r chi.Router) {
				r.Get("/", rt.sampleHandler.ListBatches)
				r.Get("/overdue", rt.sampleHandler.ListOverdueBatches)
				r.Get("/number/{batchNumber}", rt.sampleHandler.GetBatchByNumber)
				r.Get("/number/{batchNumber}/report", rt.sampleHandler.OpenReport)
				r.Get("/{batchID}", rt.sampleHandler.GetBatch)
				r.Get("/{batchID}/progress", rt.sampleHandler.BatchProgress)
				r.Get("/{batchID}/samples", rt.sampleHandler.ListBatchSamples)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleManager, domain.RoleTechnician, domain.RoleOperator))
					r.Post("/", rt.sampleHandler.CreateBatch)
					r.Put("/{batchID}/status", rt.sampleHandler.UpdateBatchStatus)
					r.Post("/{batchID}/deliver", rt.sampleHandler.DeliverBatch)
				})
			})

			r.Route("/samples", func(r chi.Router) {
				r.Get("/identifier/{identifier}", rt.sampleHandler.GetSampleByIdentifier)
				r.Get("/barcode/{barcode}", rt.sampleHandler.GetSampleByBarcode)
				r.Get("/{sampleID}", rt.sampleHandler.GetSample)
				r.Get("/{sampleID}/discard-countdown", rt.sampleHandler.DiscardCountdown)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleManager, domain.RoleTechnician, domain.RoleOperator))
					r.Post("/", rt.sampleHandler.RegisterSample)
					r.Put("/{sampleID}/status", rt.sampleHandler.UpdateSampleStatus)
					r.Post("/{sampleID}/verify", rt.sampleHandler.VerifySample)
					r.Post("/{sampleID}/discard", rt.sampleHandler.DiscardSample)
				})
			})

			r.Route("/worksheets", func(r chi.Router) {
				r.Get("/", rt.worksheetHandler.List)
				r.Get("/number/{worksheetNumber}", rt.worksheetHandler.GetByNumber)
				r.Get("/department/{department}", rt.worksheetHandler.ListByDepartment)
				r.Get("/{worksheetID}", rt.worksheetHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleManager, domain.RoleTechnician, domain.RoleOperator))
					r.Post("/", rt.worksheetHandler.Create)
					r.Post("/{worksheetID}/samples", rt.worksheetHandler.AddSample)
					r.Delete("/{worksheetID}/samples/{sampleID}", rt.worksheetHandler.RemoveSample)
					r.Post("/{worksheetID}/technicians", rt.worksheetHandler.AssignTechnician)
					r.Put("/{worksheetID}/status", rt.worksheetHandler.Transition)
				})

				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleManager))
					r.Post("/{worksheetID}/review", rt.worksheetHandler.Review)
				})
			})
		})
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.db != nil {
		if err := rt.db.Health(r.Context()); err != nil {
			rt.logger.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-accounts/internal/config"
	"go-accounts/internal/handler"
	"go-accounts/internal/metrics"
	"go-accounts/internal/middleware"
	"go-accounts/internal/model"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Friends   *handler.FriendHandler
	Audit     *handler.AuditHandler
	Websocket *handler.WebsocketHandler
	Health    *handler.HealthHandler
}

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	m *metrics.Metrics,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Check)
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(middleware.NoStore)
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			auth.With(authMiddleware.RequireAuth).Put("/password", h.Auth.ChangePassword)
		})

		api.Route("/users", func(users chi.Router) {
			users.Get("/{id}/avatar", h.Users.Avatar)
			users.With(authMiddleware.OptionalAuth).Get("/{id}", h.Users.Get)

			users.Group(func(private chi.Router) {
				private.Use(authMiddleware.RequireAuth)
				private.Get("/", h.Users.Search)
				private.Put("/me/avatar", h.Users.UploadAvatar)
				private.Put("/{id}", h.Users.Update)
				private.Patch("/{id}", h.Users.Update)
				private.Delete("/{id}", h.Users.Delete)
			})
		})

		api.Route("/friends", func(friends chi.Router) {
			friends.Use(authMiddleware.RequireAuth)
			friends.Get("/", h.Friends.ListFriends)
			friends.Delete("/{id}", h.Friends.RemoveFriend)
			friends.Post("/requests", h.Friends.SendRequest)
			friends.Put("/requests", h.Friends.Respond)
			friends.Get("/requests", h.Friends.ListRequests)
			friends.Post("/block", h.Friends.Block)
			friends.Get("/block", h.Friends.ListBlocked)
			friends.Delete("/block/{id}", h.Friends.Unblock)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).Get("/audit", h.Audit.List)
		api.Get("/ws", h.Websocket.Connect)
	})

	return r
}

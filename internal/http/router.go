package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Points       *PointHandler
	Claims       *ClaimHandler
	Account      *AccountHandler
	ClaimLimiter *ActorLimiter
	Logger       *slog.Logger
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	requireActor := RequireActor(cfg.Logger)

	actor := func(h http.HandlerFunc) http.Handler {
		return requireActor(h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.ClaimLimiter == nil {
			return requireActor(h)
		}
		return requireActor(cfg.ClaimLimiter.Middleware(cfg.Logger)(h))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Points != nil {
		mux.Handle("POST /points", actor(cfg.Points.Create))
		mux.Handle("GET /points", actor(cfg.Points.List))
		mux.Handle("GET /points/available", actor(cfg.Points.Available))
		mux.Handle("GET /points/{id}", actor(cfg.Points.Get))
		mux.Handle("DELETE /points/{id}", actor(cfg.Points.Delete))
		mux.Handle("POST /points/{id}/archive", actor(cfg.Points.Archive))
	}

	if cfg.Claims != nil {
		mux.Handle("POST /claims", limited(cfg.Claims.Create))
		mux.Handle("GET /claims", actor(cfg.Claims.List))
		mux.Handle("POST /claims/archive", actor(cfg.Claims.Archive))
		mux.Handle("GET /claims/{id}", actor(cfg.Claims.Get))
		mux.Handle("POST /claims/{id}/cancel", limited(cfg.Claims.Cancel))
		mux.Handle("POST /claims/{id}/complete", limited(cfg.Claims.Complete))
	}

	if cfg.Account != nil {
		mux.Handle("GET /stats/recycler", actor(cfg.Account.RecyclerStats))
		mux.Handle("PUT /profile", actor(cfg.Account.UpsertProfile))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

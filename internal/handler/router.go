package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lbertin/causerie/internal/config"
	"github.com/lbertin/causerie/internal/handler/ws"
	"github.com/lbertin/causerie/internal/service/router"
	"github.com/lbertin/causerie/pkg/utils"
)

// NewRouter wires HTTP routes to the chat core.
func NewRouter(rt *router.Router, hub *ws.Hub, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"connections": hub.Len(),
		})
	})

	wsHandler := ws.New(rt, hub, cfg)
	wsHandler.RegisterRoutes(r)

	return r
}

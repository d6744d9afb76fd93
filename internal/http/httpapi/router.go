package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yiyebaofu0518/typix/internal/http/handlers"
	"github.com/yiyebaofu0518/typix/internal/middleware"
)

// NewRouter wires the API routes. Chat operations are rpc-style POSTs to
// match the service contract; files are plain GETs.
func NewRouter(app *handlers.App, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.I18N("en"))
	r.Use(middleware.UserContext)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/chats", func(r chi.Router) {
		r.Post("/getChats", app.GetChats)
		r.Post("/createChat", app.CreateChat)
		r.Post("/getChatById", app.GetChatByID)
		r.Post("/updateChat", app.UpdateChat)
		r.Post("/deleteChat", app.DeleteChat)
		r.Post("/createMessage", app.CreateMessage)
		r.Post("/getGenerationStatus", app.GenerationStatus)
	})

	r.Route("/v1/ai", func(r chi.Router) {
		r.Post("/getProviders", app.GetProviders)
		r.Post("/getAiProvider", app.GetAiProvider)
		r.Post("/updateAiProvider", app.UpdateAiProvider)
		r.Post("/no-auth/{providerId}/generate", app.RelayGenerate)
	})

	r.Get("/v1/files/{id}", app.GetFile)

	return r
}

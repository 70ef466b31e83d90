package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/chats", func(r chi.Router) {
		r.Post("/", h.CreateChat)
		r.Get("/", h.ListChats)
		r.Get("/{chatId}", h.GetChat)
		r.Delete("/{chatId}", h.DeleteChat)
		r.Post("/{chatId}/messages", h.SendMessage)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/verify-email", h.VerifyEmail)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Get("/magic-link-status", h.MagicLinkStatus)
		r.Post("/magic-link/{sessionId}/confirm", h.ConfirmMagicLink)
		r.Post("/signup", h.SignUp)
	})

	return r
}

func middlewareRequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("Handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

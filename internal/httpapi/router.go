// Package httpapi exposes the chat webhooks, the M-Pesa callbacks and the
// admin API over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/amishk599/ajirawise/internal/auth"
	"github.com/amishk599/ajirawise/internal/cache"
	"github.com/amishk599/ajirawise/internal/engine"
	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/payment"
	"github.com/amishk599/ajirawise/internal/scheduler"
)

// Deps are the collaborators behind the HTTP surface. Payments nil leaves
// the M-Pesa routes unmounted, JWT nil leaves the admin API unmounted, and
// Dedup nil disables inbound deduplication.
type Deps struct {
	Service   *engine.Service
	Payments  *payment.Service
	Scheduler *scheduler.Scheduler
	Repo      model.Repository
	Dedup     cache.Deduper
	JWT       *auth.JWT

	AdminUser         string
	AdminPasswordHash string
	TelegramSecret    string
	CORSOrigins       []string

	Logger *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	wh := &webhookHandler{svc: d.Service, dedup: d.Dedup, secret: d.TelegramSecret, logger: d.Logger}
	r.Post("/webhooks/whatsapp", wh.WhatsApp)
	r.Post("/webhooks/telegram", wh.Telegram)

	if d.Payments != nil {
		mh := &mpesaHandler{payments: d.Payments, logger: d.Logger}
		r.Post("/mpesa/validation", mh.Validation)
		r.Post("/mpesa/confirmation", mh.Confirmation)
	}

	if d.JWT != nil {
		ah := &adminHandler{
			repo:      d.Repo,
			scheduler: d.Scheduler,
			jwt:       d.JWT,
			user:      d.AdminUser,
			hash:      d.AdminPasswordHash,
			logger:    d.Logger,
		}
		r.Route("/admin", func(r chi.Router) {
			if len(d.CORSOrigins) > 0 {
				r.Use(CORS(d.CORSOrigins))
			}
			r.Post("/login", ah.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(d.JWT))
				r.Post("/run-alerts", ah.RunAlerts)
				r.Post("/broadcast", ah.Broadcast)
				r.Get("/users/{channelID}", ah.User)
				r.Get("/stats", ah.Stats)
			})
		})
	}

	return r
}

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amishk599/ajirawise/internal/auth"
	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/scheduler"
)

type adminHandler struct {
	repo      model.Repository
	scheduler *scheduler.Scheduler
	jwt       *auth.JWT
	user      string
	hash      string
	logger    *slog.Logger
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *adminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	if req.Username != h.user || auth.ComparePassword(h.hash, req.Password) != nil {
		h.logger.Warn("admin login failed", "username", req.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.jwt.Sign(req.Username)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

type summaryResp struct {
	Users   int  `json:"users"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
}

func toSummaryResp(s scheduler.Summary) summaryResp {
	return summaryResp{Users: s.Users, Sent: s.Sent, Failed: s.Failed, Skipped: s.Skipped}
}

func (h *adminHandler) RunAlerts(w http.ResponseWriter, r *http.Request) {
	sum, err := h.scheduler.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("admin alert run failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResp(sum))
}

type broadcastReq struct {
	Interest string `json:"interest"`
}

func (h *adminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	sum, err := h.scheduler.Broadcast(r.Context(), req.Interest)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("admin broadcast failed", "interest", req.Interest, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResp(sum))
}

type userResp struct {
	ChannelID   string    `json:"channel_id"`
	Interest    string    `json:"interest"`
	Balance     int       `json:"balance"`
	PendingMenu string    `json:"pending_menu"`
	Stage       string    `json:"stage"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (h *adminHandler) User(w http.ResponseWriter, r *http.Request) {
	channelID, err := url.PathUnescape(chi.URLParam(r, "channelID"))
	if err != nil || channelID == "" {
		http.Error(w, "bad channel id", http.StatusBadRequest)
		return
	}

	u, err := h.repo.GetUser(r.Context(), channelID)
	if errors.Is(err, model.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("admin user lookup failed", "channel", channelID, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, userResp{
		ChannelID:   u.ChannelID,
		Interest:    u.Interest,
		Balance:     u.Balance,
		PendingMenu: string(u.PendingMenu),
		Stage:       string(model.StageOf(&u)),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	})
}

func (h *adminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Stats(r.Context())
	if err != nil {
		h.logger.Error("admin stats failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"users":           s.Users,
		"funded_users":    s.FundedUsers,
		"jobs_sent":       s.JobsSent,
		"payments":        s.Payments,
		"advisory_logged": s.AdvisoryLogged,
	})
}

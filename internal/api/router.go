// Package api exposes the download engine over HTTP for remote control of a
// running daemon.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanash-dl/hanash/internal/core"
)

// NewRouter builds the daemon API. Every route requires the bearer token.
func NewRouter(svc core.DownloadService, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(auth(token))

	r.Get("/list", func(w http.ResponseWriter, req *http.Request) {
		items, err := svc.List()
		respond(w, items, err)
	})

	r.Get("/item", func(w http.ResponseWriter, req *http.Request) {
		id, err := queryID(req)
		if err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		item, err := svc.Get(id)
		respond(w, item, err)
	})

	r.Get("/history", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		entries, err := svc.History(limit)
		respond(w, entries, err)
	})

	r.Post("/add", func(w http.ResponseWriter, req *http.Request) {
		var addReq core.AddRequest
		if err := json.NewDecoder(req.Body).Decode(&addReq); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		item, err := svc.Add(addReq)
		respond(w, item, err)
	})

	r.Post("/start", idAction(svc.Start))
	r.Post("/pause", idAction(svc.Pause))
	r.Post("/resume", idAction(svc.Resume))
	r.Post("/cancel", idAction(svc.Cancel))
	r.Delete("/item", idAction(svc.Delete))

	r.Post("/stop-all", func(w http.ResponseWriter, req *http.Request) {
		respond(w, map[string]string{"status": "ok"}, svc.StopAll())
	})
	r.Post("/resume-all", func(w http.ResponseWriter, req *http.Request) {
		respond(w, map[string]string{"status": "ok"}, svc.ResumeAll())
	})

	r.Post("/speed-limit", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			KBPerSec int64 `json:"speed_limit"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		respond(w, map[string]string{"status": "ok"}, svc.SetSpeedLimit(body.KBPerSec))
	})

	return r
}

func auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func idAction(fn func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := queryID(req)
		if err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		respond(w, map[string]string{"status": "ok"}, fn(id))
	}
}

func queryID(req *http.Request) (int, error) {
	return strconv.Atoi(req.URL.Query().Get("id"))
}

func respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

package authtest

import (
	"net/http"

	"github.com/gorilla/mux"
)

type RevokeRequest struct {
	Token string `json:"token"`
}

type RefreshFailureRequest struct {
	Status int `json:"status"`
}

type Stats struct {
	RefreshCalls     int `json:"refreshCalls"`
	ExpiredResponses int `json:"expiredResponses"`
	Requests         int `json:"requests"`
}

// ControlHandler exposes the control methods over HTTP for tests that run
// the API in another process:
//
//	POST /expire            ExpireAccessTokens
//	POST /revoke            Revoke {"token": "..."}
//	POST /refresh-failure   FailRefresh {"status": 503}, 0 restores
//	GET  /stats             call counters
func (a *API) ControlHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/expire", func(w http.ResponseWriter, r *http.Request) {
		a.ExpireAccessTokens()
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)
	r.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		var req RevokeRequest
		if ok := decodeRequest(&req, w, r); !ok {
			return
		}
		a.Revoke(req.Token)
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)
	r.HandleFunc("/refresh-failure", func(w http.ResponseWriter, r *http.Request) {
		var req RefreshFailureRequest
		if ok := decodeRequest(&req, w, r); !ok {
			return
		}
		a.FailRefresh(req.Status)
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)
	r.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		returnJson(a.Stats(), w)
	}).Methods(http.MethodGet)
	return r
}

func (a *API) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		RefreshCalls:     a.refreshes,
		ExpiredResponses: a.expiries,
		Requests:         len(a.requests),
	}
}

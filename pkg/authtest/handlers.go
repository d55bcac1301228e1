package authtest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Error codes the API answers 401 with.
const (
	CodeTokenExpired       = "token.expired"
	CodeTokenInvalid       = "token.invalid"
	CodeInvalidCredentials = "credentials.invalid"
	CodeRefreshFailed      = "refresh.failed"
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Permissions  []string `json:"permissions"`
	Roles        []string `json:"roles"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// EchoResponse describes the authorized request the echo endpoint saw.
type EchoResponse struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	RequestID string `json:"requestId"`
}

// Router serves:
//
//	POST /sessions        sign in with email and password
//	POST /refresh         exchange a refresh token for a new pair
//	GET  /me              the signed-in user
//	*    /echo            any authorized request, echoed back
//	*    /status/{code}   an unauthenticated response with that status
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(a.record)
	r.HandleFunc("/sessions", a.signIn).Methods(http.MethodPost)
	r.HandleFunc("/refresh", a.refreshTokens).Methods(http.MethodPost)
	r.HandleFunc("/me", a.me).Methods(http.MethodGet)
	r.HandleFunc("/echo", a.echo)
	r.HandleFunc("/status/{code:[0-9]{3}}", a.status)
	return r
}

func (a *API) signIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if ok := decodeRequest(&req, w, r); !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	acct, ok := a.accounts[req.Email]
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		a.log.Printf("%s %s: password check failed for %s\n", r.Method, r.RequestURI, req.Email)
		returnError(w, http.StatusUnauthorized, CodeInvalidCredentials, "email or password incorrect")
		return
	}

	pair, err := a.issuePairLocked(req.Email)
	if err != nil {
		returnError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	returnJson(SignInResponse{
		Token:        pair.Access,
		RefreshToken: pair.Refresh,
		Permissions:  acct.user.Permissions,
		Roles:        acct.user.Roles,
	}, w)
}

func (a *API) refreshTokens(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if ok := decodeRequest(&req, w, r); !ok {
		return
	}

	a.mu.Lock()
	a.refreshes++
	hold := a.refreshHold
	a.mu.Unlock()
	if hold != nil {
		<-hold
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.refreshFail != 0 {
		returnError(w, a.refreshFail, CodeRefreshFailed, "refresh rejected")
		return
	}

	// refresh tokens are single use
	email, ok := a.refresh[req.RefreshToken]
	if !ok {
		a.log.Printf("%s %s: unknown refresh token %s\n", r.Method, r.RequestURI, tokens.Prefix(req.RefreshToken))
		returnError(w, http.StatusUnauthorized, CodeTokenInvalid, "unknown refresh token")
		return
	}
	delete(a.refresh, req.RefreshToken)

	pair, err := a.issuePairLocked(email)
	if err != nil {
		returnError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	returnJson(pair, w)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	email, ok := a.authorize(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	acct, found := a.accounts[email]
	a.mu.Unlock()
	if !found {
		returnError(w, http.StatusUnauthorized, CodeTokenInvalid, "unknown user")
		return
	}
	returnJson(acct.user, w)
}

func (a *API) echo(w http.ResponseWriter, r *http.Request) {
	email, ok := a.authorize(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	returnJson(EchoResponse{
		Method:    r.Method,
		Path:      r.URL.Path,
		Subject:   email,
		Body:      string(body),
		RequestID: r.Header.Get("X-Request-Id"),
	}, w)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(mux.Vars(r)["code"])
	if err != nil || code < 100 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	returnError(w, code, "status."+strconv.Itoa(code), http.StatusText(code))
}

// authorize answers 401 for anything but a live access token and returns
// the token's subject otherwise.
func (a *API) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	access, found := strings.CutPrefix(header, "Bearer ")
	if !found || access == "" {
		returnError(w, http.StatusUnauthorized, CodeTokenInvalid, "missing bearer token")
		return "", false
	}

	a.mu.Lock()
	revoked := a.revoked[access]
	expired := a.expired[access]
	a.mu.Unlock()

	if revoked {
		returnError(w, http.StatusUnauthorized, CodeTokenInvalid, "token revoked")
		return "", false
	}

	token, err := a.server.Verify(access)
	if expired || errors.Is(err, tokens.ErrTokenExpired) {
		a.mu.Lock()
		a.expiries++
		a.mu.Unlock()
		returnError(w, http.StatusUnauthorized, CodeTokenExpired, "access token expired")
		return "", false
	}
	if err != nil {
		returnError(w, http.StatusUnauthorized, CodeTokenInvalid, err.Error())
		return "", false
	}
	return token.Subject(), true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		a.log.Printf("%s %s: %d\n", r.Method, r.RequestURI, rec.status)
		a.mu.Lock()
		a.requests = append(a.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-Id"),
			Status:        rec.status,
		})
		a.mu.Unlock()
	})
}

func decodeRequest[T any](req *T, w http.ResponseWriter, r *http.Request) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		returnError(w, http.StatusBadRequest, "", "bad json request")
		return false
	}
	return true
}

func returnJson(data any, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func returnError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}

// Package web is a small server-rendered app that signs users in against the
// API and keeps their tokens in cookies. Every request builds its own client
// around a cookie store, so a refresh during one page load rewrites that
// browser's cookies.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/session"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"github.com/gorilla/mux"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	serverErrorHTML = `<!DOCTYPE html><html><body><h1>Something went wrong</h1></body></html>`
	badRequestHTML  = `<!DOCTYPE html><html><body><h1>Bad request</h1></body></html>`
)

type Options struct {
	// APIURL is the base URL of the API users sign in to.
	APIURL  string
	Cookies store.CookieOptions
	Logger  *log.Logger
	// LogLevel applies to the per-request clients.
	LogLevel client.LogLevel
	// Transport is handed to every client. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

type App struct {
	opts      Options
	log       *log.Logger
	templates *template.Template
}

func New(opts Options) (*App, error) {
	if opts.APIURL == "" {
		return nil, errors.New("web: api url required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &App{opts: opts, log: opts.Logger, templates: templates}, nil
}

func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", session.GuestOnly(session.DefaultSignedInRoute, http.HandlerFunc(app.signIn))).
		Methods(http.MethodGet, http.MethodPost)
	r.Handle(session.DefaultSignedInRoute, session.SignedInOnly(session.DefaultSignedOutRoute, http.HandlerFunc(app.dashboard))).
		Methods(http.MethodGet)
	r.HandleFunc("/signout", app.signOut).Methods(http.MethodPost)
	return r
}

type signInModel struct {
	Email string
	Error string
}

type dashboardModel struct {
	User session.User
}

func (app *App) signIn(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		app.render(w, r, "signin.html", signInModel{})
		return
	}

	if err := r.ParseForm(); err != nil {
		app.logErr(r, "couldn't parse form: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(badRequestHTML))
		return
	}
	creds := session.Credentials{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}

	sess, err := app.session(r.Context(), w, r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	// on success the session redirects to the dashboard
	_, err = sess.SignIn(r.Context(), creds)
	switch {
	case err == nil:
	case errors.Is(err, client.ErrInvalidCredentials):
		w.WriteHeader(http.StatusUnauthorized)
		app.render(w, r, "signin.html", signInModel{
			Email: creds.Email,
			Error: "Invalid e-mail or password.",
		})
	default:
		app.logErr(r, "sign in failed: %v", err)
		w.WriteHeader(http.StatusBadGateway)
		app.render(w, r, "signin.html", signInModel{
			Email: creds.Email,
			Error: "Couldn't reach the server, try again.",
		})
	}
}

func (app *App) dashboard(w http.ResponseWriter, r *http.Request) {
	sess, err := app.session(r.Context(), w, r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	user, err := sess.Restore(r.Context())
	if errors.Is(err, client.ErrNotSignedIn) {
		http.Redirect(w, r, session.DefaultSignedOutRoute, http.StatusSeeOther)
		return
	}
	if err != nil {
		// the session signed out and redirected already
		app.logErr(r, "%v", err)
		return
	}

	app.render(w, r, "dashboard.html", dashboardModel{User: user})
}

func (app *App) signOut(w http.ResponseWriter, r *http.Request) {
	sess, err := app.session(r.Context(), w, r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	sess.SignOut(r.Context())
}

func (app *App) session(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
) (*session.Session, error) {
	c, err := client.New(ctx, client.Config{
		BaseURL:   app.opts.APIURL,
		Store:     store.NewCookie(w, r, app.opts.Cookies),
		Navigator: client.RedirectNavigator(w, r),
		Transport: app.opts.Transport,
		LogLevel:  app.opts.LogLevel,
		Logger:    app.log,
	})
	if err != nil {
		return nil, err
	}
	return session.New(c, session.Config{}), nil
}

func (app *App) render(w http.ResponseWriter, r *http.Request, name string, model any) {
	if err := app.templates.ExecuteTemplate(w, name, model); err != nil {
		app.logErr(r, "couldn't render template %s: %v", name, err)
	}
}

func (app *App) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logErr(r, "%v", err)
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(serverErrorHTML))
}

func (app *App) logErr(r *http.Request, format string, args ...any) {
	args = append([]any{r.Method, r.URL.Path}, args...)
	app.log.Printf("web: %s %s: "+format+"\n", args...)
}

// Package httpapi is the HTTP surface of the Civica authorization engine.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"civica.org/internal/accesslog"
	"civica.org/internal/config"
	"civica.org/internal/identity"
	"civica.org/internal/limiter"
	"civica.org/internal/notify"
	"civica.org/internal/obs"
	"civica.org/internal/project"
	"civica.org/internal/session"
	"civica.org/internal/token"
)

// ReadyProbe reports whether downstream dependencies answer.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries everything the HTTP layer needs. All fields are required
// unless noted.
type Deps struct {
	Identities identity.Store
	Projects   project.Store
	Members    project.MembershipStore
	Content    project.ContentStore
	Roles      *project.Service
	Tokens     *token.Service
	Sessions   *session.Manager
	Limiter    *limiter.Limiter
	Recorder   *accesslog.Recorder
	// Notifier is optional; a nil dispatcher drops notifications.
	Notifier *notify.Dispatcher
	Config   *config.Config
	Logger   zerolog.Logger

	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP layer.
type API struct {
	mux *http.ServeMux
	d   Deps
}

func New(d Deps) *API {
	a := &API{
		mux: http.NewServeMux(),
		d:   d,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication and validation workflows
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/password-reset", a.handlePasswordResetRequest)
	a.mux.HandleFunc("/v1/auth/password-reset/confirm", a.handlePasswordResetConfirm)
	a.mux.HandleFunc("/v1/tokens/confirm", a.handleTokenConfirm)

	// accounts
	a.mux.HandleFunc("/v1/accounts", a.handleAccountsCollection)
	a.mux.HandleFunc("/v1/accounts/", a.handleAccountResource)

	// projects, memberships, content
	a.mux.HandleFunc("/v1/projects", a.handleProjectsCollection)
	a.mux.HandleFunc("/v1/projects/", a.handleProjectResource)
	a.mux.HandleFunc("/v1/members/", a.handleMemberResource)
	a.mux.HandleFunc("/v1/content", a.handleContentCollection)
	a.mux.HandleFunc("/v1/content/", a.handleContentResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withSession(h)
	h = SecurityHeaders(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = Logging(a.d.Logger, h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "civica-api",
		"version": a.d.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.d.ReadyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "civica-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.d.Version,
	})
}

// notifyEffects turns membership effects into outbound notifications.
// Recipients are resolved here so the role model never touches identities.
func (a *API) notifyEffects(ctx context.Context, effects []project.Effect) {
	if a.d.Notifier == nil || len(effects) == 0 {
		return
	}
	for _, e := range effects {
		id, err := a.d.Identities.FindByID(ctx, e.IdentityID)
		if err != nil {
			a.d.Logger.Warn().Err(err).Str("identity_id", e.IdentityID).Msg("notification recipient lookup failed")
			continue
		}
		var tpl notify.Template
		switch e.Kind {
		case project.EffectNotifyRoleChanged:
			tpl = notify.TemplateRoleChanged
		case project.EffectNotifyRemoved:
			tpl = notify.TemplateMemberRemoved
		case project.EffectNotifyApplicationGranted:
			tpl = notify.TemplateApplicationGranted
		default:
			continue
		}
		payload := map[string]string{"project_id": e.ProjectID}
		for k, v := range e.Payload {
			payload[k] = v
		}
		a.d.Notifier.Enqueue(notify.Message{
			Template:  tpl,
			Recipient: id.Email,
			Payload:   payload,
		})
	}
}

package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AlibekovAA/crypt-ledger/internal/account/domain"
	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
	commonhttp "github.com/AlibekovAA/crypt-ledger/internal/common/http"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
	"github.com/AlibekovAA/crypt-ledger/internal/reward"
	"github.com/AlibekovAA/crypt-ledger/internal/web/session"
)

type Accounts interface {
	Login(ctx context.Context, username, secret string) (domain.Account, error)
	ProfileByID(ctx context.Context, id domain.ID) (domain.Profile, error)
}

type Rewards interface {
	IssueChallenge(ctx context.Context, s reward.Session) (reward.Challenge, error)
	CurrentChallenge(ctx context.Context, s reward.Session) (reward.Challenge, error)
	Claim(ctx context.Context, s reward.Session, submitted string) (reward.ClaimResult, error)
}

type Handler struct {
	accounts  Accounts
	rewards   Rewards
	sessions  *session.Store
	templates *template.Template
	log       *logger.Logger
}

type loginForm struct {
	Username string `validate:"required,min=2,max=10"`
	Password string `validate:"required,max=72"`
}

func NewHandler(accounts Accounts, rewards Rewards, sessions *session.Store, requestTimeout time.Duration, log *logger.Logger) (http.Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	if requestTimeout <= 0 {
		requestTimeout = constants.DefaultRequestTimeout
	}

	h := &Handler{
		accounts:  accounts,
		rewards:   rewards,
		sessions:  sessions,
		templates: templates,
		log:       log,
	}

	timeout := commonhttp.WithTimeout(requestTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/", commonhttp.RequireMethod(http.MethodGet)(h.index))
	mux.HandleFunc("/login", commonhttp.RequireMethod(http.MethodPost)(timeout(h.login)))
	mux.HandleFunc("/daily", commonhttp.RequireMethod(http.MethodGet, http.MethodPost)(timeout(h.daily)))
	mux.HandleFunc("/profile", commonhttp.RequireMethod(http.MethodGet)(timeout(h.profile)))
	mux.HandleFunc("/logout", commonhttp.RequireMethod(http.MethodGet, http.MethodPost)(h.logout))

	return mux, nil
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if sess, ok := h.sessions.Load(r); ok {
		if _, ok := sess.AccountID(); ok {
			http.Redirect(w, r, "/daily", http.StatusSeeOther)
			return
		}
	}
	h.render(w, r, http.StatusOK, "login.html", loginView{Title: "Log in"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login.html", loginView{Title: "Log in", Error: "Invalid form submission."})
		return
	}

	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	view := loginView{Title: "Log in", Username: form.Username}

	fields, err := commonhttp.ValidateStruct(form)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if len(fields) > 0 {
		h.log.WithFields(ctx, logger.Fields{
			"fields": fields,
			"action": "web_login_invalid_form",
		}).Debug("login form rejected")
		view.Error = commonerrors.ErrInvalidCredentials.Message()
		h.render(w, r, http.StatusBadRequest, "login.html", view)
		return
	}

	account, err := h.accounts.Login(ctx, form.Username, form.Password)
	if err != nil {
		if errors.Is(err, commonerrors.ErrInvalidCredentials) {
			view.Error = commonerrors.ErrInvalidCredentials.Message()
			h.render(w, r, http.StatusUnauthorized, "login.html", view)
			return
		}
		h.renderError(w, r, err)
		return
	}

	if old, ok := h.sessions.Load(r); ok {
		h.sessions.Destroy(w, old)
	}
	sess, err := h.sessions.Start(w)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	sess.SetAccount(account.ID)

	h.log.WithFields(ctx, logger.Fields{
		"account_id": string(account.ID),
		"action":     "web_login_success",
	}).Info("web login success")
	http.Redirect(w, r, "/daily", http.StatusSeeOther)
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	sess, accountID, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	profile, err := h.accounts.ProfileByID(ctx, accountID)
	if err != nil {
		h.handleAccountError(w, r, sess, err)
		return
	}
	view := dailyView{Title: "Daily reward", Username: profile.Username}

	if r.Method == http.MethodGet {
		challenge, err := h.rewards.IssueChallenge(ctx, sess)
		if err != nil {
			h.handleAccountError(w, r, sess, err)
			return
		}
		view.Captcha = challenge.Code
		h.render(w, r, http.StatusOK, "daily.html", view)
		return
	}

	if err := r.ParseForm(); err != nil {
		view.Error = "Invalid form submission."
		h.render(w, r, http.StatusBadRequest, "daily.html", view)
		return
	}

	result, err := h.rewards.Claim(ctx, sess, r.PostFormValue("captchaInput"))
	switch {
	case err == nil:
		view.Success = result.SuccessMessage()
		if challenge, cErr := h.rewards.CurrentChallenge(ctx, sess); cErr == nil {
			view.Captcha = challenge.Code
		}
		h.render(w, r, http.StatusOK, "daily.html", view)
	case errors.Is(err, commonerrors.ErrClaimOnCooldown):
		view.Error = result.Reason
		view.Remaining = formatRemaining(result.Remaining)
		view.Captcha = result.Challenge
		if view.Captcha == "" {
			if challenge, cErr := h.rewards.CurrentChallenge(ctx, sess); cErr == nil {
				view.Captcha = challenge.Code
			}
		}
		h.render(w, r, http.StatusTooManyRequests, "daily.html", view)
	case errors.Is(err, commonerrors.ErrChallengeFailed):
		view.Error = result.Reason
		view.Captcha = result.Challenge
		h.render(w, r, http.StatusBadRequest, "daily.html", view)
	default:
		h.handleAccountError(w, r, sess, err)
	}
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	sess, accountID, ok := h.authenticated(w, r)
	if !ok {
		return
	}

	profile, err := h.accounts.ProfileByID(r.Context(), accountID)
	if err != nil {
		h.handleAccountError(w, r, sess, err)
		return
	}

	h.render(w, r, http.StatusOK, "profile.html", profileView{
		Title:    "Profile",
		Username: profile.Username,
		Balance:  profile.Balance,
		Days:     profile.DaysSinceCreation,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.sessions.Load(r)
	h.sessions.Destroy(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// authenticated redirects to the login page unless the session holds an account.
func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request) (*session.Session, domain.ID, bool) {
	sess, ok := h.sessions.Load(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, "", false
	}
	accountID, ok := sess.AccountID()
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, "", false
	}
	return sess, accountID, true
}

func (h *Handler) handleAccountError(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if errors.Is(err, commonerrors.ErrNotAuthenticated) || errors.Is(err, commonerrors.ErrAccountNotFound) {
		h.sessions.Destroy(w, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderError(w, r, err)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WithFields(r.Context(), logger.Fields{
		"path":   r.URL.Path,
		"error":  err.Error(),
		"action": "web_request_failed",
	}).Errorf("web request failed: %v", err)
	h.render(w, r, http.StatusInternalServerError, "error.html", errorView{
		Title: "Error",
		Error: commonerrors.ErrInternalError.Message(),
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"template": name,
			"action":   "web_render_failed",
		}).Errorf("template render failed: %v", err)
	}
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Minute)
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours == 0 {
		return pluralize(minutes, "minute")
	}
	return pluralize(hours, "hour") + " " + pluralize(minutes, "minute")
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

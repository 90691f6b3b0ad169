package main

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/logging"
	"github.com/matthewjhunter/healthtips/internal/session"
	"github.com/microcosm-cc/bluemonday"
)

const (
	msgInvalidLogin = "Invalid email or password"
	msgTipNotFound  = "Recommendation not found"
)

// handlers holds dependencies for all HTTP handler methods.
type handlers struct {
	engine   *healthtips.Engine
	sessions *session.Manager
	pages    map[string]*template.Template // per-page template sets
	policy   *bluemonday.Policy
	validate *validator.Validate
}

// newHandlers parses templates and builds the sanitizer and form validator.
// Each page gets its own template tree: base.html + page template, so every
// page can define its own "content" block.
func newHandlers(engine *healthtips.Engine, sessions *session.Manager) *handlers {
	tmplFS, _ := fs.Sub(embedded, "templates")

	pages := []string{
		"index.html",
		"search_results.html",
		"register.html",
		"login.html",
		"recommendations.html",
		"view_recommendation.html",
		"update_preferences.html",
	}

	h := &handlers{
		engine:   engine,
		sessions: sessions,
		pages:    make(map[string]*template.Template, len(pages)),
		policy:   bluemonday.UGCPolicy(),
		validate: newValidator(),
	}
	for _, page := range pages {
		h.pages[page] = template.Must(template.New("").ParseFS(tmplFS, "base.html", page))
	}
	return h
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// --- Form types ---

// Form fields are pointers so "required" checks presence only: a field sent
// with an empty value passes, an absent one does not.
type registerForm struct {
	Username    *string `validate:"required"`
	Email       *string `validate:"required"`
	Password    *string `validate:"required"`
	Preferences []string
}

type loginForm struct {
	Email    *string `validate:"required"`
	Password *string `validate:"required"`
}

// formField returns nil when key was not posted.
func formField(r *http.Request, key string) *string {
	if !r.PostForm.Has(key) {
		return nil
	}
	v := r.PostForm.Get(key)
	return &v
}

// --- Template data types ---

// page carries the fields base.html needs on every page.
type page struct {
	Title     string
	UserEmail string
}

type tipRow struct {
	ID       int
	Title    string
	Category string
	Body     template.HTML
}

type categoryOption struct {
	Name    string
	Checked bool
}

type searchData struct {
	page
	Query   string
	Results []tipRow
}

type registerData struct {
	page
	Categories []categoryOption
}

type recommendationsData struct {
	page
	Preferences     []string
	Recommendations []tipRow
}

type tipData struct {
	page
	Tip tipRow
}

type preferencesData struct {
	page
	Categories []categoryOption
}

// --- Helper methods ---

func (h *handlers) newPage(r *http.Request, title string) page {
	email, _ := session.UserFromContext(r.Context())
	return page{Title: title, UserEmail: email}
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	t, ok := h.pages[name]
	if !ok {
		logging.Ctx(r.Context()).Error().Str("template", name).Msg("unknown page template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("template error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// plainText writes msg as the exact response body.
func plainText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}

func (h *handlers) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logging.Ctx(r.Context()).Error().Err(err).Msg(msg)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// badForm reports the first missing field of a validation error as a 400.
func badForm(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		http.Error(w, "Missing field: "+strings.ToLower(verrs[0].Field()), http.StatusBadRequest)
		return
	}
	http.Error(w, "Bad Request", http.StatusBadRequest)
}

func (h *handlers) tipRows(tips []healthtips.HealthTip) []tipRow {
	rows := make([]tipRow, len(tips))
	for i, t := range tips {
		rows[i] = h.tipRow(t)
	}
	return rows
}

func (h *handlers) tipRow(t healthtips.HealthTip) tipRow {
	return tipRow{
		ID:       t.ID,
		Title:    t.Title,
		Category: t.Category,
		Body:     template.HTML(h.policy.Sanitize(t.Body)), //nolint:gosec // sanitized by bluemonday
	}
}

func categoryOptions(checked []string) []categoryOption {
	set := make(map[string]bool, len(checked))
	for _, c := range checked {
		set[c] = true
	}
	opts := make([]categoryOption, len(healthtips.Categories))
	for i, c := range healthtips.Categories {
		opts[i] = categoryOption{Name: c, Checked: set[c]}
	}
	return opts
}

// --- Page handlers ---

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "index.html", h.newPage(r, "Health Tips"))
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	h.render(w, r, "search_results.html", searchData{
		page:    h.newPage(r, "Search"),
		Query:   query,
		Results: h.tipRows(h.engine.Search(query)),
	})
}

func (h *handlers) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", registerData{
		page:       h.newPage(r, "Register"),
		Categories: categoryOptions(nil),
	})
}

func (h *handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	form := registerForm{
		Username:    formField(r, "username"),
		Email:       formField(r, "email"),
		Password:    formField(r, "password"),
		Preferences: r.PostForm["preferences"],
	}
	if err := h.validate.Struct(form); err != nil {
		badForm(w, err)
		return
	}

	email := *form.Email
	if err := h.engine.Register(r.Context(), *form.Username, email, *form.Password, form.Preferences); err != nil {
		h.serverError(w, r, err, "register")
		return
	}
	logging.Ctx(r.Context()).Info().Str("email", email).Msg("user registered")
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *handlers) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", h.newPage(r, "Log in"))
}

func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    formField(r, "email"),
		Password: formField(r, "password"),
	}
	if err := h.validate.Struct(form); err != nil {
		badForm(w, err)
		return
	}

	user, err := h.engine.Authenticate(r.Context(), *form.Email, *form.Password)
	if errors.Is(err, healthtips.ErrInvalidCredentials) {
		logging.Ctx(r.Context()).Info().Str("email", *form.Email).Msg("login failed")
		plainText(w, http.StatusUnauthorized, msgInvalidLogin)
		return
	}
	if err != nil {
		h.serverError(w, r, err, "authenticate")
		return
	}

	if err := h.sessions.Login(w, user.Email); err != nil {
		h.serverError(w, r, err, "issue session")
		return
	}
	http.Redirect(w, r, "/recommendations", http.StatusFound)
}

func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *handlers) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	email, _ := session.UserFromContext(r.Context())

	set, err := h.engine.RecommendationSet(r.Context(), email)
	if err != nil {
		h.serverError(w, r, err, "load recommendations")
		return
	}

	h.render(w, r, "recommendations.html", recommendationsData{
		page:            h.newPage(r, "Your Recommendations"),
		Preferences:     set.Preferences,
		Recommendations: h.tipRows(set.Tips),
	})
}

func (h *handlers) handleViewRecommendation(w http.ResponseWriter, r *http.Request) {
	email, _ := session.UserFromContext(r.Context())
	id, _ := intPathValue(r, "id")

	tip, err := h.engine.ViewRecommendation(r.Context(), email, id)
	if errors.Is(err, healthtips.ErrTipNotFound) {
		plainText(w, http.StatusNotFound, msgTipNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err, "view recommendation")
		return
	}

	h.render(w, r, "view_recommendation.html", tipData{
		page: h.newPage(r, tip.Title),
		Tip:  h.tipRow(*tip),
	})
}

func (h *handlers) handlePreferencesForm(w http.ResponseWriter, r *http.Request) {
	email, _ := session.UserFromContext(r.Context())

	prefs, err := h.engine.Preferences(r.Context(), email)
	if err != nil {
		h.serverError(w, r, err, "load preferences")
		return
	}

	h.render(w, r, "update_preferences.html", preferencesData{
		page:       h.newPage(r, "Update Preferences"),
		Categories: categoryOptions(prefs),
	})
}

func (h *handlers) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	email, _ := session.UserFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	prefs := r.PostForm["preferences"]
	if err := h.engine.UpdatePreferences(r.Context(), email, prefs); err != nil {
		h.serverError(w, r, err, "update preferences")
		return
	}
	http.Redirect(w, r, "/recommendations", http.StatusFound)
}

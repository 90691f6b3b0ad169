package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/session"
)

const testTips = `id,title,category,body
1,Morning Stretch,Fitness,Stretch for five minutes after waking.
2,Eat More Greens,Nutrition,Add a vegetable to every meal.
3,Breathe Deeply,Mental Health,Slow breathing calms the nervous system.
4,Interval Walks,Fitness,Alternate brisk and easy walking.
5,Wind Down Early,Sleep Health,Dim the lights an hour before bed.
6,Wash Your Hands,Immunity,<script>alert(1)</script><b>Twenty seconds</b> with soap.
`

const (
	testEmail    = "a@example.com"
	testPassword = "secret"
)

type testFixtures struct {
	router   http.Handler
	engine   *healthtips.Engine
	sessions *session.Manager
}

// newTestFixtures builds a router over a temp dataset with one registered
// user who prefers Fitness.
func newTestFixtures(t *testing.T) *testFixtures {
	t.Helper()
	dir := t.TempDir()
	contentPath := filepath.Join(dir, "health_tips.csv")
	if err := os.WriteFile(contentPath, []byte(testTips), 0o644); err != nil {
		t.Fatal(err)
	}

	engine, err := healthtips.NewEngine(healthtips.EngineConfig{
		ContentPath: contentPath,
		UsersPath:   filepath.Join(dir, "users.csv"),
		ViewsPath:   filepath.Join(dir, "viewed_recommendations.csv"),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	if err := engine.Register(context.Background(), "alice", testEmail, testPassword, []string{"Fitness"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	sessions, err := session.NewManager(session.Config{Secret: []byte("test-secret")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	return &testFixtures{
		router:   requestLogging(recovery(newRouter(engine, sessions))),
		engine:   engine,
		sessions: sessions,
	}
}

// sessionCookie returns a valid session cookie for email.
func (f *testFixtures) sessionCookie(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	if err := f.sessions.Login(rr, email); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return rr.Result().Cookies()[0]
}

// request is a convenience helper for making test HTTP requests.
func request(t *testing.T, handler http.Handler, method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func requestForm(t *testing.T, handler http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func assertRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (body %q)", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func (f *testFixtures) views(t *testing.T) []healthtips.ViewRecord {
	t.Helper()
	views, err := f.engine.ListViews(context.Background(), "")
	if err != nil {
		t.Fatalf("ListViews: %v", err)
	}
	return views
}

// --- Tests ---

func TestHandleIndex(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `href="/register"`) {
		t.Error("anonymous index should link to register")
	}

	rr = request(t, f.router, "GET", "/", f.sessionCookie(t, testEmail))
	if !strings.Contains(rr.Body.String(), `href="/logout"`) {
		t.Error("logged-in index should link to logout")
	}
}

func TestHandleIndex_UnknownPath(t *testing.T) {
	f := newTestFixtures(t)
	rr := request(t, f.router, "GET", "/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/search?query=sleep", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Wind Down Early") {
		t.Error("category match missing from results")
	}
	if strings.Contains(body, "Morning Stretch") {
		t.Error("unrelated tip in results")
	}
}

func TestHandleSearch_Empty(t *testing.T) {
	f := newTestFixtures(t)

	for _, path := range []string{"/search", "/search?query=", "/search?query=%20%20"} {
		rr := request(t, f.router, "GET", path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "No results found.") {
			t.Errorf("%s: expected empty result page", path)
		}
	}
}

func TestHandleRegisterForm(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/register", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if n := strings.Count(body, `name="preferences"`); n != len(healthtips.Categories) {
		t.Errorf("checkboxes = %d, want %d", n, len(healthtips.Categories))
	}
	if strings.Contains(body, " checked>") {
		t.Error("register form should start unchecked")
	}
}

func TestHandleRegister(t *testing.T) {
	f := newTestFixtures(t)

	form := url.Values{
		"username":    {"bob"},
		"email":       {"b@example.com"},
		"password":    {"pw"},
		"preferences": {"Immunity", "Sleep Health"},
	}
	rr := requestForm(t, f.router, "/register", form, nil)
	assertRedirect(t, rr, "/login")

	u, err := f.engine.GetUser(context.Background(), "b@example.com")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Username != "bob" || len(u.Preferences) != 2 || u.Preferences[1] != "Sleep Health" {
		t.Errorf("user = %+v", u)
	}
}

func TestHandleRegister_MissingField(t *testing.T) {
	f := newTestFixtures(t)

	tests := []struct {
		name string
		form url.Values
		body string
	}{
		{"missing password", url.Values{"username": {"bob"}, "email": {"b@example.com"}}, "Missing field: password"},
		{"missing email", url.Values{"username": {"bob"}, "password": {"pw"}}, "Missing field: email"},
		{"missing username", url.Values{"email": {"b@example.com"}, "password": {"pw"}}, "Missing field: username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := requestForm(t, f.router, "/register", tt.form, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.body) {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.body)
			}
		})
	}

	users, _ := f.engine.ListUsers(context.Background())
	if len(users) != 1 {
		t.Errorf("users = %d, want only the fixture user", len(users))
	}
}

func TestHandleRegister_AcceptsAnyPresentValue(t *testing.T) {
	f := newTestFixtures(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"unlisted category", url.Values{"username": {"bob"}, "email": {"b@example.com"}, "password": {"pw"}, "preferences": {"Cooking"}}},
		{"empty values", url.Values{"username": {""}, "email": {""}, "password": {""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := requestForm(t, f.router, "/register", tt.form, nil)
			assertRedirect(t, rr, "/login")
		})
	}

	users, _ := f.engine.ListUsers(context.Background())
	if len(users) != 3 {
		t.Fatalf("users = %d, want 3", len(users))
	}
	if p := users[1].Preferences; len(p) != 1 || p[0] != "Cooking" {
		t.Errorf("bob preferences = %v", p)
	}
}

func TestHandleLogin(t *testing.T) {
	f := newTestFixtures(t)

	rr := requestForm(t, f.router, "/login", url.Values{"email": {testEmail}, "password": {testPassword}}, nil)
	assertRedirect(t, rr, "/recommendations")

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "healthtips_session" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}

	// The issued cookie grants access.
	rr = request(t, f.router, "GET", "/recommendations", cookie)
	if rr.Code != http.StatusOK {
		t.Errorf("recommendations with login cookie: status = %d", rr.Code)
	}
}

func TestHandleLogin_Failure(t *testing.T) {
	f := newTestFixtures(t)

	tests := []url.Values{
		{"email": {testEmail}, "password": {"wrong"}},
		{"email": {testEmail}, "password": {"SECRET"}},
		{"email": {"nobody@example.com"}, "password": {testPassword}},
	}
	for _, form := range tests {
		rr := requestForm(t, f.router, "/login", form, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", form, rr.Code)
		}
		if rr.Body.String() != "Invalid email or password" {
			t.Errorf("body = %q", rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("Content-Type = %q", ct)
		}
		if len(rr.Result().Cookies()) != 0 {
			t.Error("failed login must not set a cookie")
		}
	}
}

func TestHandleLogin_MissingFields(t *testing.T) {
	f := newTestFixtures(t)
	rr := requestForm(t, f.router, "/login", url.Values{"email": {testEmail}}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHandleLogin_EmptyValues(t *testing.T) {
	f := newTestFixtures(t)

	tests := []url.Values{
		{"email": {testEmail}, "password": {""}},
		{"email": {""}, "password": {""}},
	}
	for _, form := range tests {
		rr := requestForm(t, f.router, "/login", form, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", form, rr.Code)
		}
		if rr.Body.String() != "Invalid email or password" {
			t.Errorf("%v: body = %q", form, rr.Body.String())
		}
	}
}

func TestRequiresSession(t *testing.T) {
	f := newTestFixtures(t)

	for _, path := range []string{"/recommendations", "/recommendation/1", "/update_preferences"} {
		rr := request(t, f.router, "GET", path, nil)
		assertRedirect(t, rr, "/login")
	}
	rr := requestForm(t, f.router, "/update_preferences", url.Values{"preferences": {"Nutrition"}}, nil)
	assertRedirect(t, rr, "/login")

	if n := len(f.views(t)); n != 0 {
		t.Errorf("anonymous requests logged %d views", n)
	}
}

func TestHandleRecommendations(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/recommendations", f.sessionCookie(t, testEmail))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Morning Stretch", "Interval Walks", `href="/recommendation/1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(body, "Eat More Greens") {
		t.Error("Nutrition tip shown to Fitness-only user")
	}
}

func TestHandleRecommendations_UnknownSessionUser(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/recommendations", f.sessionCookie(t, "ghost@example.com"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No recommendations yet.") {
		t.Error("expected empty recommendations")
	}
}

func TestHandleViewRecommendation(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/recommendation/3", f.sessionCookie(t, testEmail))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Breathe Deeply") {
		t.Error("tip title missing")
	}

	views := f.views(t)
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
	v := views[0]
	if v.UserEmail != testEmail || v.RecommendationID != 3 || len(v.Timestamp) != len("2006-01-02 15:04:05") {
		t.Errorf("view = %+v", v)
	}
}

func TestHandleViewRecommendation_NotFound(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/recommendation/999", f.sessionCookie(t, testEmail))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if rr.Body.String() != "Recommendation not found" {
		t.Errorf("body = %q", rr.Body.String())
	}

	views := f.views(t)
	if len(views) != 1 || views[0].RecommendationID != 999 {
		t.Errorf("views = %+v, want one row for 999", views)
	}
}

func TestHandleViewRecommendation_NonIntegerID(t *testing.T) {
	f := newTestFixtures(t)
	cookie := f.sessionCookie(t, testEmail)

	for _, path := range []string{"/recommendation/abc", "/recommendation/-1", "/recommendation/+3", "/recommendation/1.5"} {
		rr := request(t, f.router, "GET", path, cookie)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rr.Code)
		}
		if rr.Body.String() == "Recommendation not found" {
			t.Errorf("%s: non-integer id should not reach the lookup", path)
		}
	}
	if n := len(f.views(t)); n != 0 {
		t.Errorf("non-integer ids logged %d views", n)
	}
}

func TestHandleViewRecommendation_SanitizesBody(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/recommendation/6", f.sessionCookie(t, testEmail))
	body := rr.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("script tag not stripped from tip body")
	}
	if !strings.Contains(body, "<b>Twenty seconds</b>") {
		t.Error("safe markup should survive sanitizing")
	}
}

func TestUpdatePreferences(t *testing.T) {
	f := newTestFixtures(t)
	cookie := f.sessionCookie(t, testEmail)

	rr := request(t, f.router, "GET", "/update_preferences", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `value="Fitness" checked>`) || strings.Count(body, " checked>") != 1 {
		t.Error("form should pre-check exactly Fitness")
	}

	rr = requestForm(t, f.router, "/update_preferences", url.Values{"preferences": {"Nutrition", "Sleep Health"}}, cookie)
	assertRedirect(t, rr, "/recommendations")

	body = request(t, f.router, "GET", "/update_preferences", cookie).Body.String()
	if strings.Count(body, " checked>") != 2 {
		t.Errorf("checked boxes = %d, want 2", strings.Count(body, " checked>"))
	}
	for _, c := range []string{"Nutrition", "Sleep Health"} {
		if !strings.Contains(body, `value="`+c+`" checked>`) {
			t.Errorf("%s not pre-checked", c)
		}
	}

	body = request(t, f.router, "GET", "/recommendations", cookie).Body.String()
	if !strings.Contains(body, "Eat More Greens") || strings.Contains(body, "Morning Stretch") {
		t.Error("recommendations did not follow updated preferences")
	}
}

func TestUpdatePreferences_ClearAll(t *testing.T) {
	f := newTestFixtures(t)
	cookie := f.sessionCookie(t, testEmail)

	rr := requestForm(t, f.router, "/update_preferences", url.Values{}, cookie)
	assertRedirect(t, rr, "/recommendations")

	body := request(t, f.router, "GET", "/update_preferences", cookie).Body.String()
	if strings.Contains(body, " checked>") {
		t.Error("no category should be checked after clearing")
	}
}

func TestUpdatePreferences_UnlistedCategory(t *testing.T) {
	f := newTestFixtures(t)
	cookie := f.sessionCookie(t, testEmail)

	rr := requestForm(t, f.router, "/update_preferences", url.Values{"preferences": {"Astrology"}}, cookie)
	assertRedirect(t, rr, "/recommendations")

	prefs, _ := f.engine.Preferences(context.Background(), testEmail)
	if len(prefs) != 1 || prefs[0] != "Astrology" {
		t.Errorf("preferences = %v, want [Astrology]", prefs)
	}
}

func TestHandleLogout(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/logout", f.sessionCookie(t, testEmail))
	assertRedirect(t, rr, "/")

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("logout should expire the session cookie, got %+v", cookies)
	}
}

func TestStaticFiles(t *testing.T) {
	f := newTestFixtures(t)
	rr := request(t, f.router, "GET", "/static/style.css", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRequestID(t *testing.T) {
	f := newTestFixtures(t)

	rr := request(t, f.router, "GET", "/", nil)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want incoming value", got)
	}
}

func TestRecovery(t *testing.T) {
	h := requestLogging(recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rr := request(t, h, "GET", "/", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

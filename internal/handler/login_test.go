package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camnet/internal/logger"
	"camnet/internal/middleware"
)

func postForm(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLoginHandler(t *testing.T) {
	cfg, _ := setupTestConfig(t)
	handler := LoginHandler(cfg, logger.Discard())

	rr := postForm(handler, "/auth/login", url.Values{"password": {"wrong"}})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("Failed login must not set a cookie")
	}

	rr = postForm(handler, "/auth/login", url.Values{"password": {"secret"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected status %d, got %d", http.StatusSeeOther, rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.AuthCookie {
		t.Fatalf("Expected auth cookie, got %v", cookies)
	}
	if cookies[0].Value != middleware.AuthToken("secret") || !cookies[0].HttpOnly {
		t.Errorf("Unexpected cookie %+v", cookies[0])
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestLogoutHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	LogoutHandler(rr, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Errorf("Expected redirect to /login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected an expired cookie, got %v", cookies)
	}
}

func TestLogsHandlers(t *testing.T) {
	dir := t.TempDir()
	log, err := logger.New(dir)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()

	log.Warning("disk almost full")

	rr := httptest.NewRecorder()
	ShowLogsHandler(log, logger.WarningFile).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "disk almost full") {
		t.Errorf("Log body missing message: %q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	ClearLogsHandler(log, logger.WarningFile).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	data, _ := os.ReadFile(filepath.Join(dir, logger.WarningFile))
	if len(data) != 0 {
		t.Errorf("Expected empty log after clear, got %q", data)
	}

	rr = httptest.NewRecorder()
	ShowLogsHandler(logger.Discard(), logger.InfoFile).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status %d without a log directory, got %d", http.StatusNotFound, rr.Code)
	}
}

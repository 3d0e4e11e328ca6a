package session

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"campusgo/internal/auth"
	"campusgo/internal/db"
	"campusgo/internal/models"
)

func newTestManager(t *testing.T) (*Manager, *db.AccountRepository) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	accounts := db.NewAccountRepository(database)
	manager := NewManager("session-secret-for-tests", "test_session", time.Hour, false, 30*time.Minute, accounts)
	return manager, accounts
}

func createAccount(t *testing.T, accounts *db.AccountRepository) *models.Account {
	t.Helper()

	hash, err := auth.HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	account := &models.Account{
		FirstName:    "Jean",
		LastName:     "Dupont",
		Email:        "jean@example.com",
		PasswordHash: hash,
		Role:         models.RoleStudent,
		Language:     "fr",
		Active:       true,
	}
	if err := accounts.Create(account); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return account
}

// initSession logs the account in and returns a request carrying the session
// cookie.
func initSession(t *testing.T, manager *Manager, accountID int64) *http.Request {
	t.Helper()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	if err := manager.Init(rr, req, accountID); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	next := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, c := range rr.Result().Cookies() {
		next.AddCookie(c)
	}
	return next
}

func TestInitAndAccountID(t *testing.T) {
	manager, accounts := newTestManager(t)
	account := createAccount(t, accounts)

	req := initSession(t, manager, account.ID)

	id, ok := manager.AccountID(req)
	if !ok {
		t.Fatalf("AccountID() ok = false, want active session")
	}
	if id != account.ID {
		t.Fatalf("AccountID() = %d, want %d", id, account.ID)
	}
}

func TestAccountIDWithoutSession(t *testing.T) {
	manager, _ := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if _, ok := manager.AccountID(req); ok {
		t.Fatalf("AccountID() ok = true, want no session")
	}
}

func TestInactivityExceeded(t *testing.T) {
	manager, accounts := newTestManager(t)
	account := createAccount(t, accounts)

	req := initSession(t, manager, account.ID)

	if manager.InactivityExceeded(req, time.Now()) {
		t.Fatalf("InactivityExceeded() = true right after Init")
	}
	if !manager.InactivityExceeded(req, time.Now().Add(31*time.Minute)) {
		t.Fatalf("InactivityExceeded() = false 31 minutes later, want true")
	}
	if manager.InactivityExceeded(req, time.Now().Add(29*time.Minute)) {
		t.Fatalf("InactivityExceeded() = true 29 minutes later, want false")
	}
}

func TestTouchSlidesTheWindow(t *testing.T) {
	manager, accounts := newTestManager(t)
	account := createAccount(t, accounts)

	req := initSession(t, manager, account.ID)

	future := time.Now().Add(25 * time.Minute)
	rr := httptest.NewRecorder()
	if err := manager.Touch(rr, req, future); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	touched := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, c := range rr.Result().Cookies() {
		touched.AddCookie(c)
	}

	// 31 minutes after Init is only 6 minutes after the touch.
	if manager.InactivityExceeded(touched, time.Now().Add(31*time.Minute)) {
		t.Fatalf("InactivityExceeded() = true after Touch slid the window")
	}
}

func TestInvalidateClearsSessionAndToken(t *testing.T) {
	manager, accounts := newTestManager(t)
	account := createAccount(t, accounts)

	if err := accounts.StoreToken(account.ID, "bearer-token"); err != nil {
		t.Fatalf("StoreToken() error = %v", err)
	}

	req := initSession(t, manager, account.ID)

	rr := httptest.NewRecorder()
	if err := manager.Invalidate(rr, req); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	stored, err := accounts.FindByID(account.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.CurrentToken != "" {
		t.Fatalf("CurrentToken = %q after Invalidate, want empty", stored.CurrentToken)
	}
	if stored.Online {
		t.Fatalf("Online = true after Invalidate, want false")
	}

	// The response must expire the cookie.
	expired := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == "test_session" && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Fatalf("Invalidate() did not expire the session cookie")
	}
}

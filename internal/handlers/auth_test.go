package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"pathpal-api/internal/credentials"
	"pathpal-api/internal/otp"
	"pathpal-api/internal/session"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loginColumns = []string{"user_id", "username", "email", "phone_number", "password_hash", "user_type"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func mustHash(t *testing.T, plaintext string) string {
	t.Helper()
	hash, err := credentials.Hash(plaintext)
	require.NoError(t, err)
	return hash
}

type fakeMailer struct {
	sentTo   string
	sentCode string
	err      error
}

func (f *fakeMailer) SendOTPEmail(to, code string) error {
	if f.err != nil {
		return f.err
	}
	f.sentTo = to
	f.sentCode = code
	return nil
}

func TestRegisterSuccess(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE username = $1")).
		WithArgs("alice").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE phone_number = $1")).
		WithArgs("09123456789").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", "alice@gmail.com", "09123456789", sqlmock.AnyArg(), true, true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postJSON(t, Register(db), "/api/auth/register", map[string]interface{}{
		"username":       "alice",
		"email":          "alice@gmail.com",
		"phone":          "09123456789",
		"password":       "Secret1!",
		"agreed_terms":   true,
		"agreed_privacy": true,
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRejectsNonGmailAddress(t *testing.T) {
	db, _ := newMockDB(t)

	rec := postJSON(t, Register(db), "/api/auth/register", map[string]interface{}{
		"username":       "alice",
		"email":          "alice@example.com",
		"phone":          "09123456789",
		"password":       "Secret1!",
		"agreed_terms":   true,
		"agreed_privacy": true,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRejectsBadPhone(t *testing.T) {
	db, _ := newMockDB(t)

	rec := postJSON(t, Register(db), "/api/auth/register", map[string]interface{}{
		"username":       "alice",
		"email":          "alice@gmail.com",
		"phone":          "12345",
		"password":       "Secret1!",
		"agreed_terms":   true,
		"agreed_privacy": true,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRequiresConsent(t *testing.T) {
	db, _ := newMockDB(t)

	rec := postJSON(t, Register(db), "/api/auth/register", map[string]interface{}{
		"username":       "alice",
		"email":          "alice@gmail.com",
		"phone":          "09123456789",
		"password":       "Secret1!",
		"agreed_terms":   true,
		"agreed_privacy": false,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Data Privacy Policy")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	rec := postJSON(t, Register(db), "/api/auth/register", map[string]interface{}{
		"username":       "alice",
		"email":          "alice@gmail.com",
		"phone":          "09123456789",
		"password":       "Secret1!",
		"agreed_terms":   true,
		"agreed_privacy": true,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already exists")
}

func TestLoginSuccessSetsSessionCookie(t *testing.T) {
	db, mock := newMockDB(t)
	store := session.NewStore(time.Hour)
	hash := mustHash(t, "Secret1!")

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1 OR email = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(loginColumns).
			AddRow(1, "alice", "alice@gmail.com", "09123456789", hash, "user"))

	rec := postJSON(t, Login(db, store), "/api/auth/login", map[string]string{
		"usernameOrEmail": "alice",
		"password":        "Secret1!",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	sess := store.Get(cookie.Value)
	require.NotNil(t, sess)
	assert.Equal(t, "user", sess.UserType)

	var body struct {
		Success bool `json:"success"`
		User    struct {
			UserType string `json:"user_type"`
			Phone    string `json:"phone"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "user", body.User.UserType)
	assert.Equal(t, "09123456789", body.User.Phone)
}

// Unknown identifier and wrong password must produce the same status and the
// same body.
func TestLoginDoesNotRevealAccountExistence(t *testing.T) {
	db, mock := newMockDB(t)
	store := session.NewStore(time.Hour)
	hash := mustHash(t, "Secret1!")

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1 OR email = $1")).
		WithArgs("user@x.com").
		WillReturnRows(sqlmock.NewRows(loginColumns).
			AddRow(1, "user", "user@x.com", "09123456789", hash, "user"))

	wrongPass := postJSON(t, Login(db, store), "/api/auth/login", map[string]string{
		"usernameOrEmail": "user@x.com",
		"password":        "wrongpass",
	})

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1 OR email = $1")).
		WithArgs("nonexistent@x.com").
		WillReturnError(sql.ErrNoRows)

	unknownUser := postJSON(t, Login(db, store), "/api/auth/login", map[string]string{
		"usernameOrEmail": "nonexistent@x.com",
		"password":        "anything",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, wrongPass.Code, unknownUser.Code)
	assert.JSONEq(t, wrongPass.Body.String(), unknownUser.Body.String())
}

func TestForgotPasswordKnownEmailSendsCode(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)
	mailer := &fakeMailer{}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_resets")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_resets")).
		WithArgs(1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postJSON(t, ForgotPassword(db, ledger, mailer), "/api/auth/forgot-password",
		map[string]string{"email": "alice@gmail.com"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@gmail.com", mailer.sentTo)
	assert.Len(t, mailer.sentCode, 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The response for an unknown email must be byte-identical to the known-email
// response.
func TestForgotPasswordDoesNotRevealAccountExistence(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)
	mailer := &fakeMailer{}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_resets")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_resets")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	known := postJSON(t, ForgotPassword(db, ledger, mailer), "/api/auth/forgot-password",
		map[string]string{"email": "alice@gmail.com"})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("ghost@gmail.com").
		WillReturnError(sql.ErrNoRows)

	unknown := postJSON(t, ForgotPassword(db, ledger, mailer), "/api/auth/forgot-password",
		map[string]string{"email": "ghost@gmail.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())
	// The gateway was never invoked for the unknown address.
	assert.Equal(t, "alice@gmail.com", mailer.sentTo)
}

func TestForgotPasswordGatewayFailure(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)
	mailer := &fakeMailer{err: errors.New("smtp: connection refused")}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_resets")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_resets")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postJSON(t, ForgotPassword(db, ledger, mailer), "/api/auth/forgot-password",
		map[string]string{"email": "alice@gmail.com"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "alice")
}

func TestVerifyOTPExpiredOrMissing(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reset_id, user_id, token, expires_at, used")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"reset_id", "user_id", "token", "expires_at", "used"}))

	rec := postJSON(t, VerifyOTP(db, ledger), "/api/auth/verify-otp",
		map[string]string{"email": "alice@gmail.com", "otp": "1234"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired or is invalid")
}

func TestVerifyOTPSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)
	hash := mustHash(t, "1234")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reset_id, user_id, token, expires_at, used")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"reset_id", "user_id", "token", "expires_at", "used"}).
			AddRow(3, 1, hash, time.Now().Add(5*time.Minute), false))

	rec := postJSON(t, VerifyOTP(db, ledger), "/api/auth/verify-otp",
		map[string]string{"email": "alice@gmail.com", "otp": "1234"})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResetPasswordSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)
	hash := mustHash(t, "1234")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reset_id, user_id, token, expires_at, used")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"reset_id", "user_id", "token", "expires_at", "used"}).
			AddRow(3, 1, hash, time.Now().Add(5*time.Minute), false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1 WHERE user_id = $2")).
		WithArgs(sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_resets SET used = TRUE WHERE reset_id = $1")).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := postJSON(t, ResetPassword(db, ledger), "/api/auth/reset-password",
		map[string]string{
			"email":       "alice@gmail.com",
			"otp":         "1234",
			"newPassword": "NewPass1!",
		})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPasswordWrongCode(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)
	hash := mustHash(t, "1234")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users WHERE email = $1")).
		WithArgs("alice@gmail.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reset_id, user_id, token, expires_at, used")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"reset_id", "user_id", "token", "expires_at", "used"}).
			AddRow(3, 1, hash, time.Now().Add(5*time.Minute), false))
	mock.ExpectRollback()

	rec := postJSON(t, ResetPassword(db, ledger), "/api/auth/reset-password",
		map[string]string{
			"email":       "alice@gmail.com",
			"otp":         "0000",
			"newPassword": "NewPass1!",
		})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)

	rec := postJSON(t, ResetPassword(db, ledger), "/api/auth/reset-password",
		map[string]string{
			"email":       "alice@gmail.com",
			"otp":         "1234",
			"newPassword": "abc",
		})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NewPassword")
	// Validation rejects the request before any lookup happens.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyOTPRejectsMalformedCode(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)

	for _, code := range []string{"12a4", "123", "12345"} {
		rec := postJSON(t, VerifyOTP(db, ledger), "/api/auth/verify-otp",
			map[string]string{"email": "alice@gmail.com", "otp": code})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "otp %q", code)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForgotPasswordRejectsMalformedEmail(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := otp.NewLedger(db, 10*time.Minute)
	mailer := &fakeMailer{}

	rec := postJSON(t, ForgotPassword(db, ledger, mailer), "/api/auth/forgot-password",
		map[string]string{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mailer.sentTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogoutDestroysSessionAndClearsCookie(t *testing.T) {
	store := session.NewStore(time.Hour)
	sess := store.Create(1, "alice", "alice@gmail.com", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	Logout(store)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, store.Get(sess.Token))

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

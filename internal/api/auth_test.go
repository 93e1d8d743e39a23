package api

import (
	"net/http"
	"testing"

	"github.com/npezzotti/flashchat/internal/auth"
	"github.com/npezzotti/flashchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccountHandler(t *testing.T) {
	db := newTestRepository(t)
	createTestUser(t, db, "taken")
	app := newTestApp(t, db, nil)

	tcases := []struct {
		name string
		body any
		code int
	}{
		{
			name: "successfully creates a new account",
			body: RegisterRequest{Name: "newuser", Email: "NewUser@example.com", Password: "password"},
			code: http.StatusCreated,
		},
		{
			name: "fails with invalid json body",
			body: "invalid json",
			code: http.StatusBadRequest,
		},
		{
			name: "fails with missing name",
			body: RegisterRequest{Email: "x@example.com", Password: "password"},
			code: http.StatusBadRequest,
		},
		{
			name: "fails with missing email",
			body: RegisterRequest{Name: "x", Password: "password"},
			code: http.StatusBadRequest,
		},
		{
			name: "fails with missing password",
			body: RegisterRequest{Name: "x", Email: "x@example.com"},
			code: http.StatusBadRequest,
		},
		{
			name: "fails with registered email",
			body: RegisterRequest{Name: "again", Email: "taken@example.com", Password: "password"},
			code: http.StatusConflict,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, app, http.MethodPost, "/api/auth/register", "", tc.body)
			require.Equal(t, tc.code, rr.Code, rr.Body.String())

			if tc.code != http.StatusCreated {
				errResp := decode[ApiError](t, rr)
				assert.Equal(t, tc.code, errResp.StatusCode)
				return
			}

			u := decode[types.User](t, rr)
			assert.NotEmpty(t, u.Id)
			assert.Equal(t, "newuser", u.Name)
			assert.Equal(t, "newuser@example.com", u.Email, "expected email to be normalized")

			stored, err := db.GetUserByEmail("newuser@example.com")
			require.NoError(t, err)
			assert.True(t, auth.VerifyPassword(stored.PasswordHash, "password"), "expected password to be stored hashed")
		})
	}
}

func TestLoginHandler(t *testing.T) {
	db := newTestRepository(t)
	alice := createTestUser(t, db, "alice")
	app := newTestApp(t, db, nil)

	t.Run("valid credentials", func(t *testing.T) {
		rr := do(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "password"})
		require.Equal(t, http.StatusOK, rr.Code)

		resp := decode[LoginResponse](t, rr)
		assert.Equal(t, alice.Id, resp.User.Id)

		userId, err := app.auth.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, alice.Id, userId)

		var cookie *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == auth.TokenCookieKey {
				cookie = c
			}
		}
		require.NotNil(t, cookie, "expected token cookie to be set")
		assert.Equal(t, resp.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := do(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		rr := do(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ghost@example.com", Password: "password"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		rr := do(t, app, http.MethodPost, "/api/auth/login", "", "{")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	app := newTestApp(t, newTestRepository(t), nil)

	rr := do(t, app, http.MethodGet, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.TokenCookieKey, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0, "expected cookie to be expired")
}

func TestChangePasswordHandler(t *testing.T) {
	db := newTestRepository(t)
	alice := createTestUser(t, db, "alice")
	app := newTestApp(t, db, nil)
	token := tokenFor(t, app, alice.Id)

	tcases := []struct {
		name    string
		body    any
		code    int
		message string
	}{
		{
			name:    "missing fields",
			body:    ChangePasswordRequest{NewPassword: "long enough"},
			code:    http.StatusBadRequest,
			message: "current password and new password are required",
		},
		{
			name:    "new password too short",
			body:    ChangePasswordRequest{CurrentPassword: "password", NewPassword: "short"},
			code:    http.StatusBadRequest,
			message: "password must be at least 8 characters long",
		},
		{
			name:    "wrong current password",
			body:    ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "long enough"},
			code:    http.StatusBadRequest,
			message: "current password is incorrect",
		},
		{
			name: "invalid json",
			body: "{",
			code: http.StatusBadRequest,
		},
		{
			name:    "success",
			body:    ChangePasswordRequest{CurrentPassword: "password", NewPassword: "long enough"},
			code:    http.StatusOK,
			message: "password updated successfully",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, app, http.MethodPut, "/api/auth/change-password", token, tc.body)
			require.Equal(t, tc.code, rr.Code, rr.Body.String())
			if tc.message == "" {
				return
			}
			if tc.code == http.StatusOK {
				assert.Equal(t, tc.message, decode[messageResponse](t, rr).Message)
			} else {
				assert.Equal(t, tc.message, decode[ApiError](t, rr).Message)
			}
		})
	}

	rr := do(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "password"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected the old password to stop working")

	rr = do(t, app, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "long enough"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, app, http.MethodPut, "/api/auth/change-password", "", ChangePasswordRequest{CurrentPassword: "x", NewPassword: "y"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

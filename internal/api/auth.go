package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/flashchat/internal/auth"
	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/types"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

const minPasswordLength = 8

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type LoginResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func toUser(u database.User) types.User {
	return types.User{
		Id:        u.Id,
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (s *App) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		s.writeError(w, NewBadRequestError().withMessage("name, email and password are required"))
		return
	}

	_, err := s.db.GetUserByEmail(req.Email)
	if err == nil {
		s.writeError(w, NewConflictError().withMessage("email already registered"))
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	newUser, err := s.db.CreateUser(database.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwdHash,
		Avatar:       req.Avatar,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, toUser(newUser))
}

func (s *App) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	dbUser, err := s.db.GetUserByEmail(strings.ToLower(strings.TrimSpace(lr.Email)))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError().withMessage("invalid credentials"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if !auth.VerifyPassword(dbUser.PasswordHash, lr.Password) {
		s.writeError(w, NewUnauthorizedError().withMessage("invalid credentials"))
		return
	}

	token, err := s.auth.IssueToken(dbUser.Id, auth.DefaultExp)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, auth.TokenCookie(token, auth.DefaultExp))

	s.writeJson(w, http.StatusOK, LoginResponse{
		User:  toUser(dbUser),
		Token: token,
	})
}

func (s *App) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, auth.ExpiredTokenCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (s *App) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetUserById(userId)
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *App) changePassword(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		s.writeError(w, NewBadRequestError().withMessage("current password and new password are required"))
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		s.writeError(w, NewBadRequestError().withMessage(
			fmt.Sprintf("password must be at least %d characters long", minPasswordLength)))
		return
	}

	user, err := s.db.GetUserById(userId)
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	if !auth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
		s.writeError(w, NewBadRequestError().withMessage("current password is incorrect"))
		return
	}

	pwdHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if err := s.db.UpdatePassword(user.Id, pwdHash); err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "password updated successfully"})
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/npezzotti/flashchat/internal/cache"
	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/notify"
	"github.com/npezzotti/flashchat/internal/types"
)

const (
	minSearchLength = 2
	searchLimit     = 20
)

// UpdateUserRequest changes the session user's profile. Empty name and
// avatar are ignored; bio is applied whenever it is present.
type UpdateUserRequest struct {
	Name   string  `json:"name"`
	Avatar string  `json:"avatar"`
	Bio    *string `json:"bio"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func publicProfiles(users []database.User) []types.PublicUser {
	out := make([]types.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, cache.PublicProfile(u))
	}
	return out
}

func (s *App) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.db.GetUserById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *App) updateMe(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	var params database.UpdateUserParams
	if name := strings.TrimSpace(req.Name); name != "" {
		params.Name = &name
	}
	if req.Avatar != "" {
		params.Avatar = &req.Avatar
	}
	params.Bio = req.Bio

	user, err := s.db.UpdateUser(userId, params)
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}
	s.profiles.Invalidate(r.Context(), user.Id)

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *App) searchUsers(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < minSearchLength {
		s.writeJson(w, http.StatusOK, []types.User{})
		return
	}

	users, err := s.db.SearchUsers(q, searchLimit)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	found := make([]types.User, 0, len(users))
	for _, u := range users {
		if u.Id == userId {
			continue
		}
		found = append(found, toUser(u))
	}

	s.writeJson(w, http.StatusOK, found)
}

func (s *App) followUser(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	target, err := s.db.GetUserById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	if target.Id == userId {
		s.writeError(w, NewBadRequestError().withMessage("cannot follow yourself"))
		return
	}

	created, err := s.db.Follow(userId, target.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !created {
		s.writeError(w, NewBadRequestError().withMessage("already following"))
		return
	}

	_, err = s.notifier.Dispatch(r.Context(), notify.Event{
		Type:        types.NotificationFollow,
		ActorId:     userId,
		RecipientId: target.Id,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "followed user"})
}

func (s *App) unfollowUser(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	target, err := s.db.GetUserById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	if err := s.db.Unfollow(userId, target.Id); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "unfollowed user"})
}

func (s *App) getFollowers(w http.ResponseWriter, r *http.Request) {
	s.listFollows(w, r, s.db.ListFollowers)
}

func (s *App) getFollowing(w http.ResponseWriter, r *http.Request) {
	s.listFollows(w, r, s.db.ListFollowing)
}

func (s *App) listFollows(w http.ResponseWriter, r *http.Request, list func(string) ([]database.User, error)) {
	user, err := s.db.GetUserById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	users, err := list(user.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, publicProfiles(users))
}

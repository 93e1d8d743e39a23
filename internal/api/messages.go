package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/relay"
)

type SendMessageRequest struct {
	ChatId  string `json:"chatId"`
	Content string `json:"content"`
}

func relayError(err error) *ApiError {
	switch {
	case errors.Is(err, relay.ErrEmptyContent):
		return NewBadRequestError().withMessage(relay.ErrEmptyContent.Error())
	case errors.Is(err, relay.ErrContentTooLong):
		return NewBadRequestError().withMessage(relay.ErrContentTooLong.Error())
	case errors.Is(err, relay.ErrInvalidChat):
		return NewBadRequestError().withMessage(relay.ErrInvalidChat.Error())
	case errors.Is(err, relay.ErrChatNotFound):
		return NewNotFoundError().withMessage(relay.ErrChatNotFound.Error())
	case errors.Is(err, relay.ErrNotMember):
		return NewForbiddenError().withMessage(relay.ErrNotMember.Error())
	}
	return storeError(err)
}

func (s *App) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	msg, err := s.relay.Send(r.Context(), userId, req.ChatId, req.Content)
	if err != nil {
		s.writeError(w, relayError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *App) getOneToOneMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	msgs, err := s.relay.DirectMessages(r.Context(), userId, r.PathValue("chatId"))
	if err != nil {
		s.writeError(w, relayError(err))
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *App) getGroupMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	msgs, err := s.relay.GroupMessages(r.Context(), userId, r.PathValue("groupId"))
	if err != nil {
		if errors.Is(err, relay.ErrChatNotFound) {
			s.writeError(w, NewNotFoundError().withMessage("group not found"))
			return
		}
		s.writeError(w, relayError(err))
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *App) getNotifications(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	ns, err := s.notifier.List(r.Context(), userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, ns)
}

func (s *App) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	n, err := s.notifier.MarkRead(r.Context(), r.PathValue("id"), userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError().withMessage("notification not found"))
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, n)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/types"
)

type CreateChatRequest struct {
	UserIds []string `json:"userIds"`
	IsGroup bool     `json:"isGroup"`
	Name    string   `json:"name"`
}

type GroupMemberRequest struct {
	ChatId string `json:"chatId"`
	UserId string `json:"userId"`
}

func (s *App) toChats(ctx context.Context, chats ...database.Chat) ([]types.Chat, error) {
	var ids []string
	for _, c := range chats {
		ids = append(ids, c.Members...)
		if c.AdminId != "" {
			ids = append(ids, c.AdminId)
		}
	}
	profiles, err := s.profiles.Resolve(ctx, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]types.Chat, 0, len(chats))
	for _, c := range chats {
		chat := types.Chat{
			Id:        c.Id,
			Name:      c.Name,
			IsGroup:   c.IsGroup,
			Users:     make([]types.PublicUser, 0, len(c.Members)),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		for _, id := range c.Members {
			chat.Users = append(chat.Users, profileOrId(profiles, id))
		}
		if c.AdminId != "" {
			admin := profileOrId(profiles, c.AdminId)
			chat.Admin = &admin
		}
		out = append(out, chat)
	}
	return out, nil
}

func (s *App) writeChat(w http.ResponseWriter, r *http.Request, statusCode int, chat database.Chat) {
	chats, err := s.toChats(r.Context(), chat)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	s.writeJson(w, statusCode, chats[0])
}

func (s *App) createChat(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if len(req.UserIds) < 1 {
		s.writeError(w, NewBadRequestError().withMessage("at least one user is required"))
		return
	}

	members := []string{userId}
	for _, id := range req.UserIds {
		if id != "" && !slices.Contains(members, id) {
			members = append(members, id)
		}
	}

	users, err := s.db.GetUsersByIds(members)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if len(users) != len(members) {
		s.writeError(w, NewNotFoundError().withMessage("user not found"))
		return
	}

	if !req.IsGroup {
		if len(members) != 2 {
			s.writeError(w, NewBadRequestError().withMessage("a direct chat needs exactly two users"))
			return
		}

		existing, err := s.db.FindDirectChat(members[0], members[1])
		if err == nil {
			s.writeChat(w, r, http.StatusOK, existing)
			return
		}
		if !errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	}

	params := database.CreateChatParams{
		IsGroup: req.IsGroup,
		Members: members,
	}
	if req.IsGroup {
		params.Name = strings.TrimSpace(req.Name)
		if params.Name == "" {
			s.writeError(w, NewBadRequestError().withMessage("group name is required"))
			return
		}
		params.AdminId = userId
	}

	chat, err := s.db.CreateChat(params)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeChat(w, r, http.StatusCreated, chat)
}

func (s *App) getUserChats(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chats, err := s.db.ListChatsForUser(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out, err := s.toChats(r.Context(), chats...)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, out)
}

// loadGroup decodes a group request and loads the group it names.
func (s *App) loadGroup(r *http.Request) (GroupMemberRequest, database.Chat, *ApiError) {
	var req GroupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatId == "" {
		return req, database.Chat{}, NewBadRequestError()
	}

	chat, err := s.db.GetChatById(req.ChatId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return req, database.Chat{}, NewNotFoundError().withMessage("group chat not found")
		}
		return req, database.Chat{}, NewInternalServerError(err)
	}
	if !chat.IsGroup {
		return req, database.Chat{}, NewNotFoundError().withMessage("group chat not found")
	}

	return req, chat, nil
}

func (s *App) addUserToGroup(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	req, chat, errResp := s.loadGroup(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if chat.AdminId != userId && !slices.Contains(chat.Members, userId) {
		s.writeError(w, NewForbiddenError().withMessage("access denied"))
		return
	}

	if req.UserId == "" {
		s.writeError(w, NewBadRequestError())
		return
	}
	if _, err := s.db.GetUserById(req.UserId); err != nil {
		s.writeError(w, storeError(err))
		return
	}

	if err := s.db.AddChatMember(chat.Id, req.UserId); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeGroup(w, r, chat.Id)
}

func (s *App) removeUserFromGroup(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	req, chat, errResp := s.loadGroup(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if chat.AdminId != userId {
		s.writeError(w, NewForbiddenError().withMessage("only admin can remove users"))
		return
	}

	if err := s.db.RemoveChatMember(chat.Id, req.UserId); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeGroup(w, r, chat.Id)
}

func (s *App) deleteGroup(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	_, chat, errResp := s.loadGroup(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if chat.AdminId != userId {
		s.writeError(w, NewForbiddenError().withMessage("only the group admin can close the group"))
		return
	}

	if err := s.db.DeleteChat(chat.Id); err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "group closed successfully"})
}

func (s *App) writeGroup(w http.ResponseWriter, r *http.Request, chatId string) {
	chat, err := s.db.GetChatById(chatId)
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}
	s.writeChat(w, r, http.StatusOK, chat)
}

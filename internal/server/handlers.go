package server

import (
	"errors"

	"github.com/tidwall/gjson"
)

// MembershipChecker reports whether userId belongs to chatId.
type MembershipChecker interface {
	IsChatMember(chatId, userId string) bool
}

// RegisterRoomHandlers installs joinChat and leaveChat. With a nil checker
// any connection, including an anonymous one, may join any chat room.
func RegisterRoomHandlers(r *Router, h *Hub, checker MembershipChecker) {
	r.Handle(EventJoinChat, func(c *Client, data gjson.Result) error {
		chatId := chatIdFrom(data)
		if chatId == "" {
			return ErrBadRequest("chat id is required")
		}

		if checker != nil {
			if !c.Authenticated() {
				return ErrUnauthorized()
			}
			if !checker.IsChatMember(chatId, c.userId) {
				return ErrForbidden("not a member of this chat")
			}
		}

		if err := h.JoinChatRoom(c, chatId); err != nil {
			if errors.Is(err, ErrInvalidRoom) {
				return ErrBadRequest(err.Error())
			}
			return err
		}
		return nil
	})

	r.Handle(EventLeaveChat, func(c *Client, data gjson.Result) error {
		chatId := chatIdFrom(data)
		if chatId == "" {
			return ErrBadRequest("chat id is required")
		}
		h.Leave(c, ChatRoom(chatId))
		return nil
	})
}

// chatIdFrom accepts either a bare string or an object with a chatId field.
func chatIdFrom(data gjson.Result) string {
	switch data.Type {
	case gjson.String:
		return data.Str
	case gjson.JSON:
		if id := data.Get("chatId"); id.Type == gjson.String {
			return id.Str
		}
	}
	return ""
}

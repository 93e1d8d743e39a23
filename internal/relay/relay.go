// Package relay persists chat messages and fans them out to chat rooms.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/npezzotti/flashchat/internal/cache"
	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/notify"
	"github.com/npezzotti/flashchat/internal/server"
	"github.com/npezzotti/flashchat/internal/stats"
	"github.com/npezzotti/flashchat/internal/types"
	"github.com/tidwall/gjson"
)

const (
	MetricMessagesRelayed = "NumMessagesRelayed"

	// MaxContentLength is the largest message body in bytes.
	MaxContentLength = 8 << 10
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrInvalidChat    = errors.New("invalid chat configuration")
	ErrEmptyContent   = errors.New("chatId and content required")
	ErrNotMember      = errors.New("access denied")
	ErrContentTooLong = fmt.Errorf("content exceeds %d bytes", MaxContentLength)
)

type Options struct {
	// ServerBroadcast makes Send emit receiveMessage itself once the message
	// is stored, instead of waiting for the client's sendMessage echo.
	ServerBroadcast bool
	// NotifyOnMessage sends a message notification to the receiver of a
	// direct message.
	NotifyOnMessage bool
	// RequireMembership rejects sends and broadcasts from non-members.
	RequireMembership bool
}

type Relay struct {
	log      *log.Logger
	db       database.Repository
	profiles *cache.ProfileResolver
	emitter  server.Emitter
	notifier *notify.Dispatcher
	stats    stats.StatsProvider
	opts     Options
}

func NewRelay(logger *log.Logger, db database.Repository, profiles *cache.ProfileResolver, emitter server.Emitter,
	notifier *notify.Dispatcher, su stats.StatsProvider, opts Options) *Relay {
	su.RegisterMetric(MetricMessagesRelayed)

	return &Relay{
		log:      logger,
		db:       db,
		profiles: profiles,
		emitter:  emitter,
		notifier: notifier,
		stats:    su,
		opts:     opts,
	}
}

func (r *Relay) loadChat(chatId string) (database.Chat, error) {
	chat, err := r.db.GetChatById(chatId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Chat{}, ErrChatNotFound
		}
		return database.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}

// Send stores content as a message from senderId in chatId and returns it
// with sender and receiver display fields attached.
func (r *Relay) Send(ctx context.Context, senderId, chatId, content string) (*types.Message, error) {
	if chatId == "" || strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	chat, err := r.loadChat(chatId)
	if err != nil {
		return nil, err
	}

	if r.opts.RequireMembership && !slices.Contains(chat.Members, senderId) {
		return nil, ErrNotMember
	}

	var msg *types.Message
	if chat.IsGroup {
		gm, err := r.db.CreateGroupMessage(database.CreateGroupMessageParams{
			GroupId:  chat.Id,
			SenderId: senderId,
			Content:  content,
		})
		if err != nil {
			return nil, fmt.Errorf("create group message: %w", err)
		}
		msg = r.enrichGroup(ctx, gm)
	} else {
		receiverId := otherMember(chat.Members, senderId)
		if receiverId == "" {
			return nil, ErrInvalidChat
		}

		dm, err := r.db.CreateDirectMessage(database.CreateDirectMessageParams{
			ChatId:     chat.Id,
			SenderId:   senderId,
			ReceiverId: receiverId,
			Content:    content,
		})
		if err != nil {
			return nil, fmt.Errorf("create direct message: %w", err)
		}
		msg = r.enrichDirect(ctx, dm)

		if r.opts.NotifyOnMessage && r.notifier != nil {
			_, err := r.notifier.Dispatch(ctx, notify.Event{
				Type:        types.NotificationMessage,
				ActorId:     senderId,
				RecipientId: receiverId,
				MessageId:   dm.Id,
			})
			if err != nil {
				r.log.Printf("message notification for %s: %v", dm.Id, err)
			}
		}
	}

	r.stats.Incr(MetricMessagesRelayed)

	if r.opts.ServerBroadcast {
		r.emitter.Emit(server.ChatRoom(chat.Id), server.EventReceiveMessage, msg)
	}

	return msg, nil
}

// otherMember returns the first member that is not senderId.
func otherMember(members []string, senderId string) string {
	for _, id := range members {
		if id != senderId {
			return id
		}
	}
	return ""
}

// Broadcast emits an already stored message to everyone viewing chatId,
// including the sender's own connections.
func (r *Relay) Broadcast(chatId string, message json.RawMessage) int {
	return r.emitter.Emit(server.ChatRoom(chatId), server.EventReceiveMessage, message)
}

func (r *Relay) RegisterHandlers(router *server.Router) {
	router.Handle(server.EventSendMessage, r.HandleSendMessage)
}

// HandleSendMessage handles {"chatId": ..., "message": {...}} frames by
// re-broadcasting message to the chat room untouched.
func (r *Relay) HandleSendMessage(c *server.Client, data gjson.Result) error {
	chatId := data.Get("chatId")
	message := data.Get("message")
	if chatId.Type != gjson.String || chatId.Str == "" {
		return server.ErrBadRequest("chat id is required")
	}
	if !message.IsObject() {
		return server.ErrBadRequest("message must be an object")
	}

	if r.opts.RequireMembership {
		if !c.Authenticated() {
			return server.ErrUnauthorized()
		}
		if !r.db.IsChatMember(chatId.Str, c.UserId()) {
			return server.ErrForbidden("not a member of this chat")
		}
	}

	r.Broadcast(chatId.Str, json.RawMessage(message.Raw))
	return nil
}

func (r *Relay) checkAccess(chat database.Chat, userId string) error {
	if !slices.Contains(chat.Members, userId) {
		return ErrNotMember
	}
	return nil
}

// GroupMessages lists a group's messages oldest first. userId must be a member.
func (r *Relay) GroupMessages(ctx context.Context, userId, groupId string) ([]types.Message, error) {
	chat, err := r.loadChat(groupId)
	if err != nil {
		return nil, err
	}
	if !chat.IsGroup {
		return nil, ErrChatNotFound
	}
	if err := r.checkAccess(chat, userId); err != nil {
		return nil, err
	}

	msgs, err := r.db.ListGroupMessages(groupId)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.SenderId)
	}
	profiles, err := r.profiles.Resolve(ctx, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, groupMessage(m, profiles))
	}
	return out, nil
}

// DirectMessages lists a one-to-one chat's messages oldest first. userId must
// be a participant.
func (r *Relay) DirectMessages(ctx context.Context, userId, chatId string) ([]types.Message, error) {
	chat, err := r.loadChat(chatId)
	if err != nil {
		return nil, err
	}
	if err := r.checkAccess(chat, userId); err != nil {
		return nil, err
	}

	msgs, err := r.db.ListDirectMessages(chatId)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(msgs)*2)
	for _, m := range msgs {
		ids = append(ids, m.SenderId, m.ReceiverId)
	}
	profiles, err := r.profiles.Resolve(ctx, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, directMessage(m, profiles))
	}
	return out, nil
}

// enrichGroup and enrichDirect run after the message is stored, so a failed
// profile lookup falls back to bare ids instead of failing the send.
func (r *Relay) enrichGroup(ctx context.Context, m database.GroupMessage) *types.Message {
	msg := groupMessage(m, r.resolve(ctx, m.Id, m.SenderId))
	return &msg
}

func (r *Relay) enrichDirect(ctx context.Context, m database.DirectMessage) *types.Message {
	msg := directMessage(m, r.resolve(ctx, m.Id, m.SenderId, m.ReceiverId))
	return &msg
}

func (r *Relay) resolve(ctx context.Context, messageId string, ids ...string) map[string]types.PublicUser {
	profiles, err := r.profiles.Resolve(ctx, ids...)
	if err != nil {
		r.log.Printf("resolve profiles for message %s: %v", messageId, err)
		return map[string]types.PublicUser{}
	}
	return profiles
}

func profileOrId(profiles map[string]types.PublicUser, id string) types.PublicUser {
	if p, ok := profiles[id]; ok {
		return p
	}
	return types.PublicUser{Id: id}
}

func groupMessage(m database.GroupMessage, profiles map[string]types.PublicUser) types.Message {
	return types.Message{
		Id:        m.Id,
		GroupId:   m.GroupId,
		Sender:    profileOrId(profiles, m.SenderId),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func directMessage(m database.DirectMessage, profiles map[string]types.PublicUser) types.Message {
	receiver := profileOrId(profiles, m.ReceiverId)
	return types.Message{
		Id:        m.Id,
		ChatId:    m.ChatId,
		Sender:    profileOrId(profiles, m.SenderId),
		Receiver:  &receiver,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

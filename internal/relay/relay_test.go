package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/flashchat/internal/cache"
	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/notify"
	"github.com/npezzotti/flashchat/internal/server"
	"github.com/npezzotti/flashchat/internal/stats"
	"github.com/npezzotti/flashchat/internal/testutil"
	"github.com/npezzotti/flashchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type emitCall struct {
	roomId  string
	event   string
	payload any
}

type recordingEmitter struct {
	mu    sync.Mutex
	calls []emitCall
}

func (e *recordingEmitter) Emit(roomId, event string, payload any) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, emitCall{roomId, event, payload})
	return 0
}

func (e *recordingEmitter) events(event string) []emitCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitCall
	for _, c := range e.calls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

type countingEmitter struct {
	inner     server.Emitter
	delivered []int
}

func (e *countingEmitter) Emit(roomId, event string, payload any) int {
	n := e.inner.Emit(roomId, event, payload)
	e.delivered = append(e.delivered, n)
	return n
}

func newTestRelay(t *testing.T, db database.Repository, emitter server.Emitter, opts Options) *Relay {
	t.Helper()
	logger := testutil.TestLogger(t)
	profiles := cache.NewProfileResolver(db, cache.NopProfileCache{}, logger)
	notifier := notify.NewDispatcher(logger, db, profiles, emitter, stats.NewMockStatsUpdater())
	return NewRelay(logger, db, profiles, emitter, notifier, stats.NewMockStatsUpdater(), opts)
}

func newTestRepository(t *testing.T) *database.SqliteRepository {
	t.Helper()
	db, err := database.NewSqliteRepository(":memory:")
	require.NoError(t, err, "failed to open sqlite repository")
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func createUser(t *testing.T, db database.Repository, name string) database.User {
	t.Helper()
	u, err := db.CreateUser(database.CreateUserParams{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Avatar:       name + ".png",
	})
	require.NoError(t, err, "failed to create user %s", name)
	return u
}

func TestSend_GroupReachesEveryViewer(t *testing.T) {
	db := newTestRepository(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	group, err := db.CreateChat(database.CreateChatParams{
		Name:    "team",
		IsGroup: true,
		AdminId: alice.Id,
		Members: []string{alice.Id, bob.Id},
	})
	require.NoError(t, err)

	logger := testutil.TestLogger(t)
	hub := server.NewHub(logger, stats.NewMockStatsUpdater())
	for _, userId := range []string{alice.Id, bob.Id} {
		c := server.NewClient(userId, nil, hub, nil, logger)
		require.NoError(t, hub.Register(c))
		require.NoError(t, hub.JoinChatRoom(c, group.Id))
	}
	outsider := server.NewClient("someone", nil, hub, nil, logger)
	require.NoError(t, hub.Register(outsider))

	emitter := &countingEmitter{inner: hub}
	r := newTestRelay(t, db, emitter, Options{ServerBroadcast: true})

	msg, err := r.Send(context.Background(), alice.Id, group.Id, "hello")
	require.NoError(t, err)
	assert.Equal(t, group.Id, msg.GroupId)
	assert.Empty(t, msg.ChatId)
	assert.Nil(t, msg.Receiver, "group messages have no receiver")
	assert.Equal(t, types.PublicUser{Id: alice.Id, Name: "alice", Avatar: "alice.png"}, msg.Sender)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, []int{2}, emitter.delivered, "expected both viewers and not the outsider")

	stored, err := db.ListGroupMessages(group.Id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.Id, stored[0].Id)
}

func TestSend_DirectMessage(t *testing.T) {
	db := newTestRepository(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	chat, err := db.CreateChat(database.CreateChatParams{Members: []string{alice.Id, bob.Id}})
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	r := newTestRelay(t, db, emitter, Options{})

	msg, err := r.Send(context.Background(), bob.Id, chat.Id, "hey")
	require.NoError(t, err)
	assert.Equal(t, chat.Id, msg.ChatId)
	assert.Empty(t, msg.GroupId)
	assert.Equal(t, "bob", msg.Sender.Name)
	require.NotNil(t, msg.Receiver)
	assert.Equal(t, alice.Id, msg.Receiver.Id)
	assert.Equal(t, "alice", msg.Receiver.Name)
	assert.Empty(t, emitter.calls, "expected no server side emit by default")

	stored, err := db.ListDirectMessages(chat.Id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, alice.Id, stored[0].ReceiverId)
}

func TestSend_NotifiesReceiver(t *testing.T) {
	db := newTestRepository(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	chat, err := db.CreateChat(database.CreateChatParams{Members: []string{alice.Id, bob.Id}})
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	r := newTestRelay(t, db, emitter, Options{NotifyOnMessage: true, ServerBroadcast: true})

	msg, err := r.Send(context.Background(), alice.Id, chat.Id, "ping")
	require.NoError(t, err)

	notes := emitter.events(server.EventNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, server.UserRoom(bob.Id), notes[0].roomId)

	received := emitter.events(server.EventReceiveMessage)
	require.Len(t, received, 1)
	assert.Equal(t, server.ChatRoom(chat.Id), received[0].roomId)

	stored, err := db.ListNotifications(bob.Id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, types.NotificationMessage, stored[0].Type)
	assert.Equal(t, msg.Id, stored[0].MessageId)
	assert.Equal(t, alice.Id, stored[0].FromUserId)
}

func TestSend_Rejections(t *testing.T) {
	db := newTestRepository(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	lonely, err := db.CreateChat(database.CreateChatParams{Members: []string{alice.Id}})
	require.NoError(t, err)
	direct, err := db.CreateChat(database.CreateChatParams{Members: []string{alice.Id, bob.Id}})
	require.NoError(t, err)

	tcases := []struct {
		name    string
		opts    Options
		sender  string
		chatId  string
		content string
		err     error
	}{
		{
			name:    "empty content",
			sender:  alice.Id,
			chatId:  direct.Id,
			content: "  ",
			err:     ErrEmptyContent,
		},
		{
			name:    "missing chat id",
			sender:  alice.Id,
			content: "hi",
			err:     ErrEmptyContent,
		},
		{
			name:    "unknown chat",
			sender:  alice.Id,
			chatId:  "nope",
			content: "hi",
			err:     ErrChatNotFound,
		},
		{
			name:    "direct chat without a second participant",
			sender:  alice.Id,
			chatId:  lonely.Id,
			content: "hi",
			err:     ErrInvalidChat,
		},
		{
			name:    "content over the size limit",
			sender:  alice.Id,
			chatId:  direct.Id,
			content: strings.Repeat("a", MaxContentLength+1),
			err:     ErrContentTooLong,
		},
		{
			name:    "non member with membership enforced",
			opts:    Options{RequireMembership: true},
			sender:  carol.Id,
			chatId:  direct.Id,
			content: "hi",
			err:     ErrNotMember,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			emitter := &recordingEmitter{}
			tc.opts.ServerBroadcast = true
			r := newTestRelay(t, db, emitter, tc.opts)

			msg, err := r.Send(context.Background(), tc.sender, tc.chatId, tc.content)
			assert.ErrorIs(t, err, tc.err)
			assert.Nil(t, msg)
			assert.Empty(t, emitter.calls)
		})
	}
}

func TestSend_PersistenceFailure(t *testing.T) {
	db := &database.MockRepository{}
	db.On("GetChatById", "g1").Return(database.Chat{Id: "g1", IsGroup: true, Members: []string{"u1", "u2"}}, nil)
	db.On("CreateGroupMessage", mock.Anything).Return(database.GroupMessage{}, errors.New("write rejected"))

	emitter := &recordingEmitter{}
	r := newTestRelay(t, db, emitter, Options{ServerBroadcast: true})

	msg, err := r.Send(context.Background(), "u1", "g1", "hello")
	assert.Error(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, emitter.calls, "expected nothing emitted for an unstored message")
}

func TestSend_ProfileLookupFailure(t *testing.T) {
	tcases := []struct {
		name     string
		chat     database.Chat
		setup    func(db *database.MockRepository)
		receiver string
	}{
		{
			name: "group",
			chat: database.Chat{Id: "g1", IsGroup: true, Members: []string{"u1", "u2"}},
			setup: func(db *database.MockRepository) {
				db.On("CreateGroupMessage", mock.Anything).Return(database.GroupMessage{
					Id: "m1", GroupId: "g1", SenderId: "u1", Content: "hello",
				}, nil)
			},
		},
		{
			name: "direct",
			chat: database.Chat{Id: "c1", Members: []string{"u1", "u2"}},
			setup: func(db *database.MockRepository) {
				db.On("CreateDirectMessage", mock.Anything).Return(database.DirectMessage{
					Id: "m1", ChatId: "c1", SenderId: "u1", ReceiverId: "u2", Content: "hello",
				}, nil)
			},
			receiver: "u2",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockRepository{}
			db.On("GetChatById", tc.chat.Id).Return(tc.chat, nil)
			db.On("GetUsersByIds", mock.Anything).Return(nil, errors.New("store hiccup"))
			tc.setup(db)

			emitter := &recordingEmitter{}
			r := newTestRelay(t, db, emitter, Options{ServerBroadcast: true})

			msg, err := r.Send(context.Background(), "u1", tc.chat.Id, "hello")
			require.NoError(t, err, "expected a stored message not to fail the send")
			assert.Equal(t, "m1", msg.Id)
			assert.Equal(t, types.PublicUser{Id: "u1"}, msg.Sender)
			if tc.receiver != "" {
				require.NotNil(t, msg.Receiver)
				assert.Equal(t, types.PublicUser{Id: tc.receiver}, *msg.Receiver)
			}

			received := emitter.events(server.EventReceiveMessage)
			require.Len(t, received, 1)
			assert.Equal(t, server.ChatRoom(tc.chat.Id), received[0].roomId)
			db.AssertNumberOfCalls(t, "GetUsersByIds", 1)
		})
	}
}

func TestHandleSendMessage(t *testing.T) {
	logger := testutil.TestLogger(t)
	hub := server.NewHub(logger, stats.NewMockStatsUpdater())

	tcases := []struct {
		name   string
		data   string
		userId string
		opts   Options
		code   int
	}{
		{
			name:   "rebroadcasts message",
			data:   `{"chatId":"c1","message":{"_id":"m1","content":"hi"}}`,
			userId: "u1",
		},
		{
			name:   "anonymous allowed by default",
			data:   `{"chatId":"c1","message":{"content":"hi"}}`,
			userId: "",
		},
		{
			name: "missing chat id",
			data: `{"message":{"content":"hi"}}`,
			code: http.StatusBadRequest,
		},
		{
			name: "message not an object",
			data: `{"chatId":"c1","message":"hi"}`,
			code: http.StatusBadRequest,
		},
		{
			name: "anonymous rejected when membership enforced",
			data: `{"chatId":"c1","message":{}}`,
			opts: Options{RequireMembership: true},
			code: http.StatusUnauthorized,
		},
		{
			name:   "non member rejected when membership enforced",
			data:   `{"chatId":"c1","message":{}}`,
			userId: "u9",
			opts:   Options{RequireMembership: true},
			code:   http.StatusForbidden,
		},
		{
			name:   "member accepted when membership enforced",
			data:   `{"chatId":"c1","message":{"content":"ok"}}`,
			userId: "u1",
			opts:   Options{RequireMembership: true},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockRepository{}
			db.On("IsChatMember", "c1", "u1").Return(true).Maybe()
			db.On("IsChatMember", "c1", "u9").Return(false).Maybe()

			emitter := &recordingEmitter{}
			r := newTestRelay(t, db, emitter, tc.opts)
			c := server.NewClient(tc.userId, nil, hub, nil, logger)

			err := r.HandleSendMessage(c, gjson.Parse(tc.data))
			if tc.code != 0 {
				var evErr *server.EventError
				require.ErrorAs(t, err, &evErr)
				assert.Equal(t, tc.code, evErr.Code)
				assert.Empty(t, emitter.calls)
				return
			}

			require.NoError(t, err)
			require.Len(t, emitter.calls, 1)
			call := emitter.calls[0]
			assert.Equal(t, server.ChatRoom("c1"), call.roomId)
			assert.Equal(t, server.EventReceiveMessage, call.event)
			raw, ok := call.payload.(json.RawMessage)
			require.True(t, ok, "expected the client payload to be forwarded untouched")
			assert.JSONEq(t, gjson.Get(tc.data, "message").Raw, string(raw))
		})
	}
}

func TestHistory(t *testing.T) {
	db := newTestRepository(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	group, err := db.CreateChat(database.CreateChatParams{
		Name:    "team",
		IsGroup: true,
		AdminId: alice.Id,
		Members: []string{alice.Id, bob.Id},
	})
	require.NoError(t, err)
	direct, err := db.CreateChat(database.CreateChatParams{Members: []string{alice.Id, bob.Id}})
	require.NoError(t, err)

	r := newTestRelay(t, db, &recordingEmitter{}, Options{})
	ctx := context.Background()

	for _, content := range []string{"one", "two"} {
		_, err := r.Send(ctx, alice.Id, group.Id, content)
		require.NoError(t, err)
		_, err = r.Send(ctx, bob.Id, direct.Id, content)
		require.NoError(t, err)
	}

	t.Run("group", func(t *testing.T) {
		msgs, err := r.GroupMessages(ctx, bob.Id, group.Id)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "one", msgs[0].Content)
		assert.Equal(t, "two", msgs[1].Content)
		assert.Equal(t, "alice", msgs[0].Sender.Name)

		_, err = r.GroupMessages(ctx, carol.Id, group.Id)
		assert.ErrorIs(t, err, ErrNotMember)

		_, err = r.GroupMessages(ctx, alice.Id, direct.Id)
		assert.ErrorIs(t, err, ErrChatNotFound, "expected a direct chat not to be served as a group")

		_, err = r.GroupMessages(ctx, alice.Id, "missing")
		assert.ErrorIs(t, err, ErrChatNotFound)
	})

	t.Run("direct", func(t *testing.T) {
		msgs, err := r.DirectMessages(ctx, alice.Id, direct.Id)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "one", msgs[0].Content)
		assert.Equal(t, "bob", msgs[0].Sender.Name)
		require.NotNil(t, msgs[0].Receiver)
		assert.Equal(t, "alice", msgs[0].Receiver.Name)

		_, err = r.DirectMessages(ctx, carol.Id, direct.Id)
		assert.ErrorIs(t, err, ErrNotMember)

		_, err = r.DirectMessages(ctx, alice.Id, "missing")
		assert.ErrorIs(t, err, ErrChatNotFound)
	})
}

func TestSendMessage_OverWebsocket(t *testing.T) {
	logger := testutil.TestLogger(t)
	hub := server.NewHub(logger, stats.NewMockStatsUpdater())
	router := server.NewRouter(logger)
	server.RegisterRoomHandlers(router, hub, nil)
	r := newTestRelay(t, &database.MockRepository{}, hub, Options{})
	r.RegisterHandlers(router)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		c := server.NewClient(req.URL.Query().Get("user"), conn, hub, router, logger)
		if err := hub.Register(c); err != nil {
			conn.Close()
			return
		}
		c.Serve()
	}))
	defer srv.Close()

	dial := func(userId string) *websocket.Conn {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userId
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"joinChat","data":"c1"}`)))
		return conn
	}

	alice := dial("alice")
	bob := dial("bob")
	require.Eventually(t, func() bool {
		return hub.RoomSize(server.ChatRoom("c1")) == 2
	}, time.Second, 10*time.Millisecond, "expected both connections in the chat room")

	frame := `{"event":"sendMessage","data":{"chatId":"c1","message":{"_id":"m1","content":"hi"}}}`
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(frame)))

	for _, conn := range []*websocket.Conn{alice, bob} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var msg server.ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, server.EventReceiveMessage, msg.Event)
		assert.JSONEq(t, `{"_id":"m1","content":"hi"}`, string(msg.Data))
	}
}

func TestSendMessage_LargestMessageEcho(t *testing.T) {
	logger := testutil.TestLogger(t)
	hub := server.NewHub(logger, stats.NewMockStatsUpdater())
	router := server.NewRouter(logger)
	server.RegisterRoomHandlers(router, hub, nil)

	db := newTestRepository(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	chat, err := db.CreateChat(database.CreateChatParams{Members: []string{alice.Id, bob.Id}})
	require.NoError(t, err)

	r := newTestRelay(t, db, hub, Options{})
	r.RegisterHandlers(router)

	// every byte escapes to six when encoded
	msg, err := r.Send(context.Background(), alice.Id, chat.Id, strings.Repeat("<", MaxContentLength))
	require.NoError(t, err)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		c := server.NewClient(alice.Id, conn, hub, router, logger)
		if err := hub.Register(c); err != nil {
			conn.Close()
			return
		}
		c.Serve()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	joinFrame := fmt.Sprintf(`{"event":"joinChat","data":%q}`, chat.Id)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(joinFrame)))
	require.Eventually(t, func() bool {
		return hub.RoomSize(server.ChatRoom(chat.Id)) == 1
	}, time.Second, 10*time.Millisecond, "expected connection in the chat room")

	frame, err := json.Marshal(map[string]any{
		"event": server.EventSendMessage,
		"data":  map[string]any{"chatId": chat.Id, "message": msg},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got server.ServerMessage
	require.NoError(t, conn.ReadJSON(&got), "expected the echo to come back over an open connection")
	assert.Equal(t, server.EventReceiveMessage, got.Event)
	var echoed types.Message
	require.NoError(t, json.Unmarshal(got.Data, &echoed))
	assert.Equal(t, msg.Content, echoed.Content)
	assert.Equal(t, 1, hub.RoomSize(server.UserRoom(alice.Id)), "expected the connection to keep its own room")
}

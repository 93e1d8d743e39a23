package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockRepository) GetUserById(id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockRepository) GetUserByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockRepository) GetUsersByIds(ids []string) ([]User, error) {
	args := m.Called(ids)
	if v, ok := args.Get(0).([]User); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) SearchUsers(query string, limit int) ([]User, error) {
	args := m.Called(query, limit)
	if v, ok := args.Get(0).([]User); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) UpdateUser(id string, params UpdateUserParams) (User, error) {
	args := m.Called(id, params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockRepository) UpdatePassword(id, passwordHash string) error {
	args := m.Called(id, passwordHash)
	return args.Error(0)
}

func (m *MockRepository) Follow(followerId, followeeId string) (bool, error) {
	args := m.Called(followerId, followeeId)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Unfollow(followerId, followeeId string) error {
	args := m.Called(followerId, followeeId)
	return args.Error(0)
}

func (m *MockRepository) ListFollowers(userId string) ([]User, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]User); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListFollowing(userId string) ([]User, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]User); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) CreatePost(params CreatePostParams) (Post, error) {
	args := m.Called(params)
	return args.Get(0).(Post), args.Error(1)
}

func (m *MockRepository) GetPostById(id string) (Post, error) {
	args := m.Called(id)
	return args.Get(0).(Post), args.Error(1)
}

func (m *MockRepository) ListPosts(userId string) ([]Post, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]Post); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListFeed(userId string) ([]Post, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]Post); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListExplore(limit int) ([]Post, error) {
	args := m.Called(limit)
	if v, ok := args.Get(0).([]Post); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) DeletePost(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepository) LikePost(postId, userId string) (bool, error) {
	args := m.Called(postId, userId)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) UnlikePost(postId, userId string) error {
	args := m.Called(postId, userId)
	return args.Error(0)
}

func (m *MockRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	args := m.Called(params)
	return args.Get(0).(Comment), args.Error(1)
}

func (m *MockRepository) ListComments(postId string) ([]Comment, error) {
	args := m.Called(postId)
	if v, ok := args.Get(0).([]Comment); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetCommentById(id string) (Comment, error) {
	args := m.Called(id)
	return args.Get(0).(Comment), args.Error(1)
}

func (m *MockRepository) DeleteComment(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepository) LikeComment(commentId, userId string) (bool, error) {
	args := m.Called(commentId, userId)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) UnlikeComment(commentId, userId string) error {
	args := m.Called(commentId, userId)
	return args.Error(0)
}

func (m *MockRepository) CreateChat(params CreateChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}

func (m *MockRepository) FindDirectChat(userA, userB string) (Chat, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Chat), args.Error(1)
}

func (m *MockRepository) GetChatById(id string) (Chat, error) {
	args := m.Called(id)
	return args.Get(0).(Chat), args.Error(1)
}

func (m *MockRepository) ListChatsForUser(userId string) ([]Chat, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]Chat); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) IsChatMember(chatId, userId string) bool {
	args := m.Called(chatId, userId)
	return args.Bool(0)
}

func (m *MockRepository) AddChatMember(chatId, userId string) error {
	args := m.Called(chatId, userId)
	return args.Error(0)
}

func (m *MockRepository) RemoveChatMember(chatId, userId string) error {
	args := m.Called(chatId, userId)
	return args.Error(0)
}

func (m *MockRepository) DeleteChat(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepository) CreateGroupMessage(params CreateGroupMessageParams) (GroupMessage, error) {
	args := m.Called(params)
	return args.Get(0).(GroupMessage), args.Error(1)
}

func (m *MockRepository) CreateDirectMessage(params CreateDirectMessageParams) (DirectMessage, error) {
	args := m.Called(params)
	return args.Get(0).(DirectMessage), args.Error(1)
}

func (m *MockRepository) ListGroupMessages(groupId string) ([]GroupMessage, error) {
	args := m.Called(groupId)
	if v, ok := args.Get(0).([]GroupMessage); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListDirectMessages(chatId string) ([]DirectMessage, error) {
	args := m.Called(chatId)
	if v, ok := args.Get(0).([]DirectMessage); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}

func (m *MockRepository) ListNotifications(userId string) ([]Notification, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]Notification); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) MarkNotificationRead(id, userId string) (Notification, error) {
	args := m.Called(id, userId)
	return args.Get(0).(Notification), args.Error(1)
}

package database

type Repository interface {
	Ping() error
	Close() error

	CreateUser(params CreateUserParams) (User, error)
	GetUserById(id string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUsersByIds(ids []string) ([]User, error)
	SearchUsers(query string, limit int) ([]User, error)
	UpdateUser(id string, params UpdateUserParams) (User, error)
	UpdatePassword(id, passwordHash string) error

	Follow(followerId, followeeId string) (bool, error)
	Unfollow(followerId, followeeId string) error
	ListFollowers(userId string) ([]User, error)
	ListFollowing(userId string) ([]User, error)

	CreatePost(params CreatePostParams) (Post, error)
	GetPostById(id string) (Post, error)
	ListPosts(userId string) ([]Post, error)
	ListFeed(userId string) ([]Post, error)
	ListExplore(limit int) ([]Post, error)
	DeletePost(id string) error
	LikePost(postId, userId string) (bool, error)
	UnlikePost(postId, userId string) error

	CreateComment(params CreateCommentParams) (Comment, error)
	GetCommentById(id string) (Comment, error)
	ListComments(postId string) ([]Comment, error)
	DeleteComment(id string) error
	LikeComment(commentId, userId string) (bool, error)
	UnlikeComment(commentId, userId string) error

	CreateChat(params CreateChatParams) (Chat, error)
	FindDirectChat(userA, userB string) (Chat, error)
	GetChatById(id string) (Chat, error)
	ListChatsForUser(userId string) ([]Chat, error)
	IsChatMember(chatId, userId string) bool
	AddChatMember(chatId, userId string) error
	RemoveChatMember(chatId, userId string) error
	DeleteChat(id string) error

	CreateGroupMessage(params CreateGroupMessageParams) (GroupMessage, error)
	CreateDirectMessage(params CreateDirectMessageParams) (DirectMessage, error)
	ListGroupMessages(groupId string) ([]GroupMessage, error)
	ListDirectMessages(chatId string) ([]DirectMessage, error)

	CreateNotification(params CreateNotificationParams) (Notification, error)
	ListNotifications(userId string) ([]Notification, error)
	MarkNotificationRead(id, userId string) (Notification, error)
}

var (
	_ Repository = (*PgRepository)(nil)
	_ Repository = (*SqliteRepository)(nil)
	_ Repository = (*MockRepository)(nil)
)

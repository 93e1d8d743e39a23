package database

import "time"

// The gorm tags are used by SqliteRepository; PgRepository maps columns by hand.

type User struct {
	Id           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Avatar       string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Follow struct {
	FollowerId string `gorm:"primaryKey;size:36"`
	FolloweeId string `gorm:"primaryKey;size:36;index"`
	CreatedAt  time.Time
}

type Post struct {
	Id        string `gorm:"primaryKey;size:36"`
	UserId    string `gorm:"index;not null"`
	Text      string `gorm:"not null"`
	Media     string
	Likes     []string `gorm:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PostLike struct {
	PostId    string `gorm:"primaryKey;size:36"`
	UserId    string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
}

type Comment struct {
	Id        string   `gorm:"primaryKey;size:36"`
	PostId    string   `gorm:"index;not null"`
	UserId    string   `gorm:"not null"`
	Text      string   `gorm:"not null"`
	Likes     []string `gorm:"-"`
	CreatedAt time.Time
}

type CommentLike struct {
	CommentId string `gorm:"primaryKey;size:36"`
	UserId    string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
}

type Chat struct {
	Id        string `gorm:"primaryKey;size:36"`
	Name      string
	IsGroup   bool
	AdminId   string
	Members   []string `gorm:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChatMember struct {
	ChatId    string `gorm:"primaryKey;size:36"`
	UserId    string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time
}

type GroupMessage struct {
	Id        string `gorm:"primaryKey;size:36"`
	GroupId   string `gorm:"index;not null"`
	SenderId  string `gorm:"not null"`
	Content   string `gorm:"not null"`
	CreatedAt time.Time
}

type DirectMessage struct {
	Id         string `gorm:"primaryKey;size:36"`
	ChatId     string `gorm:"index;not null"`
	SenderId   string `gorm:"not null"`
	ReceiverId string `gorm:"not null"`
	Content    string `gorm:"not null"`
	CreatedAt  time.Time
}

type Notification struct {
	Id         string `gorm:"primaryKey;size:36"`
	UserId     string `gorm:"index;not null"`
	Type       string `gorm:"size:16;not null"`
	FromUserId string
	PostId     string
	CommentId  string
	MessageId  string
	Read       bool `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
}

// UpdateUserParams holds profile changes. Nil fields are left as they are.
type UpdateUserParams struct {
	Name   *string
	Avatar *string
	Bio    *string
}

type CreatePostParams struct {
	UserId string
	Text   string
	Media  string
}

type CreateCommentParams struct {
	PostId string
	UserId string
	Text   string
}

type CreateChatParams struct {
	Name    string
	IsGroup bool
	AdminId string
	Members []string
}

type CreateGroupMessageParams struct {
	GroupId  string
	SenderId string
	Content  string
}

type CreateDirectMessageParams struct {
	ChatId     string
	SenderId   string
	ReceiverId string
	Content    string
}

type CreateNotificationParams struct {
	UserId     string
	Type       string
	FromUserId string
	PostId     string
	CommentId  string
	MessageId  string
}

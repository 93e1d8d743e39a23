package types

import (
	"time"
)

const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
	NotificationMessage = "message"
	NotificationMention = "mention"
)

func ValidNotificationType(t string) bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationMessage, NotificationMention:
		return true
	}
	return false
}

// PublicUser holds the display fields attached to records pushed to clients.
type PublicUser struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type User struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type Notification struct {
	Id        string      `json:"id"`
	User      string      `json:"user"`
	Type      string      `json:"type"`
	FromUser  *PublicUser `json:"fromUser,omitempty"`
	Post      string      `json:"post,omitempty"`
	Comment   string      `json:"comment,omitempty"`
	Message   string      `json:"message,omitempty"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Message is either a group message (GroupId set) or a direct message
// (ChatId and Receiver set).
type Message struct {
	Id        string      `json:"id"`
	ChatId    string      `json:"chatId,omitempty"`
	GroupId   string      `json:"groupId,omitempty"`
	Sender    PublicUser  `json:"sender"`
	Receiver  *PublicUser `json:"receiver,omitempty"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Chat struct {
	Id        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	IsGroup   bool         `json:"isGroup"`
	Users     []PublicUser `json:"users"`
	Admin     *PublicUser  `json:"admin,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type Post struct {
	Id        string     `json:"id"`
	User      PublicUser `json:"user"`
	Text      string     `json:"text"`
	Media     string     `json:"media,omitempty"`
	Likes     []string   `json:"likes"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Comment struct {
	Id        string     `json:"id"`
	Post      string     `json:"post"`
	User      PublicUser `json:"user"`
	Text      string     `json:"text"`
	Likes     []string   `json:"likes"`
	CreatedAt time.Time  `json:"createdAt"`
}

package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SqliteRepository is the embedded store used for local development and tests.
type SqliteRepository struct {
	db *gorm.DB
}

func NewSqliteRepository(dsn string) (*SqliteRepository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&User{},
		&Follow{},
		&Post{},
		&PostLike{},
		&Comment{},
		&CommentLike{},
		&Chat{},
		&ChatMember{},
		&GroupMessage{},
		&DirectMessage{},
		&Notification{},
	); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SqliteRepository{db: db}, nil
}

func gormNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *SqliteRepository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (r *SqliteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *SqliteRepository) CreateUser(params CreateUserParams) (User, error) {
	u := User{
		Id:           newId(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Avatar:       params.Avatar,
	}
	err := r.db.Create(&u).Error
	return u, err
}

func (r *SqliteRepository) GetUserById(id string) (User, error) {
	var u User
	err := r.db.Where("id = ?", id).First(&u).Error
	return u, gormNotFound(err)
}

func (r *SqliteRepository) GetUserByEmail(email string) (User, error) {
	var u User
	err := r.db.Where("email = ?", email).First(&u).Error
	return u, gormNotFound(err)
}

func (r *SqliteRepository) GetUsersByIds(ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []User
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (r *SqliteRepository) SearchUsers(query string, limit int) ([]User, error) {
	var users []User
	like := "%" + query + "%"
	err := r.db.Where("name LIKE ? OR email LIKE ?", like, like).
		Order("name").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *SqliteRepository) UpdateUser(id string, params UpdateUserParams) (User, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if params.Name != nil {
		updates["name"] = *params.Name
	}
	if params.Avatar != nil {
		updates["avatar"] = *params.Avatar
	}
	if params.Bio != nil {
		updates["bio"] = *params.Bio
	}

	res := r.db.Model(&User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return User{}, ErrNotFound
	}
	return r.GetUserById(id)
}

func (r *SqliteRepository) UpdatePassword(id, passwordHash string) error {
	res := r.db.Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SqliteRepository) Follow(followerId, followeeId string) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Follow{FollowerId: followerId, FolloweeId: followeeId})
	return res.RowsAffected > 0, res.Error
}

func (r *SqliteRepository) Unfollow(followerId, followeeId string) error {
	return r.db.Where("follower_id = ? AND followee_id = ?", followerId, followeeId).
		Delete(&Follow{}).Error
}

func (r *SqliteRepository) ListFollowers(userId string) ([]User, error) {
	var users []User
	err := r.db.Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followee_id = ?", userId).
		Order("follows.created_at").
		Find(&users).Error
	return users, err
}

func (r *SqliteRepository) ListFollowing(userId string) ([]User, error) {
	var users []User
	err := r.db.Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userId).
		Order("follows.created_at").
		Find(&users).Error
	return users, err
}

func (r *SqliteRepository) loadLikes(p *Post) error {
	p.Likes = []string{}
	return r.db.Model(&PostLike{}).
		Where("post_id = ?", p.Id).
		Order("created_at, rowid").
		Pluck("user_id", &p.Likes).Error
}

func (r *SqliteRepository) CreatePost(params CreatePostParams) (Post, error) {
	p := Post{
		Id:     newId(),
		UserId: params.UserId,
		Text:   params.Text,
		Media:  params.Media,
	}
	if err := r.db.Create(&p).Error; err != nil {
		return Post{}, err
	}
	p.Likes = []string{}
	return p, nil
}

func (r *SqliteRepository) GetPostById(id string) (Post, error) {
	var p Post
	if err := r.db.Where("id = ?", id).First(&p).Error; err != nil {
		return Post{}, gormNotFound(err)
	}
	return p, r.loadLikes(&p)
}

func (r *SqliteRepository) ListPosts(userId string) ([]Post, error) {
	q := r.db.Order("created_at DESC, rowid DESC")
	if userId != "" {
		q = q.Where("user_id = ?", userId)
	}
	return r.findPosts(q)
}

// ListFeed returns posts by userId and by everyone userId follows, newest first.
func (r *SqliteRepository) ListFeed(userId string) ([]Post, error) {
	following := r.db.Model(&Follow{}).Select("followee_id").Where("follower_id = ?", userId)
	q := r.db.Where("user_id = ? OR user_id IN (?)", userId, following).
		Order("created_at DESC, rowid DESC")
	return r.findPosts(q)
}

func (r *SqliteRepository) ListExplore(limit int) ([]Post, error) {
	return r.findPosts(r.db.Order("RANDOM()").Limit(limit))
}

func (r *SqliteRepository) findPosts(q *gorm.DB) ([]Post, error) {
	var posts []Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	for i := range posts {
		if err := r.loadLikes(&posts[i]); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (r *SqliteRepository) DeletePost(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		comments := tx.Model(&Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", comments).Delete(&CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", id).Delete(&PostLike{}).Error
	})
}

func (r *SqliteRepository) LikePost(postId, userId string) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&PostLike{PostId: postId, UserId: userId})
	return res.RowsAffected > 0, res.Error
}

func (r *SqliteRepository) UnlikePost(postId, userId string) error {
	return r.db.Where("post_id = ? AND user_id = ?", postId, userId).Delete(&PostLike{}).Error
}

func (r *SqliteRepository) loadCommentLikes(c *Comment) error {
	c.Likes = []string{}
	return r.db.Model(&CommentLike{}).
		Where("comment_id = ?", c.Id).
		Order("created_at, rowid").
		Pluck("user_id", &c.Likes).Error
}

func (r *SqliteRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	c := Comment{
		Id:     newId(),
		PostId: params.PostId,
		UserId: params.UserId,
		Text:   params.Text,
	}
	if err := r.db.Create(&c).Error; err != nil {
		return Comment{}, err
	}
	c.Likes = []string{}
	return c, nil
}

func (r *SqliteRepository) GetCommentById(id string) (Comment, error) {
	var c Comment
	if err := r.db.Where("id = ?", id).First(&c).Error; err != nil {
		return Comment{}, gormNotFound(err)
	}
	return c, r.loadCommentLikes(&c)
}

func (r *SqliteRepository) ListComments(postId string) ([]Comment, error) {
	var comments []Comment
	if err := r.db.Where("post_id = ?", postId).Order("created_at, rowid").Find(&comments).Error; err != nil {
		return nil, err
	}
	for i := range comments {
		if err := r.loadCommentLikes(&comments[i]); err != nil {
			return nil, err
		}
	}
	return comments, nil
}

func (r *SqliteRepository) DeleteComment(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("comment_id = ?", id).Delete(&CommentLike{}).Error
	})
}

func (r *SqliteRepository) LikeComment(commentId, userId string) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&CommentLike{CommentId: commentId, UserId: userId})
	return res.RowsAffected > 0, res.Error
}

func (r *SqliteRepository) UnlikeComment(commentId, userId string) error {
	return r.db.Where("comment_id = ? AND user_id = ?", commentId, userId).Delete(&CommentLike{}).Error
}

func (r *SqliteRepository) loadMembers(c *Chat) error {
	c.Members = []string{}
	return r.db.Model(&ChatMember{}).
		Where("chat_id = ?", c.Id).
		Order("created_at, rowid").
		Pluck("user_id", &c.Members).Error
}

func (r *SqliteRepository) CreateChat(params CreateChatParams) (Chat, error) {
	chat := Chat{
		Id:      newChatId(),
		Name:    params.Name,
		IsGroup: params.IsGroup,
		AdminId: params.AdminId,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(params.Members))
		for _, userId := range params.Members {
			if _, ok := seen[userId]; ok {
				continue
			}
			seen[userId] = struct{}{}
			if err := tx.Create(&ChatMember{ChatId: chat.Id, UserId: userId}).Error; err != nil {
				return err
			}
			chat.Members = append(chat.Members, userId)
		}
		return nil
	})
	if err != nil {
		return Chat{}, err
	}
	return chat, nil
}

func (r *SqliteRepository) FindDirectChat(userA, userB string) (Chat, error) {
	shared := r.db.Table("chat_members AS a").
		Select("a.chat_id").
		Joins("JOIN chat_members AS b ON a.chat_id = b.chat_id").
		Where("a.user_id = ? AND b.user_id = ?", userA, userB)

	var c Chat
	if err := r.db.Where("is_group = ? AND id IN (?)", false, shared).First(&c).Error; err != nil {
		return Chat{}, gormNotFound(err)
	}
	return c, r.loadMembers(&c)
}

func (r *SqliteRepository) GetChatById(id string) (Chat, error) {
	var c Chat
	if err := r.db.Where("id = ?", id).First(&c).Error; err != nil {
		return Chat{}, gormNotFound(err)
	}
	return c, r.loadMembers(&c)
}

func (r *SqliteRepository) ListChatsForUser(userId string) ([]Chat, error) {
	var chats []Chat
	err := r.db.Where("id IN (?)", r.db.Model(&ChatMember{}).Select("chat_id").Where("user_id = ?", userId)).
		Order("updated_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if err := r.loadMembers(&chats[i]); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

func (r *SqliteRepository) IsChatMember(chatId, userId string) bool {
	var count int64
	err := r.db.Model(&ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatId, userId).
		Count(&count).Error
	return err == nil && count > 0
}

func (r *SqliteRepository) AddChatMember(chatId, userId string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&ChatMember{ChatId: chatId, UserId: userId}).Error; err != nil {
			return err
		}
		return tx.Model(&Chat{}).Where("id = ?", chatId).Update("updated_at", time.Now().UTC()).Error
	})
}

func (r *SqliteRepository) RemoveChatMember(chatId, userId string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND user_id = ?", chatId, userId).Delete(&ChatMember{}).Error; err != nil {
			return err
		}
		return tx.Model(&Chat{}).Where("id = ?", chatId).Update("updated_at", time.Now().UTC()).Error
	})
}

func (r *SqliteRepository) DeleteChat(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&Chat{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("chat_id = ?", id).Delete(&ChatMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&GroupMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ?", id).Delete(&DirectMessage{}).Error
	})
}

func (r *SqliteRepository) CreateGroupMessage(params CreateGroupMessageParams) (GroupMessage, error) {
	m := GroupMessage{
		Id:       newId(),
		GroupId:  params.GroupId,
		SenderId: params.SenderId,
		Content:  params.Content,
	}
	err := r.db.Create(&m).Error
	return m, err
}

func (r *SqliteRepository) CreateDirectMessage(params CreateDirectMessageParams) (DirectMessage, error) {
	m := DirectMessage{
		Id:         newId(),
		ChatId:     params.ChatId,
		SenderId:   params.SenderId,
		ReceiverId: params.ReceiverId,
		Content:    params.Content,
	}
	err := r.db.Create(&m).Error
	return m, err
}

func (r *SqliteRepository) ListGroupMessages(groupId string) ([]GroupMessage, error) {
	var msgs []GroupMessage
	err := r.db.Where("group_id = ?", groupId).Order("created_at ASC, rowid ASC").Find(&msgs).Error
	return msgs, err
}

func (r *SqliteRepository) ListDirectMessages(chatId string) ([]DirectMessage, error) {
	var msgs []DirectMessage
	err := r.db.Where("chat_id = ?", chatId).Order("created_at ASC, rowid ASC").Find(&msgs).Error
	return msgs, err
}

func (r *SqliteRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	n := Notification{
		Id:         newId(),
		UserId:     params.UserId,
		Type:       params.Type,
		FromUserId: params.FromUserId,
		PostId:     params.PostId,
		CommentId:  params.CommentId,
		MessageId:  params.MessageId,
	}
	err := r.db.Create(&n).Error
	return n, err
}

func (r *SqliteRepository) ListNotifications(userId string) ([]Notification, error) {
	var ns []Notification
	err := r.db.Where("user_id = ?", userId).Order("created_at DESC, rowid DESC").Find(&ns).Error
	return ns, err
}

func (r *SqliteRepository) MarkNotificationRead(id, userId string) (Notification, error) {
	var n Notification
	if err := r.db.Where("id = ? AND user_id = ?", id, userId).First(&n).Error; err != nil {
		return Notification{}, gormNotFound(err)
	}
	if err := r.db.Model(&n).Update("read", true).Error; err != nil {
		return Notification{}, err
	}
	n.Read = true
	return n, nil
}

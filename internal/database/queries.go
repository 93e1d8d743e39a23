package database

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

const (
	userColumns = "id, name, email, password_hash, avatar, bio, created_at, updated_at"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func collectUsers(rows *sql.Rows, err error) ([]User, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *PgRepository) CreateUser(params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRow(
		"INSERT INTO users (id, name, email, password_hash, avatar, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING "+userColumns,
		newId(),
		params.Name,
		params.Email,
		params.PasswordHash,
		params.Avatar,
		now,
	)
	return scanUser(row)
}

func (db *PgRepository) GetUserById(id string) (User, error) {
	row := db.conn.QueryRow("SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1", id)
	u, err := scanUser(row)
	return u, notFound(err)
}

func (db *PgRepository) GetUserByEmail(email string) (User, error) {
	row := db.conn.QueryRow("SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1", email)
	u, err := scanUser(row)
	return u, notFound(err)
}

func (db *PgRepository) GetUsersByIds(ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectUsers(db.conn.Query(
		"SELECT "+userColumns+" FROM users WHERE id = ANY($1)",
		pq.Array(ids),
	))
}

func (db *PgRepository) SearchUsers(query string, limit int) ([]User, error) {
	return collectUsers(db.conn.Query(
		"SELECT "+userColumns+" FROM users WHERE name ILIKE $1 OR email ILIKE $1 "+
			"ORDER BY name LIMIT $2",
		"%"+query+"%",
		limit,
	))
}

func (db *PgRepository) UpdateUser(id string, params UpdateUserParams) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE users SET name = COALESCE($2::text, name), avatar = COALESCE($3::text, avatar), "+
			"bio = COALESCE($4::text, bio), updated_at = $5 WHERE id = $1 RETURNING "+userColumns,
		id,
		params.Name,
		params.Avatar,
		params.Bio,
		time.Now().UTC(),
	)
	u, err := scanUser(row)
	return u, notFound(err)
}

func (db *PgRepository) UpdatePassword(id, passwordHash string) error {
	res, err := db.conn.Exec(
		"UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1",
		id,
		passwordHash,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgRepository) Follow(followerId, followeeId string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT INTO follows (follower_id, followee_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT DO NOTHING",
		followerId,
		followeeId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) Unfollow(followerId, followeeId string) error {
	_, err := db.conn.Exec(
		"DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2",
		followerId,
		followeeId,
	)
	return err
}

func (db *PgRepository) ListFollowers(userId string) ([]User, error) {
	return collectUsers(db.conn.Query(
		"SELECT u.id, u.name, u.email, u.password_hash, u.avatar, u.bio, u.created_at, u.updated_at "+
			"FROM users u JOIN follows f ON f.follower_id = u.id "+
			"WHERE f.followee_id = $1 ORDER BY f.created_at",
		userId,
	))
}

func (db *PgRepository) ListFollowing(userId string) ([]User, error) {
	return collectUsers(db.conn.Query(
		"SELECT u.id, u.name, u.email, u.password_hash, u.avatar, u.bio, u.created_at, u.updated_at "+
			"FROM users u JOIN follows f ON f.followee_id = u.id "+
			"WHERE f.follower_id = $1 ORDER BY f.created_at",
		userId,
	))
}

func (db *PgRepository) CreatePost(params CreatePostParams) (Post, error) {
	now := time.Now().UTC()
	p := Post{
		Id:        newId(),
		UserId:    params.UserId,
		Text:      params.Text,
		Media:     params.Media,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := db.conn.Exec(
		"INSERT INTO posts (id, user_id, text, media, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)",
		p.Id,
		p.UserId,
		p.Text,
		p.Media,
		now,
	)
	return p, err
}

const postSelect = "SELECT p.id, p.user_id, p.text, p.media, p.created_at, p.updated_at, " +
	"COALESCE(ARRAY_AGG(l.user_id ORDER BY l.created_at) FILTER (WHERE l.user_id IS NOT NULL), '{}') " +
	"FROM posts p LEFT JOIN post_likes l ON l.post_id = p.id "

func scanPost(row scanner) (Post, error) {
	var p Post
	err := row.Scan(
		&p.Id,
		&p.UserId,
		&p.Text,
		&p.Media,
		&p.CreatedAt,
		&p.UpdatedAt,
		pq.Array(&p.Likes),
	)
	return p, err
}

func (db *PgRepository) GetPostById(id string) (Post, error) {
	row := db.conn.QueryRow(postSelect+"WHERE p.id = $1 GROUP BY p.id", id)
	p, err := scanPost(row)
	return p, notFound(err)
}

func (db *PgRepository) ListPosts(userId string) ([]Post, error) {
	if userId == "" {
		return collectPosts(db.conn.Query(postSelect + "GROUP BY p.id ORDER BY p.created_at DESC"))
	}
	return collectPosts(db.conn.Query(postSelect+"WHERE p.user_id = $1 GROUP BY p.id ORDER BY p.created_at DESC", userId))
}

func (db *PgRepository) ListFeed(userId string) ([]Post, error) {
	return collectPosts(db.conn.Query(
		postSelect+"WHERE p.user_id = $1 OR p.user_id IN (SELECT followee_id FROM follows WHERE follower_id = $1) "+
			"GROUP BY p.id ORDER BY p.created_at DESC",
		userId,
	))
}

func (db *PgRepository) ListExplore(limit int) ([]Post, error) {
	return collectPosts(db.conn.Query(postSelect+"GROUP BY p.id ORDER BY random() LIMIT $1", limit))
}

func collectPosts(rows *sql.Rows, err error) ([]Post, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// DeletePost removes the post. Likes and comments go with it via foreign keys.
func (db *PgRepository) DeletePost(id string) error {
	res, err := db.conn.Exec("DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgRepository) LikePost(postId, userId string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		postId,
		userId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) UnlikePost(postId, userId string) error {
	_, err := db.conn.Exec("DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2", postId, userId)
	return err
}

func (db *PgRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	c := Comment{
		Id:        newId(),
		PostId:    params.PostId,
		UserId:    params.UserId,
		Text:      params.Text,
		Likes:     []string{},
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.conn.Exec(
		"INSERT INTO comments (id, post_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.Id,
		c.PostId,
		c.UserId,
		c.Text,
		c.CreatedAt,
	)
	return c, err
}

const commentSelect = "SELECT c.id, c.post_id, c.user_id, c.text, c.created_at, " +
	"COALESCE(ARRAY_AGG(l.user_id ORDER BY l.created_at) FILTER (WHERE l.user_id IS NOT NULL), '{}') " +
	"FROM comments c LEFT JOIN comment_likes l ON l.comment_id = c.id "

func scanComment(row scanner) (Comment, error) {
	var c Comment
	err := row.Scan(
		&c.Id,
		&c.PostId,
		&c.UserId,
		&c.Text,
		&c.CreatedAt,
		pq.Array(&c.Likes),
	)
	return c, err
}

func (db *PgRepository) GetCommentById(id string) (Comment, error) {
	row := db.conn.QueryRow(commentSelect+"WHERE c.id = $1 GROUP BY c.id", id)
	c, err := scanComment(row)
	return c, notFound(err)
}

func (db *PgRepository) ListComments(postId string) ([]Comment, error) {
	rows, err := db.conn.Query(commentSelect+"WHERE c.post_id = $1 GROUP BY c.id ORDER BY c.created_at", postId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (db *PgRepository) DeleteComment(id string) error {
	res, err := db.conn.Exec("DELETE FROM comments WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgRepository) LikeComment(commentId, userId string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		commentId,
		userId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) UnlikeComment(commentId, userId string) error {
	_, err := db.conn.Exec("DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2", commentId, userId)
	return err
}

func (db *PgRepository) CreateChat(params CreateChatParams) (Chat, error) {
	now := time.Now().UTC()
	chat := Chat{
		Id:        newChatId(),
		Name:      params.Name,
		IsGroup:   params.IsGroup,
		AdminId:   params.AdminId,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO chats (id, name, is_group, admin_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)",
		chat.Id,
		chat.Name,
		chat.IsGroup,
		chat.AdminId,
		now,
	); err != nil {
		return Chat{}, err
	}

	seen := make(map[string]struct{}, len(params.Members))
	for _, userId := range params.Members {
		if _, ok := seen[userId]; ok {
			continue
		}
		seen[userId] = struct{}{}
		if _, err := tx.Exec(
			"INSERT INTO chat_members (chat_id, user_id, created_at) VALUES ($1, $2, $3)",
			chat.Id,
			userId,
			now,
		); err != nil {
			return Chat{}, err
		}
		chat.Members = append(chat.Members, userId)
	}

	return chat, tx.Commit()
}

const chatSelect = "SELECT c.id, c.name, c.is_group, c.admin_id, c.created_at, c.updated_at, " +
	"COALESCE(ARRAY_AGG(m.user_id ORDER BY m.created_at) FILTER (WHERE m.user_id IS NOT NULL), '{}') " +
	"FROM chats c LEFT JOIN chat_members m ON m.chat_id = c.id "

func scanChat(row scanner) (Chat, error) {
	var c Chat
	err := row.Scan(
		&c.Id,
		&c.Name,
		&c.IsGroup,
		&c.AdminId,
		&c.CreatedAt,
		&c.UpdatedAt,
		pq.Array(&c.Members),
	)
	return c, err
}

func (db *PgRepository) FindDirectChat(userA, userB string) (Chat, error) {
	row := db.conn.QueryRow(
		chatSelect+"WHERE c.is_group = false AND c.id IN ("+
			"SELECT a.chat_id FROM chat_members a JOIN chat_members b ON a.chat_id = b.chat_id "+
			"WHERE a.user_id = $1 AND b.user_id = $2) "+
			"GROUP BY c.id LIMIT 1",
		userA,
		userB,
	)
	c, err := scanChat(row)
	return c, notFound(err)
}

func (db *PgRepository) GetChatById(id string) (Chat, error) {
	row := db.conn.QueryRow(chatSelect+"WHERE c.id = $1 GROUP BY c.id", id)
	c, err := scanChat(row)
	return c, notFound(err)
}

func (db *PgRepository) ListChatsForUser(userId string) ([]Chat, error) {
	rows, err := db.conn.Query(
		chatSelect+"WHERE c.id IN (SELECT chat_id FROM chat_members WHERE user_id = $1) "+
			"GROUP BY c.id ORDER BY c.updated_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (db *PgRepository) IsChatMember(chatId, userId string) bool {
	var exists bool
	err := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)",
		chatId,
		userId,
	).Scan(&exists)
	return err == nil && exists
}

func (db *PgRepository) AddChatMember(chatId, userId string) error {
	now := time.Now().UTC()
	_, err := db.conn.Exec(
		"INSERT INTO chat_members (chat_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		chatId,
		userId,
		now,
	)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE chats SET updated_at = $2 WHERE id = $1", chatId, now)
	return err
}

func (db *PgRepository) RemoveChatMember(chatId, userId string) error {
	_, err := db.conn.Exec("DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2", chatId, userId)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE chats SET updated_at = $2 WHERE id = $1", chatId, time.Now().UTC())
	return err
}

func (db *PgRepository) DeleteChat(id string) error {
	res, err := db.conn.Exec("DELETE FROM chats WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgRepository) CreateGroupMessage(params CreateGroupMessageParams) (GroupMessage, error) {
	m := GroupMessage{
		Id:        newId(),
		GroupId:   params.GroupId,
		SenderId:  params.SenderId,
		Content:   params.Content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.conn.Exec(
		"INSERT INTO group_messages (id, group_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4, $5)",
		m.Id,
		m.GroupId,
		m.SenderId,
		m.Content,
		m.CreatedAt,
	)
	return m, err
}

func (db *PgRepository) CreateDirectMessage(params CreateDirectMessageParams) (DirectMessage, error) {
	m := DirectMessage{
		Id:         newId(),
		ChatId:     params.ChatId,
		SenderId:   params.SenderId,
		ReceiverId: params.ReceiverId,
		Content:    params.Content,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := db.conn.Exec(
		"INSERT INTO direct_messages (id, chat_id, sender_id, receiver_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		m.Id,
		m.ChatId,
		m.SenderId,
		m.ReceiverId,
		m.Content,
		m.CreatedAt,
	)
	return m, err
}

func (db *PgRepository) ListGroupMessages(groupId string) ([]GroupMessage, error) {
	rows, err := db.conn.Query(
		"SELECT id, group_id, sender_id, content, created_at FROM group_messages "+
			"WHERE group_id = $1 ORDER BY created_at ASC",
		groupId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []GroupMessage
	for rows.Next() {
		var m GroupMessage
		if err := rows.Scan(&m.Id, &m.GroupId, &m.SenderId, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (db *PgRepository) ListDirectMessages(chatId string) ([]DirectMessage, error) {
	rows, err := db.conn.Query(
		"SELECT id, chat_id, sender_id, receiver_id, content, created_at FROM direct_messages "+
			"WHERE chat_id = $1 ORDER BY created_at ASC",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []DirectMessage
	for rows.Next() {
		var m DirectMessage
		if err := rows.Scan(&m.Id, &m.ChatId, &m.SenderId, &m.ReceiverId, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

const notificationColumns = "id, user_id, type, from_user_id, post_id, comment_id, message_id, read, created_at"

func scanNotification(row scanner) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.Id,
		&n.UserId,
		&n.Type,
		&n.FromUserId,
		&n.PostId,
		&n.CommentId,
		&n.MessageId,
		&n.Read,
		&n.CreatedAt,
	)
	return n, err
}

func (db *PgRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	row := db.conn.QueryRow(
		"INSERT INTO notifications (id, user_id, type, from_user_id, post_id, comment_id, message_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING "+notificationColumns,
		newId(),
		params.UserId,
		params.Type,
		params.FromUserId,
		params.PostId,
		params.CommentId,
		params.MessageId,
		time.Now().UTC(),
	)
	return scanNotification(row)
}

func (db *PgRepository) ListNotifications(userId string) ([]Notification, error) {
	rows, err := db.conn.Query(
		"SELECT "+notificationColumns+" FROM notifications WHERE user_id = $1 ORDER BY created_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ns []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

func (db *PgRepository) MarkNotificationRead(id, userId string) (Notification, error) {
	row := db.conn.QueryRow(
		"UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2 RETURNING "+notificationColumns,
		id,
		userId,
	)
	n, err := scanNotification(row)
	return n, notFound(err)
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/notify"
	"github.com/npezzotti/flashchat/internal/types"
)

type CreatePostRequest struct {
	Text  string `json:"text"`
	Media string `json:"media"`
}

const exploreLimit = 20

type CreateCommentRequest struct {
	Text string `json:"text"`
}

func profileOrId(profiles map[string]types.PublicUser, id string) types.PublicUser {
	if p, ok := profiles[id]; ok {
		return p
	}
	return types.PublicUser{Id: id}
}

func (s *App) toPosts(ctx context.Context, posts ...database.Post) ([]types.Post, error) {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserId)
	}
	profiles, err := s.profiles.Resolve(ctx, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]types.Post, 0, len(posts))
	for _, p := range posts {
		likes := p.Likes
		if likes == nil {
			likes = []string{}
		}
		out = append(out, types.Post{
			Id:        p.Id,
			User:      profileOrId(profiles, p.UserId),
			Text:      p.Text,
			Media:     p.Media,
			Likes:     likes,
			CreatedAt: p.CreatedAt,
		})
	}
	return out, nil
}

func (s *App) writePost(w http.ResponseWriter, r *http.Request, statusCode int, post database.Post) {
	posts, err := s.toPosts(r.Context(), post)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	s.writeJson(w, statusCode, posts[0])
}

func (s *App) createPost(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if strings.TrimSpace(req.Text) == "" && req.Media == "" {
		s.writeError(w, NewBadRequestError().withMessage("text or media is required"))
		return
	}

	post, err := s.db.CreatePost(database.CreatePostParams{
		UserId: userId,
		Text:   req.Text,
		Media:  req.Media,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writePost(w, r, http.StatusCreated, post)
}

func (s *App) getPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.db.ListPosts(r.URL.Query().Get("userId"))
	s.writePosts(w, r, posts, err)
}

// getFeed lists the session user's posts and those of everyone they follow.
func (s *App) getFeed(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	posts, err := s.db.ListFeed(userId)
	s.writePosts(w, r, posts, err)
}

func (s *App) getExplore(w http.ResponseWriter, r *http.Request) {
	posts, err := s.db.ListExplore(exploreLimit)
	s.writePosts(w, r, posts, err)
}

func (s *App) writePosts(w http.ResponseWriter, r *http.Request, posts []database.Post, err error) {
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out, err := s.toPosts(r.Context(), posts...)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *App) deletePost(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	post, err := s.db.GetPostById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}
	if post.UserId != userId {
		s.writeError(w, NewForbiddenError().withMessage("you can only delete your own posts"))
		return
	}

	if err := s.db.DeletePost(post.Id); err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "post deleted"})
}

func (s *App) likePost(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	post, err := s.db.GetPostById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	liked, err := s.db.LikePost(post.Id, userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !liked {
		s.writeError(w, NewBadRequestError().withMessage("already liked"))
		return
	}
	post.Likes = append(post.Likes, userId)

	_, err = s.notifier.Dispatch(r.Context(), notify.Event{
		Type:        types.NotificationLike,
		ActorId:     userId,
		RecipientId: post.UserId,
		PostId:      post.Id,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writePost(w, r, http.StatusOK, post)
}

func (s *App) unlikePost(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	post, err := s.db.GetPostById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	if err := s.db.UnlikePost(post.Id, userId); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	post.Likes = slices.DeleteFunc(post.Likes, func(id string) bool { return id == userId })

	s.writePost(w, r, http.StatusOK, post)
}

func (s *App) addComment(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, NewBadRequestError().withMessage("text is required"))
		return
	}

	post, err := s.db.GetPostById(r.PathValue("postId"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	comment, err := s.db.CreateComment(database.CreateCommentParams{
		PostId: post.Id,
		UserId: userId,
		Text:   req.Text,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	_, err = s.notifier.Dispatch(r.Context(), notify.Event{
		Type:        types.NotificationComment,
		ActorId:     userId,
		RecipientId: post.UserId,
		PostId:      post.Id,
		CommentId:   comment.Id,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeComment(w, r, http.StatusCreated, comment)
}

func (s *App) getComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.db.ListComments(r.PathValue("postId"))
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out, err := s.toComments(r.Context(), comments...)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *App) toComments(ctx context.Context, comments ...database.Comment) ([]types.Comment, error) {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserId)
	}
	profiles, err := s.profiles.Resolve(ctx, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]types.Comment, 0, len(comments))
	for _, c := range comments {
		likes := c.Likes
		if likes == nil {
			likes = []string{}
		}
		out = append(out, types.Comment{
			Id:        c.Id,
			Post:      c.PostId,
			User:      profileOrId(profiles, c.UserId),
			Text:      c.Text,
			Likes:     likes,
			CreatedAt: c.CreatedAt,
		})
	}
	return out, nil
}

func (s *App) writeComment(w http.ResponseWriter, r *http.Request, statusCode int, comment database.Comment) {
	comments, err := s.toComments(r.Context(), comment)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	s.writeJson(w, statusCode, comments[0])
}

func (s *App) deleteComment(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	comment, err := s.db.GetCommentById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}
	if comment.UserId != userId {
		s.writeError(w, NewForbiddenError().withMessage("you can only delete your own comments"))
		return
	}

	if err := s.db.DeleteComment(comment.Id); err != nil {
		s.writeError(w, storeError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "comment deleted successfully"})
}

func (s *App) likeComment(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	comment, err := s.db.GetCommentById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	liked, err := s.db.LikeComment(comment.Id, userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !liked {
		s.writeError(w, NewBadRequestError().withMessage("already liked"))
		return
	}
	comment.Likes = append(comment.Likes, userId)

	s.writeComment(w, r, http.StatusOK, comment)
}

func (s *App) unlikeComment(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	comment, err := s.db.GetCommentById(r.PathValue("id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}

	if err := s.db.UnlikeComment(comment.Id, userId); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	comment.Likes = slices.DeleteFunc(comment.Likes, func(id string) bool { return id == userId })

	s.writeComment(w, r, http.StatusOK, comment)
}

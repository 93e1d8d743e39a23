package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/flashchat/internal/auth"
	"github.com/npezzotti/flashchat/internal/cache"
	"github.com/npezzotti/flashchat/internal/config"
	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/notify"
	"github.com/npezzotti/flashchat/internal/relay"
	"github.com/npezzotti/flashchat/internal/server"
)

type App struct {
	log            *log.Logger
	db             database.Repository
	srv            *http.Server
	hub            *server.Hub
	router         *server.Router
	auth           *auth.Authenticator
	profiles       *cache.ProfileResolver
	notifier       *notify.Dispatcher
	relay          *relay.Relay
	allowedOrigins []string
}

func NewApp(mux *http.ServeMux, logger *log.Logger, db database.Repository, hub *server.Hub, router *server.Router,
	profiles *cache.ProfileResolver, notifier *notify.Dispatcher, rl *relay.Relay, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		db:             db,
		hub:            hub,
		router:         router,
		auth:           auth.NewAuthenticator(cfg.SigningKey),
		profiles:       profiles,
		notifier:       notifier,
		relay:          rl,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /ws", s.serveWs)

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/logout", s.logout)
	mux.Handle("PUT /api/auth/change-password", s.authMiddleware(s.changePassword))

	mux.Handle("GET /api/users/me", s.authMiddleware(s.session))
	mux.Handle("PUT /api/users/me", s.authMiddleware(s.updateMe))
	mux.Handle("GET /api/users/search", s.authMiddleware(s.searchUsers))
	mux.Handle("GET /api/users/{id}", s.authMiddleware(s.getUser))
	mux.Handle("POST /api/users/{id}/follow", s.authMiddleware(s.followUser))
	mux.Handle("POST /api/users/{id}/unfollow", s.authMiddleware(s.unfollowUser))
	mux.Handle("GET /api/users/{id}/followers", s.authMiddleware(s.getFollowers))
	mux.Handle("GET /api/users/{id}/following", s.authMiddleware(s.getFollowing))

	mux.Handle("POST /api/posts", s.authMiddleware(s.createPost))
	mux.Handle("GET /api/posts", s.authMiddleware(s.getPosts))
	mux.Handle("GET /api/posts/feed", s.authMiddleware(s.getFeed))
	mux.Handle("GET /api/posts/explore", s.authMiddleware(s.getExplore))
	mux.Handle("DELETE /api/posts/{id}", s.authMiddleware(s.deletePost))
	mux.Handle("POST /api/posts/{id}/like", s.authMiddleware(s.likePost))
	mux.Handle("POST /api/posts/{id}/unlike", s.authMiddleware(s.unlikePost))

	mux.Handle("POST /api/comments/{postId}", s.authMiddleware(s.addComment))
	mux.Handle("GET /api/comments/{postId}", s.authMiddleware(s.getComments))
	mux.Handle("DELETE /api/comments/{id}", s.authMiddleware(s.deleteComment))
	mux.Handle("POST /api/comments/{id}/like", s.authMiddleware(s.likeComment))
	mux.Handle("POST /api/comments/{id}/unlike", s.authMiddleware(s.unlikeComment))

	mux.Handle("POST /api/chats", s.authMiddleware(s.createChat))
	mux.Handle("GET /api/chats/my", s.authMiddleware(s.getUserChats))
	mux.Handle("POST /api/chats/group/add", s.authMiddleware(s.addUserToGroup))
	mux.Handle("POST /api/chats/group/remove", s.authMiddleware(s.removeUserFromGroup))
	mux.Handle("POST /api/chats/group/delete", s.authMiddleware(s.deleteGroup))

	mux.Handle("POST /api/messages/send", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /api/messages/one-to-one/{chatId}", s.authMiddleware(s.getOneToOneMessages))
	mux.Handle("GET /api/messages/group/{groupId}", s.authMiddleware(s.getGroupMessages))

	mux.Handle("GET /api/notifications", s.authMiddleware(s.getNotifications))
	mux.Handle("PUT /api/notifications/{id}/read", s.authMiddleware(s.markNotificationRead))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

// Handler returns the fully wrapped handler chain.
func (s *App) Handler() http.Handler {
	return s.srv.Handler
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests, then closes every live connection.
func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}

	return nil
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *App) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Println(errResp.Error())
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

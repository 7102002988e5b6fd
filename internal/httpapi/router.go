package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gopherchat/gopherchat/internal/chat"
	"github.com/gopherchat/gopherchat/internal/common"
	"github.com/gopherchat/gopherchat/internal/conversation"
	"github.com/gopherchat/gopherchat/internal/document"
	"github.com/gopherchat/gopherchat/internal/httpapi/handlers"
	"github.com/gopherchat/gopherchat/internal/httpapi/middleware"
	"github.com/gopherchat/gopherchat/internal/store/redisstore"
)

type RouterOptions struct {
	// Redis enables rate limiting on the chat endpoint when non-nil.
	Redis          *redisstore.Store
	ChatRateLimit  int
	ChatRateWindow time.Duration
	// StaticDir serves the browser client when non-empty.
	StaticDir string
}

func NewRouter(chatSvc *chat.Service, convSvc *conversation.Service, docSvc *document.Service, logger *zap.Logger, opts RouterOptions) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(cors.Default())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	h := handlers.NewHandler(chatSvc, convSvc, docSvc, logger)

	api := r.Group("/api")
	api.GET("/health", h.Health)

	chatGroup := api.Group("/")
	if opts.Redis != nil && opts.ChatRateLimit > 0 {
		chatGroup.Use(middleware.RateLimit(opts.Redis, opts.ChatRateLimit, opts.ChatRateWindow, logger))
	}
	chatGroup.POST("/chat", h.Chat)

	api.GET("/conversations", h.ListConversations)
	api.POST("/conversations", h.CreateConversation)
	api.GET("/conversations/search", h.SearchConversations)
	api.GET("/conversations/:id", h.GetConversation)
	api.PATCH("/conversations/:id", h.UpdateConversation)
	api.DELETE("/conversations/:id", h.DeleteConversation)
	api.GET("/conversations/:id/messages", h.ListMessages)
	api.GET("/conversations/:id/export", h.ExportConversation)
	api.POST("/conversations/:id/share", h.ShareConversation)
	api.GET("/shared/:token", h.GetSharedConversation)

	api.POST("/documents/upload", h.UploadDocument)
	api.GET("/documents", h.ListDocuments)
	api.POST("/documents/retrieve", h.RetrieveDocuments)
	api.DELETE("/documents/:id", h.DeleteDocument)

	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
		r.StaticFile("/", opts.StaticDir+"/index.html")
	}

	return r
}

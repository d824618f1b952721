package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/anonchat-server/internal/attachment"
	"github.com/vovakirdan/anonchat-server/internal/config"
	"github.com/vovakirdan/anonchat-server/internal/core"
	"github.com/vovakirdan/anonchat-server/internal/store"
)

// NewServer builds the HTTP server: WebSocket endpoint, attachment files and a small REST API.
func NewServer(hub *core.Hub, st store.Store, attachments attachment.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "Server is running")
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	uploads := NewUploadHandlers(attachments, logger)
	router.GET(attachment.URLPrefix+":name", uploads.Get)
	router.HEAD(attachment.URLPrefix+":name", uploads.Get)

	chat := NewChatHandlers(hub, st, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms/:room/messages", chat.RoomMessages)
		api.GET("/stats", chat.Stats)
	}

	// coder/websocket hijacks after writing the 101, which gin's writer refuses.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		QueueSize:          cfg.ClientQueueSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/relaysys/portkern/internal/http/middleware"
	"github.com/relaysys/portkern/internal/ipc/port"
	"github.com/relaysys/portkern/internal/ipc/task"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine exposing the port and task operation
// table: release mode, recovery, request-id tagging, zap request
// logging, a concurrency cap, and dev-only CORS.
func NewRouter(log *zap.Logger, table *port.Table, registry *task.Registry, env string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})
	r.Use(gin.Recovery()) // Recovery first (outermost)
	r.Use(middleware.RequestID())
	r.Use(middleware.ZapLogger(log))
	r.Use(middleware.CapConcurrentRequests(256))

	if env == "dev" {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "DELETE"},
			AllowHeaders:    []string{"Content-Type", "X-Request-ID"},
		}))
	}

	h := NewHandlers(table)
	th := NewTaskHandlers(registry)

	r.POST("/tasks", th.Spawn)
	r.POST("/tasks/:id/terminate", th.Terminate)
	r.GET("/tasks/:id/activity", th.Activity)

	r.POST("/ports", h.Create)
	r.GET("/ports/find", h.Find)
	r.GET("/ports", h.GetNextInfo)
	r.GET("/ports/:id", h.GetInfo)
	r.POST("/ports/:id/close", h.Close)
	r.DELETE("/ports/:id", h.Delete)
	r.POST("/ports/:id/owner", h.SetOwner)
	r.POST("/ports/:id/read", h.Read)
	r.POST("/ports/:id/write", h.Write)
	r.POST("/ports/:id/buffer_size", h.BufferSize)
	r.GET("/ports/:id/count", h.Count)
	r.POST("/owners/:owner/reap", h.DeleteOwned)

	r.GET("/debug/ports", h.DebugDump)
	r.GET("/debug/ports/:idOrName", h.DebugDumpOne)

	return r
}

package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmoreland/lead-mesh/internal/domain/event"
	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
	porteventbus "github.com/jmoreland/lead-mesh/internal/port/eventbus"
	assignersvc "github.com/jmoreland/lead-mesh/internal/service/assigner"
	settingssvc "github.com/jmoreland/lead-mesh/internal/service/settings"
	assignmenthandler "github.com/jmoreland/lead-mesh/internal/transport/assignment"
	mcptransport "github.com/jmoreland/lead-mesh/internal/transport/mcp"
	wshandler "github.com/jmoreland/lead-mesh/internal/transport/ws"
)

func NewRouter(
	ctx context.Context,
	assignerSvc *assignersvc.Service,
	settingsSvc *settingssvc.Service,
	dir portdir.Directory,
	mcpServer *mcptransport.Server,
	eventBus porteventbus.EventBus,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	assignmenthandler.Register(api, assignerSvc, settingsSvc, dir)

	hub := wshandler.NewHub()
	hub.Register(api.Group("/ws"))

	if mcpServer != nil {
		r.Any("/mcp", gin.WrapH(mcpServer.Handler()))
		r.Any("/mcp/*path", gin.WrapH(mcpServer.Handler()))
	}

	// Bridge: one subscription per domain channel. Events carry identifiers
	// only; WS clients filter on event.Type in the payload.
	for _, ch := range []event.Channel{
		event.ChannelAssignment,
		event.ChannelSettings,
	} {
		c := ch
		if _, err := eventBus.Subscribe(ctx, c, func(_ context.Context, e event.Event) {
			hub.Broadcast(e)
		}); err != nil {
			slog.Error("failed to subscribe channel to WS hub", "channel", c, "error", err)
		}
	}

	return r
}

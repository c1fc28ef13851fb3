package http

import (
	"context"

	"github.com/dkeye/voxbridge/internal/adapters/signal"
	"github.com/dkeye/voxbridge/internal/app/orch"
	"github.com/dkeye/voxbridge/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const sessionName = "VoxbridgeSessions"

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ice []webrtc.ICEServer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORS(cfg.CORSOrigin))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	h := &Handlers{Orch: o, ICE: ice}
	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:      cfg.Signal.ReadLimit,
		PingPeriod:     cfg.Signal.PingPeriod,
		PongWait:       cfg.Signal.PongWait,
		WriteWait:      cfg.Signal.WriteWait,
		SendBuffer:     cfg.Signal.SendBuffer,
		JoinRateLimit:  cfg.Signal.JoinRateLimit,
		JoinRateWindow: cfg.Signal.JoinRateWindow,
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:code", h.LookupRoom)
		api.GET("/ice-servers", h.ICEServers)
		api.GET("/ws/signal", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
			ctrl.HandleSignal(ctx, c)
		})
	}

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

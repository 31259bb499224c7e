package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crewdesk/meetlive/internal/config"
	"github.com/crewdesk/meetlive/internal/signal"
)

func genDeviceToken() string {
	return uuid.NewString()
}

// DeviceTokenMiddleware tags every browser with a stable cookie so that
// connection logs can be correlated across reconnects.
func DeviceTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("dt")
		if token == "" {
			token = genDeviceToken()
			c.SetCookie("dt", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("device_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.CookieSecret))
	r.Use(sessions.Sessions("MeetLiveSessions", store))
	r.Use(DeviceTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "httpapi").Msg("router setup")

	api := r.Group("/api")

	api.GET("/rtc/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": cfg.ICEServers()})
	})

	api.GET("/ws/meeting", func(c *gin.Context) {
		log.Info().Str("module", "httpapi").Str("dt", c.GetString("device_token")).Msg("ws meeting endpoint hit")
		ctl.HandleMeeting(ctx, c)
	})

	return r
}

// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kirana/internal/http/handlers"
	"kirana/internal/http/middleware"
	"kirana/internal/modules/buyer"
	"kirana/internal/modules/delivery"
	"kirana/internal/modules/notify"
	"kirana/internal/modules/presence"
	"kirana/internal/modules/shop"
	"kirana/internal/websocket"
)

// ClientSettings are the cadences role clients should follow.
type ClientSettings struct {
	RadiusKm         float64
	LocationInterval time.Duration
	PollInterval     time.Duration
}

type ServerDeps struct {
	Requests *delivery.Service
	Drivers  *presence.Service
	Shops    *shop.Service
	Buyers   *buyer.Service
	Hub      *notify.Hub
	Client   ClientSettings
}

type Server struct {
	requests *delivery.Service
	drivers  *presence.Service
	shops    *shop.Service
	buyers   *buyer.Service
	hub      *notify.Hub
	client   ClientSettings
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		requests: deps.Requests,
		drivers:  deps.Drivers,
		shops:    deps.Shops,
		buyers:   deps.Buyers,
		hub:      deps.Hub,
		client:   deps.Client,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	shopHandler := handlers.NewShopHandler(s.shops, s.requests)
	r.POST("/api/shops", shopHandler.Register)
	r.GET("/api/shops/:id", shopHandler.Get)
	r.GET("/api/shops/:id/requests", shopHandler.ListRequests)

	buyerHandler := handlers.NewBuyerHandler(s.buyers)
	r.POST("/api/buyers", buyerHandler.Register)
	r.GET("/api/buyers", buyerHandler.List)
	r.GET("/api/buyers/:id", buyerHandler.Get)

	driverHandler := handlers.NewDriverHandler(s.drivers, s.requests)
	r.POST("/api/drivers", driverHandler.Register)
	r.GET("/api/drivers/:id", driverHandler.Get)
	r.POST("/api/drivers/:id/online", driverHandler.SetOnline)
	r.PUT("/api/drivers/:id/location", driverHandler.UpdateLocation)
	r.GET("/api/drivers/:id/requests", driverHandler.ListRequests)

	requestHandler := handlers.NewRequestHandler(s.requests)
	r.POST("/api/requests", requestHandler.Create)
	r.GET("/api/requests", requestHandler.List)
	r.GET("/api/requests/:id", requestHandler.Get)
	r.GET("/api/requests/:id/otp", requestHandler.GetOTP)
	r.POST("/api/requests/:id/accept", requestHandler.Accept)
	r.POST("/api/requests/:id/status", requestHandler.UpdateStatus)
	r.POST("/api/requests/:id/verify-otp", requestHandler.VerifyOTP)

	if s.hub != nil {
		r.GET("/api/events", websocket.Handler(s.hub))
	}

	r.GET("/api/client-config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"radius_km":                 s.client.RadiusKm,
			"location_interval_seconds": int(s.client.LocationInterval / time.Second),
			"poll_interval_seconds":     int(s.client.PollInterval / time.Second),
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

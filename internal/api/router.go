package api

import (
	"github.com/gin-gonic/gin"

	"park_api/internal/api/handler"
	"park_api/internal/api/middleware"
	"park_api/internal/service"
)

func SetupRouter(
	as *service.AuthService,
	ps *service.ParkingService,
	cs *service.ClientService,
	authMw *middleware.AuthMiddleware,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	authHandler := handler.NewAuthHandler(as)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		sessionH := handler.NewParkingSessionHandler(ps)
		sessionRoutes := v1.Group("/parking-sessions")
		{
			sessionRoutes.POST("/check-in", sessionH.CheckIn)
			sessionRoutes.PUT("/check-out/:receipt", sessionH.CheckOut)
			sessionRoutes.GET("", sessionH.ListSessions)
			sessionRoutes.GET("/:receipt", sessionH.GetByReceipt)
		}

		spotH := handler.NewSpotHandler(ps)
		spotRoutes := v1.Group("/parking-spots")
		{
			spotRoutes.POST("", authMw.AuthorizeRole("admin"), spotH.RegisterSpot)
			spotRoutes.GET("", spotH.ListSpots)
			spotRoutes.GET("/:code", spotH.GetSpotByCode)
		}

		clientH := handler.NewClientHandler(cs)
		clientRoutes := v1.Group("/clients")
		{
			clientRoutes.POST("", authMw.AuthorizeRole("admin"), clientH.CreateClient)
			clientRoutes.GET("", authMw.AuthorizeRole("admin"), clientH.ListClients)
			clientRoutes.GET("/:id", clientH.GetClientByID)
		}
	}
	return r
}

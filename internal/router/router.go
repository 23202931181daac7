package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/support-service/api"
	"github.com/psds-microservice/support-service/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// New собирает HTTP-роутер. ready вызывается на каждый запрос /ready.
func New(ticketHandler *handler.TicketHandler, ready func() error) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(paths.PathHealth, handler.Health)
	r.GET(paths.PathReady, handler.Ready(ready))
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/products", ticketHandler.Products)
		v1.GET("/tags", ticketHandler.Tags)

		v1.GET("/tickets", ticketHandler.List)
		v1.POST("/tickets", ticketHandler.Create)
		v1.POST("/tickets/bulk", ticketHandler.Bulk)
		v1.GET("/tickets/:id", ticketHandler.Get)
		v1.PATCH("/tickets/:id", ticketHandler.Update)
		v1.POST("/tickets/:id/transfer", ticketHandler.Transfer)
		v1.POST("/tickets/:id/close", ticketHandler.Close)
		v1.GET("/tickets/:id/messages", ticketHandler.Messages)
		v1.POST("/tickets/:id/messages", ticketHandler.SendMessage)
		v1.POST("/tickets/:id/messages/:messageId/reactions", ticketHandler.React)
		v1.GET("/tickets/:id/timeline", ticketHandler.Timeline)
	}

	return r
}

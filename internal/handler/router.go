package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Chat *ChatHandler
	Site *SiteHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/site", deps.Site.Get)
	api.POST("/chat", deps.Chat.Chat)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/devashis/prajna/internal/config"
	"github.com/devashis/prajna/internal/pkg/response"
)

// SiteHandler exposes the public slice of the site configuration so a client
// can build its collection and media-type pickers without hardcoding them.
type SiteHandler struct {
	site *config.SiteConfig
}

func NewSiteHandler(site *config.SiteConfig) *SiteHandler {
	return &SiteHandler{site: site}
}

func (h *SiteHandler) Get(c *gin.Context) {
	collections := make([]string, 0, len(h.site.Collections))
	for name := range h.site.Collections {
		collections = append(collections, name)
	}
	response.Success(c, gin.H{
		"id":             h.site.ID,
		"collections":    collections,
		"mediaTypes":     h.site.MediaTypes,
		"defaultSources": h.site.DefaultSources,
		"maxSources":     h.site.MaxSources,
		"defaultModel":   h.site.DefaultModel,
	})
}

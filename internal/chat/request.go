package chat

import (
	"fmt"
	"strings"

	"github.com/devashis/prajna/internal/config"
	"github.com/devashis/prajna/internal/model"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
)

// Request is the chat surface of the engine. History carries the single-model
// conversation; comparison mode uses HistoryA/HistoryB with per-side model
// configuration and ignores History.
type Request struct {
	Question       string              `json:"question"`
	Collection     string              `json:"collection"`
	History        []model.ChatMessage `json:"history"`
	HistoryA       []model.ChatMessage `json:"historyA"`
	HistoryB       []model.ChatMessage `json:"historyB"`
	MediaTypes     []string            `json:"mediaTypes"`
	SourceCount    int                 `json:"sourceCount"`
	Compare        bool                `json:"compare"`
	ModelA         string              `json:"modelA"`
	ModelB         string              `json:"modelB"`
	TemperatureA   *float32            `json:"temperatureA"`
	TemperatureB   *float32            `json:"temperatureB"`
	PrivateSession bool                `json:"privateSession"`
}

// Validate rejects malformed requests before any external call is made.
func Validate(req *Request, site *config.SiteConfig) error {
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("%w: Invalid question", appErr.ErrInvalid)
	}
	if req.Collection == "" {
		return fmt.Errorf("%w: Collection is required", appErr.ErrInvalid)
	}
	if _, ok := site.Collections[req.Collection]; !ok {
		return fmt.Errorf("%w: Unknown collection: %s", appErr.ErrInvalid, req.Collection)
	}
	for _, mt := range req.MediaTypes {
		switch mt {
		case model.MediaText, model.MediaAudio, model.MediaYoutube:
		default:
			return fmt.Errorf("%w: Unknown media type: %s", appErr.ErrInvalid, mt)
		}
	}
	if req.SourceCount < 0 {
		return fmt.Errorf("%w: sourceCount must not be negative", appErr.ErrInvalid)
	}
	return nil
}

// modelConfigs resolves the effective model configuration(s), falling back to
// the site defaults when the request omits them.
func modelConfigs(req *Request, site *config.SiteConfig) (a, b model.ModelConfig) {
	a = model.ModelConfig{Model: site.DefaultModel, Temperature: site.DefaultTemperature}
	b = a
	if req.ModelA != "" {
		a.Model = req.ModelA
	}
	if req.TemperatureA != nil {
		a.Temperature = *req.TemperatureA
	}
	if req.ModelB != "" {
		b.Model = req.ModelB
	}
	if req.TemperatureB != nil {
		b.Temperature = *req.TemperatureB
	}
	return a, b
}

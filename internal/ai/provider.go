package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/devashis/prajna/internal/model"
)

// ErrUnavailable means the provider is not configured or the upstream API
// rejected the call in a way that is not the caller's fault.
var ErrUnavailable = fmt.Errorf("ai provider unavailable")

// GenerateRequest is a provider-agnostic generation request. Messages carry
// the full conversation including the current question; System holds the
// instruction block assembled by the orchestrator.
type GenerateRequest struct {
	System      string
	Messages    []model.ChatMessage
	Temperature float32
	Tools       []Tool
}

// TokenFunc receives each partial text chunk in generation order. Returning
// an error aborts the stream.
type TokenFunc func(text string) error

type IProvider interface {
	Name() string
	// GenerateStream streams the answer through onToken and returns the full
	// text once the model finishes. Tool calls requested by the model are
	// dispatched to their handlers and fed back before generation resumes.
	GenerateStream(ctx context.Context, modelName string, req *GenerateRequest, onToken TokenFunc) (string, error)
	Embed(ctx context.Context, modelName string, text string, taskType string) ([]float32, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

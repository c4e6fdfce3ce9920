package ai

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/devashis/prajna/internal/model"
)

type ManagerConfig struct {
	DefaultModel string
	EmbedModel   string
	Timeout      int     // seconds per generation call
	MaxQPS       float64 // proactive outbound rate limit, 0 disables
}

// Manager fronts a provider with per-call timeouts and a proactive rate
// limiter on outbound model calls, so a burst of requests queues here instead
// of burning upstream quota.
type Manager struct {
	provider IProvider
	limiter  *rate.Limiter
	cfg      ManagerConfig
}

func NewManager(provider IProvider, cfg ManagerConfig) *Manager {
	var limiter *rate.Limiter
	if cfg.MaxQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxQPS), 1)
	}
	return &Manager{provider: provider, limiter: limiter, cfg: cfg}
}

func (m *Manager) GenerateStream(ctx context.Context, mc model.ModelConfig, req *GenerateRequest, onToken TokenFunc) (string, error) {
	if m.provider == nil {
		return "", ErrUnavailable
	}
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	modelName := strings.TrimSpace(mc.Model)
	if modelName == "" {
		modelName = m.cfg.DefaultModel
	}
	req.Temperature = mc.Temperature
	text, err := m.provider.GenerateStream(ctx, modelName, req, onToken)
	if err != nil {
		return text, err
	}
	return strings.TrimSpace(text), nil
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.provider == nil {
		return nil, ErrUnavailable
	}
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return m.provider.Embed(ctx, m.cfg.EmbedModel, text, taskType)
}

func (m *Manager) EmbeddingModelName() string {
	return m.cfg.EmbedModel
}

// Embedder adapts the manager to the narrow IEmbedder interface consumed by
// the retriever and the intent classifier.
func (m *Manager) Embedder() IEmbedder {
	return managerEmbedder{m: m}
}

type managerEmbedder struct {
	m *Manager
}

func (e managerEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.m.Embed(ctx, text, taskType)
}

func (e managerEmbedder) ModelName() string {
	return e.m.EmbeddingModelName()
}

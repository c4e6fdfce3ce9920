package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/devashis/prajna/internal/ai"
	"github.com/devashis/prajna/internal/allocator"
	"github.com/devashis/prajna/internal/config"
	"github.com/devashis/prajna/internal/docstore"
	"github.com/devashis/prajna/internal/geotools"
	"github.com/devashis/prajna/internal/model"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
	"github.com/devashis/prajna/internal/pkg/iputil"
)

const answersCollection = "answers"

// Sink receives the streamed answer. The terminal event is the caller's
// responsibility so transport errors and orchestration errors share one exit.
type Sink interface {
	Token(tag, text string) error
	SourceDocs(docs []model.RetrievedDocument) error
	DocID(id string) error
}

// Retriever yields the context passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, allocations []model.Allocation, mediaTypes []string) ([]model.RetrievedDocument, error)
}

// Classifier reports whether a question asks about physical locations.
type Classifier interface {
	Classify(ctx context.Context, query string) bool
}

// Generator streams one model answer.
type Generator interface {
	GenerateStream(ctx context.Context, mc model.ModelConfig, req *ai.GenerateRequest, onToken ai.TokenFunc) (string, error)
}

// Locator resolves the requester's location from headers or IP, and place
// names to coordinates.
type Locator interface {
	Locate(ctx context.Context, meta geotools.RequestMeta) (*geotools.Location, error)
	Geocode(ctx context.Context, place string) (float64, float64, error)
}

// Service runs the full answer pipeline: allocation, retrieval, intent
// classification, generation and persistence.
type Service struct {
	site       *config.SiteConfig
	retriever  Retriever
	classifier Classifier
	generator  Generator
	locator    Locator
	facilities *geotools.FacilityIndex
	docs       docstore.Store
	now        func() time.Time
}

func NewService(site *config.SiteConfig, retriever Retriever, classifier Classifier,
	generator Generator, locator Locator, facilities *geotools.FacilityIndex, docs docstore.Store) *Service {
	return &Service{
		site:       site,
		retriever:  retriever,
		classifier: classifier,
		generator:  generator,
		locator:    locator,
		facilities: facilities,
		docs:       docs,
		now:        time.Now,
	}
}

// Answer runs one chat exchange and streams it to sink. The request must
// already have passed Validate. The returned error is nil once the answer
// (and, for non-private sessions, the log record id) has been delivered.
func (s *Service) Answer(ctx context.Context, req *Request, meta geotools.RequestMeta, sink Sink) error {
	docs := s.retrieve(ctx, req)

	var tools []ai.Tool
	if s.classifier.Classify(ctx, req.Question) && s.facilities != nil {
		tools = s.locationTools(meta)
	}

	system := buildSystem(s.site.SystemPrompt, docs)
	mcA, mcB := modelConfigs(req, s.site)

	var answer string
	if req.Compare {
		if err := s.generatePair(ctx, req, system, tools, mcA, mcB, sink); err != nil {
			return err
		}
	} else {
		var err error
		answer, err = s.generate(ctx, "", mcA, system, req.History, req.Question, tools, sink)
		if err != nil {
			return err
		}
	}

	if err := sink.SourceDocs(docs); err != nil {
		return err
	}

	if req.PrivateSession || req.Compare {
		return nil
	}
	id, err := s.persist(ctx, req, meta, answer, docs)
	if err != nil {
		logutil.GetLogger(ctx).Error("answer log write failed",
			zap.String("collection", req.Collection), zap.Error(err))
		return nil
	}
	return sink.DocID(id)
}

// retrieve turns the collection's library weights into per-library quotas and
// gathers the context. Retrieval failure degrades to an empty context rather
// than failing the exchange.
func (s *Service) retrieve(ctx context.Context, req *Request) []model.RetrievedDocument {
	libraries := make([]model.Library, 0, len(s.site.Collections[req.Collection]))
	for _, lc := range s.site.Collections[req.Collection] {
		libraries = append(libraries, model.Library{Name: lc.Name, Weight: lc.Weight})
	}
	// the override is clamped rather than rejected so older clients with a
	// stale max keep working
	total := req.SourceCount
	if total == 0 {
		total = s.site.DefaultSources
	}
	if total > s.site.MaxSources {
		total = s.site.MaxSources
	}
	mediaTypes := req.MediaTypes
	if len(mediaTypes) == 0 {
		mediaTypes = s.site.MediaTypes
	}
	allocations := allocator.Allocate(total, libraries)
	docs, err := s.retriever.Retrieve(ctx, req.Question, allocations, mediaTypes)
	if err != nil {
		logutil.GetLogger(ctx).Warn("retrieval failed, answering without context",
			zap.String("collection", req.Collection), zap.Error(err))
		return nil
	}
	return docs
}

func (s *Service) generate(ctx context.Context, tag string, mc model.ModelConfig,
	system string, history []model.ChatMessage, question string, tools []ai.Tool, sink Sink) (string, error) {
	genReq := &ai.GenerateRequest{
		System:      system,
		Messages:    buildMessages(history, question),
		Temperature: mc.Temperature,
		Tools:       tools,
	}
	answer, err := s.generator.GenerateStream(ctx, mc, genReq, func(text string) error {
		return sink.Token(tag, text)
	})
	if err != nil {
		return "", fmt.Errorf("%w: model %s: %v", appErr.ErrGeneration, mc.Model, err)
	}
	return answer, nil
}

// generatePair runs both sides of a comparison concurrently. The sides share
// the retrieved context and tool set but nothing else; each carries its own
// history and model configuration. Tokens are tagged so the client can route
// them to the right pane.
func (s *Service) generatePair(ctx context.Context, req *Request, system string,
	tools []ai.Tool, mcA, mcB model.ModelConfig, sink Sink) error {
	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = s.generate(ctx, "A", mcA, system, req.HistoryA, req.Question, tools, sink)
	}()
	go func() {
		defer wg.Done()
		_, errB = s.generate(ctx, "B", mcB, system, req.HistoryB, req.Question, tools, sink)
	}()
	wg.Wait()
	if errA != nil {
		return errA
	}
	return errB
}

func (s *Service) persist(ctx context.Context, req *Request, meta geotools.RequestMeta,
	answer string, docs []model.RetrievedDocument) (string, error) {
	record := model.AnswerLog{
		Question:   req.Question,
		Answer:     answer,
		Collection: req.Collection,
		Sources:    docs,
		History:    req.History,
		IPHash:     iputil.HashIP(meta.IP),
		Ctime:      s.now().UnixMilli(),
	}
	data, err := toMap(record)
	if err != nil {
		return "", err
	}
	return s.docs.Add(ctx, answersCollection, data)
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devashis/prajna/internal/ai"
	"github.com/devashis/prajna/internal/config"
	"github.com/devashis/prajna/internal/docstore"
	"github.com/devashis/prajna/internal/geotools"
	"github.com/devashis/prajna/internal/model"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
)

type fakeRetriever struct {
	docs      []model.RetrievedDocument
	err       error
	gotAllocs []model.Allocation
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, allocations []model.Allocation, mediaTypes []string) ([]model.RetrievedDocument, error) {
	f.gotAllocs = allocations
	return f.docs, f.err
}

type fakeClassifier struct{ location bool }

func (f *fakeClassifier) Classify(ctx context.Context, query string) bool { return f.location }

type generateCall struct {
	mc  model.ModelConfig
	req *ai.GenerateRequest
}

type fakeGenerator struct {
	mu     sync.Mutex
	calls  []generateCall
	answer string
	err    error
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, mc model.ModelConfig, req *ai.GenerateRequest, onToken ai.TokenFunc) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, generateCall{mc: mc, req: req})
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for _, part := range []string{"hello ", "world"} {
		if err := onToken(part); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

type sinkEvent struct {
	kind  string
	tag   string
	text  string
	docs  []model.RetrievedDocument
	docID string
}

type memSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (m *memSink) Token(tag, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sinkEvent{kind: "token", tag: tag, text: text})
	return nil
}

func (m *memSink) SourceDocs(docs []model.RetrievedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sinkEvent{kind: "sourceDocs", docs: docs})
	return nil
}

func (m *memSink) DocID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sinkEvent{kind: "docId", docID: id})
	return nil
}

func (m *memSink) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.kind)
	}
	return out
}

type recordingDocs struct {
	docstore.Store
	adds []map[string]interface{}
}

func (r *recordingDocs) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	r.adds = append(r.adds, data)
	return "log-1", nil
}

func testSite() *config.SiteConfig {
	w := 2.0
	return &config.SiteConfig{
		ID: "site-a",
		Collections: map[string][]config.LibraryConfig{
			"main": {{Name: "talks", Weight: &w}, {Name: "books"}},
		},
		MediaTypes:         []string{model.MediaText, model.MediaAudio, model.MediaYoutube},
		DefaultSources:     4,
		MaxSources:         25,
		DefaultModel:       "gemini-2.0-flash",
		DefaultTemperature: 0.2,
		SystemPrompt:       "You are a helpful archivist.",
	}
}

func newTestService(gen *fakeGenerator, ret *fakeRetriever, cls *fakeClassifier, docs docstore.Store) *Service {
	svc := NewService(testSite(), ret, cls, gen, geotools.NewLocator("", ""), nil, docs)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestAnswerStreamsAndPersists(t *testing.T) {
	gen := &fakeGenerator{answer: "hello world"}
	ret := &fakeRetriever{docs: []model.RetrievedDocument{{PageContent: "passage", Metadata: model.DocMetadata{Library: "talks", Title: "t1"}}}}
	docs := &recordingDocs{}
	svc := newTestService(gen, ret, &fakeClassifier{}, docs)
	sink := &memSink{}

	err := svc.Answer(context.Background(), &Request{Question: "what is dharma?", Collection: "main"},
		geotools.RequestMeta{IP: "203.0.113.9"}, sink)
	require.NoError(t, err)

	require.Equal(t, []string{"token", "token", "sourceDocs", "docId"}, sink.kinds())
	require.Equal(t, "", sink.events[0].tag)
	require.Equal(t, "log-1", sink.events[3].docID)

	require.Len(t, docs.adds, 1)
	record := docs.adds[0]
	require.Equal(t, "what is dharma?", record["question"])
	require.Equal(t, "hello world", record["answer"])
	require.NotEmpty(t, record["ip_hash"])
	require.NotEqual(t, "203.0.113.9", record["ip_hash"])
}

func TestAnswerPrivateSessionSkipsPersistence(t *testing.T) {
	gen := &fakeGenerator{answer: "hello world"}
	docs := &recordingDocs{}
	svc := newTestService(gen, &fakeRetriever{}, &fakeClassifier{}, docs)
	sink := &memSink{}

	err := svc.Answer(context.Background(), &Request{Question: "q", Collection: "main", PrivateSession: true},
		geotools.RequestMeta{}, sink)
	require.NoError(t, err)
	require.Empty(t, docs.adds)
	require.Equal(t, []string{"token", "token", "sourceDocs"}, sink.kinds())
}

func TestCompareIsolatesHistories(t *testing.T) {
	gen := &fakeGenerator{answer: "hello world"}
	docs := &recordingDocs{}
	svc := newTestService(gen, &fakeRetriever{}, &fakeClassifier{}, docs)
	sink := &memSink{}

	tempB := float32(0.9)
	req := &Request{
		Question:     "q",
		Collection:   "main",
		Compare:      true,
		HistoryA:     []model.ChatMessage{{Role: model.RoleUser, Content: "a1"}},
		HistoryB:     []model.ChatMessage{{Role: model.RoleUser, Content: "b1"}},
		ModelB:       "gemini-2.0-pro",
		TemperatureB: &tempB,
	}
	require.NoError(t, svc.Answer(context.Background(), req, geotools.RequestMeta{}, sink))

	require.Len(t, gen.calls, 2)
	byModel := map[string]generateCall{}
	for _, call := range gen.calls {
		byModel[call.mc.Model] = call
	}
	callA, ok := byModel["gemini-2.0-flash"]
	require.True(t, ok)
	callB, ok := byModel["gemini-2.0-pro"]
	require.True(t, ok)
	require.Equal(t, "a1", callA.req.Messages[0].Content)
	require.Equal(t, "b1", callB.req.Messages[0].Content)
	require.Equal(t, float32(0.9), callB.mc.Temperature)

	tags := map[string]int{}
	for _, ev := range sink.events {
		if ev.kind == "token" {
			tags[ev.tag]++
		}
	}
	require.Equal(t, 2, tags["A"])
	require.Equal(t, 2, tags["B"])

	// comparison exchanges are never persisted
	require.Empty(t, docs.adds)
}

func TestAnswerRetrievalFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{answer: "hello world"}
	ret := &fakeRetriever{err: fmt.Errorf("index down")}
	svc := newTestService(gen, ret, &fakeClassifier{}, &recordingDocs{})
	sink := &memSink{}

	err := svc.Answer(context.Background(), &Request{Question: "q", Collection: "main"},
		geotools.RequestMeta{}, sink)
	require.NoError(t, err)

	require.Len(t, gen.calls, 1)
	require.NotContains(t, gen.calls[0].req.System, contextPreamble)
	for _, ev := range sink.events {
		if ev.kind == "sourceDocs" {
			require.Empty(t, ev.docs)
		}
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("quota exhausted")}
	docs := &recordingDocs{}
	svc := newTestService(gen, &fakeRetriever{}, &fakeClassifier{}, docs)
	sink := &memSink{}

	err := svc.Answer(context.Background(), &Request{Question: "q", Collection: "main"},
		geotools.RequestMeta{}, sink)
	require.ErrorIs(t, err, appErr.ErrGeneration)
	require.Empty(t, docs.adds)
	require.NotContains(t, sink.kinds(), "sourceDocs")
}

func TestToolsBoundOnlyOnLocationIntent(t *testing.T) {
	facilities := mustFacilityIndex(t)
	for _, tc := range []struct {
		name      string
		location  bool
		wantTools int
	}{
		{name: "location question", location: true, wantTools: 2},
		{name: "ordinary question", location: false, wantTools: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{answer: "ok"}
			svc := NewService(testSite(), &fakeRetriever{}, &fakeClassifier{location: tc.location},
				gen, geotools.NewLocator("", ""), facilities, &recordingDocs{})
			svc.now = time.Now
			err := svc.Answer(context.Background(), &Request{Question: "q", Collection: "main"},
				geotools.RequestMeta{}, &memSink{})
			require.NoError(t, err)
			require.Len(t, gen.calls[0].req.Tools, tc.wantTools)
		})
	}
}

func mustFacilityIndex(t *testing.T) *geotools.FacilityIndex {
	t.Helper()
	return geotools.NewFacilityIndex([]geotools.Facility{
		{Name: "Center One", City: "Austin", State: "TX", Country: "USA", Latitude: 30.27, Longitude: -97.74},
	}, 0)
}

func TestValidate(t *testing.T) {
	site := testSite()
	for _, tc := range []struct {
		name string
		req  Request
		msg  string
	}{
		{name: "empty question", req: Request{Question: "  ", Collection: "main"}, msg: "Invalid question"},
		{name: "missing collection", req: Request{Question: "q"}, msg: "Collection is required"},
		{name: "unknown collection", req: Request{Question: "q", Collection: "nope"}, msg: "Unknown collection"},
		{name: "bad media type", req: Request{Question: "q", Collection: "main", MediaTypes: []string{"vinyl"}}, msg: "Unknown media type"},
		{name: "negative sources", req: Request{Question: "q", Collection: "main", SourceCount: -1}, msg: "sourceCount"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&tc.req, site)
			require.ErrorIs(t, err, appErr.ErrInvalid)
			require.Contains(t, err.Error(), tc.msg)
		})
	}
	require.NoError(t, Validate(&Request{Question: "q", Collection: "main", SourceCount: 40}, site))
}

func TestSourceCountClampedToSiteMax(t *testing.T) {
	ret := &fakeRetriever{}
	svc := newTestService(&fakeGenerator{answer: "ok"}, ret, &fakeClassifier{}, &recordingDocs{})

	err := svc.Answer(context.Background(), &Request{Question: "q", Collection: "main", SourceCount: 100},
		geotools.RequestMeta{}, &memSink{})
	require.NoError(t, err)

	total := 0
	for _, alloc := range ret.gotAllocs {
		total += alloc.Sources
	}
	require.Equal(t, 25, total)
}

func TestBuildSystemLabelsPassages(t *testing.T) {
	out := buildSystem("Base prompt.", []model.RetrievedDocument{
		{PageContent: "first passage", Metadata: model.DocMetadata{Library: "talks", Type: model.MediaAudio, Title: "morning talk"}},
	})
	require.Contains(t, out, "Base prompt.")
	require.Contains(t, out, "[talks | audio | morning talk]")
	require.Contains(t, out, "first passage")
}

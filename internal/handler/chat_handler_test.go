package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/devashis/prajna/internal/ai"
	"github.com/devashis/prajna/internal/chat"
	"github.com/devashis/prajna/internal/config"
	"github.com/devashis/prajna/internal/docstore"
	"github.com/devashis/prajna/internal/geotools"
	"github.com/devashis/prajna/internal/model"
	appErr "github.com/devashis/prajna/internal/pkg/errors"
	"github.com/devashis/prajna/internal/ratelimit"
)

type fakeAnswerer struct {
	calls int
	run   func(sink chat.Sink) error
}

func (f *fakeAnswerer) Answer(ctx context.Context, req *chat.Request, meta geotools.RequestMeta, sink chat.Sink) error {
	f.calls++
	if f.run != nil {
		return f.run(sink)
	}
	return nil
}

type memDocs struct {
	data   map[string]map[string]interface{}
	writes int
}

func (m *memDocs) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	d, ok := m.data[collection+"/"+id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &docstore.Document{ID: id, Data: d}, nil
}

func (m *memDocs) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	normalized := make(map[string]interface{}, len(data))
	for k, v := range data {
		if n, ok := v.(int); ok {
			normalized[k] = float64(n)
		} else {
			normalized[k] = v
		}
	}
	m.data[collection+"/"+id] = normalized
	m.writes++
	return nil
}

func (m *memDocs) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	m.writes++
	return "e2e-doc", nil
}

func (m *memDocs) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return nil
}

func (m *memDocs) Delete(ctx context.Context, collection, id string) error { return nil }

func (m *memDocs) BatchCommit(ctx context.Context, ops []docstore.Op) error { return nil }

func testSite() *config.SiteConfig {
	return &config.SiteConfig{
		ID:          "site-a",
		Collections: map[string][]config.LibraryConfig{"main": {{Name: "talks"}}},
		MediaTypes:  []string{model.MediaText},
		MaxSources:  25,
	}
}

func newTestRouter(svc Answerer, quota int) (*gin.Engine, *memDocs) {
	gin.SetMode(gin.TestMode)
	docs := &memDocs{data: make(map[string]map[string]interface{})}
	r := gin.New()
	api := r.Group("/api/v1")
	RegisterRoutes(api, RouterDeps{
		Chat: NewChatHandler(testSite(), svc, ratelimit.New(docs, 24*time.Hour, quota)),
		Site: NewSiteHandler(testSite()),
	})
	return r, docs
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:5000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sseData(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestChatStreamsAnswer(t *testing.T) {
	svc := &fakeAnswerer{run: func(sink chat.Sink) error {
		if err := sink.Token("", "hello "); err != nil {
			return err
		}
		if err := sink.Token("", "world"); err != nil {
			return err
		}
		if err := sink.SourceDocs(nil); err != nil {
			return err
		}
		return sink.DocID("log-9")
	}}
	r, _ := newTestRouter(svc, 0)

	w := postChat(r, `{"question":"what is dharma?","collection":"main"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := sseData(t, w.Body.String())
	require.Len(t, events, 5)
	require.Equal(t, "hello ", events[0]["token"])
	require.Equal(t, "world", events[1]["token"])
	require.Contains(t, events[2], "sourceDocs")
	require.Equal(t, "log-9", events[3]["docId"])
	require.Equal(t, true, events[4]["done"])
}

func TestChatRejectsMissingQuestion(t *testing.T) {
	svc := &fakeAnswerer{}
	r, docs := newTestRouter(svc, 10)

	w := postChat(r, `{"question":"   ","collection":"main"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
	require.Contains(t, w.Body.String(), "Invalid question")
	// validation precedes any pipeline work, including the quota counter
	require.Zero(t, svc.calls)
	require.Zero(t, docs.writes)
}

func TestChatRejectsMalformedBody(t *testing.T) {
	svc := &fakeAnswerer{}
	r, _ := newTestRouter(svc, 0)

	w := postChat(r, `{"question":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, svc.calls)
}

func TestChatQuotaExhausted(t *testing.T) {
	svc := &fakeAnswerer{run: func(sink chat.Sink) error { return sink.Token("", "x") }}
	r, _ := newTestRouter(svc, 1)

	require.Equal(t, http.StatusOK, postChat(r, `{"question":"q","collection":"main"}`).Code)

	second := postChat(r, `{"question":"q","collection":"main"}`)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Contains(t, second.Header().Get("Content-Type"), "application/json")
	// the rejected request never reaches the pipeline
	require.Equal(t, 1, svc.calls)
}

func TestChatStreamErrorEvent(t *testing.T) {
	svc := &fakeAnswerer{run: func(sink chat.Sink) error {
		if err := sink.Token("", "partial"); err != nil {
			return err
		}
		return fmt.Errorf("%w: upstream refused", appErr.ErrGeneration)
	}}
	r, _ := newTestRouter(svc, 0)

	w := postChat(r, `{"question":"q","collection":"main"}`)
	require.Equal(t, http.StatusOK, w.Code)

	events := sseData(t, w.Body.String())
	require.Len(t, events, 2)
	require.Equal(t, "partial", events[0]["token"])
	require.Equal(t, "Answer generation failed. Please try again.", events[1]["error"])
	require.NotContains(t, events[1], "done")
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(ctx context.Context, query string, allocations []model.Allocation, mediaTypes []string) ([]model.RetrievedDocument, error) {
	return []model.RetrievedDocument{{PageContent: "context", Metadata: model.DocMetadata{Library: "talks"}}}, nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, query string) bool { return false }

type stubGenerator struct{}

func (stubGenerator) GenerateStream(ctx context.Context, mc model.ModelConfig, req *ai.GenerateRequest, onToken ai.TokenFunc) (string, error) {
	if err := onToken("Test "); err != nil {
		return "", err
	}
	if err := onToken("answer"); err != nil {
		return "", err
	}
	return "Test answer", nil
}

// Full pipeline through the real orchestrator: a private session streams an
// answer and leaves no trace in the document store.
func TestChatEndToEndPrivateSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	site := testSite()
	docs := &memDocs{data: make(map[string]map[string]interface{})}
	svc := chat.NewService(site, stubRetriever{}, stubClassifier{}, stubGenerator{},
		geotools.NewLocator("", ""), nil, docs)

	r := gin.New()
	api := r.Group("/api/v1")
	RegisterRoutes(api, RouterDeps{
		Chat: NewChatHandler(site, svc, ratelimit.New(docs, 24*time.Hour, 0)),
		Site: NewSiteHandler(site),
	})

	w := postChat(r, `{"question":"Test question","collection":"main","privateSession":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := sseData(t, w.Body.String())
	require.GreaterOrEqual(t, len(events), 3)
	require.Equal(t, "Test ", events[0]["token"])
	require.Equal(t, true, events[len(events)-1]["done"])
	for _, ev := range events {
		require.NotContains(t, ev, "docId")
	}
	require.Zero(t, docs.writes)
}

func TestSiteConfigEndpoint(t *testing.T) {
	r, _ := newTestRouter(&fakeAnswerer{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/site", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "site-a", body["id"])
	require.Contains(t, body["collections"], "main")
}

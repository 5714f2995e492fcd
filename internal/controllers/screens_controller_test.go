package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
	"github.com/zaqqye/uiflow_backend/internal/config"
	"github.com/zaqqye/uiflow_backend/internal/database"
	"github.com/zaqqye/uiflow_backend/internal/generation"
	"github.com/zaqqye/uiflow_backend/internal/llm"
	"github.com/zaqqye/uiflow_backend/internal/localcache"
	"github.com/zaqqye/uiflow_backend/internal/logging"
	"github.com/zaqqye/uiflow_backend/internal/models"
	"github.com/zaqqye/uiflow_backend/internal/persistence"
	"github.com/zaqqye/uiflow_backend/internal/ws"
)

const completion = `{
  "screens": [
    {"name": "Login", "description": "Sign in", "elements": [{"type": "button", "properties": {"content": "Go"}}]},
    {"name": "Home", "description": "Start page", "elements": []}
  ],
  "appFlow": {"steps": [
    {"description": "Sign in", "screenReference": "Login"},
    {"description": "Browse", "screenReference": "Home"}
  ]}
}`

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.ScreenSetEvent
}

func (p *recordingPublisher) Publish(ev ws.ScreenSetEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []ws.ScreenSetEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ws.ScreenSetEvent(nil), p.events...)
}

type harness struct {
	router *gin.Engine
	events *recordingPublisher
}

func newHarness(t *testing.T, completer llm.CompleterFunc, timeout time.Duration) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	local, err := localcache.Open(localcache.Options{InMemory: true}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	h := &harness{events: &recordingPublisher{}}
	sc := &ScreensController{
		Generator: generation.NewGenerator(completer, logging.Discard(), generation.Options{Timeout: timeout}),
		Repo:      persistence.NewRepository(persistence.NewGormStore(db), local, logging.Discard()),
		Events:    h.events,
		Cfg:       &config.Config{PromptSummaryLimit: "800"},
		Logger:    logging.Discard(),
	}

	r := gin.New()
	r.POST("/documents/:id/screens/generate", sc.Generate)
	r.GET("/documents/:id/screens", sc.Get)
	r.PUT("/documents/:id/app-flow", sc.UpdateAppFlow)
	r.PUT("/documents/:id/screens/:screenId", sc.UpdateScreen)
	r.POST("/documents/:id/app-flow/steps", sc.AddStep)
	r.PUT("/documents/:id/app-flow/steps/:stepId", sc.EditStep)
	r.DELETE("/documents/:id/app-flow/steps/:stepId", sc.DeleteStep)
	r.DELETE("/app-flows/:id", sc.DeleteAppFlow)
	h.router = r
	return h
}

func staticCompleter(text string) llm.CompleterFunc {
	return func(ctx context.Context, req llm.Request) (string, error) { return text, nil }
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

type screenSetResponse struct {
	ScreenSet models.ScreenSet `json:"screenSet"`
	Source    models.Source    `json:"source"`
	Storage   models.Source    `json:"storage"`
	Notice    string           `json:"notice"`
}

func decodeSet(t *testing.T, w *httptest.ResponseRecorder) screenSetResponse {
	t.Helper()
	var out screenSetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (h *harness) generate(t *testing.T, doc string) screenSetResponse {
	t.Helper()
	w, _ := h.do(t, http.MethodPost, "/documents/"+doc+"/screens/generate", gin.H{"brief": "A todo app", "title": "Todo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeSet(t, w)
}

func TestGenerateStoresAndReturnsAIScreens(t *testing.T) {
	h := newHarness(t, staticCompleter(completion), time.Second)

	res := h.generate(t, "doc-1")
	assert.Equal(t, models.SourceAI, res.Source)
	assert.Equal(t, models.SourceRemote, res.Storage)
	assert.Empty(t, res.Notice)
	require.Len(t, res.ScreenSet.Screens, 2)
	require.Len(t, res.ScreenSet.AppFlow.Steps, 2)
	assert.Equal(t, res.ScreenSet.Screens[0].ID, *res.ScreenSet.AppFlow.Steps[0].ScreenID)

	w, _ := h.do(t, http.MethodGet, "/documents/doc-1/screens", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeSet(t, w)
	assert.Equal(t, res.ScreenSet.Screens, got.ScreenSet.Screens)
	assert.Equal(t, res.ScreenSet.AppFlow, got.ScreenSet.AppFlow)

	events := h.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ws.EventSaved, events[0].Type)
	assert.Equal(t, "doc-1", events[0].DocumentID)
}

func TestGenerateFallsBackOnUpstreamError(t *testing.T) {
	calls := 0
	h := newHarness(t, func(ctx context.Context, req llm.Request) (string, error) {
		calls++
		return "", apperr.API("complete", http.StatusBadGateway, nil)
	}, time.Second)

	res := h.generate(t, "doc-1")
	assert.Equal(t, 1, calls)
	assert.Equal(t, models.SourceFallback, res.Source)
	assert.Contains(t, res.Notice, "basic screens")
	assert.NotEmpty(t, res.ScreenSet.Screens)
	assert.NotEmpty(t, res.ScreenSet.AppFlow.Steps)
}

func TestGenerateTimeoutIsGatewayTimeout(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, req llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, 20*time.Millisecond)

	w, body := h.do(t, http.MethodPost, "/documents/doc-1/screens/generate", gin.H{"brief": "A todo app"})
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, body["error"], "timed out")
	assert.Equal(t, "timeout", body["kind"])
	assert.Empty(t, h.events.Events())
}

func TestGenerateRequiresBrief(t *testing.T) {
	h := newHarness(t, staticCompleter(completion), time.Second)
	w, _ := h.do(t, http.MethodPost, "/documents/doc-1/screens/generate", gin.H{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUnknownDocumentIsEmpty(t *testing.T) {
	h := newHarness(t, staticCompleter(completion), time.Second)
	w, _ := h.do(t, http.MethodGet, "/documents/none/screens", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeSet(t, w)
	assert.Empty(t, got.ScreenSet.Screens)
	assert.NotEmpty(t, got.ScreenSet.AppFlow.ID)
}

func TestFlowStepEdits(t *testing.T) {
	h := newHarness(t, staticCompleter(completion), time.Second)
	res := h.generate(t, "doc-1")
	home := res.ScreenSet.Screens[1].ID

	w, _ := h.do(t, http.MethodPost, "/documents/doc-1/app-flow/steps", gin.H{"description": "Checkout", "screenId": home, "position": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var added struct {
		AppFlow models.AppFlow `json:"appFlow"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	require.Len(t, added.AppFlow.Steps, 3)
	step := added.AppFlow.Steps[1]
	assert.Equal(t, "Checkout", step.Description)
	assert.Equal(t, 1, step.Position)

	w, _ = h.do(t, http.MethodPut, "/documents/doc-1/app-flow/steps/"+step.ID, gin.H{"description": "Pay"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodPut, "/documents/doc-1/app-flow/steps/missing", gin.H{"description": "Pay"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.do(t, http.MethodDelete, "/documents/doc-1/app-flow/steps/"+res.ScreenSet.AppFlow.Steps[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodGet, "/documents/doc-1/screens", nil)
	got := decodeSet(t, w)
	require.Len(t, got.ScreenSet.AppFlow.Steps, 2)
	assert.Equal(t, "Pay", got.ScreenSet.AppFlow.Steps[0].Description)
	assert.Nil(t, got.ScreenSet.AppFlow.Steps[0].ScreenID)
	require.NoError(t, got.ScreenSet.Validate())
}

func TestUpdateAppFlowClearsUnknownReferences(t *testing.T) {
	h := newHarness(t, staticCompleter(completion), time.Second)
	res := h.generate(t, "doc-1")

	flow := res.ScreenSet.AppFlow
	flow.Steps[0].ScreenID = models.StringPtr("not-a-screen")
	w, _ := h.do(t, http.MethodPut, "/documents/doc-1/app-flow", gin.H{"id": flow.ID, "steps": flow.Steps})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = h.do(t, http.MethodGet, "/documents/doc-1/screens", nil)
	got := decodeSet(t, w)
	assert.Nil(t, got.ScreenSet.AppFlow.Steps[0].ScreenID)
	assert.Equal(t, flow.ID, got.ScreenSet.AppFlow.ID)

	w, _ = h.do(t, http.MethodPut, "/documents/doc-1/app-flow", gin.H{"steps": []gin.H{{"description": " "}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateScreen(t *testing.T) {
	h := newHarness(t, staticCompleter(completion), time.Second)
	res := h.generate(t, "doc-1")
	id := res.ScreenSet.Screens[1].ID

	w, _ := h.do(t, http.MethodPut, "/documents/doc-1/screens/"+id, gin.H{
		"name":     "Dashboard",
		"elements": []gin.H{{"type": "text", "properties": gin.H{"content": "Hi", "size": 12}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = h.do(t, http.MethodGet, "/documents/doc-1/screens", nil)
	got := decodeSet(t, w)
	screen := got.ScreenSet.Screens[1]
	assert.Equal(t, "Dashboard", screen.Name)
	require.Len(t, screen.Elements, 1)
	require.NotNil(t, screen.Elements[0].Text)
	assert.Equal(t, "Hi", screen.Elements[0].Text.Content)
	assert.Equal(t, "12", screen.Elements[0].Extra["size"])
	assert.NotEmpty(t, screen.Elements[0].ID)

	w, _ = h.do(t, http.MethodPut, "/documents/doc-1/screens/"+models.NewID(), gin.H{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAppFlow(t *testing.T) {
	h := newHarness(t, staticCompleter(completion), time.Second)
	res := h.generate(t, "doc-1")

	w, body := h.do(t, http.MethodDelete, "/app-flows/"+res.ScreenSet.AppFlow.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "doc-1", body["documentId"])

	w, _ = h.do(t, http.MethodGet, "/documents/doc-1/screens", nil)
	assert.Empty(t, decodeSet(t, w).ScreenSet.Screens)

	w, _ = h.do(t, http.MethodDelete, "/app-flows/"+res.ScreenSet.AppFlow.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	events := h.events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ws.EventDeleted, events[1].Type)
	assert.Equal(t, "doc-1", events[1].DocumentID)
}

func TestGenerateTruncatesFeatureSummary(t *testing.T) {
	var prompt string
	h := newHarness(t, func(ctx context.Context, req llm.Request) (string, error) {
		prompt = req.Prompt
		return completion, nil
	}, time.Second)

	long := strings.Repeat("x", 2000)
	w, _ := h.do(t, http.MethodPost, "/documents/doc-1/screens/generate", gin.H{"brief": "b", "featureSummary": long})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, prompt, long)
	assert.Contains(t, prompt, strings.Repeat("x", 797)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", 798))
}

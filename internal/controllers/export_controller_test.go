package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/uiflow_backend/internal/config"
	"github.com/zaqqye/uiflow_backend/internal/export"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

type capturingExporter struct {
	req export.Request
}

func (e *capturingExporter) Export(ctx context.Context, req export.Request) (export.Result, error) {
	e.req = req
	return export.Result{Success: true, CardsCreated: 1, BoardURL: "https://boards.test/b/" + req.BoardID}, nil
}

func exportRouter(exp FeatureExporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ec := &ExportController{Exporter: exp}
	r := gin.New()
	r.POST("/boards/:boardId/export", ec.Export)
	return r
}

func postExport(r *gin.Engine, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/boards/b1/export", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(BoardTokenHeader, token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExportControllerPassesParsedFeatures(t *testing.T) {
	exp := &capturingExporter{}
	w := postExport(exportRouter(exp), "tok", `{"listId":" l1 ","features":[
		{"name":"Login","priority":"must"},
		{"name":"Themes","priority":"Won't","description":"dark mode"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "b1", exp.req.BoardID)
	assert.Equal(t, "tok", exp.req.Token)
	assert.Equal(t, "l1", exp.req.ListID)
	require.Len(t, exp.req.Features, 2)
	assert.Equal(t, models.PriorityMust, exp.req.Features[0].Priority)
	assert.Equal(t, models.PriorityWont, exp.req.Features[1].Priority)

	var res export.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "https://boards.test/b/b1", res.BoardURL)
}

func TestExportControllerRequiresToken(t *testing.T) {
	exp := &capturingExporter{}
	w := postExport(exportRouter(exp), "", `{"features":[]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, exp.req.BoardID)
}

func TestExportControllerRejectsNamelessFeature(t *testing.T) {
	w := postExport(exportRouter(&capturingExporter{}), "tok", `{"features":[{"priority":"MUST"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cc := &ConfigController{Cfg: &config.Config{LLMTimeout: "90s", ExportCardDelayMS: "250", JWTSecret: "s"}}
	r := gin.New()
	r.GET("/config/public", cc.Public)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/config/public", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Generation struct {
			TimeoutSeconds int  `json:"timeout_seconds"`
			SummaryLimit   int  `json:"summary_limit"`
			AIEnabled      bool `json:"ai_enabled"`
		} `json:"generation"`
		Export struct {
			CardDelayMS int `json:"card_delay_ms"`
			MaxRetries  int `json:"max_retries"`
		} `json:"export"`
		AuthRequired bool `json:"auth_required"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 90, body.Generation.TimeoutSeconds)
	assert.Equal(t, 800, body.Generation.SummaryLimit)
	assert.False(t, body.Generation.AIEnabled)
	assert.Equal(t, 250, body.Export.CardDelayMS)
	assert.Equal(t, 3, body.Export.MaxRetries)
	assert.True(t, body.AuthRequired)
}

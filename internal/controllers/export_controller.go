package controllers

import (
    "net/http"
    "strings"

    "github.com/gin-gonic/gin"

    "github.com/zaqqye/uiflow_backend/internal/export"
    "github.com/zaqqye/uiflow_backend/internal/models"
)

// BoardTokenHeader carries the caller's board API token.
const BoardTokenHeader = "X-Board-Token"

type ExportController struct {
    Exporter FeatureExporter
}

type featureRequest struct {
    Name        string `json:"name" binding:"required"`
    Description string `json:"description"`
    Priority    string `json:"priority"`
}

type exportRequest struct {
    Features []featureRequest `json:"features" binding:"dive"`
    ListID   string           `json:"listId"`
}

func (ec *ExportController) Export(c *gin.Context) {
    token := strings.TrimSpace(c.GetHeader(BoardTokenHeader))
    if token == "" {
        c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + BoardTokenHeader + " header"})
        return
    }
    var req exportRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        badRequest(c, err)
        return
    }

    features := make([]models.Feature, 0, len(req.Features))
    for _, f := range req.Features {
        features = append(features, models.Feature{
            Name:        strings.TrimSpace(f.Name),
            Description: f.Description,
            Priority:    models.ParsePriority(f.Priority),
        })
    }

    res, err := ec.Exporter.Export(c.Request.Context(), export.Request{
        BoardID:  strings.TrimSpace(c.Param("boardId")),
        Features: features,
        Token:    token,
        ListID:   strings.TrimSpace(req.ListID),
    })
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, res)
}

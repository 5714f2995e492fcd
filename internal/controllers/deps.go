package controllers

import (
    "context"
    "errors"
    "net/http"

    "github.com/gin-gonic/gin"

    "github.com/zaqqye/uiflow_backend/internal/apperr"
    "github.com/zaqqye/uiflow_backend/internal/export"
    "github.com/zaqqye/uiflow_backend/internal/generation"
    "github.com/zaqqye/uiflow_backend/internal/models"
    "github.com/zaqqye/uiflow_backend/internal/ws"
)

type ScreenGenerator interface {
    Generate(ctx context.Context, in generation.Input) (*generation.Result, error)
}

type ScreenRepository interface {
    Save(ctx context.Context, parentID string, screens []models.Screen, flow models.AppFlow) (models.ScreenSet, error)
    GetByParentID(ctx context.Context, parentID string) (models.ScreenSet, error)
    Delete(ctx context.Context, appFlowID string) (string, bool, error)
    UpdateAppFlow(ctx context.Context, flow models.AppFlow) (models.AppFlow, error)
    UpdateScreen(ctx context.Context, screen models.Screen) (models.Screen, error)
}

type FeatureExporter interface {
    Export(ctx context.Context, req export.Request) (export.Result, error)
}

type EventPublisher interface {
    Publish(event ws.ScreenSetEvent)
}

func respondError(c *gin.Context, err error) {
    status := apperr.HTTPStatus(err)
    body := gin.H{"error": apperr.UserMessage(err)}
    if kind := apperr.KindOf(err); kind != "" {
        body["kind"] = kind
    }
    c.JSON(status, body)
}

// stepError classifies flow-step edit failures.
func stepError(op string, err error) error {
    switch {
    case errors.Is(err, models.ErrStepNotFound):
        return apperr.NotFound(op, err)
    case errors.Is(err, models.ErrStepDescription):
        return apperr.Invalid(op, err)
    }
    return err
}

func badRequest(c *gin.Context, err error) {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

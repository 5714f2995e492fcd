package controllers

import (
    "context"
    "net/http"
    "strings"

    "github.com/gin-gonic/gin"
    "github.com/ternarybob/arbor"

    "github.com/zaqqye/uiflow_backend/internal/apperr"
    "github.com/zaqqye/uiflow_backend/internal/config"
    "github.com/zaqqye/uiflow_backend/internal/generation"
    "github.com/zaqqye/uiflow_backend/internal/models"
    "github.com/zaqqye/uiflow_backend/internal/ws"
)

const localStorageNotice = "Saved to local storage because the database is unavailable."

type ScreensController struct {
    Generator ScreenGenerator
    Repo      ScreenRepository
    Events    EventPublisher
    Cfg       *config.Config
    Logger    arbor.ILogger
}

type generateRequest struct {
    Title          string `json:"title"`
    Brief          string `json:"brief" binding:"required"`
    Requirements   string `json:"requirements"`
    FeatureSummary string `json:"featureSummary"`
}

type updateFlowRequest struct {
    ID    string            `json:"id"`
    Steps []models.FlowStep `json:"steps"`
}

type updateScreenRequest struct {
    Name        string             `json:"name" binding:"required"`
    Description string             `json:"description"`
    Elements    []models.UiElement `json:"elements"`
}

type stepRequest struct {
    Description string  `json:"description" binding:"required"`
    ScreenID    *string `json:"screenId"`
    Position    *int    `json:"position"`
}

// Generate asks the generator for a ScreenSet and replaces the document's
// stored set with it.
func (sc *ScreensController) Generate(c *gin.Context) {
    documentID := strings.TrimSpace(c.Param("id"))
    var req generateRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        badRequest(c, err)
        return
    }

    res, err := sc.Generator.Generate(c.Request.Context(), generation.Input{
        DocumentID:     documentID,
        Title:          req.Title,
        Brief:          req.Brief,
        Requirements:   req.Requirements,
        FeatureSummary: generation.Truncate(req.FeatureSummary, sc.Cfg.SummaryLimit()),
    })
    if err != nil {
        respondError(c, err)
        return
    }

    // the generation deadline does not carry over to persistence
    saved, err := sc.Repo.Save(context.WithoutCancel(c.Request.Context()), documentID, res.Set.Screens, res.Set.AppFlow)
    if err != nil {
        respondError(c, err)
        return
    }
    sc.publish(saved)

    c.JSON(http.StatusOK, gin.H{
        "screenSet": saved,
        "source":    res.Source,
        "storage":   saved.Source,
        "notice":    joinNotices(res.Notice, storageNotice(saved.Source)),
    })
}

func (sc *ScreensController) Get(c *gin.Context) {
    set, err := sc.Repo.GetByParentID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{
        "screenSet": set,
        "storage":   set.Source,
        "notice":    storageNotice(set.Source),
    })
}

// DeleteAppFlow removes the flow and every screen of its document.
func (sc *ScreensController) DeleteAppFlow(c *gin.Context) {
    appFlowID := strings.TrimSpace(c.Param("id"))
    parentID, found, err := sc.Repo.Delete(c.Request.Context(), appFlowID)
    if err != nil {
        respondError(c, err)
        return
    }
    if !found {
        c.JSON(http.StatusNotFound, gin.H{"error": "app flow not found"})
        return
    }
    if sc.Events != nil {
        sc.Events.Publish(ws.DeletedEvent(parentID, appFlowID))
    }
    c.JSON(http.StatusOK, gin.H{"deleted": true, "documentId": parentID})
}

func (sc *ScreensController) UpdateAppFlow(c *gin.Context) {
    documentID := strings.TrimSpace(c.Param("id"))
    var req updateFlowRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        badRequest(c, err)
        return
    }
    for _, st := range req.Steps {
        if strings.TrimSpace(st.Description) == "" {
            respondError(c, apperr.Invalid("update app flow", models.ErrStepDescription))
            return
        }
    }
    flow := models.AppFlow{ID: req.ID, ParentDocumentID: documentID, Steps: req.Steps}
    if flow.Steps == nil {
        flow.Steps = []models.FlowStep{}
    }
    sc.storeFlow(c, flow)
}

func (sc *ScreensController) UpdateScreen(c *gin.Context) {
    var req updateScreenRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        badRequest(c, err)
        return
    }
    if req.Elements == nil {
        req.Elements = []models.UiElement{}
    }
    for i := range req.Elements {
        if req.Elements[i].ID == "" {
            req.Elements[i].ID = models.NewID()
        }
    }
    screen, err := sc.Repo.UpdateScreen(c.Request.Context(), models.Screen{
        ID:               strings.TrimSpace(c.Param("screenId")),
        ParentDocumentID: strings.TrimSpace(c.Param("id")),
        Name:             strings.TrimSpace(req.Name),
        Description:      req.Description,
        Elements:         req.Elements,
    })
    if err != nil {
        respondError(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"screen": screen})
}

func (sc *ScreensController) AddStep(c *gin.Context) {
    var req stepRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        badRequest(c, err)
        return
    }
    sc.editFlow(c, "add flow step", func(flow models.AppFlow) (models.AppFlow, error) {
        at := -1
        if req.Position != nil {
            at = *req.Position
        }
        return flow.InsertStep(models.FlowStep{Description: strings.TrimSpace(req.Description), ScreenID: req.ScreenID}, at)
    })
}

func (sc *ScreensController) EditStep(c *gin.Context) {
    var req stepRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        badRequest(c, err)
        return
    }
    stepID := strings.TrimSpace(c.Param("stepId"))
    sc.editFlow(c, "edit flow step", func(flow models.AppFlow) (models.AppFlow, error) {
        return flow.ReplaceStep(stepID, strings.TrimSpace(req.Description), req.ScreenID)
    })
}

func (sc *ScreensController) DeleteStep(c *gin.Context) {
    stepID := strings.TrimSpace(c.Param("stepId"))
    sc.editFlow(c, "delete flow step", func(flow models.AppFlow) (models.AppFlow, error) {
        return flow.RemoveStep(stepID)
    })
}

// editFlow applies edit to the document's current flow and stores the result.
func (sc *ScreensController) editFlow(c *gin.Context, op string, edit func(models.AppFlow) (models.AppFlow, error)) {
    set, err := sc.Repo.GetByParentID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
    if err != nil {
        respondError(c, err)
        return
    }
    flow, err := edit(set.AppFlow)
    if err != nil {
        respondError(c, stepError(op, err))
        return
    }
    sc.storeFlow(c, flow)
}

func (sc *ScreensController) storeFlow(c *gin.Context, flow models.AppFlow) {
    updated, err := sc.Repo.UpdateAppFlow(c.Request.Context(), flow)
    if err != nil {
        respondError(c, err)
        return
    }
    if set, gerr := sc.Repo.GetByParentID(c.Request.Context(), updated.ParentDocumentID); gerr == nil {
        sc.publish(set)
    } else if sc.Logger != nil {
        sc.Logger.Debug().Err(gerr).Msg("skipping event after flow update")
    }
    c.JSON(http.StatusOK, gin.H{"appFlow": updated})
}

func (sc *ScreensController) publish(set models.ScreenSet) {
    if sc.Events != nil {
        sc.Events.Publish(ws.SavedEvent(set))
    }
}

func storageNotice(src models.Source) string {
    if src == models.SourceLocal {
        return localStorageNotice
    }
    return ""
}

func joinNotices(notices ...string) string {
    out := make([]string, 0, len(notices))
    for _, n := range notices {
        if n != "" {
            out = append(out, n)
        }
    }
    return strings.Join(out, " ")
}

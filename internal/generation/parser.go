package generation

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

type rawElement struct {
	Type       string                           `json:"type"`
	Properties map[string]models.PropertyValue `json:"properties"`
}

type rawScreen struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Elements    []rawElement `json:"elements"`
}

type rawStep struct {
	Description     string `json:"description"`
	ScreenReference string `json:"screenReference"`
}

type rawPayload struct {
	AppFlow struct {
		Steps []rawStep `json:"steps"`
	} `json:"appFlow"`
	Screens []rawScreen `json:"screens"`
}

var errEmptyResponse = errors.New("empty completion response")

// Parse turns completion text into a linked ScreenSet for parentID.
// Step references resolve to the first screen with an exactly equal name;
// unmatched references leave the step without a screen. A valid JSON object
// without screens or appFlow yields an empty set rather than an error.
func Parse(raw, parentID string) (models.ScreenSet, error) {
	body := stripFence(raw)
	if body == "" {
		return models.ScreenSet{}, apperr.Parse("parse screens", errEmptyResponse)
	}
	var payload rawPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return models.ScreenSet{}, apperr.Parse("parse screens", err)
	}

	set := models.ScreenSet{
		Screens: make([]models.Screen, 0, len(payload.Screens)),
		AppFlow: models.AppFlow{
			ID:               models.NewID(),
			ParentDocumentID: parentID,
			Steps:            make([]models.FlowStep, 0, len(payload.AppFlow.Steps)),
		},
	}
	for _, rs := range payload.Screens {
		screen := models.Screen{
			ID:               models.NewID(),
			ParentDocumentID: parentID,
			Name:             rs.Name,
			Description:      rs.Description,
			Elements:         make([]models.UiElement, 0, len(rs.Elements)),
		}
		for _, re := range rs.Elements {
			props := make(map[string]string, len(re.Properties))
			for k, v := range re.Properties {
				props[k] = v.String()
			}
			screen.Elements = append(screen.Elements, models.NewUiElement(models.NewID(), models.ParseElementType(re.Type), props))
		}
		set.Screens = append(set.Screens, screen)
	}
	for i, rs := range payload.AppFlow.Steps {
		step := models.FlowStep{
			ID:          models.NewID(),
			Description: rs.Description,
			Position:    i,
		}
		if sc, ok := set.FindScreenByName(rs.ScreenReference); ok && rs.ScreenReference != "" {
			step.ScreenID = models.StringPtr(sc.ID)
		}
		set.AppFlow.Steps = append(set.AppFlow.Steps, step)
	}
	return set, nil
}

// stripFence removes a surrounding Markdown code fence, if any.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

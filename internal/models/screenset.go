package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Source tags where a ScreenSet came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
)

type Screen struct {
	ID               string      `json:"id"`
	ParentDocumentID string      `json:"parentDocumentId"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Elements         []UiElement `json:"elements"`
}

type FlowStep struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	ScreenID    *string `json:"screenId,omitempty"`
	Position    int     `json:"position"`
}

type AppFlow struct {
	ID               string     `json:"id"`
	ParentDocumentID string     `json:"parentDocumentId"`
	Steps            []FlowStep `json:"steps"`
}

// ScreenSet is the unit of generation, persistence and deletion.
type ScreenSet struct {
	Screens []Screen `json:"screens"`
	AppFlow AppFlow  `json:"appFlow"`
	Source  Source   `json:"source,omitempty"`
}

var (
	ErrStepNotFound    = errors.New("flow step not found")
	ErrUnknownScreen   = errors.New("flow step references a screen outside the screen set")
	ErrPositionGap     = errors.New("flow step positions are not contiguous")
	ErrParentMismatch  = errors.New("screen set mixes parent documents")
	ErrEmptyParentID   = errors.New("parent document id is required")
	ErrStepDescription = errors.New("flow step description is required")
)

// NewID mints a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// EmptyScreenSet is the valid "nothing generated yet" state for a document.
func EmptyScreenSet(parentID string) ScreenSet {
	return ScreenSet{
		Screens: []Screen{},
		AppFlow: AppFlow{ID: NewID(), ParentDocumentID: parentID, Steps: []FlowStep{}},
	}
}

func (s ScreenSet) IsEmpty() bool {
	return len(s.Screens) == 0 && len(s.AppFlow.Steps) == 0
}

// ScreenIDs indexes the ids of all screens in the set.
func (s ScreenSet) ScreenIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Screens))
	for _, sc := range s.Screens {
		ids[sc.ID] = struct{}{}
	}
	return ids
}

// FindScreenByName returns the first screen whose name matches exactly.
func (s ScreenSet) FindScreenByName(name string) (Screen, bool) {
	for _, sc := range s.Screens {
		if sc.Name == name {
			return sc, true
		}
	}
	return Screen{}, false
}

// Validate checks step references, step positions and the shared parent id.
func (s ScreenSet) Validate() error {
	parent := s.AppFlow.ParentDocumentID
	for _, sc := range s.Screens {
		if sc.ParentDocumentID != parent {
			return fmt.Errorf("%w: screen %s belongs to %q, flow to %q", ErrParentMismatch, sc.ID, sc.ParentDocumentID, parent)
		}
	}
	ids := s.ScreenIDs()
	for i, st := range s.AppFlow.Steps {
		if st.Position != i {
			return fmt.Errorf("%w: step %s at index %d has position %d", ErrPositionGap, st.ID, i, st.Position)
		}
		if st.ScreenID != nil {
			if _, ok := ids[*st.ScreenID]; !ok {
				return fmt.Errorf("%w: step %s -> %s", ErrUnknownScreen, st.ID, *st.ScreenID)
			}
		}
	}
	return nil
}

// WithParent stamps parentID onto the flow and every screen.
func (s ScreenSet) WithParent(parentID string) ScreenSet {
	screens := make([]Screen, len(s.Screens))
	for i, sc := range s.Screens {
		sc.ParentDocumentID = parentID
		screens[i] = sc
	}
	s.Screens = screens
	s.AppFlow.ParentDocumentID = parentID
	return s
}

// Normalize renumbers positions to their index and clears screen references
// that point outside screenIDs. Steps with a blank or repeated id get a
// fresh one.
func (f AppFlow) Normalize(screenIDs map[string]struct{}) AppFlow {
	return f.normalize(screenIDs, true)
}

// NormalizeSteps is Normalize for a flow whose screens are unknown: screen
// references are kept as given.
func (f AppFlow) NormalizeSteps() AppFlow {
	return f.normalize(nil, false)
}

func (f AppFlow) normalize(screenIDs map[string]struct{}, checkScreens bool) AppFlow {
	steps := make([]FlowStep, len(f.Steps))
	seen := make(map[string]struct{}, len(f.Steps))
	for i, st := range f.Steps {
		if _, dup := seen[st.ID]; st.ID == "" || dup {
			st.ID = NewID()
		}
		seen[st.ID] = struct{}{}
		st.Position = i
		if st.ScreenID != nil && *st.ScreenID == "" {
			st.ScreenID = nil
		}
		if checkScreens && st.ScreenID != nil {
			if _, ok := screenIDs[*st.ScreenID]; !ok {
				st.ScreenID = nil
			}
		}
		steps[i] = st
	}
	f.Steps = steps
	return f
}

// ReassignStepIDs gives a fresh id to every step whose id is in taken.
func (f AppFlow) ReassignStepIDs(taken map[string]struct{}) AppFlow {
	if len(taken) == 0 {
		return f
	}
	steps := append([]FlowStep(nil), f.Steps...)
	for i := range steps {
		if _, ok := taken[steps[i].ID]; ok {
			steps[i].ID = NewID()
		}
	}
	f.Steps = steps
	return f
}

// InsertStep inserts step at index at; out of range values append.
func (f AppFlow) InsertStep(step FlowStep, at int) (AppFlow, error) {
	if step.Description == "" {
		return f, ErrStepDescription
	}
	if step.ID == "" {
		step.ID = NewID()
	}
	if at < 0 || at > len(f.Steps) {
		at = len(f.Steps)
	}
	steps := make([]FlowStep, 0, len(f.Steps)+1)
	steps = append(steps, f.Steps[:at]...)
	steps = append(steps, step)
	steps = append(steps, f.Steps[at:]...)
	f.Steps = steps
	return f.renumber(), nil
}

// ReplaceStep overwrites the description and screen reference of a step.
func (f AppFlow) ReplaceStep(stepID, description string, screenID *string) (AppFlow, error) {
	if description == "" {
		return f, ErrStepDescription
	}
	steps := append([]FlowStep(nil), f.Steps...)
	for i := range steps {
		if steps[i].ID == stepID {
			steps[i].Description = description
			steps[i].ScreenID = screenID
			f.Steps = steps
			return f, nil
		}
	}
	return f, ErrStepNotFound
}

// RemoveStep drops a step and closes the position gap it leaves.
func (f AppFlow) RemoveStep(stepID string) (AppFlow, error) {
	steps := make([]FlowStep, 0, len(f.Steps))
	found := false
	for _, st := range f.Steps {
		if st.ID == stepID {
			found = true
			continue
		}
		steps = append(steps, st)
	}
	if !found {
		return f, ErrStepNotFound
	}
	f.Steps = steps
	return f.renumber(), nil
}

func (f AppFlow) renumber() AppFlow {
	for i := range f.Steps {
		f.Steps[i].Position = i
	}
	return f
}

// StringPtr is a convenience for optional screen references.
func StringPtr(s string) *string {
	return &s
}

// Package persistence stores ScreenSets in the relational primary store and
// degrades to a process-local cache when the primary fails.
package persistence

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

// Store is the primary store. Load reports a missing document with an
// apperr not_found error; Delete returns the parent id of the removed flow.
type Store interface {
	Save(ctx context.Context, set models.ScreenSet) (models.ScreenSet, error)
	Load(ctx context.Context, parentID string) (models.ScreenSet, error)
	Delete(ctx context.Context, appFlowID string) (parentID string, found bool, err error)
	UpdateAppFlow(ctx context.Context, flow models.AppFlow) (models.AppFlow, error)
	UpdateScreen(ctx context.Context, screen models.Screen) (models.Screen, error)
}

// LocalCache is the fallback store, keyed by parent document id.
type LocalCache interface {
	Get(ctx context.Context, parentID string) (models.ScreenSet, error)
	Put(ctx context.Context, set models.ScreenSet) error
	Delete(ctx context.Context, parentID string) error
	FindByAppFlowID(ctx context.Context, appFlowID string) (models.ScreenSet, error)
}

// Repository implements the dual-store contract. Primary failures never
// reach the caller; the local cache answers instead and results are tagged
// models.SourceLocal. The two stores are not reconciled.
type Repository struct {
	primary Store
	local   LocalCache
	logger  arbor.ILogger
}

func NewRepository(primary Store, local LocalCache, logger arbor.ILogger) *Repository {
	return &Repository{primary: primary, local: local, logger: logger}
}

func (r *Repository) degraded(op string, err error) {
	r.logger.Warn().Err(err).Str("op", op).Msg("primary store failed, using local store")
}

// Save replaces everything stored for parentID with screens and flow.
func (r *Repository) Save(ctx context.Context, parentID string, screens []models.Screen, flow models.AppFlow) (models.ScreenSet, error) {
	if parentID == "" {
		return models.ScreenSet{}, apperr.Invalid("save screen set", models.ErrEmptyParentID)
	}
	if screens == nil {
		screens = []models.Screen{}
	}
	set := models.ScreenSet{Screens: screens, AppFlow: flow}.WithParent(parentID)
	if set.AppFlow.ID == "" {
		set.AppFlow.ID = models.NewID()
	}

	saved, err := r.primary.Save(ctx, set)
	if err == nil {
		saved.Source = models.SourceRemote
		return saved, nil
	}
	r.degraded("save", err)

	for i := range set.Screens {
		if set.Screens[i].ID == "" {
			set.Screens[i].ID = models.NewID()
		}
	}
	set.AppFlow = set.AppFlow.Normalize(set.ScreenIDs())
	if lerr := r.local.Put(ctx, set); lerr != nil {
		return models.ScreenSet{}, errors.Join(err, lerr)
	}
	set.Source = models.SourceLocal
	return set, nil
}

// GetByParentID never returns an error for a missing document: it answers
// with an empty set carrying a fresh app flow id.
func (r *Repository) GetByParentID(ctx context.Context, parentID string) (models.ScreenSet, error) {
	if parentID == "" {
		return models.ScreenSet{}, apperr.Invalid("get screen set", models.ErrEmptyParentID)
	}
	set, err := r.primary.Load(ctx, parentID)
	if err == nil {
		set.Source = models.SourceRemote
		return set, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		r.degraded("get", err)
	}

	if cached, lerr := r.local.Get(ctx, parentID); lerr == nil {
		cached.Source = models.SourceLocal
		return cached, nil
	}
	empty := models.EmptyScreenSet(parentID)
	empty.Source = models.SourceRemote
	if !apperr.Is(err, apperr.KindNotFound) {
		empty.Source = models.SourceLocal
	}
	return empty, nil
}

// Delete removes the set owning appFlowID from both stores and returns the
// parent id it belonged to. The local entry is always cleared so a stale
// mirror cannot resurrect deleted data.
func (r *Repository) Delete(ctx context.Context, appFlowID string) (string, bool, error) {
	if appFlowID == "" {
		return "", false, apperr.Invalid("delete screen set", errors.New("app flow id is required"))
	}
	parentID, found, err := r.primary.Delete(ctx, appFlowID)
	if err != nil {
		r.degraded("delete", err)
	}

	localFound := false
	if cached, lerr := r.local.FindByAppFlowID(ctx, appFlowID); lerr == nil {
		parentID = cached.AppFlow.ParentDocumentID
		localFound = true
	}
	if parentID != "" {
		if lerr := r.local.Delete(ctx, parentID); lerr == nil {
			localFound = true
		}
	}
	if err != nil {
		found = false
	}
	return parentID, found || localFound, nil
}

// UpdateAppFlow stores an edited flow. Positions are renumbered and
// references to screens outside the document are cleared. When the primary
// fails and no local copy exists, screen references are kept unchecked.
func (r *Repository) UpdateAppFlow(ctx context.Context, flow models.AppFlow) (models.AppFlow, error) {
	if flow.ParentDocumentID == "" {
		return models.AppFlow{}, apperr.Invalid("update app flow", models.ErrEmptyParentID)
	}
	updated, err := r.primary.UpdateAppFlow(ctx, flow)
	if err == nil {
		return updated, nil
	}
	r.degraded("update_app_flow", err)

	set, lerr := r.local.Get(ctx, flow.ParentDocumentID)
	if lerr != nil {
		set = models.EmptyScreenSet(flow.ParentDocumentID)
	}
	if flow.ID == "" {
		flow.ID = set.AppFlow.ID
	}
	if lerr != nil {
		// screens are unknown here, so references are kept as sent
		set.AppFlow = flow.NormalizeSteps()
	} else {
		set.AppFlow = flow.Normalize(set.ScreenIDs())
	}
	if lerr := r.local.Put(ctx, set); lerr != nil {
		return models.AppFlow{}, errors.Join(err, lerr)
	}
	return set.AppFlow, nil
}

// UpdateScreen stores an edited screen. A screen the primary store does not
// know is reported as not_found.
func (r *Repository) UpdateScreen(ctx context.Context, screen models.Screen) (models.Screen, error) {
	if screen.ParentDocumentID == "" {
		return models.Screen{}, apperr.Invalid("update screen", models.ErrEmptyParentID)
	}
	if screen.ID == "" {
		return models.Screen{}, apperr.Invalid("update screen", errors.New("screen id is required"))
	}
	updated, err := r.primary.UpdateScreen(ctx, screen)
	if err == nil {
		return updated, nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return models.Screen{}, err
	}
	r.degraded("update_screen", err)

	set := r.localOrEmpty(ctx, screen.ParentDocumentID)
	replaced := false
	for i := range set.Screens {
		if set.Screens[i].ID == screen.ID {
			set.Screens[i] = screen
			replaced = true
		}
	}
	if !replaced {
		set.Screens = append(set.Screens, screen)
	}
	if lerr := r.local.Put(ctx, set); lerr != nil {
		return models.Screen{}, errors.Join(err, lerr)
	}
	return screen, nil
}

func (r *Repository) localOrEmpty(ctx context.Context, parentID string) models.ScreenSet {
	set, err := r.local.Get(ctx, parentID)
	if err != nil {
		return models.EmptyScreenSet(parentID)
	}
	return set
}

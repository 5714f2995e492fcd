package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/uiflow_backend/internal/apperr"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

// GormStore is the relational primary store over screens, app_flows and
// flow_steps. Every mutating call runs in one transaction.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// ensureFlow upserts the app_flows row for parentID and returns the stored
// row. An existing row keeps its id.
func ensureFlow(tx *gorm.DB, parentID, preferredID string) (models.AppFlowRecord, error) {
	rec := models.AppFlowRecord{ID: preferredID, ParentID: parentID}
	if rec.ID == "" {
		rec.ID = models.NewID()
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "parent_id"}},
		DoNothing: true,
	}).Create(&rec).Error; err != nil {
		return rec, err
	}
	var stored models.AppFlowRecord
	if err := tx.Where("parent_id = ?", parentID).First(&stored).Error; err != nil {
		return rec, err
	}
	return stored, nil
}

// takenStepIDs returns the ids among steps that cannot be stored under
// flowID: ids that are not UUIDs and ids already owned by another flow.
func takenStepIDs(tx *gorm.DB, flowID string, steps []models.FlowStep) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	ids := make([]string, 0, len(steps))
	for _, st := range steps {
		if uuid.Validate(st.ID) != nil {
			out[st.ID] = struct{}{}
			continue
		}
		ids = append(ids, st.ID)
	}
	if len(ids) == 0 {
		return out, nil
	}
	var taken []string
	if err := tx.Model(&models.FlowStepRecord{}).
		Where("id IN ? AND app_flow_id <> ?", ids, flowID).
		Pluck("id", &taken).Error; err != nil {
		return nil, err
	}
	for _, id := range taken {
		out[id] = struct{}{}
	}
	return out, nil
}

func replaceSteps(tx *gorm.DB, flowID string, steps []models.FlowStep) error {
	if err := tx.Where("app_flow_id = ?", flowID).Delete(&models.FlowStepRecord{}).Error; err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}
	rows := make([]models.FlowStepRecord, len(steps))
	for i, st := range steps {
		rows[i] = models.StepToRecord(flowID, st)
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

func (s *GormStore) Save(ctx context.Context, set models.ScreenSet) (models.ScreenSet, error) {
	parentID := set.AppFlow.ParentDocumentID
	set = set.WithParent(parentID)
	for i := range set.Screens {
		if set.Screens[i].ID == "" {
			set.Screens[i].ID = models.NewID()
		}
	}
	set.AppFlow = set.AppFlow.Normalize(set.ScreenIDs())

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flow, err := ensureFlow(tx, parentID, set.AppFlow.ID)
		if err != nil {
			return fmt.Errorf("upsert app flow: %w", err)
		}
		set.AppFlow.ID = flow.ID

		if err := tx.Where("app_flow_id = ?", flow.ID).Delete(&models.FlowStepRecord{}).Error; err != nil {
			return fmt.Errorf("delete flow steps: %w", err)
		}
		if err := tx.Where("parent_id = ?", parentID).Delete(&models.ScreenRecord{}).Error; err != nil {
			return fmt.Errorf("delete screens: %w", err)
		}
		if len(set.Screens) > 0 {
			rows := make([]models.ScreenRecord, 0, len(set.Screens))
			for i, sc := range set.Screens {
				row, err := models.ScreenToRecord(sc)
				if err != nil {
					return fmt.Errorf("encode screen %s: %w", sc.ID, err)
				}
				row.Position = i
				rows = append(rows, row)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert screens: %w", err)
			}
		}
		taken, err := takenStepIDs(tx, flow.ID, set.AppFlow.Steps)
		if err != nil {
			return fmt.Errorf("check flow step ids: %w", err)
		}
		set.AppFlow = set.AppFlow.ReassignStepIDs(taken)
		if err := replaceSteps(tx, flow.ID, set.AppFlow.Steps); err != nil {
			return fmt.Errorf("insert flow steps: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ScreenSet{}, err
	}
	return set, nil
}

// Load returns the set for parentID, or an apperr not_found error when the
// document has no app flow row.
func (s *GormStore) Load(ctx context.Context, parentID string) (models.ScreenSet, error) {
	db := s.DB.WithContext(ctx)
	var flow models.AppFlowRecord
	err := db.Where("parent_id = ?", parentID).
		Preload("Steps", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		First(&flow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ScreenSet{}, apperr.NotFound("load screen set", err)
	}
	if err != nil {
		return models.ScreenSet{}, err
	}

	var rows []models.ScreenRecord
	if err := db.Where("parent_id = ?", parentID).Order("position ASC").Find(&rows).Error; err != nil {
		return models.ScreenSet{}, err
	}
	set := models.ScreenSet{
		Screens: make([]models.Screen, 0, len(rows)),
		AppFlow: models.AppFlow{ID: flow.ID, ParentDocumentID: parentID, Steps: make([]models.FlowStep, 0, len(flow.Steps))},
	}
	for _, row := range rows {
		sc, err := row.ToScreen()
		if err != nil {
			return models.ScreenSet{}, fmt.Errorf("decode screen %s: %w", row.ID, err)
		}
		set.Screens = append(set.Screens, sc)
	}
	for _, st := range flow.Steps {
		set.AppFlow.Steps = append(set.AppFlow.Steps, st.ToStep())
	}
	set.AppFlow = set.AppFlow.Normalize(set.ScreenIDs())
	return set, nil
}

// Delete removes the app flow, its steps and the screens of its parent.
// It reports false when no app flow has that id.
func (s *GormStore) Delete(ctx context.Context, appFlowID string) (string, bool, error) {
	var parentID string
	found := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var flow models.AppFlowRecord
		err := tx.Where("id = ?", appFlowID).First(&flow).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		parentID = flow.ParentID
		if err := tx.Where("app_flow_id = ?", flow.ID).Delete(&models.FlowStepRecord{}).Error; err != nil {
			return fmt.Errorf("delete flow steps: %w", err)
		}
		if err := tx.Where("parent_id = ?", flow.ParentID).Delete(&models.ScreenRecord{}).Error; err != nil {
			return fmt.Errorf("delete screens: %w", err)
		}
		if err := tx.Delete(&models.AppFlowRecord{}, "id = ?", flow.ID).Error; err != nil {
			return fmt.Errorf("delete app flow: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return parentID, found, nil
}

// UpdateAppFlow replaces the steps of the parent's flow. References to
// screens the parent does not own are cleared and positions renumbered.
// Step ids owned by another flow, or not UUIDs, are replaced.
func (s *GormStore) UpdateAppFlow(ctx context.Context, flow models.AppFlow) (models.AppFlow, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := ensureFlow(tx, flow.ParentDocumentID, flow.ID)
		if err != nil {
			return fmt.Errorf("upsert app flow: %w", err)
		}
		flow.ID = stored.ID

		var ids []string
		if err := tx.Model(&models.ScreenRecord{}).Where("parent_id = ?", flow.ParentDocumentID).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list screens: %w", err)
		}
		owned := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			owned[id] = struct{}{}
		}
		flow = flow.Normalize(owned)
		taken, err := takenStepIDs(tx, flow.ID, flow.Steps)
		if err != nil {
			return fmt.Errorf("check flow step ids: %w", err)
		}
		flow = flow.ReassignStepIDs(taken)
		if err := replaceSteps(tx, flow.ID, flow.Steps); err != nil {
			return fmt.Errorf("replace flow steps: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.AppFlow{}, err
	}
	return flow, nil
}

// UpdateScreen rewrites one screen of its parent document.
func (s *GormStore) UpdateScreen(ctx context.Context, screen models.Screen) (models.Screen, error) {
	row, err := models.ScreenToRecord(screen)
	if err != nil {
		return models.Screen{}, err
	}
	res := s.DB.WithContext(ctx).Model(&models.ScreenRecord{}).
		Where("id = ? AND parent_id = ?", screen.ID, screen.ParentDocumentID).
		Updates(map[string]interface{}{
			"name":          row.Name,
			"description":   row.Description,
			"elements_json": row.ElementsJSON,
		})
	if res.Error != nil {
		return models.Screen{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.Screen{}, apperr.NotFound("update screen", fmt.Errorf("screen %s", screen.ID))
	}
	if screen.Elements == nil {
		screen.Elements = []models.UiElement{}
	}
	return screen, nil
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScreenRecord is a row of the screens table. Elements are stored as JSON;
// Position keeps the generated screen order.
type ScreenRecord struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	ParentID     string         `gorm:"index;not null"`
	Name         string         `gorm:"not null"`
	Description  string         `gorm:"type:text"`
	ElementsJSON datatypes.JSON `gorm:"column:elements_json;type:jsonb"`
	Position     int            `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ScreenRecord) TableName() string { return "screens" }

func (s *ScreenRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// AppFlowRecord is a row of app_flows; at most one per parent document.
type AppFlowRecord struct {
	ID        string           `gorm:"type:uuid;primaryKey"`
	ParentID  string           `gorm:"uniqueIndex;not null"`
	Steps     []FlowStepRecord `gorm:"foreignKey:AppFlowID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AppFlowRecord) TableName() string { return "app_flows" }

func (a *AppFlowRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// FlowStepRecord is a row of flow_steps, ordered by Position.
type FlowStepRecord struct {
	ID          string        `gorm:"type:uuid;primaryKey"`
	AppFlowID   string        `gorm:"type:uuid;index;not null"`
	Description string        `gorm:"type:text"`
	ScreenID    *string       `gorm:"type:uuid"`
	Screen      *ScreenRecord `gorm:"foreignKey:ScreenID;constraint:OnDelete:SET NULL"`
	Position    int           `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (FlowStepRecord) TableName() string { return "flow_steps" }

func (f *FlowStepRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

func ScreenToRecord(s Screen) (ScreenRecord, error) {
	elements := s.Elements
	if elements == nil {
		elements = []UiElement{}
	}
	raw, err := json.Marshal(elements)
	if err != nil {
		return ScreenRecord{}, err
	}
	return ScreenRecord{
		ID:           s.ID,
		ParentID:     s.ParentDocumentID,
		Name:         s.Name,
		Description:  s.Description,
		ElementsJSON: datatypes.JSON(raw),
	}, nil
}

func (r ScreenRecord) ToScreen() (Screen, error) {
	elements := []UiElement{}
	if len(r.ElementsJSON) > 0 {
		if err := json.Unmarshal(r.ElementsJSON, &elements); err != nil {
			return Screen{}, err
		}
	}
	return Screen{
		ID:               r.ID,
		ParentDocumentID: r.ParentID,
		Name:             r.Name,
		Description:      r.Description,
		Elements:         elements,
	}, nil
}

func StepToRecord(appFlowID string, st FlowStep) FlowStepRecord {
	return FlowStepRecord{
		ID:          st.ID,
		AppFlowID:   appFlowID,
		Description: st.Description,
		ScreenID:    st.ScreenID,
		Position:    st.Position,
	}
}

func (r FlowStepRecord) ToStep() FlowStep {
	return FlowStep{
		ID:          r.ID,
		Description: r.Description,
		ScreenID:    r.ScreenID,
		Position:    r.Position,
	}
}

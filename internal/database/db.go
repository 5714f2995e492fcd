package database

import (
    "fmt"

    "gorm.io/driver/postgres"
    "gorm.io/gorm"
    "gorm.io/gorm/logger"

    "github.com/zaqqye/uiflow_backend/internal/config"
    "github.com/zaqqye/uiflow_backend/internal/models"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
    dsn := fmt.Sprintf(
        "host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
        cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode,
    )
    return gorm.Open(postgres.Open(dsn), &gorm.Config{
        Logger: logger.Default.LogMode(logger.Warn),
    })
}

// Migrate creates screens, app_flows and flow_steps with their foreign keys
// and the unique app_flows(parent_id) index.
func Migrate(db *gorm.DB) error {
    return db.AutoMigrate(&models.ScreenRecord{}, &models.AppFlowRecord{}, &models.FlowStepRecord{})
}

package controllers

import (
    "net/http"

    "github.com/gin-gonic/gin"

    "github.com/zaqqye/uiflow_backend/internal/config"
)

type ConfigController struct {
    Cfg *config.Config
}

// Public returns the limits a client needs to drive generation and export.
func (cc *ConfigController) Public(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{
        "generation": gin.H{
            "model":           cc.Cfg.LLMModel,
            "timeout_seconds": int(cc.Cfg.GenerationTimeout().Seconds()),
            "summary_limit":   cc.Cfg.SummaryLimit(),
            "max_tokens":      cc.Cfg.MaxTokens(),
            "ai_enabled":      cc.Cfg.AnthropicAPIKey != "",
        },
        "export": gin.H{
            "priorities":    []string{"MUST", "SHOULD"},
            "card_delay_ms": cc.Cfg.CardDelay().Milliseconds(),
            "max_retries":   cc.Cfg.MaxRetries(),
            "board_web_url": cc.Cfg.BoardWebURL,
        },
        "auth_required":  cc.Cfg.JWTSecret != "",
        "schema_version": 1,
    })
}

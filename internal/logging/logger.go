package logging

import (
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// New builds the console logger used by the server and its services.
func New(level string) arbor.ILogger {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	return arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}

// Discard returns a logger for tests and optional collaborators.
func Discard() arbor.ILogger {
	return arbor.NewLogger()
}

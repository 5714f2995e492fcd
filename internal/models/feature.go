package models

import "strings"

// Priority is a MoSCoW rank from the feature document.
type Priority string

const (
	PriorityMust   Priority = "MUST"
	PriorityShould Priority = "SHOULD"
	PriorityCould  Priority = "COULD"
	PriorityWont   Priority = "WONT"
)

// ParsePriority accepts any casing and the "won't" spelling.
func ParsePriority(raw string) Priority {
	p := strings.ToUpper(strings.TrimSpace(raw))
	p = strings.ReplaceAll(p, "'", "")
	return Priority(p)
}

// Exportable reports whether features of this priority go to the board.
func (p Priority) Exportable() bool {
	switch ParsePriority(string(p)) {
	case PriorityMust, PriorityShould:
		return true
	}
	return false
}

type Feature struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

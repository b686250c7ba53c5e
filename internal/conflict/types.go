// Package conflict groups typed semantic changes from parallel tasks by
// location and applies the compatibility rule base to produce conflict
// regions.
package conflict

import (
	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/semantic"
)

// Severity grades how serious a conflict region is.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Region is the result of grouping and rule evaluation at one location.
type Region struct {
	FilePath      string              `json:"file_path"`
	Location      string              `json:"location"`
	TasksInvolved []string                    `json:"tasks_involved"`
	ChangeTypes   map[string]semantic.ChangeType `json:"change_types"`
	Severity      Severity            `json:"severity"`
	CanAutoMerge  bool                `json:"can_auto_merge"`
	MergeStrategy *rules.Strategy     `json:"merge_strategy,omitempty"`
	Reason        string              `json:"reason"`
}

// Package airesolve resolves conflict regions the auto merger cannot
// handle, by building the minimum context an opaque AI function needs and
// parsing its response. It never itself decides the merged content; all
// judgment is delegated to AIResolve.
package airesolve

import (
	"fmt"
	"strings"

	"github.com/latticeworks/parallex/internal/conflict"
	"github.com/latticeworks/parallex/internal/evolution"
	"github.com/latticeworks/parallex/internal/semantic"
)

const truncationSuffix = "... (truncated)"

// taskChangeContext is one task's relevant changes at a conflict location.
type taskChangeContext struct {
	TaskID  string
	Intent  string
	Changes []semantic.SemanticChange
}

// ConflictContext is the minimal data sent to the AI: everything it needs
// to resolve one conflict region, and nothing else.
type ConflictContext struct {
	FilePath             string
	Location             string
	Language             string
	BaselineCode         string
	TaskChanges          []taskChangeContext
	ConflictDescription  string
}

// buildContext assembles a ConflictContext from a conflict region, its
// file's baseline content, and the snapshots of every task involved.
func buildContext(region conflict.Region, baselineCode string, snapshots []*evolution.TaskSnapshot) ConflictContext {
	involved := map[string]bool{}
	for _, t := range region.TasksInvolved {
		involved[t] = true
	}

	var taskChanges []taskChangeContext

	for _, snap := range snapshots {
		if snap == nil || !involved[snap.TaskID] {
			continue
		}

		var relevant []semantic.SemanticChange

		for _, c := range snap.SemanticChanges {
			if c.Location == region.Location {
				relevant = append(relevant, c)
			}
		}

		if len(relevant) == 0 {
			continue
		}

		intent := snap.TaskIntent
		if intent == "" {
			intent = "No intent specified"
		}

		taskChanges = append(taskChanges, taskChangeContext{
			TaskID:  snap.TaskID,
			Intent:  intent,
			Changes: relevant,
		})
	}

	changeTypeNames := make([]string, 0, len(region.ChangeTypes))
	for _, ct := range region.ChangeTypes {
		changeTypeNames = append(changeTypeNames, string(ct))
	}

	description := fmt.Sprintf(
		"Tasks %s made conflicting changes: %s. Severity: %s. %s",
		strings.Join(region.TasksInvolved, ", "),
		strings.Join(changeTypeNames, ", "),
		region.Severity,
		region.Reason,
	)

	return ConflictContext{
		FilePath:            region.FilePath,
		Location:            region.Location,
		Language:            semantic.LanguageOf(region.FilePath),
		BaselineCode:        baselineCode,
		TaskChanges:         taskChanges,
		ConflictDescription: description,
	}
}

// render formats the context as the body of the AI user prompt.
func (c ConflictContext) render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\n", c.FilePath)
	fmt.Fprintf(&b, "Location: %s\n", c.Location)
	fmt.Fprintf(&b, "Language: %s\n\n", c.Language)
	b.WriteString("--- BASELINE CODE (before any changes) ---\n")
	b.WriteString(c.BaselineCode)
	b.WriteString("\n--- END BASELINE ---\n\n")
	b.WriteString("CHANGES FROM EACH TASK:\n")

	for _, tc := range c.TaskChanges {
		fmt.Fprintf(&b, "\n[Task: %s]\n", tc.TaskID)
		fmt.Fprintf(&b, "Intent: %s\n", tc.Intent)
		b.WriteString("Changes:\n")

		for _, change := range tc.Changes {
			fmt.Fprintf(&b, "  - %s: %s\n", change.ChangeType, change.Target)

			if change.ContentAfter != nil {
				b.WriteString("    Code: ")
				b.WriteString(truncate(*change.ContentAfter, 500))
				b.WriteString("\n")
			}
		}
	}

	fmt.Fprintf(&b, "\nCONFLICT: %s\n", c.ConflictDescription)

	return b.String()
}

// estimatedTokens is the rendered context's length divided by 4, the
// resolver's fixed token-per-character heuristic.
func (c ConflictContext) estimatedTokens() int {
	return len(c.render()) / 4
}

func truncate(content string, max int) string {
	if len(content) <= max {
		return content
	}

	return content[:max] + truncationSuffix
}

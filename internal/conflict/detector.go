package conflict

import (
	"sort"

	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/semantic"
)

type locatedChange struct {
	taskID string
	change semantic.SemanticChange
}

// Detector applies a RuleBook to group typed changes by location and
// produce conflict regions.
type Detector struct {
	ruleBook *rules.RuleBook
}

// New creates a Detector backed by ruleBook.
func New(ruleBook *rules.RuleBook) *Detector {
	return &Detector{ruleBook: ruleBook}
}

// DetectConflicts groups every task's changes by location and evaluates
// compatibility, returning one Region per contested location.
func (d *Detector) DetectConflicts(filePath string, analyses map[string]*semantic.FileAnalysis) []Region {
	if len(analyses) <= 1 {
		return nil
	}

	byLocation := map[string][]locatedChange{}

	taskIDs := make([]string, 0, len(analyses))
	for taskID := range analyses {
		taskIDs = append(taskIDs, taskID)
	}

	sort.Strings(taskIDs)

	for _, taskID := range taskIDs {
		for _, change := range analyses[taskID].Changes {
			byLocation[change.Location] = append(byLocation[change.Location], locatedChange{taskID: taskID, change: change})
		}
	}

	locations := make([]string, 0, len(byLocation))
	for loc := range byLocation {
		locations = append(locations, loc)
	}

	sort.Strings(locations)

	var regions []Region

	for _, location := range locations {
		entries := byLocation[location]

		involvedTasks := map[string]bool{}
		for _, e := range entries {
			involvedTasks[e.taskID] = true
		}

		if len(involvedTasks) < 2 {
			continue
		}

		if targetsDiffer(entries) {
			continue
		}

		regions = append(regions, d.buildRegion(filePath, location, entries))
	}

	return regions
}

func targetsDiffer(entries []locatedChange) bool {
	target := entries[0].change.Target

	for _, e := range entries[1:] {
		if e.change.Target != target {
			return true
		}
	}

	return false
}

func (d *Detector) buildRegion(filePath, location string, entries []locatedChange) Region {
	changeTypes := map[string]semantic.ChangeType{}
	tasksInvolved := make([]string, 0, len(entries))

	seen := map[string]bool{}
	for _, e := range entries {
		if !seen[e.taskID] {
			seen[e.taskID] = true

			tasksInvolved = append(tasksInvolved, e.taskID)
		}

		changeTypes[e.taskID] = e.change.ChangeType
	}

	sort.Strings(tasksInvolved)

	allCompatible := true

	var lastCompatible rules.Rule

	hasCompatible := false

	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			rule := d.ruleBook.Lookup(entries[i].change.ChangeType, entries[j].change.ChangeType)

			if !rule.Compatible {
				allCompatible = false

				continue
			}

			lastCompatible = rule
			hasCompatible = true
		}
	}

	severity := assessSeverity(entries, allCompatible)

	region := Region{
		FilePath:      filePath,
		Location:      location,
		TasksInvolved: tasksInvolved,
		ChangeTypes:   changeTypes,
		Severity:      severity,
		CanAutoMerge:  allCompatible,
	}

	if allCompatible && hasCompatible {
		strategy := lastCompatible.Strategy
		region.MergeStrategy = &strategy
		region.Reason = lastCompatible.Reason
	} else if allCompatible {
		region.Reason = "single pair, trivially compatible"
	} else {
		region.Reason = "incompatible change types at the same location"
	}

	return region
}

func isModifyStyle(ct semantic.ChangeType) bool {
	return ct == semantic.ModifyFunction || ct == semantic.ModifyMethod || ct == semantic.ModifyClass
}

func isStructural(ct semantic.ChangeType) bool {
	switch ct {
	case semantic.WrapJSX, semantic.UnwrapJSX, semantic.RemoveFunction, semantic.RemoveClass:
		return true
	default:
		return false
	}
}

func rangesOverlap(a, b semantic.SemanticChange) bool {
	return a.LineStart <= b.LineEnd && b.LineStart <= a.LineEnd
}

func rangesIdentical(a, b semantic.SemanticChange) bool {
	return a.LineStart == b.LineStart && a.LineEnd == b.LineEnd
}

// assessSeverity grades a contested location. Two modify-style changes
// whose ranges partially overlap without coinciding are a genuine boundary
// clash (critical); two that land on the exact same span are both editing
// one statement and resolve the same way a same-line overlap always would,
// so they grade as medium rather than critical.
func assessSeverity(entries []locatedChange, allCompatible bool) Severity {
	if allCompatible {
		return SeverityNone
	}

	modifyOverlap := false
	modifyCount := 0
	structural := false

	for i := 0; i < len(entries); i++ {
		if isModifyStyle(entries[i].change.ChangeType) {
			modifyCount++
		}

		if isStructural(entries[i].change.ChangeType) {
			structural = true
		}

		for j := i + 1; j < len(entries); j++ {
			if isModifyStyle(entries[i].change.ChangeType) && isModifyStyle(entries[j].change.ChangeType) &&
				rangesOverlap(entries[i].change, entries[j].change) &&
				!rangesIdentical(entries[i].change, entries[j].change) {
				modifyOverlap = true
			}
		}
	}

	switch {
	case modifyCount >= 2 && modifyOverlap:
		return SeverityCritical
	case structural:
		return SeverityHigh
	case modifyCount >= 1 && !modifyOverlap:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Package mergepipeline composes the semantic analyzer, conflict
// detector, auto merger, and AI resolver into the single-file merge
// algorithm the orchestrator drives over every changed file.
package mergepipeline

import (
	"fmt"

	"github.com/latticeworks/parallex/internal/airesolve"
	"github.com/latticeworks/parallex/internal/automerge"
	"github.com/latticeworks/parallex/internal/conflict"
	"github.com/latticeworks/parallex/internal/evolution"
	"github.com/latticeworks/parallex/internal/mergetypes"
	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/semantic"
)

// Pipeline merges one file's concurrent task snapshots into its final
// content, dispatching each conflict region to the auto merger first and
// falling back to the AI resolver only when the auto merger cannot handle
// the assigned strategy.
type Pipeline struct {
	detector *conflict.Detector
	resolver *airesolve.Resolver
}

// New builds a Pipeline from a rule book (conflict detection) and an AI
// resolver (the fallback path).
func New(ruleBook *rules.RuleBook, resolver *airesolve.Resolver) *Pipeline {
	return &Pipeline{detector: conflict.New(ruleBook), resolver: resolver}
}

// MergeFile merges filePath given its baseline content and every task's
// snapshot for it, recovering from internal errors as a failed result
// rather than propagating a panic.
func (p *Pipeline) MergeFile(filePath, baselineContent string, snapshots []*evolution.TaskSnapshot) (result mergetypes.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = mergetypes.Result{Decision: mergetypes.Failed, Error: fmt.Sprintf("merge pipeline panicked: %v", r)}
		}
	}()

	analyses := map[string]*semantic.FileAnalysis{}

	for _, snap := range snapshots {
		analyses[snap.TaskID] = &semantic.FileAnalysis{FilePath: filePath, Changes: snap.SemanticChanges}
	}

	regions := p.detector.DetectConflicts(filePath, analyses)

	if len(regions) == 0 && len(snapshots) == 1 {
		merged := applySingleTaskChanges(baselineContent, snapshots[0])

		return mergetypes.Result{
			Decision:      mergetypes.AutoMerged,
			MergedContent: &merged,
			Explanation:   "single task modified this file; applied directly",
		}
	}

	coveredLocations := map[string]bool{}
	for _, region := range regions {
		coveredLocations[region.Location] = true
	}

	merged := applyIndependentChanges(baselineContent, snapshots, coveredLocations)

	var (
		resolved   []conflict.Region
		remaining  []conflict.Region
		aiCalled   bool
		aiTokens   int
		aiCalls    int
	)

	for _, region := range regions {
		if region.CanAutoMerge && region.MergeStrategy != nil {
			amResult := automerge.Merge(buildAutomergeContext(filePath, merged, region, snapshots), *region.MergeStrategy)

			if amResult.Decision == mergetypes.AutoMerged && amResult.MergedContent != nil {
				merged = *amResult.MergedContent
				resolved = append(resolved, region)

				continue
			}
		}

		if p.resolver == nil {
			remaining = append(remaining, region)

			continue
		}

		aiResult := p.resolver.ResolveConflict(region, baselineContent, snapshots)
		aiCalled = true
		aiCalls += aiResult.AICallsMade
		aiTokens += aiResult.TokensUsed

		if aiResult.Decision == mergetypes.AIMerged && aiResult.MergedContent != nil {
			merged = *aiResult.MergedContent
			resolved = append(resolved, region)

			continue
		}

		remaining = append(remaining, region)
	}

	decision := mergetypes.AutoMerged

	switch {
	case len(remaining) > 0:
		decision = mergetypes.NeedsHumanReview
	case aiCalled:
		decision = mergetypes.AIMerged
	}

	return mergetypes.Result{
		Decision:           decision,
		MergedContent:      &merged,
		ConflictsResolved:  resolved,
		ConflictsRemaining: remaining,
		AICallsMade:        aiCalls,
		TokensUsed:         aiTokens,
		Explanation:        fmt.Sprintf("resolved %d/%d conflict region(s)", len(resolved), len(regions)),
	}
}

// applySingleTaskChanges applies one task's changes directly to baseline
// content when no conflict exists: its content_before/content_after
// substitutions through the order_by_time strategy, which is a safe
// identity for the single-task case (every substitution is unopposed), then
// its additive changes through append_statements.
func applySingleTaskChanges(baselineContent string, snapshot *evolution.TaskSnapshot) string {
	if snapshot == nil {
		return baselineContent
	}

	ctx := automerge.Context{
		BaselineContent: baselineContent,
		TaskChanges:     taskChangesFrom(snapshot),
	}

	result := automerge.Merge(ctx, rules.OrderByTime)
	if result.MergedContent != nil {
		baselineContent = *result.MergedContent
	}

	appendCtx := automerge.Context{BaselineContent: baselineContent, TaskChanges: additiveOnly(snapshot)}
	appendResult := automerge.Merge(appendCtx, rules.AppendStatements)

	if appendResult.MergedContent != nil {
		return *appendResult.MergedContent
	}

	return baselineContent
}

// applyIndependentChanges applies every semantic change at a location the
// detector did not flag as a contested region — either only one task
// touched it, or several tasks touched it with differing targets, which
// DetectConflicts treats as independent (no conflict, per its target-diff
// rule). These are safe to combine directly since, by construction, none
// of them share a region with another task's change to the same target.
func applyIndependentChanges(baselineContent string, snapshots []*evolution.TaskSnapshot, coveredLocations map[string]bool) string {
	var imports, functions, rest []automerge.TaskChange

	methodsByLocation := map[string][]automerge.TaskChange{}

	for _, snap := range snapshots {
		if snap == nil {
			continue
		}

		for _, c := range snap.SemanticChanges {
			if coveredLocations[c.Location] {
				continue
			}

			tc := automerge.TaskChange{TaskID: snap.TaskID, StartedAt: snap.StartedAt, Change: c}

			switch c.ChangeType {
			case semantic.AddImport, semantic.RemoveImport:
				imports = append(imports, tc)
			case semantic.AddFunction:
				functions = append(functions, tc)
			case semantic.AddMethod:
				methodsByLocation[c.Location] = append(methodsByLocation[c.Location], tc)
			default:
				rest = append(rest, tc)
			}
		}
	}

	merged := baselineContent

	for _, group := range []struct {
		changes  []automerge.TaskChange
		strategy rules.Strategy
	}{
		{imports, rules.CombineImports},
		{functions, rules.AppendFunctions},
	} {
		if len(group.changes) == 0 {
			continue
		}

		if result := automerge.Merge(automerge.Context{BaselineContent: merged, TaskChanges: group.changes}, group.strategy); result.MergedContent != nil {
			merged = *result.MergedContent
		}
	}

	for location, changes := range methodsByLocation {
		ctx := automerge.Context{
			BaselineContent: merged,
			Conflict:        conflict.Region{Location: location},
			TaskChanges:     changes,
		}

		if result := automerge.Merge(ctx, rules.AppendMethods); result.MergedContent != nil {
			merged = *result.MergedContent
		}
	}

	var substitutions, additive []automerge.TaskChange

	for _, tc := range rest {
		switch {
		case tc.Change.ContentBefore != nil && tc.Change.ContentAfter != nil:
			substitutions = append(substitutions, tc)
		case tc.Change.IsAdditive() && tc.Change.ContentAfter != nil:
			additive = append(additive, tc)
		}
	}

	if len(substitutions) > 0 {
		if result := automerge.Merge(automerge.Context{BaselineContent: merged, TaskChanges: substitutions}, rules.OrderByTime); result.MergedContent != nil {
			merged = *result.MergedContent
		}
	}

	if len(additive) > 0 {
		if result := automerge.Merge(automerge.Context{BaselineContent: merged, TaskChanges: additive}, rules.AppendStatements); result.MergedContent != nil {
			merged = *result.MergedContent
		}
	}

	return merged
}

func taskChangesFrom(snapshot *evolution.TaskSnapshot) []automerge.TaskChange {
	var out []automerge.TaskChange

	for _, c := range snapshot.SemanticChanges {
		if c.ContentBefore != nil && c.ContentAfter != nil {
			out = append(out, automerge.TaskChange{TaskID: snapshot.TaskID, StartedAt: snapshot.StartedAt, Change: c})
		}
	}

	return out
}

func additiveOnly(snapshot *evolution.TaskSnapshot) []automerge.TaskChange {
	var out []automerge.TaskChange

	for _, c := range snapshot.SemanticChanges {
		if c.IsAdditive() && c.ContentBefore == nil && c.ContentAfter != nil {
			out = append(out, automerge.TaskChange{TaskID: snapshot.TaskID, StartedAt: snapshot.StartedAt, Change: c})
		}
	}

	return out
}

func buildAutomergeContext(filePath, baselineContent string, region conflict.Region, snapshots []*evolution.TaskSnapshot) automerge.Context {
	involved := map[string]bool{}
	for _, t := range region.TasksInvolved {
		involved[t] = true
	}

	var changes []automerge.TaskChange

	for _, snap := range snapshots {
		if snap == nil || !involved[snap.TaskID] {
			continue
		}

		for _, c := range snap.SemanticChanges {
			if c.Location == region.Location {
				changes = append(changes, automerge.TaskChange{TaskID: snap.TaskID, StartedAt: snap.StartedAt, Change: c})
			}
		}
	}

	return automerge.Context{
		FilePath:        filePath,
		BaselineContent: baselineContent,
		Conflict:        region,
		TaskChanges:     changes,
	}
}

package airesolve

import (
	"fmt"
	"sort"
	"sync"

	"github.com/latticeworks/parallex/internal/conflict"
	"github.com/latticeworks/parallex/internal/evolution"
	"github.com/latticeworks/parallex/internal/mergetypes"
)

// AIResolveFunc is the opaque AI transport: given a fixed system prompt
// and a conflict-specific user prompt, it returns the model's raw text
// response. The resolver makes no assumption about the provider.
type AIResolveFunc func(systemPrompt, userPrompt string) (string, error)

// Stats are the resolver's running usage counters.
type Stats struct {
	CallsMade           int `json:"calls_made"`
	EstimatedTokensUsed int `json:"estimated_tokens_used"`
}

// Resolver resolves conflict regions the auto merger cannot handle, using
// the minimum context necessary, deferring all judgment to an opaque AI
// function.
type Resolver struct {
	aiResolve  AIResolveFunc
	tokenBudget int

	mu    sync.Mutex
	stats Stats
}

// New returns a Resolver. aiResolve may be nil, in which case every call
// resolves to needs_human_review without invoking anything.
func New(aiResolve AIResolveFunc, tokenBudget int) *Resolver {
	if tokenBudget <= 0 {
		tokenBudget = 4000
	}

	return &Resolver{aiResolve: aiResolve, tokenBudget: tokenBudget}
}

// Stats returns a snapshot of the running usage counters.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats
}

// ResetStats zeroes the running usage counters.
func (r *Resolver) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats = Stats{}
}

func (r *Resolver) recordCall(tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.CallsMade++
	r.stats.EstimatedTokensUsed += tokens
}

// ResolveConflict resolves a single conflict region using AI.
func (r *Resolver) ResolveConflict(region conflict.Region, baselineCode string, snapshots []*evolution.TaskSnapshot) mergetypes.Result {
	if r.aiResolve == nil {
		return needsReview(region, "No AI function configured")
	}

	ctx := buildContext(region, baselineCode, snapshots)

	estimated := ctx.estimatedTokens()
	if estimated > r.tokenBudget {
		return needsReview(region, fmt.Sprintf("Context too large for AI (%d tokens)", estimated))
	}

	prompt := formatMergePrompt(ctx)

	response, err := r.aiResolve(systemPrompt, prompt)
	if err != nil {
		return mergetypes.Result{Decision: mergetypes.Failed, Error: err.Error(), ConflictsRemaining: []conflict.Region{region}}
	}

	r.recordCall(estimated + len(response)/4)

	merged, ok := extractCodeBlock(response)
	if !ok {
		return mergetypes.Result{
			Decision:            mergetypes.NeedsHumanReview,
			Explanation:         "Could not parse AI merge response",
			ConflictsRemaining:  []conflict.Region{region},
			AICallsMade:         1,
			TokensUsed:          estimated,
		}
	}

	return mergetypes.Result{
		Decision:          mergetypes.AIMerged,
		MergedContent:     &merged,
		ConflictsResolved: []conflict.Region{region},
		AICallsMade:       1,
		TokensUsed:        estimated,
		Explanation:       fmt.Sprintf("AI resolved conflict at %s", region.Location),
	}
}

// ResolveMultipleConflicts resolves conflicts across one or more files.
// When batch is set, conflicts within the same file whose combined
// estimated tokens stay under budget are sent as a single call.
func (r *Resolver) ResolveMultipleConflicts(
	conflicts []conflict.Region,
	baselineCodes map[string]string,
	snapshots []*evolution.TaskSnapshot,
	batch bool,
) []mergetypes.Result {
	if !batch || len(conflicts) <= 1 {
		results := make([]mergetypes.Result, 0, len(conflicts))
		for _, c := range conflicts {
			results = append(results, r.ResolveConflict(c, baselineCodes[c.Location], snapshots))
		}

		return results
	}

	byFile := map[string][]conflict.Region{}

	var fileOrder []string

	for _, c := range conflicts {
		if _, ok := byFile[c.FilePath]; !ok {
			fileOrder = append(fileOrder, c.FilePath)
		}

		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	sort.Strings(fileOrder)

	var results []mergetypes.Result

	for _, filePath := range fileOrder {
		fileConflicts := byFile[filePath]

		if len(fileConflicts) == 1 {
			results = append(results, r.ResolveConflict(fileConflicts[0], baselineCodes[fileConflicts[0].Location], snapshots))

			continue
		}

		results = append(results, r.resolveFileBatch(filePath, fileConflicts, baselineCodes, snapshots))
	}

	return results
}

func (r *Resolver) resolveFileBatch(
	filePath string,
	conflicts []conflict.Region,
	baselineCodes map[string]string,
	snapshots []*evolution.TaskSnapshot,
) mergetypes.Result {
	if r.aiResolve == nil {
		return mergetypes.Result{
			Decision:            mergetypes.NeedsHumanReview,
			Explanation:         "No AI function configured",
			ConflictsRemaining: conflicts,
		}
	}

	contexts := make([]ConflictContext, 0, len(conflicts))

	total := 0

	for _, c := range conflicts {
		ctx := buildContext(c, baselineCodes[c.Location], snapshots)
		contexts = append(contexts, ctx)
		total += ctx.estimatedTokens()
	}

	if total > r.tokenBudget {
		merged := mergetypes.Result{Decision: mergetypes.Failed}

		for i, c := range conflicts {
			individual := r.ResolveConflict(c, baselineCodes[c.Location], snapshots)
			if i == 0 {
				merged = individual

				continue
			}

			merged.ConflictsResolved = append(merged.ConflictsResolved, individual.ConflictsResolved...)
			merged.ConflictsRemaining = append(merged.ConflictsRemaining, individual.ConflictsRemaining...)
			merged.AICallsMade += individual.AICallsMade
			merged.TokensUsed += individual.TokensUsed
		}

		return merged
	}

	response, err := r.aiResolve(systemPrompt, formatBatchMergePrompt(filePath, contexts))
	if err != nil {
		return mergetypes.Result{Decision: mergetypes.Failed, Error: err.Error(), ConflictsRemaining: conflicts}
	}

	r.recordCall(total + len(response)/4)

	var resolved, remaining []conflict.Region

	for i, c := range conflicts {
		if _, ok := extractLocationBlock(response, i); ok {
			resolved = append(resolved, c)
		} else {
			remaining = append(remaining, c)
		}
	}

	if len(resolved) == 0 {
		return mergetypes.Result{
			Decision:            mergetypes.NeedsHumanReview,
			Explanation:         "Could not parse batch AI response",
			ConflictsRemaining: conflicts,
			AICallsMade:         1,
			TokensUsed:          total,
		}
	}

	decision := mergetypes.AIMerged
	if len(remaining) > 0 {
		decision = mergetypes.NeedsHumanReview
	}

	return mergetypes.Result{
		Decision:            decision,
		MergedContent:       &response,
		ConflictsResolved:   resolved,
		ConflictsRemaining: remaining,
		AICallsMade:         1,
		TokensUsed:          total,
		Explanation:         fmt.Sprintf("Batch resolved %d/%d conflicts", len(resolved), len(conflicts)),
	}
}

// ResolveConflictMarkerFile handles a file still carrying unresolved git
// conflict markers: it parses each hunk, requests per-hunk resolutions in
// a single call, and stitches them back into the file. Unresolved hunks
// default to the "theirs" side.
func (r *Resolver) ResolveConflictMarkerFile(filePath, content string) (string, error) {
	hunks, ok := splitConflictMarkers(content)
	if !ok {
		return content, nil
	}

	if r.aiResolve == nil {
		return "", fmt.Errorf("no AI function configured to resolve conflict markers in %s", filePath)
	}

	response, err := r.aiResolve(systemPrompt, formatConflictMarkerPrompt(filePath, hunks))
	if err != nil {
		return "", err
	}

	r.recordCall(len(response) / 4)

	resolutions := map[int]string{}

	for i := range hunks {
		if block, found := extractLocationBlock(response, i); found {
			resolutions[i] = block
		}
	}

	return stitchResolutions(content, resolutions), nil
}

func needsReview(region conflict.Region, reason string) mergetypes.Result {
	return mergetypes.Result{
		Decision:            mergetypes.NeedsHumanReview,
		Explanation:         reason,
		ConflictsRemaining: []conflict.Region{region},
	}
}

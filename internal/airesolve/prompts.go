package airesolve

import "fmt"

// systemPrompt fixes the resolver's role and output contract for every
// call; it never varies with the conflict being resolved.
const systemPrompt = `You are a merge specialist resolving a conflict between parallel code changes.
You will be given the baseline code and the changes each task made at the same location.
Produce the single merged version of the code that incorporates every task's intent.
Respond with exactly one fenced code block in the declared language containing the full resolved code, and nothing else.`

func formatMergePrompt(ctx ConflictContext) string {
	return fmt.Sprintf(
		"%s\n\nProduce the merged code as a single fenced ```%s code block.",
		ctx.render(), ctx.Language,
	)
}

func formatBatchMergePrompt(filePath string, contexts []ConflictContext) string {
	var combined string

	for i, ctx := range contexts {
		if i > 0 {
			combined += "\n\n---\n\n"
		}

		combined += fmt.Sprintf("CONFLICT_%d at %s\n%s", i+1, ctx.Location, ctx.render())
	}

	language := "text"
	if len(contexts) > 0 {
		language = contexts[0].Language
	}

	return fmt.Sprintf(
		"File %s has %d conflicts. For each, respond with a line `--- CONFLICT_N RESOLVED ---` "+
			"followed by a fenced ```%s code block with that location's resolved code.\n\n%s",
		filePath, len(contexts), language, combined,
	)
}

func formatConflictMarkerPrompt(filePath string, hunks []conflictHunk) string {
	var b string

	for i, h := range hunks {
		b += fmt.Sprintf("CONFLICT_%d:\n--- OURS ---\n%s\n--- THEIRS ---\n%s\n\n", i+1, h.ours, h.theirs)
	}

	return fmt.Sprintf(
		"File %s has %d git conflict marker section(s). For each, respond with a line "+
			"`--- CONFLICT_N RESOLVED ---` followed by a fenced code block with the resolved content.\n\n%s",
		filePath, len(hunks), b,
	)
}

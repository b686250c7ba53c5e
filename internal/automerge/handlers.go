package automerge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/latticeworks/parallex/internal/mergetypes"
	"github.com/latticeworks/parallex/internal/semantic"
)

// combineImports computes the union of added import lines across tasks,
// subtracts removed ones, dedupes against the baseline and each other, and
// splices the result at the end of the import block.
func combineImports(ctx Context) mergetypes.Result {
	existing := map[string]bool{}

	lines := strings.Split(ctx.BaselineContent, "\n")
	importBlockEnd := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if isImportLine(trimmed) {
			existing[trimmed] = true
			importBlockEnd = i + 1

			continue
		}

		break
	}

	toRemove := map[string]bool{}

	var toAdd []string

	added := map[string]bool{}

	for _, tc := range ctx.sortedByStartedAt() {
		switch tc.Change.ChangeType {
		case semantic.AddImport:
			text := tc.Change.Target
			if tc.Change.ContentAfter != nil {
				text = strings.TrimSpace(*tc.Change.ContentAfter)
			}

			if !existing[text] && !added[text] {
				added[text] = true

				toAdd = append(toAdd, text)
			}
		case semantic.RemoveImport:
			text := tc.Change.Target
			if tc.Change.ContentBefore != nil {
				text = strings.TrimSpace(*tc.Change.ContentBefore)
			}

			toRemove[text] = true
		}
	}

	kept := toAdd[:0]

	for _, text := range toAdd {
		if !toRemove[text] {
			kept = append(kept, text)
		}
	}

	toAdd = kept

	var result []string

	for i, line := range lines {
		if i < importBlockEnd && toRemove[strings.TrimSpace(line)] {
			continue
		}

		result = append(result, line)

		if i == importBlockEnd-1 {
			result = append(result, toAdd...)
		}
	}

	if importBlockEnd == 0 {
		result = append(toAdd, result...)
	}

	return successResult(ctx, strings.Join(result, "\n"), "combined imports across tasks")
}

func isImportLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ")
}

// hooksFirst inserts each add_hook_call's content at the start of the
// function body named by the conflict's location, in started_at order.
func hooksFirst(ctx Context) mergetypes.Result {
	funcName := strings.TrimPrefix(ctx.Conflict.Location, "function:")

	var hookLines []string

	for _, tc := range ctx.sortedByStartedAt() {
		if tc.Change.ChangeType == semantic.AddHookCall && tc.Change.ContentAfter != nil {
			hookLines = append(hookLines, *tc.Change.ContentAfter)
		}
	}

	merged := insertAtFunctionStart(ctx.BaselineContent, funcName, hookLines)

	return successResult(ctx, merged, fmt.Sprintf("inserted %d hook call(s) at start of %s", len(hookLines), funcName))
}

// hooksThenWrap performs hooksFirst, then wraps the function's return
// expression with each wrap_jsx target, innermost wrap applied first (so the
// first task's wrap ends up outermost).
func hooksThenWrap(ctx Context) mergetypes.Result {
	hookResult := hooksFirst(ctx)
	if hookResult.Decision != mergetypes.AutoMerged {
		return hookResult
	}

	content := *hookResult.MergedContent
	funcName := strings.TrimPrefix(ctx.Conflict.Location, "function:")

	var wraps []string

	for _, tc := range ctx.sortedByStartedAt() {
		if tc.Change.ChangeType == semantic.WrapJSX {
			wraps = append(wraps, tc.Change.Target)
		}
	}

	content = wrapFunctionReturn(content, funcName, wraps)

	return successResult(ctx, content, fmt.Sprintf("applied hooks then %d JSX wrap(s) to %s", len(wraps), funcName))
}

// appendFunctions appends each new function's full definition before a
// trailing module-export statement (JS/TS) or at file end (Python).
func appendFunctions(ctx Context) mergetypes.Result {
	var defs []string

	for _, tc := range ctx.sortedByStartedAt() {
		if isAddLike(tc.Change.ChangeType) && tc.Change.ContentAfter != nil {
			defs = append(defs, *tc.Change.ContentAfter)
		}
	}

	merged := appendBeforeExportTail(ctx.BaselineContent, defs)

	return successResult(ctx, merged, fmt.Sprintf("appended %d definition(s)", len(defs)))
}

func isAddLike(ct semantic.ChangeType) bool {
	switch ct {
	case semantic.AddFunction, semantic.AddClass, semantic.AddType, semantic.AddInterface:
		return true
	default:
		return false
	}
}

// appendMethods inserts each new method before the matching class's
// closing delimiter, named by the conflict location ("class:Name.method").
func appendMethods(ctx Context) mergetypes.Result {
	className := strings.TrimPrefix(ctx.Conflict.Location, "class:")
	if idx := strings.Index(className, "."); idx >= 0 {
		className = className[:idx]
	}

	var defs []string

	for _, tc := range ctx.sortedByStartedAt() {
		if tc.Change.ChangeType == semantic.AddMethod && tc.Change.ContentAfter != nil {
			defs = append(defs, *tc.Change.ContentAfter)
		}
	}

	merged := insertBeforeClassEnd(ctx.BaselineContent, className, defs)

	return successResult(ctx, merged, fmt.Sprintf("inserted %d method(s) into class %s", len(defs), className))
}

// combineProps unions JSX/object props added by different tasks at the
// same site. When two tasks add the same prop name with different values,
// determinism breaks down and the conflict is demoted to human review.
func combineProps(ctx Context) mergetypes.Result {
	values := map[string]string{}

	for _, tc := range ctx.sortedByStartedAt() {
		if tc.Change.ChangeType != semantic.ModifyJSXProps {
			continue
		}

		propName, propValue, ok := splitPropAssignment(tc.Change.Target)
		if !ok {
			continue
		}

		if existing, seen := values[propName]; seen && existing != propValue {
			return needsReviewResult(ctx, fmt.Sprintf("prop %q added with conflicting values", propName))
		}

		values[propName] = propValue
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}

	sort.Strings(names)

	var props []string

	for _, name := range names {
		props = append(props, fmt.Sprintf("%s={%s}", name, values[name]))
	}

	merged := insertPropsAtJSXSite(ctx.BaselineContent, ctx.Conflict.Location, props)

	return successResult(ctx, merged, fmt.Sprintf("combined %d prop(s) at %s", len(props), ctx.Conflict.Location))
}

func splitPropAssignment(target string) (name, value string, ok bool) {
	idx := strings.Index(target, "=")
	if idx < 0 {
		return "", "", false
	}

	return strings.TrimSpace(target[:idx]), strings.TrimSpace(target[idx+1:]), true
}

// orderByDependency topologically orders all changes at this location by a
// fixed priority class, then applies them in that order.
func orderByDependency(ctx Context) mergetypes.Result {
	ordered, err := topoOrderChanges(ctx.sortedByStartedAt())
	if err != nil {
		return failedResult(err)
	}

	var pieces []string

	for _, tc := range ordered {
		if tc.Change.ContentAfter != nil {
			pieces = append(pieces, *tc.Change.ContentAfter)
		}
	}

	merged := ctx.BaselineContent
	if len(pieces) > 0 {
		merged = strings.TrimRight(merged, "\n") + "\n" + strings.Join(pieces, "\n") + "\n"
	}

	return successResult(ctx, merged, fmt.Sprintf("applied %d change(s) in dependency order", len(pieces)))
}

// orderByTime applies whole-content (content_before, content_after)
// substitutions in ascending started_at order.
func orderByTime(ctx Context) mergetypes.Result {
	merged := ctx.BaselineContent

	var applied int

	for _, tc := range ctx.sortedByStartedAt() {
		if tc.Change.ContentBefore == nil || tc.Change.ContentAfter == nil {
			continue
		}

		if strings.Contains(merged, *tc.Change.ContentBefore) {
			merged = strings.Replace(merged, *tc.Change.ContentBefore, *tc.Change.ContentAfter, 1)
			applied++
		}
	}

	return successResult(ctx, merged, fmt.Sprintf("applied %d substitution(s) in time order", applied))
}

// appendStatements appends additive content to the end of the file, in
// task order (started_at ascending).
func appendStatements(ctx Context) mergetypes.Result {
	var pieces []string

	for _, tc := range ctx.sortedByStartedAt() {
		if tc.Change.ContentAfter != nil {
			pieces = append(pieces, *tc.Change.ContentAfter)
		}
	}

	merged := ctx.BaselineContent
	if len(pieces) > 0 {
		merged = strings.TrimRight(merged, "\n") + "\n" + strings.Join(pieces, "\n") + "\n"
	}

	return successResult(ctx, merged, fmt.Sprintf("appended %d statement(s)", len(pieces)))
}

package automerge

import (
	"fmt"
	"strings"

	"github.com/latticeworks/parallex/internal/semantic"
	"github.com/latticeworks/parallex/pkg/toposort"
)

// insertAtFunctionStart inserts lines at the top of the named function's
// body, right after its header line. funcName matching is a simple
// prefix match of the trimmed line against "def name(" / "function name(" /
// "const name =" forms (plus their "export" variants), which covers the
// Python/JS/TS surface the semantic analyzer recognizes.
func insertAtFunctionStart(content, funcName string, lines []string) string {
	if len(lines) == 0 || funcName == "" {
		return content
	}

	src := strings.Split(content, "\n")

	headerIdx := -1

	for i, line := range src {
		if isFunctionHeaderFor(line, funcName) {
			headerIdx = i

			break
		}
	}

	if headerIdx == -1 {
		return content
	}

	indent := bodyIndent(src, headerIdx)

	var indented []string
	for _, l := range lines {
		indented = append(indented, indent+strings.TrimSpace(l))
	}

	out := make([]string, 0, len(src)+len(indented))
	out = append(out, src[:headerIdx+1]...)
	out = append(out, indented...)
	out = append(out, src[headerIdx+1:]...)

	return strings.Join(out, "\n")
}

func isFunctionHeaderFor(line, name string) bool {
	trimmed := strings.TrimSpace(line)
	candidates := []string{
		"def " + name + "(",
		"function " + name + "(",
		"const " + name + " = ",
		"export function " + name + "(",
		"export default function " + name + "(",
	}

	for _, c := range candidates {
		if strings.HasPrefix(trimmed, c) {
			return true
		}
	}

	return false
}

// bodyIndent guesses the indentation of a function's body by looking at
// the line following its header, defaulting to one extra indent level.
func bodyIndent(src []string, headerIdx int) string {
	if headerIdx+1 < len(src) {
		next := src[headerIdx+1]
		trimmed := strings.TrimLeft(next, " \t")

		if len(next) > len(trimmed) {
			return next[:len(next)-len(trimmed)]
		}
	}

	return "  "
}

// wrapFunctionReturn wraps the function's return expression with each
// target in wraps, applied innermost-first (last entry first) so the
// first entry in wraps ends up outermost.
func wrapFunctionReturn(content, funcName string, wraps []string) string {
	if len(wraps) == 0 {
		return content
	}

	src := strings.Split(content, "\n")

	returnIdx := -1
	inFunc := false

	for i, line := range src {
		if isFunctionHeaderFor(line, funcName) {
			inFunc = true

			continue
		}

		if inFunc && strings.Contains(line, "return ") {
			returnIdx = i

			break
		}
	}

	if returnIdx == -1 {
		return content
	}

	line := src[returnIdx]
	idx := strings.Index(line, "return ")
	indent := line[:idx]
	expr := strings.TrimSuffix(strings.TrimSpace(line[idx+len("return "):]), ";")

	for i := len(wraps) - 1; i >= 0; i-- {
		expr = fmt.Sprintf("<%s>%s</%s>", wraps[i], expr, wraps[i])
	}

	src[returnIdx] = indent + "return " + expr + ";"

	return strings.Join(src, "\n")
}

// appendBeforeExportTail appends definitions before a trailing
// "module.exports"/"export default" statement, or at file end when there
// is none.
func appendBeforeExportTail(content string, defs []string) string {
	if len(defs) == 0 {
		return content
	}

	src := strings.Split(strings.TrimRight(content, "\n"), "\n")

	tailIdx := len(src)

	for i := len(src) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(src[i])
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "module.exports") || strings.HasPrefix(trimmed, "export default") {
			tailIdx = i
		}

		break
	}

	out := make([]string, 0, len(src)+len(defs)*2)
	out = append(out, src[:tailIdx]...)

	for _, d := range defs {
		out = append(out, "", d)
	}

	out = append(out, src[tailIdx:]...)

	return strings.Join(out, "\n") + "\n"
}

// insertBeforeClassEnd inserts method definitions before the closing
// delimiter of the named class. For Python (indent-based) classes, the
// "closing delimiter" is the first line at or below the class's own
// indent level after its header; for brace-based classes it is the
// matching "}".
func insertBeforeClassEnd(content, className string, defs []string) string {
	if len(defs) == 0 || className == "" {
		return content
	}

	src := strings.Split(content, "\n")

	headerIdx := -1

	for i, line := range src {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "class "+className) {
			headerIdx = i

			break
		}
	}

	if headerIdx == -1 {
		return content
	}

	endIdx := classEndIndex(src, headerIdx)

	out := make([]string, 0, len(src)+len(defs)*2)
	out = append(out, src[:endIdx]...)

	for _, d := range defs {
		out = append(out, d, "")
	}

	out = append(out, src[endIdx:]...)

	return strings.Join(out, "\n")
}

func classEndIndex(src []string, headerIdx int) int {
	headerIndent := leadingWhitespace(src[headerIdx])

	if strings.Contains(src[headerIdx], "{") {
		depth := 0
		for i := headerIdx; i < len(src); i++ {
			depth += strings.Count(src[i], "{") - strings.Count(src[i], "}")
			if depth == 0 && i > headerIdx {
				return i
			}
		}

		return len(src)
	}

	for i := headerIdx + 1; i < len(src); i++ {
		trimmed := strings.TrimSpace(src[i])
		if trimmed == "" {
			continue
		}

		if len(leadingWhitespace(src[i])) <= len(headerIndent) {
			return i
		}
	}

	return len(src)
}

func leadingWhitespace(s string) string {
	trimmed := strings.TrimLeft(s, " \t")

	return s[:len(s)-len(trimmed)]
}

// insertPropsAtJSXSite appends props onto the JSX element's opening tag
// identified by location ("jsx:ComponentName").
func insertPropsAtJSXSite(content, location string, props []string) string {
	if len(props) == 0 {
		return content
	}

	tagName := strings.TrimPrefix(location, "jsx:")

	idx := strings.Index(content, "<"+tagName)
	if idx == -1 {
		return content
	}

	closeIdx := strings.IndexAny(content[idx:], ">/")
	if closeIdx == -1 {
		return content
	}

	insertAt := idx + closeIdx

	return content[:insertAt] + " " + strings.Join(props, " ") + content[insertAt:]
}

// priorityOf assigns a fixed ordering class to a change type, per the
// deterministic dependency-ordering rule: imports first, then
// hooks/variables, then JSX wraps, then JSX additions, then
// function/prop modifications, with everything else last.
func priorityOf(ct semantic.ChangeType) int {
	switch ct {
	case semantic.AddImport, semantic.RemoveImport, semantic.ModifyImport:
		return 0
	case semantic.AddHookCall:
		return 1
	case semantic.AddVariable, semantic.AddConstant, semantic.ModifyVariable:
		return 2
	case semantic.WrapJSX, semantic.UnwrapJSX:
		return 3
	case semantic.AddJSXElement:
		return 4
	case semantic.ModifyFunction, semantic.ModifyMethod, semantic.ModifyJSXProps, semantic.ModifyClass, semantic.ModifyInterface:
		return 5
	default:
		return 10
	}
}

// topoOrderChanges orders changes by priority class using a toposort
// graph: a node per change (keyed by its index), edges linking every
// change in one priority bucket to every change in the next non-empty
// bucket, so Toposort's insertion-order tie-break preserves the
// started_at ordering already applied to changes.
func topoOrderChanges(changes []TaskChange) ([]TaskChange, error) {
	if len(changes) <= 1 {
		return changes, nil
	}

	buckets := map[int][]int{}

	for i, tc := range changes {
		p := priorityOf(tc.Change.ChangeType)
		buckets[p] = append(buckets[p], i)
	}

	priorities := make([]int, 0, len(buckets))
	for p := range buckets {
		priorities = append(priorities, p)
	}

	sortInts(priorities)

	g := toposort.NewGraph()

	nodeName := func(i int) string { return fmt.Sprintf("n%d", i) }

	for i := range changes {
		g.AddNode(nodeName(i))
	}

	for b := 0; b < len(priorities)-1; b++ {
		for _, from := range buckets[priorities[b]] {
			for _, to := range buckets[priorities[b+1]] {
				g.AddEdge(nodeName(from), nodeName(to))
			}
		}
	}

	order, ok := g.Toposort()
	if !ok {
		return nil, fmt.Errorf("dependency cycle detected while ordering changes")
	}

	indexOf := map[string]int{}
	for i := range changes {
		indexOf[nodeName(i)] = i
	}

	ordered := make([]TaskChange, 0, len(changes))
	for _, name := range order {
		ordered = append(ordered, changes[indexOf[name]])
	}

	return ordered, nil
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] < xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

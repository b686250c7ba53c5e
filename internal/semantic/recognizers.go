package semantic

import (
	"regexp"
	"sort"
	"strings"
)

// importPatterns ports the original regex_analyzer.get_import_pattern table:
// each language's import/statement form, matched against the stripped line.
var importPatterns = map[language]*regexp.Regexp{
	langPython:     regexp.MustCompile(`^(?:from\s+\S+\s+)?import\s+`),
	langJavaScript: regexp.MustCompile(`^import\s+`),
	langTypeScript: regexp.MustCompile(`^import\s+`),
}

// functionPatterns ports get_function_pattern. Each pattern has one or more
// capture groups; the first non-empty group in a match is the function
// name, matching the Python extract_func_names helper.
var functionPatterns = map[language]*regexp.Regexp{
	langPython:     regexp.MustCompile(`def\s+(\w+)\s*\(`),
	langJavaScript: regexp.MustCompile(`(?:function\s+(\w+)|(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?(?:function|\([^)]*\)\s*=>))`),
	langTypeScript: regexp.MustCompile(`(?:function\s+(\w+)|(?:const|let|var)\s+(\w+)\s*(?::\s*\w+)?\s*=\s*(?:async\s+)?(?:function|\([^)]*\)\s*=>))`),
}

func firstNonEmptyGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}

	return ""
}

// funcPos is one function's header line and reconstructed body, used to
// tell an unchanged function apart from a modified one.
type funcPos struct {
	startLine int
	endLine   int
	body      string
}

// extractFunctionPositions finds the first header line of every function in
// content and slices its body from that line to the next function's header
// (or end of file), a line-granular approximation of the function's extent.
func extractFunctionPositions(lang language, content string) map[string]funcPos {
	pattern := functionPatterns[lang]
	if pattern == nil {
		return nil
	}

	lines := strings.Split(content, "\n")

	type header struct {
		name string
		line int
	}

	var headers []header

	for i, line := range lines {
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		name := firstNonEmptyGroup(match)
		if name != "" {
			headers = append(headers, header{name: name, line: i})
		}
	}

	positions := map[string]funcPos{}

	for idx, h := range headers {
		end := len(lines)
		if idx+1 < len(headers) {
			end = headers[idx+1].line
		}

		if _, exists := positions[h.name]; exists {
			continue
		}

		positions[h.name] = funcPos{
			startLine: h.line + 1,
			endLine:   end,
			body:      strings.Join(lines[h.line:end], "\n"),
		}
	}

	return positions
}

// recognizeImports emits ADD_IMPORT/REMOVE_IMPORT changes for added and
// removed lines matching the language's import pattern, per the original
// regex_analyzer's per-line pass.
func recognizeImports(analysis *FileAnalysis, lang language, added, removed []string) {
	pattern := importPatterns[lang]
	if pattern == nil {
		return
	}

	for _, line := range added {
		trimmed := trimLine(line)
		if pattern.MatchString(trimmed) {
			content := line
			analysis.addChange(SemanticChange{
				ChangeType:    AddImport,
				Target:        trimmed,
				Location:      "file_top",
				LineStart:     1,
				LineEnd:       1,
				ContentAfter:  &content,
			})
		}
	}

	for _, line := range removed {
		trimmed := trimLine(line)
		if pattern.MatchString(trimmed) {
			content := line
			analysis.addChange(SemanticChange{
				ChangeType:    RemoveImport,
				Target:        trimmed,
				Location:      "file_top",
				LineStart:     1,
				LineEnd:       1,
				ContentBefore: &content,
			})
		}
	}
}

func trimLine(s string) string {
	start, end := 0, len(s)

	for start < end && isSpace(s[start]) {
		start++
	}

	for end > start && isSpace(s[end-1]) {
		end--
	}

	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// recognizeFunctions diffs the functions extracted from the full
// before/after texts: a name present only after is an add, present only
// before is a remove, and present in both with a changed body is a modify.
// Names are visited in sorted order so output is stable across runs.
func recognizeFunctions(analysis *FileAnalysis, lang language, before, after string) {
	if functionPatterns[lang] == nil {
		return
	}

	funcsBefore := extractFunctionPositions(lang, before)
	funcsAfter := extractFunctionPositions(lang, after)

	names := make(map[string]bool, len(funcsBefore)+len(funcsAfter))
	for name := range funcsBefore {
		names[name] = true
	}

	for name := range funcsAfter {
		names[name] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}

	sort.Strings(sorted)

	for _, name := range sorted {
		beforePos, hadBefore := funcsBefore[name]
		afterPos, hadAfter := funcsAfter[name]

		switch {
		case hadAfter && !hadBefore:
			analysis.addChange(SemanticChange{
				ChangeType: AddFunction,
				Target:     name,
				Location:   "function:" + name,
				LineStart:  1,
				LineEnd:    1,
			})
		case hadBefore && !hadAfter:
			analysis.addChange(SemanticChange{
				ChangeType: RemoveFunction,
				Target:     name,
				Location:   "function:" + name,
				LineStart:  1,
				LineEnd:    1,
			})
		case hadBefore && hadAfter && beforePos.body != afterPos.body:
			analysis.addChange(SemanticChange{
				ChangeType: ModifyFunction,
				Target:     name,
				Location:   "function:" + name,
				LineStart:  afterPos.startLine,
				LineEnd:    afterPos.endLine,
			})
		}
	}
}

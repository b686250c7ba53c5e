package evolution

import "strings"

// changedFilesFromDiff extracts the post-image path of every file touched
// by a unified diff, in first-seen order, de-duplicated.
func changedFilesFromDiff(diff string) []string {
	seen := map[string]bool{}

	var files []string

	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "+++ ") {
			continue
		}

		path := strings.TrimPrefix(line, "+++ ")
		path = strings.TrimPrefix(path, "b/")

		if path == "" || path == "/dev/null" {
			continue
		}

		if !seen[path] {
			seen[path] = true

			files = append(files, path)
		}
	}

	return files
}

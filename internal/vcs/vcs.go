// Package vcs defines the version-control operations the merge engine needs,
// independent of the underlying implementation (shell git vs. libgit2).
package vcs

import "context"

// Client is the version-control surface the merge engine depends on. The
// default implementation shells out to git (internal/vcs/execclient); an
// alternate libgit2-backed implementation is available behind the
// nativegit build tag (internal/vcs/nativegit).
type Client interface {
	// TwoDotDiff returns the unified diff of path between from and to
	// (equivalent to `git diff from..to -- path`).
	TwoDotDiff(ctx context.Context, from, to, path string) (string, error)

	// ShowAtRevision returns the full content of path as it existed at rev.
	ShowAtRevision(ctx context.Context, rev, path string) (string, error)

	// MergeBase returns the best common ancestor of a and b.
	MergeBase(ctx context.Context, a, b string) (string, error)

	// RefExists reports whether ref resolves to a commit.
	RefExists(ctx context.Context, ref string) bool
}

// Normalize trims a ref or path the way every backend needs before use:
// a leading "refs/heads/" is stripped and Windows-style path separators are
// converted to "/", matching the convention the teacher's gitlib package
// uses internally when comparing paths across platforms.
func Normalize(s string) string {
	const headsPrefix = "refs/heads/"

	if len(s) > len(headsPrefix) && s[:len(headsPrefix)] == headsPrefix {
		s = s[len(headsPrefix):]
	}

	out := make([]byte, len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			out[i] = '/'
		} else {
			out[i] = s[i]
		}
	}

	return string(out)
}

// Package execclient implements vcs.Client by shelling out to the git
// binary, in the style of the ShayCichocki-Alphie internal/exec.ExecRunner:
// each operation is a single exec.CommandContext call against the
// repository's working directory.
package execclient

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/latticeworks/parallex/internal/vcs"
)

const defaultTimeout = 30 * time.Second

// Client implements vcs.Client using the git CLI.
type Client struct {
	// RepoDir is the working directory git commands run in.
	RepoDir string
	// Timeout bounds every individual git invocation. Zero means
	// defaultTimeout.
	Timeout time.Duration
}

// New creates an execclient.Client rooted at repoDir.
func New(repoDir string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{RepoDir: repoDir, Timeout: timeout}
}

var _ vcs.Client = (*Client)(nil)

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = c.RepoDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}

	return stdout.String(), nil
}

// TwoDotDiff implements vcs.Client.
func (c *Client) TwoDotDiff(ctx context.Context, from, to, path string) (string, error) {
	rangeSpec := fmt.Sprintf("%s..%s", vcs.Normalize(from), vcs.Normalize(to))

	args := []string{"diff", rangeSpec}
	if path != "" {
		args = append(args, "--", path)
	}

	return c.run(ctx, args...)
}

// ShowAtRevision implements vcs.Client.
func (c *Client) ShowAtRevision(ctx context.Context, rev, path string) (string, error) {
	return c.run(ctx, "show", fmt.Sprintf("%s:%s", vcs.Normalize(rev), path))
}

// MergeBase implements vcs.Client.
func (c *Client) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := c.run(ctx, "merge-base", vcs.Normalize(a), vcs.Normalize(b))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// RefExists implements vcs.Client.
func (c *Client) RefExists(ctx context.Context, ref string) bool {
	_, err := c.run(ctx, "rev-parse", "--verify", "--quiet", vcs.Normalize(ref))

	return err == nil
}

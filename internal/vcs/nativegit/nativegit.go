//go:build nativegit

// Package nativegit implements vcs.Client directly against libgit2, in the
// style of the teacher's pkg/gitlib.Repository wrapper, avoiding a git
// subprocess per call. Built only when the nativegit tag is set; the
// default build uses internal/vcs/execclient instead.
package nativegit

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/latticeworks/parallex/internal/vcs"
)

// Client implements vcs.Client using libgit2 via git2go.
type Client struct {
	repo *git2go.Repository
}

// New opens the repository at path.
func New(path string) (*Client, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Client{repo: repo}, nil
}

var _ vcs.Client = (*Client)(nil)

// Free releases the underlying libgit2 repository handle.
func (c *Client) Free() {
	if c.repo != nil {
		c.repo.Free()
		c.repo = nil
	}
}

func (c *Client) resolveCommit(rev string) (*git2go.Commit, error) {
	obj, err := c.repo.RevparseSingle(vcs.Normalize(rev))
	if err != nil {
		return nil, fmt.Errorf("revparse %q: %w", rev, err)
	}

	commit, err := obj.AsCommit()
	if err != nil {
		return nil, fmt.Errorf("%q is not a commit: %w", rev, err)
	}

	return commit, nil
}

// ShowAtRevision implements vcs.Client.
func (c *Client) ShowAtRevision(_ context.Context, rev, path string) (string, error) {
	commit, err := c.resolveCommit(rev)
	if err != nil {
		return "", err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("get tree: %w", err)
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(path)
	if err != nil {
		return "", fmt.Errorf("lookup %q at %q: %w", path, rev, err)
	}

	blob, err := c.repo.LookupBlob(entry.Id)
	if err != nil {
		return "", fmt.Errorf("lookup blob: %w", err)
	}
	defer blob.Free()

	return string(blob.Contents()), nil
}

// TwoDotDiff implements vcs.Client.
func (c *Client) TwoDotDiff(_ context.Context, from, to, path string) (string, error) {
	fromCommit, err := c.resolveCommit(from)
	if err != nil {
		return "", err
	}
	defer fromCommit.Free()

	toCommit, err := c.resolveCommit(to)
	if err != nil {
		return "", err
	}
	defer toCommit.Free()

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return "", fmt.Errorf("get tree: %w", err)
	}
	defer fromTree.Free()

	toTree, err := toCommit.Tree()
	if err != nil {
		return "", fmt.Errorf("get tree: %w", err)
	}
	defer toTree.Free()

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return "", fmt.Errorf("diff options: %w", err)
	}

	if path != "" {
		opts.Pathspec = []string{path}
	}

	diff, err := c.repo.DiffTreeToTree(fromTree, toTree, &opts)
	if err != nil {
		return "", fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	patch, err := diff.ToBuf(git2go.DiffFormatPatch)
	if err != nil {
		return "", fmt.Errorf("render patch: %w", err)
	}

	return string(patch), nil
}

// MergeBase implements vcs.Client.
func (c *Client) MergeBase(_ context.Context, a, b string) (string, error) {
	commitA, err := c.resolveCommit(a)
	if err != nil {
		return "", err
	}
	defer commitA.Free()

	commitB, err := c.resolveCommit(b)
	if err != nil {
		return "", err
	}
	defer commitB.Free()

	base, err := c.repo.MergeBase(commitA.Id(), commitB.Id())
	if err != nil {
		return "", fmt.Errorf("merge base: %w", err)
	}

	return base.String(), nil
}

// RefExists implements vcs.Client.
func (c *Client) RefExists(_ context.Context, ref string) bool {
	_, err := c.repo.RevparseSingle(vcs.Normalize(ref))

	return err == nil
}

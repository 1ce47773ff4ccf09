package changes

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultBaseBranch is the reference branch changes are computed against
const DefaultBaseBranch = "develop"

// GitSource lists the files changed between the merge base of HEAD and a
// reference branch, and the current index.
//
// GitSource shells out to the git binary and is safe for concurrent use.
type GitSource struct {
	Dir        string
	BaseBranch string
}

// NewGitSource creates a GitSource for a repository checkout
func NewGitSource(dir, baseBranch string) *GitSource {
	if baseBranch == "" {
		baseBranch = DefaultBaseBranch
	}
	return &GitSource{Dir: dir, BaseBranch: baseBranch}
}

// ChangedFiles implements Source
func (g *GitSource) ChangedFiles(ctx context.Context) ([]ChangedFile, error) {
	if err := g.verifyBranch(ctx, g.BaseBranch); err != nil {
		return nil, err
	}

	base, err := g.MergeBase(ctx, g.BaseBranch)
	if err != nil {
		return nil, err
	}

	// -z keeps paths verbatim instead of C-quoting non-ASCII bytes
	out, err := g.run(ctx, "diff", "--cached", "--name-status", "-M", "-z", base)
	if err != nil {
		return nil, err
	}

	return parseNameStatus(out)
}

// MergeBase returns the best common ancestor of HEAD and branch
func (g *GitSource) MergeBase(ctx context.Context, branch string) (string, error) {
	out, err := g.run(ctx, "merge-base", branch, "HEAD")
	if err != nil {
		return "", fmt.Errorf("getting merge base with %s: %w", branch, err)
	}
	return strings.TrimSpace(out), nil
}

// verifyBranch checks that a branch exists
func (g *GitSource) verifyBranch(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "rev-parse", "--verify", "--quiet", branch); err != nil {
		return fmt.Errorf("branch %q not found: %w", branch, err)
	}
	return nil
}

func (g *GitSource) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// parseNameStatus parses git diff --name-status -z output: NUL-terminated
// fields, a status token followed by one path, or two for renames and copies.
//
//	M\0path/to/file\0R100\0old/path\0new/path\0
func parseNameStatus(output string) ([]ChangedFile, error) {
	fields := strings.Split(strings.TrimSuffix(output, "\x00"), "\x00")
	if len(fields) == 1 && fields[0] == "" {
		return nil, nil
	}

	var result []ChangedFile
	for i := 0; i < len(fields); {
		status := fields[i]
		if !validStatus(status) {
			return nil, fmt.Errorf("unexpected git diff status: %q", status)
		}

		paths := 1
		if status[:1] == StatusRenamed || status[:1] == StatusCopied {
			paths = 2
		}
		if i+paths >= len(fields) {
			return nil, fmt.Errorf("truncated git diff entry for status %q", status)
		}

		p := filepath.ToSlash(fields[i+1])
		cf := ChangedFile{OldPath: p, NewPath: p, Status: status[:1]}
		if paths == 2 {
			cf.NewPath = filepath.ToSlash(fields[i+2])
		}

		result = append(result, cf)
		i += 1 + paths
	}

	return result, nil
}

// validStatus reports whether s is a status letter with an optional score
func validStatus(s string) bool {
	if s == "" || !strings.ContainsAny(s[:1], "ACDMRTUXB") {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

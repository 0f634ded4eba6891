package common

import (
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
)

// Revision identifies the checkout a binary was built or run from.
type Revision struct {
	Commit string
	Branch string
}

func (r Revision) String() string {
	if r.Branch == "" {
		return r.Commit
	}
	return r.Commit + "@" + r.Branch
}

// GetCommitHash returns the short commit of the repository around the
// working directory or the executable, or "unknown".
func GetCommitHash() string {
	return GetRevision().Commit
}

func GetRevision() Revision {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Dir(exe))
	}
	for _, dir := range candidates {
		if rev, ok := revisionAt(dir); ok {
			return rev
		}
	}
	return Revision{Commit: "unknown"}
}

func revisionAt(path string) (Revision, bool) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Revision{}, false
	}
	head, err := repo.Head()
	if err != nil {
		return Revision{}, false
	}
	rev := Revision{Commit: head.Hash().String()[:8]}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}
	return rev, true
}

package changes

import (
	"context"
)

// Change statuses, following git's --name-status letters
const (
	StatusAdded    = "A"
	StatusModified = "M"
	StatusDeleted  = "D"
	StatusRenamed  = "R"
	StatusCopied   = "C"
	StatusType     = "T"
)

// ChangedFile is one delta of a tree diff. Either path may be empty, for
// example OldPath of an added file when the source does not report it.
type ChangedFile struct {
	OldPath string `json:"old_path,omitempty"`
	NewPath string `json:"new_path,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Source produces the changed files of the current working state
type Source interface {
	ChangedFiles(ctx context.Context) ([]ChangedFile, error)
}

// ListSource reports an explicit list of paths as modified
type ListSource struct {
	Paths []string
}

// ChangedFiles implements Source
func (s ListSource) ChangedFiles(ctx context.Context) ([]ChangedFile, error) {
	files := make([]ChangedFile, 0, len(s.Paths))
	for _, p := range s.Paths {
		files = append(files, ChangedFile{OldPath: p, NewPath: p, Status: StatusModified})
	}
	return files, nil
}

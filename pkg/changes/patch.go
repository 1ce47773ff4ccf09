package changes

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// PatchSource reads changed files from a unified diff, such as the output of
// `git diff` saved by a CI job
type PatchSource struct {
	Reader io.Reader
}

// ChangedFiles implements Source
func (s PatchSource) ChangedFiles(ctx context.Context) ([]ChangedFile, error) {
	data, err := io.ReadAll(s.Reader)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	return ParsePatch(data)
}

// ParsePatch extracts the old and new path of every file in a unified diff
func ParsePatch(data []byte) ([]ChangedFile, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("parsing patch: %w", err)
	}

	files := make([]ChangedFile, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		cf := ChangedFile{
			OldPath: patchPath(fd.OrigName, "a/"),
			NewPath: patchPath(fd.NewName, "b/"),
		}

		switch {
		case cf.OldPath == "" && cf.NewPath == "":
			continue
		case cf.OldPath == "":
			cf.Status = StatusAdded
		case cf.NewPath == "":
			cf.Status = StatusDeleted
		case cf.OldPath != cf.NewPath:
			cf.Status = StatusRenamed
		default:
			cf.Status = StatusModified
		}

		files = append(files, cf)
	}

	return files, nil
}

// patchPath strips the git side prefix and maps /dev/null to an empty path
func patchPath(name, prefix string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == devNull {
		return ""
	}
	return strings.TrimPrefix(name, prefix)
}

// Package diff inspects unified diff text. The harness never computes
// diffs itself, but it reports on the patches it ships to containers:
// which files a patch touches and how many lines it adds and removes.
package diff

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileStat summarizes the changes to one file in a patch.
type FileStat struct {
	OldPath string
	NewPath string

	Additions int
	Deletions int

	IsNew    bool
	IsDelete bool
	IsBinary bool
	IsRename bool
}

// Path returns the file's post-patch path, falling back to the old path
// for deletions.
func (f *FileStat) Path() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}

// Stats summarizes a whole patch.
type Stats struct {
	Files []FileStat
}

// Additions totals added lines across all files.
func (s *Stats) Additions() int {
	n := 0
	for _, f := range s.Files {
		n += f.Additions
	}
	return n
}

// Deletions totals removed lines across all files.
func (s *Stats) Deletions() int {
	n := 0
	for _, f := range s.Files {
		n += f.Deletions
	}
	return n
}

// String renders the stats in git diff --stat style: "3 files changed,
// 40 insertions(+), 7 deletions(-)".
func (s *Stats) String() string {
	noun := "files"
	if len(s.Files) == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d %s changed, %d insertions(+), %d deletions(-)",
		len(s.Files), noun, s.Additions(), s.Deletions())
}

// Parse reads unified diff text and returns per-file statistics. Patches
// produced by git diff and git format-patch are both accepted. Empty
// input yields empty stats; text with no diff headers is an error.
func Parse(patch string) (*Stats, error) {
	stats := &Stats{}
	if strings.TrimSpace(patch) == "" {
		return stats, nil
	}

	files, _, err := gitdiff.Parse(strings.NewReader(patch))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}
	if len(files) == 0 {
		// Non-empty text with no file headers is preamble only.
		return nil, fmt.Errorf("not a unified diff: no 'diff --git' header found")
	}

	for _, f := range files {
		fs := FileStat{
			OldPath:  f.OldName,
			NewPath:  f.NewName,
			IsNew:    f.IsNew,
			IsDelete: f.IsDelete,
			IsBinary: f.IsBinary,
			IsRename: f.IsRename,
		}
		for _, frag := range f.TextFragments {
			fs.Additions += int(frag.LinesAdded)
			fs.Deletions += int(frag.LinesDeleted)
		}
		stats.Files = append(stats.Files, fs)
	}
	return stats, nil
}

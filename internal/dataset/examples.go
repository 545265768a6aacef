package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// exampleSeed fixes the sample selection so regenerating the folders
// yields the same picks.
const exampleSeed = 42

// exampleBucket groups instances by language family for the curated
// example folders.
type exampleBucket struct {
	prefix    string
	title     string
	languages []string
}

var exampleBuckets = []exampleBucket{
	{"python", "Python", []string{"python"}},
	{"js", "JavaScript/TypeScript", []string{"js", "ts"}},
	{"go", "Go", []string{"go"}},
}

// WriteExamples renders curated per-instance example folders under dir:
// up to perBucket instances for each language family, each folder holding
// a README.md, the golden patch, and the test patch, plus an index
// README.md at the root. It returns the number of folders written.
func (d *Dataset) WriteExamples(dir string, perBucket int) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create examples directory: %w", err)
	}

	rng := rand.New(rand.NewSource(exampleSeed))
	var index strings.Builder
	index.WriteString("# SWE-Bench Pro Examples\n\n")
	index.WriteString("This directory contains curated examples from the dataset.\n")

	written := 0
	for _, bucket := range exampleBuckets {
		picked := d.sampleByLanguage(rng, bucket.languages, perBucket)
		if len(picked) == 0 {
			continue
		}

		fmt.Fprintf(&index, "\n## %s Examples (%d)\n\n", bucket.title, len(picked))
		for i, in := range picked {
			folder := fmt.Sprintf("%s_%02d", bucket.prefix, i+1)
			label := fmt.Sprintf("%s %d", bucket.title, i+1)
			if err := writeExampleFolder(filepath.Join(dir, folder), in, label); err != nil {
				return written, err
			}
			fmt.Fprintf(&index, "- [%s](./%s/README.md) - %s\n", folder, folder, in.Repo)
			written++
		}
	}

	indexPath := filepath.Join(dir, "README.md")
	if err := os.WriteFile(indexPath, []byte(index.String()), 0o644); err != nil {
		return written, fmt.Errorf("failed to write examples index: %w", err)
	}
	return written, nil
}

// sampleByLanguage picks up to n instances whose repo_language is in
// languages, in shuffled order.
func (d *Dataset) sampleByLanguage(rng *rand.Rand, languages []string, n int) []*Instance {
	var candidates []*Instance
	for _, in := range d.Instances {
		for _, lang := range languages {
			if strings.EqualFold(in.RepoLanguage, lang) {
				candidates = append(candidates, in)
				break
			}
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

func writeExampleFolder(folder string, in *Instance, label string) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("failed to create example folder: %w", err)
	}

	requirements := in.Requirements
	if requirements == "" {
		requirements = "N/A"
	}
	iface := in.Interface
	if iface == "" {
		iface = "N/A"
	}

	readme := fmt.Sprintf(`# Example %s: %s

## Basic Information

- **Repository:** [%s](https://github.com/%s)
- **Language:** %s
- **Instance ID:** `+"`%s`"+`
- **Base Commit:** [`+"`%s`"+`](https://github.com/%s/commit/%s)

## Problem Statement

%s

## Requirements

%s

## Interface

%s

## Files

- `+"`golden_patch.diff`"+` - The solution patch that solves the issue
- `+"`test_patch.diff`"+` - Test changes to validate the solution

## Setup Commands

`+"```bash"+`
git clone https://github.com/%s
cd %s
git checkout %s
`+"```"+`

## Apply Golden Patch

`+"```bash"+`
git apply golden_patch.diff
`+"```"+`

## Apply Test Patch

`+"```bash"+`
git apply test_patch.diff
`+"```"+`
`,
		label, in.Repo,
		in.Repo, in.Repo,
		in.RepoLanguage,
		in.InstanceID,
		in.BaseCommit, in.Repo, in.BaseCommit,
		in.ProblemStatement,
		requirements,
		iface,
		in.Repo, in.RepoName(), in.BaseCommit)

	files := map[string]string{
		"README.md":         readme,
		"golden_patch.diff": in.Patch,
		"test_patch.diff":   in.TestPatch,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(folder, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files under path, sorted by path.
// path may be a single YAML file or a directory, which is searched
// recursively. Golden directories are skipped. When filter is not empty,
// only files whose base name contains it are returned.
func FindScenarios(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" && !strings.Contains(filepath.Base(p), filter) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	return paths, nil
}

// SuiteResult summarises a batch of scenarios.
type SuiteResult struct {
	Total     int               `json:"total"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Failures  []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioOutcome is the result of one scenario of a suite.
// Result is nil when the scenario could not be loaded or executed.
type ScenarioOutcome struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Pass   bool    `json:"pass"`
	Result *Result `json:"-"`
}

// ScenarioFailure represents a failed scenario.
type ScenarioFailure struct {
	Scenario string `json:"scenario"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// RunSuite loads and runs every scenario. Scenarios run concurrently, each
// against its own monitor and in-memory store; outcomes keep the order of
// paths.
//
// For each scenario:
// 1. Load the scenario file
// 2. Run it via harness.Run
// 3. Collect and report results
func RunSuite(ctx context.Context, paths []string) (*SuiteResult, error) {
	outcomes := make([]ScenarioOutcome, len(paths))
	failures := make([]*ScenarioFailure, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			outcomes[i], failures[i] = runOne(ctx, path)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SuiteResult{Total: len(paths), Scenarios: outcomes}
	for i := range outcomes {
		if failures[i] != nil {
			result.Failed++
			result.Failures = append(result.Failures, *failures[i])
			continue
		}
		result.Passed++
	}
	return result, nil
}

func runOne(ctx context.Context, path string) (ScenarioOutcome, *ScenarioFailure) {
	outcome := ScenarioOutcome{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Path: path}

	// Load scenario with base path for relative spec resolution
	scenario, err := LoadScenario(path)
	if err != nil {
		return outcome, &ScenarioFailure{
			Scenario: outcome.Name,
			Path:     path,
			Error:    fmt.Sprintf("failed to load scenario: %v", err),
		}
	}
	outcome.Name = scenario.Name

	runResult, err := RunContext(ctx, scenario)
	if err != nil {
		return outcome, &ScenarioFailure{
			Scenario: scenario.Name,
			Path:     path,
			Error:    fmt.Sprintf("scenario execution failed: %v", err),
		}
	}
	outcome.Result = runResult

	// Check if scenario passed
	if !runResult.Pass {
		return outcome, &ScenarioFailure{
			Scenario: scenario.Name,
			Path:     path,
			Error:    fmt.Sprintf("scenario assertions failed: %s", strings.Join(runResult.Errors, "; ")),
		}
	}

	outcome.Pass = true
	return outcome, nil
}

// Command validate checks stored game records against the data-model
// invariants. It reads the JSON files of the file storage driver and
// reports, for each record:
//   - whether it parses
//   - every invariant it violates (turn flags, required-word flags, phase, membership)
//   - whether loading it would repair it
//
// With --fix, repairable records are rewritten in their repaired form.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/cheese-pants/game/engine"
	"github.com/wricardo/cheese-pants/game/session"
)

// ValidationResult captures the outcome of validating a single record.
type ValidationResult struct {
	File       string
	GameID     string
	Valid      bool
	Repairable bool
	Errors     []string
}

// gameIDFromFile reverses the file store's naming
func gameIDFromFile(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	if id, err := url.PathUnescape(name); err == nil {
		return id
	}
	return name
}

func problems(err error) []string {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return verr.Problems
	}
	return []string{err.Error()}
}

// validateRecord loads and validates one record file as stored, before any
// repair.
func validateRecord(path string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(path),
		GameID: gameIDFromFile(path),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var state engine.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}
	if state.GameID == "" {
		state.GameID = result.GameID
	}

	if err := engine.Validate(&state); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, problems(err)...)

		repaired := state.Clone()
		engine.Repair(repaired)
		result.Repairable = engine.Validate(repaired) == nil
	}
	return result
}

// recordFiles lists the record files in dir, skipping in-flight temp files
func recordFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	files = lo.Filter(files, func(f string, _ int) bool {
		return !strings.HasPrefix(filepath.Base(f), ".tmp-")
	})
	sort.Strings(files)
	return files, nil
}

// run validates every record in dir, writing a report to w. It reports
// whether all records are valid after optional fixing.
func run(ctx context.Context, w io.Writer, dir string, fix bool) (bool, error) {
	files, err := recordFiles(dir)
	if err != nil {
		return false, fmt.Errorf("failed to list records: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintf(w, "No game records found in %s\n", dir)
		return true, nil
	}

	var store *session.FilePersistence
	if fix {
		if store, err = session.NewFilePersistence(dir); err != nil {
			return false, err
		}
	}

	allValid := true
	for _, file := range files {
		result := validateRecord(file)
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			continue
		}

		for _, problem := range result.Errors {
			fmt.Fprintln(w, "  ❌ "+problem)
		}

		switch {
		case result.Repairable && fix:
			// Load repairs; Save writes the repaired form back.
			state, err := store.Load(ctx, result.GameID)
			if err == nil {
				err = store.Save(ctx, state)
			}
			if err != nil {
				fmt.Fprintf(w, "❌ REPAIR FAILED: %v\n", err)
				allValid = false
				continue
			}
			fmt.Fprintln(w, "🔧 REPAIRED")
		case result.Repairable:
			fmt.Fprintln(w, "⚠️  INVALID (repaired on load, run with --fix to rewrite)")
			allValid = false
		default:
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All game records are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some game records have errors")
	}
	return allValid, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "validate",
		Usage: "Validate stored game records",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "games", Usage: "directory of game records", Sources: cli.EnvVars("CHEESEPANTS_STORAGE_DIR")},
			&cli.BoolFlag{Name: "fix", Usage: "rewrite repairable records"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ok, err := run(ctx, cmd.Root().Writer, cmd.String("dir"), cmd.Bool("fix"))
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

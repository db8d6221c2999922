// Command validate checks card catalog JSON files. It checks:
//   - JSON structure and required card fields
//   - Unique positive ids, known elements and non-negative damage
//   - Every element has at least one card
//   - Both sides of every elemental reaction are playable
//   - Cards with a special effect are present
//
// Files are given as arguments; without arguments the embedded catalog in
// ../game/catalog is checked.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/skillwar/game/catalog"
	"github.com/wricardo/skillwar/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

var specialCards = map[int]string{
	engine.HealingWaterID: "Healing Water",
	engine.GaleID:         "Gale",
	engine.EarthWallID:    "Earth Wall",
	engine.ChargeID:       "Charge",
}

// validateCatalog loads and validates a single catalog file
func validateCatalog(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	if _, err := os.Stat(filePath); err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	cards, err := catalog.Load(filePath)
	if err != nil {
		if errors.Is(err, catalog.ErrEmptyCatalog) {
			result.fail("Catalog has no cards")
			return result
		}
		for _, line := range strings.Split(err.Error(), "\n") {
			result.fail("%s", line)
		}
		return result
	}

	counts := make(map[engine.Element]int, len(engine.Elements))
	for _, card := range cards.All() {
		counts[card.Element]++
	}
	for _, e := range engine.Elements {
		if counts[e] == 0 {
			result.fail("No %s cards", e)
		}
	}

	reactions := engine.DefaultReactions()
	for i, x := range engine.Elements {
		for _, y := range engine.Elements[i+1:] {
			r, ok := reactions.Lookup(x, y)
			if !ok {
				continue
			}
			if counts[x] == 0 || counts[y] == 0 {
				result.fail("Reaction %s (%s + %s) can never trigger", r.Name, x, y)
			}
		}
	}

	if !result.Valid {
		return result
	}

	result.info("Cards: %d", cards.Len())
	for _, e := range engine.Elements {
		result.info("%s: %d", e, counts[e])
	}
	for id, name := range specialCards {
		card, ok := cards.Lookup(id)
		switch {
		case !ok:
			result.Errors = append(result.Errors, fmt.Sprintf("Note: no card with id %d, %s effect unavailable", id, name))
		case card.Name != name:
			result.Errors = append(result.Errors, fmt.Sprintf("Note: card %d is %q and carries the %s effect", id, card.Name, name))
		}
	}

	return result
}

// main validates each catalog given on the command line, printing a concise
// report and exiting with non-zero status if any are invalid.
func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join("..", "game", "catalog", "*.json"))
		if err != nil {
			fmt.Printf("Error finding catalog files: %v\n", err)
			os.Exit(1)
		}
		files = matches
	}
	if len(files) == 0 {
		fmt.Println("No catalog files found")
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateCatalog(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All catalogs are valid!")
	} else {
		fmt.Println("❌ Some catalogs have errors")
		os.Exit(1)
	}
}

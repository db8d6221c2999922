// Command analyze prints quick, human-readable heuristics about card
// catalogs. It summarizes per-element counts and damage, the damage
// histogram, the strongest cards and how often two consecutive plays trigger
// an elemental reaction.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/wricardo/skillwar/game/catalog"
	"github.com/wricardo/skillwar/game/engine"
)

func main() {
	paths := os.Args[1:]
	if len(paths) == 0 {
		// Empty path means the embedded catalog
		paths = []string{""}
	}

	failed := false
	for _, path := range paths {
		name := path
		if name == "" {
			name = "embedded catalog"
		}
		fmt.Printf("\n=== Analyzing %s ===\n", name)
		if err := analyzeCatalog(os.Stdout, path); err != nil {
			fmt.Printf("Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func analyzeCatalog(w io.Writer, path string) error {
	cards, err := catalog.Load(path)
	if err != nil {
		return err
	}
	a := cards.Analyze()

	fmt.Fprintf(w, "Total Cards: %d\n", a.Total)
	fmt.Fprintf(w, "%-8s %5s %5s %5s %7s %7s\n", "Element", "Cards", "Min", "Max", "Avg", "Support")
	for _, s := range a.Elements {
		fmt.Fprintf(w, "%-8s %5d %5d %5d %7.2f %7d\n", s.Element, s.Count, s.MinDamage, s.MaxDamage, s.AverageDamage(), s.Support)
	}

	damages := make([]int, 0, len(a.Damage))
	for d := range a.Damage {
		damages = append(damages, d)
	}
	sort.Ints(damages)
	fmt.Fprintln(w, "Damage Histogram:")
	for _, d := range damages {
		fmt.Fprintf(w, "  %2d | %s %d\n", d, strings.Repeat("#", a.Damage[d]), a.Damage[d])
	}

	names := make([]string, 0, len(a.Strongest))
	for _, c := range a.Strongest {
		names = append(names, fmt.Sprintf("%s (%s)", c.Name, c.Element))
	}
	fmt.Fprintf(w, "Strongest: %s\n", strings.Join(names, ", "))

	fmt.Fprintf(w, "Reaction Chance: %.1f%%\n", reactionChance(a)*100)

	for _, s := range a.Elements {
		if s.Count == 0 {
			fmt.Fprintf(w, "⚠️  WARNING: no %s cards\n", s.Element)
		} else if s.Support == s.Count {
			fmt.Fprintf(w, "⚠️  WARNING: every %s card deals no damage\n", s.Element)
		}
	}
	return nil
}

// reactionChance is the probability that two cards drawn independently from
// the catalog have elements that react with each other
func reactionChance(a catalog.Analysis) float64 {
	if a.Total == 0 {
		return 0
	}
	reactions := engine.DefaultReactions()
	total := float64(a.Total)

	chance := 0.0
	for _, x := range a.Elements {
		for _, y := range a.Elements {
			if _, ok := reactions.Lookup(x.Element, y.Element); ok {
				chance += float64(x.Count) / total * float64(y.Count) / total
			}
		}
	}
	return chance
}

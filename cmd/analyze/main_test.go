package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/skillwar/game/catalog"
	"github.com/wricardo/skillwar/game/engine"
)

func TestAnalyzeCatalog_Embedded(t *testing.T) {
	var out bytes.Buffer
	if err := analyzeCatalog(&out, ""); err != nil {
		t.Fatalf("analyzeCatalog failed: %v", err)
	}

	report := out.String()
	for _, want := range []string{"Total Cards: 100", "Damage Histogram:", "Strongest:", "Reaction Chance:"} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected %q in report:\n%s", want, report)
		}
	}
	for _, e := range engine.Elements {
		if !strings.Contains(report, string(e)) {
			t.Errorf("Expected element %s in report", e)
		}
	}
	if strings.Contains(report, "WARNING") {
		t.Errorf("Embedded catalog should not raise warnings:\n%s", report)
	}
}

func TestAnalyzeCatalog_Warnings(t *testing.T) {
	content := `[
		{"id": 1, "name": "Ember", "element": "fire", "damage": 2},
		{"id": 2, "name": "Mist", "element": "water", "damage": 0}
	]`
	path := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}

	var out bytes.Buffer
	if err := analyzeCatalog(&out, path); err != nil {
		t.Fatalf("analyzeCatalog failed: %v", err)
	}

	report := out.String()
	if !strings.Contains(report, "no ice cards") {
		t.Errorf("Expected missing element warning:\n%s", report)
	}
	if !strings.Contains(report, "every water card deals no damage") {
		t.Errorf("Expected support-only warning:\n%s", report)
	}
}

func TestAnalyzeCatalog_InvalidFile(t *testing.T) {
	var out bytes.Buffer
	if err := analyzeCatalog(&out, "/non/existent/cards.json"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReactionChance(t *testing.T) {
	tests := []struct {
		name     string
		cards    []engine.CardTemplate
		expected float64
	}{
		{
			name: "single element never reacts",
			cards: []engine.CardTemplate{
				{ID: 1, Name: "Ember", Element: engine.Fire},
				{ID: 2, Name: "Blaze", Element: engine.Fire},
			},
			expected: 0,
		},
		{
			// fire->water and water->fire each have probability 1/4
			name: "fire and water",
			cards: []engine.CardTemplate{
				{ID: 1, Name: "Ember", Element: engine.Fire},
				{ID: 2, Name: "Splash", Element: engine.Water},
			},
			expected: 0.5,
		},
		{
			name: "earth does not react with fire or thunder",
			cards: []engine.CardTemplate{
				{ID: 1, Name: "Ember", Element: engine.Fire},
				{ID: 2, Name: "Spark", Element: engine.Thunder},
				{ID: 3, Name: "Stone", Element: engine.Earth},
				{ID: 4, Name: "Rock", Element: engine.Earth},
			},
			// fire<->thunder: 2 * 1/4 * 1/4
			expected: 0.125,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := catalog.New(tt.cards)
			if err != nil {
				t.Fatalf("catalog: %v", err)
			}
			got := reactionChance(c.Analyze())
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("reactionChance = %v, expected %v", got, tt.expected)
			}
		})
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	return path
}

const sixElements = `[
	{"id": 1, "name": "Ember", "element": "fire", "damage": 2},
	{"id": 2, "name": "Splash", "element": "water", "damage": 1},
	{"id": 3, "name": "Breeze", "element": "wind", "damage": 1},
	{"id": 4, "name": "Pebble", "element": "earth", "damage": 2},
	{"id": 5, "name": "Spark", "element": "thunder", "damage": 3},
	{"id": 6, "name": "Frost", "element": "ice", "damage": 2}
]`

func TestValidateCatalog_Valid(t *testing.T) {
	path := writeCatalog(t, sixElements)

	result := validateCatalog(path)
	if !result.Valid {
		t.Fatalf("Expected valid catalog, but got errors: %v", result.Errors)
	}
	if result.File != "cards.json" {
		t.Errorf("Expected file name cards.json, got %s", result.File)
	}

	found := false
	for _, line := range result.Errors {
		if line == "✓ Cards: 6" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected card count in report, got %v", result.Errors)
	}

	notes := 0
	for _, line := range result.Errors {
		if strings.HasPrefix(line, "Note:") {
			notes++
		}
	}
	if notes != len(specialCards) {
		t.Errorf("Expected %d notes about missing special cards, got %d", len(specialCards), notes)
	}
}

func TestValidateCatalog_EmbeddedCatalog(t *testing.T) {
	result := validateCatalog(filepath.Join("..", "game", "catalog", "cards.json"))
	if !result.Valid {
		t.Fatalf("Embedded catalog should be valid: %v", result.Errors)
	}
	for _, line := range result.Errors {
		if strings.HasPrefix(line, "Note:") {
			t.Errorf("Embedded catalog should carry every special card: %s", line)
		}
	}
}

func TestValidateCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "invalid JSON",
			content: `[{"id": 1, invalid}]`,
			want:    "invalid catalog",
		},
		{
			name:    "empty",
			content: `[]`,
			want:    "no cards",
		},
		{
			name: "duplicate id",
			content: `[
				{"id": 1, "name": "Ember", "element": "fire", "damage": 2},
				{"id": 1, "name": "Splash", "element": "water", "damage": 1}
			]`,
			want: "duplicate id 1",
		},
		{
			name:    "unknown element",
			content: `[{"id": 1, "name": "Shadow", "element": "dark", "damage": 2}]`,
			want:    `unknown element "dark"`,
		},
		{
			name: "missing element",
			content: `[
				{"id": 1, "name": "Ember", "element": "fire", "damage": 2},
				{"id": 2, "name": "Splash", "element": "water", "damage": 1}
			]`,
			want: "No ice cards",
		},
		{
			name:    "unreachable reaction",
			content: `[{"id": 1, "name": "Ember", "element": "fire", "damage": 2}]`,
			want:    "Vaporize (fire + water) can never trigger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateCatalog(writeCatalog(t, tt.content))
			if result.Valid {
				t.Fatal("Expected invalid catalog")
			}
			joined := strings.Join(result.Errors, "\n")
			if !strings.Contains(joined, tt.want) {
				t.Errorf("Expected error containing %q, got:\n%s", tt.want, joined)
			}
		})
	}
}

func TestValidateCatalog_MissingFile(t *testing.T) {
	result := validateCatalog("/non/existent/cards.json")
	if result.Valid {
		t.Error("Expected invalid result for missing file")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "Failed to read file") {
		t.Errorf("Expected read error, got %v", result.Errors)
	}
}

// Package catalog provides the card catalog for Skill War.
//
// The catalog is an ordered, read-only list of card templates. A default
// catalog of 100 cards across the six elements is embedded in the binary;
// a replacement can be loaded from a JSON file with the same format.
//
// Catalog Format:
//
//	[
//	  {"id": 1, "name": "Fireball", "element": "fire", "damage": 2, "description": "..."},
//	  ...
//	]
//
// Every catalog is validated on load: ids must be positive and unique,
// names non-empty, elements one of the six known elements and damage
// non-negative.
//
// Special effects are bound to card ids, not names: 20 heals (water),
// 37 draws an extra card (wind), 54 raises max HP (earth) and 72 banks
// charge (thunder). A replacement catalog that reuses one of these ids must
// give it the matching element or it is rejected. Leaving an id out simply
// removes that effect from the game.
//
// Usage:
//
//	cards, err := catalog.Load(os.Getenv("CATALOG_PATH"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	sess, events, err := engine.NewSession(seats, engine.Options{Catalog: cards})
package catalog

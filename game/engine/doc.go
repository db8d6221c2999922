// Package engine provides the core game logic for the Skill War card battle.
//
// The engine package implements the game mechanics including:
//   - The turn state machine (Session) for one in-progress game
//   - Action resolution for drawing and playing cards (Resolver)
//   - Elemental status marks, reactions and decay (StatusEngine)
//   - Win condition evaluation and final rankings
//
// Core Types:
//
// Session owns the ordered player snapshot, the current turn pointer and the
// turn counter. Every operation on a Session runs to completion synchronously
// and returns the events observers should see, in order. A Session never
// touches timers, sockets or other rooms; the room layer owns those.
//
// Usage:
//
//	sess, events, err := engine.NewSession(seats, engine.Options{
//		Catalog: cards,
//		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// The player whose turn it is plays a card on the second seat
//	result, events, err := sess.Submit(playerID, engine.Action{
//		Kind:           engine.ActionPlay,
//		CardInstanceID: cardID,
//		TargetIndex:    engine.Target(1),
//	})
//
// Game Rules:
//
// Every player starts with 10 HP and five random cards. On their turn a
// player either draws a card or plays one on any living player. Cards deal
// damage and leave an elemental mark on the target; two different marks on
// the same player may trigger a reaction. The last player standing wins.
package engine

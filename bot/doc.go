// Package bot plays Skill War through the public REST API.
//
// A Player holds one seat: it readies up in the lobby, starts the game when it
// is the host and enough members are ready, and then polls the room, asking
// its Brain for an action whenever the turn is its own. Two brains ship:
// RandomBrain, which plays any card at any opponent, and GreedyBrain, which
// scores each card and target by damage, pending reactions and kills, and
// keeps its own specials (healing, walls, charge) for itself.
//
// Bots are useful for load and soak testing and as sparring partners for
// human or MCP-driven players:
//
//	skillwar bot --url http://localhost:8080 --room ABC123 --name sparring
package bot

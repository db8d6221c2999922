package engine

import (
	"errors"
	"fmt"
)

// Kind groups rejection reasons by how a caller should react to them
type Kind string

const (
	// KindValidation means a field of the request was malformed or out of range.
	KindValidation Kind = "validation"
	// KindState means the request is fine but the game is not in a state that allows it.
	KindState Kind = "state"
	// KindResource means a room-level precondition failed before any session exists.
	KindResource Kind = "resource"
	// KindInternal means a consistency check failed and the session was force-ended.
	KindInternal Kind = "internal"
)

// Reason is the machine-readable cause of a rejection
type Reason string

const (
	ReasonInvalidCard    Reason = "invalid_card"
	ReasonInvalidTarget  Reason = "invalid_target"
	ReasonInvalidAction  Reason = "invalid_action"
	ReasonInvalidRequest Reason = "invalid_request"

	ReasonRoomNotActive  Reason = "room_not_active"
	ReasonNotYourTurn    Reason = "not_your_turn"
	ReasonPlayerDead     Reason = "player_dead"
	ReasonGameInProgress Reason = "game_in_progress"

	ReasonRoomNotFound  Reason = "room_not_found"
	ReasonUnknownPlayer Reason = "unknown_player"
	ReasonRoomFull      Reason = "room_full"
	ReasonNotHost       Reason = "not_host"
	ReasonTooFewPlayers Reason = "too_few_players"
	ReasonNotAllReady   Reason = "not_all_ready"
	ReasonUnauthorized  Reason = "unauthorized"

	ReasonInternal Reason = "internal"
)

var reasonKinds = map[Reason]Kind{
	ReasonInvalidCard:    KindValidation,
	ReasonInvalidTarget:  KindValidation,
	ReasonInvalidAction:  KindValidation,
	ReasonInvalidRequest: KindValidation,
	ReasonRoomNotActive:  KindState,
	ReasonNotYourTurn:    KindState,
	ReasonPlayerDead:     KindState,
	ReasonGameInProgress: KindState,
	ReasonRoomNotFound:   KindResource,
	ReasonUnknownPlayer:  KindResource,
	ReasonRoomFull:       KindResource,
	ReasonNotHost:        KindResource,
	ReasonTooFewPlayers:  KindResource,
	ReasonNotAllReady:    KindResource,
	ReasonUnauthorized:   KindResource,
	ReasonInternal:       KindInternal,
}

// Rejection is returned for every refused request. Rejections never mutate state.
type Rejection struct {
	Reason  Reason `json:"reason"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

var (
	ErrInvalidCard    = &Rejection{Reason: ReasonInvalidCard, Message: "card is not in hand"}
	ErrInvalidTarget  = &Rejection{Reason: ReasonInvalidTarget, Message: "invalid target"}
	ErrInvalidAction  = &Rejection{Reason: ReasonInvalidAction, Message: "unknown action"}
	ErrInvalidRequest = &Rejection{Reason: ReasonInvalidRequest, Message: "invalid request"}

	ErrRoomNotActive  = &Rejection{Reason: ReasonRoomNotActive, Message: "game has not started"}
	ErrNotYourTurn    = &Rejection{Reason: ReasonNotYourTurn, Message: "it is not your turn"}
	ErrPlayerDead     = &Rejection{Reason: ReasonPlayerDead, Message: "eliminated players cannot act"}
	ErrGameInProgress = &Rejection{Reason: ReasonGameInProgress, Message: "game has already started"}

	ErrRoomNotFound  = &Rejection{Reason: ReasonRoomNotFound, Message: "room not found"}
	ErrUnknownPlayer = &Rejection{Reason: ReasonUnknownPlayer, Message: "player is not in this room"}
	ErrRoomFull      = &Rejection{Reason: ReasonRoomFull, Message: "room is full"}
	ErrNotHost       = &Rejection{Reason: ReasonNotHost, Message: "only the host can start the game"}
	ErrTooFewPlayers = &Rejection{Reason: ReasonTooFewPlayers, Message: fmt.Sprintf("minimum of %d players required", MinPlayers)}
	ErrNotAllReady   = &Rejection{Reason: ReasonNotAllReady, Message: "not every player is ready"}
	ErrUnauthorized  = &Rejection{Reason: ReasonUnauthorized, Message: "player token does not match"}

	ErrInternal = &Rejection{Reason: ReasonInternal, Message: "internal error, session ended"}
)

func (r *Rejection) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s: %s", r.Field, r.Message)
	}
	return r.Message
}

// Kind reports which class of error the rejection belongs to
func (r *Rejection) Kind() Kind {
	if k, ok := reasonKinds[r.Reason]; ok {
		return k
	}
	return KindInternal
}

// Is matches any rejection with the same reason, so errors.Is works on copies
// carrying a field or a custom message.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

// WithField returns a copy naming the offending request field
func (r *Rejection) WithField(field, message string) *Rejection {
	cp := *r
	cp.Field = field
	if message != "" {
		cp.Message = message
	}
	return &cp
}

// KindOf returns the kind of a rejection anywhere in err's chain.
// Errors that are not rejections are internal.
func KindOf(err error) Kind {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Kind()
	}
	return KindInternal
}

package match

import "errors"

var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrNotParticipant       = errors.New("player is not in this match")
	ErrPlayerBusy           = errors.New("player is already in a match")
	ErrInvalidPlayers       = errors.New("a match needs two distinct players")
	ErrWrongPhase           = errors.New("action not allowed in current phase")
	ErrNeedsSwitch          = errors.New("active creature fainted, switch first")
	ErrInvalidMove          = errors.New("invalid move index")
	ErrInvalidSwitch        = errors.New("cannot switch to that creature")
	ErrTeamAlreadySubmitted = errors.New("team already submitted")
)

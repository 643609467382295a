package engine

import "errors"

// Advisory errors. Each one is reported privately to the player who caused
// it and leaves the game state untouched.
var (
	ErrGameNotStarted      = errors.New("game has not started yet")
	ErrGameComplete        = errors.New("game is already complete")
	ErrAlreadyStarted      = errors.New("game has already started")
	ErrNotAdmin            = errors.New("only the host can do that")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrNoPlayers           = errors.New("need at least one player to start")
	ErrWordIndexOutOfRange = errors.New("word index out of range")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrNotMember           = errors.New("you have not joined this game")
	ErrEmptyWord           = errors.New("word cannot be empty")
	ErrNameRequired        = errors.New("player name is required to join")
)

var advisories = []error{
	ErrGameNotStarted,
	ErrGameComplete,
	ErrAlreadyStarted,
	ErrNotAdmin,
	ErrNotYourTurn,
	ErrNoPlayers,
	ErrWordIndexOutOfRange,
	ErrPlayerNotFound,
	ErrNotMember,
	ErrEmptyWord,
	ErrNameRequired,
}

// IsAdvisory reports whether err is a rule violation to be relayed to the
// player rather than a failure of the server.
func IsAdvisory(err error) bool {
	_, ok := AdvisoryText(err)
	return ok
}

// AdvisoryText returns the player-facing text of the advisory wrapped by
// err, without any context added along the way.
func AdvisoryText(err error) (string, bool) {
	for _, target := range advisories {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

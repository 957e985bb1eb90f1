package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"inotherwords/internal/puzzleapi"
	"inotherwords/internal/types"
)

type State string

const (
	StateLoading      State = "loading"
	StateLoadFailed   State = "load_failed"
	StateReady        State = "ready"
	StateOutOfGuesses State = "out_of_guesses"
	StateSolved       State = "solved"
	StateGaveUp       State = "gave_up"
)

type ResultKind string

const (
	ResultCorrect      ResultKind = "correct"
	ResultIncorrect    ResultKind = "incorrect"
	ResultOutOfGuesses ResultKind = "out_of_guesses"
	ResultFailed       ResultKind = "failed"
	ResultRateLimited  ResultKind = "rate_limited"
	ResultGaveUp       ResultKind = "gave_up"
)

const (
	MessageCorrect        = "Correct! Well done."
	MessageIncorrect      = "Not quite. Try again!"
	MessageSomethingWrong = "Something went wrong. Please try again."
	MessageSlowDown       = "You're guessing too fast. Please slow down."
	MessageNoAttempts     = "No attempts remaining"
	MessageGaveUp         = "The answer has been revealed. Come back tomorrow for a new puzzle!"
)

var (
	ErrNoPuzzle       = errors.New("no puzzle available for submission")
	ErrEmptyGuess     = errors.New("guess is empty")
	ErrSubmitInFlight = errors.New("a guess is already being submitted")
	ErrOutOfGuesses   = errors.New("no attempts remaining")
	ErrPuzzleSolved   = errors.New("puzzle already solved")
	ErrGaveUp         = errors.New("puzzle was given up")
	ErrAuthRequired   = errors.New("authentication required")
	ErrGiveUpInFlight = errors.New("give up already in progress")
	ErrHintsLocked    = errors.New("hints unlock after the first incorrect guess")
	ErrInvalidHint    = errors.New("invalid hint index")
	ErrStale          = errors.New("puzzle changed while the request was in flight")
)

// PuzzleLoadError means today's puzzle could not be fetched. The page offers
// a retry.
type PuzzleLoadError struct {
	Err error
}

func (e *PuzzleLoadError) Error() string {
	return "load puzzle of the day: " + e.Err.Error()
}

func (e *PuzzleLoadError) Unwrap() error { return e.Err }

// API is the part of the puzzle API a session drives.
type API interface {
	PuzzleOfTheDay(ctx context.Context, caller puzzleapi.Caller) (types.PuzzleQuestion, error)
	AttemptStatus(ctx context.Context, caller puzzleapi.Caller, puzzleID string) (types.AttemptStatus, error)
	SubmitAnswer(ctx context.Context, caller puzzleapi.Caller, puzzleID, answer string) (types.SubmitResult, error)
	GiveUp(ctx context.Context, caller puzzleapi.Caller, puzzleID string) (types.GiveUpResult, error)
	Hints(ctx context.Context, caller puzzleapi.Caller, puzzleID string, indices []int) (map[int]string, error)
}

// Result is the outcome of the last submit or give-up. It lives until the
// next action or until the player edits the input.
type Result struct {
	Kind             ResultKind
	IsCorrect        bool
	Message          string
	Hint             string
	RemainingGuesses *int
	MaxGuesses       *int
}

// Session is the game state of one browser for the puzzle of the day. All
// methods are safe for concurrent use; the lock is never held across API
// calls, so in-flight flags are what refuse duplicate actions.
type Session struct {
	api     API
	history *History

	// OnPuzzleChange runs after a different puzzle id becomes active.
	OnPuzzleChange func(oldID, newID string)

	mu                 sync.Mutex
	puzzle             *types.PuzzleQuestion
	status             *types.AttemptStatus
	statusFromAttempts bool
	state              State
	loadErr            error
	result             *Result
	input              string
	submitting         bool
	givingUp           bool
	solved             bool
	gaveUp             bool
	categoryRevealed   bool
	hintText           map[int]string
	lastAccess         time.Time
}

func NewSession(api API, hist *History) *Session {
	return &Session{
		api:        api,
		history:    hist,
		state:      StateLoading,
		hintText:   make(map[int]string),
		lastAccess: time.Now(),
	}
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) PuzzleID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.puzzle == nil {
		return ""
	}
	return s.puzzle.ID
}

// LoadPuzzle fetches today's puzzle and then its attempt status. A failed
// status fetch is not an error here: play continues with an unknown count.
func (s *Session) LoadPuzzle(ctx context.Context, caller puzzleapi.Caller) error {
	s.mu.Lock()
	if s.puzzle == nil {
		s.state = StateLoading
	}
	s.mu.Unlock()

	p, err := s.api.PuzzleOfTheDay(ctx, caller)
	if err != nil {
		loadErr := &PuzzleLoadError{Err: err}
		s.mu.Lock()
		s.loadErr = loadErr
		s.recomputeLocked()
		s.mu.Unlock()
		return loadErr
	}

	s.mu.Lock()
	oldID := ""
	if s.puzzle != nil {
		oldID = s.puzzle.ID
	}
	changed := oldID != p.ID
	s.puzzle = &p
	s.loadErr = nil
	if changed {
		s.status = nil
		s.statusFromAttempts = false
		s.result = nil
		s.input = ""
		s.solved = false
		s.gaveUp = false
		s.categoryRevealed = false
		s.hintText = make(map[int]string)
	}
	s.mu.Unlock()

	if changed {
		if err := s.history.Load(ctx, p.ID); err != nil {
			log.Printf("[WARN] Guess history unavailable for puzzle %s: %v", p.ID, err)
		}
		if s.OnPuzzleChange != nil {
			s.OnPuzzleChange(oldID, p.ID)
		}
	}

	if err := s.LoadAttemptStatus(ctx, caller); err != nil && !errors.Is(err, ErrStale) {
		log.Printf("[WARN] Attempt status unavailable for puzzle %s: %v", p.ID, err)
	}

	s.mu.Lock()
	s.recomputeLocked()
	s.mu.Unlock()
	return nil
}

// LoadAttemptStatus replaces the local status with the server's. On failure
// the previous status, possibly unknown, is kept.
func (s *Session) LoadAttemptStatus(ctx context.Context, caller puzzleapi.Caller) error {
	s.mu.Lock()
	if s.puzzle == nil {
		s.mu.Unlock()
		return ErrNoPuzzle
	}
	puzzleID := s.puzzle.ID
	s.mu.Unlock()

	st, err := s.api.AttemptStatus(ctx, caller, puzzleID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isActiveLocked(puzzleID) {
		return ErrStale
	}
	if err != nil {
		return fmt.Errorf("load attempt status: %w", err)
	}
	s.status = &st
	s.statusFromAttempts = true
	s.recomputeLocked()
	return nil
}

// SubmitGuess sends a guess and then refetches the attempt status. Transport
// failures come back as a failed Result with a nil error; the returned error
// is reserved for guesses that were refused before reaching the API.
func (s *Session) SubmitGuess(ctx context.Context, caller puzzleapi.Caller, text string) (Result, error) {
	answer := strings.TrimSpace(text)

	s.mu.Lock()
	s.input = text
	switch {
	case s.puzzle == nil:
		s.mu.Unlock()
		return Result{}, ErrNoPuzzle
	case answer == "":
		s.mu.Unlock()
		return Result{}, ErrEmptyGuess
	case s.submitting:
		s.mu.Unlock()
		return Result{}, ErrSubmitInFlight
	case s.state == StateSolved:
		s.mu.Unlock()
		return Result{}, ErrPuzzleSolved
	case s.state == StateGaveUp:
		s.mu.Unlock()
		return Result{}, ErrGaveUp
	case s.status != nil && s.status.RemainingGuesses <= 0:
		res := Result{Kind: ResultOutOfGuesses, Message: MessageNoAttempts}
		s.result = &res
		s.recomputeLocked()
		s.mu.Unlock()
		return res, ErrOutOfGuesses
	}
	s.submitting = true
	puzzleID := s.puzzle.ID
	s.mu.Unlock()

	resp, err := s.api.SubmitAnswer(ctx, caller, puzzleID, answer)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.submitting = false
		if !s.isActiveLocked(puzzleID) {
			return Result{}, ErrStale
		}
		res := failureResult(err)
		s.result = &res
		log.Printf("[WARN] Submit for puzzle %s failed: %v", puzzleID, err)
		return res, nil
	}

	// Sequenced after the submit response so the count is never older than
	// the result shown next to it.
	st, stErr := s.api.AttemptStatus(ctx, caller, puzzleID)

	s.mu.Lock()
	if !s.isActiveLocked(puzzleID) {
		s.submitting = false
		s.mu.Unlock()
		return Result{}, ErrStale
	}
	s.mu.Unlock()

	if _, err := s.history.AddGuess(ctx, puzzleID, answer, resp.IsCorrect); errors.Is(err, ErrPuzzleMismatch) {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
		return Result{}, ErrStale
	} else if err != nil {
		log.Printf("[WARN] Failed to persist guess for puzzle %s: %v", puzzleID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false

	switch {
	case stErr == nil:
		s.status = &st
		s.statusFromAttempts = true
	case resp.RemainingGuesses != nil && resp.MaxGuesses != nil:
		s.status = &types.AttemptStatus{
			RemainingGuesses: *resp.RemainingGuesses,
			MaxGuesses:       *resp.MaxGuesses,
		}
		s.statusFromAttempts = false
	}

	res := Result{
		IsCorrect:        resp.IsCorrect,
		Hint:             resp.Hint,
		RemainingGuesses: resp.RemainingGuesses,
		MaxGuesses:       resp.MaxGuesses,
	}
	if s.status != nil {
		remaining, max := s.status.RemainingGuesses, s.status.MaxGuesses
		res.RemainingGuesses, res.MaxGuesses = &remaining, &max
	}

	switch {
	case resp.IsCorrect:
		res.Kind = ResultCorrect
		res.Message = MessageCorrect
		s.solved = true
		s.input = ""
	case res.RemainingGuesses != nil && *res.RemainingGuesses <= 0:
		res.Kind = ResultOutOfGuesses
		res.Message = MessageNoAttempts
	default:
		res.Kind = ResultIncorrect
		res.Message = MessageIncorrect
	}
	s.result = &res
	s.recomputeLocked()
	return res, nil
}

func failureResult(err error) Result {
	if errors.Is(err, puzzleapi.ErrRateLimited) {
		return Result{Kind: ResultRateLimited, Message: MessageSlowDown}
	}
	return Result{Kind: ResultFailed, Message: MessageSomethingWrong}
}

// GiveUp forfeits today's puzzle. Only signed-in players may give up; asking
// for confirmation is the caller's job.
func (s *Session) GiveUp(ctx context.Context, caller puzzleapi.Caller) (Result, error) {
	if !caller.Authenticated() {
		return Result{}, ErrAuthRequired
	}

	s.mu.Lock()
	switch {
	case s.puzzle == nil:
		s.mu.Unlock()
		return Result{}, ErrNoPuzzle
	case s.givingUp:
		s.mu.Unlock()
		return Result{}, ErrGiveUpInFlight
	case s.state == StateSolved:
		s.mu.Unlock()
		return Result{}, ErrPuzzleSolved
	case s.state == StateGaveUp:
		s.mu.Unlock()
		return Result{}, ErrGaveUp
	}
	s.givingUp = true
	puzzleID := s.puzzle.ID
	s.mu.Unlock()

	resp, err := s.api.GiveUp(ctx, caller, puzzleID)

	s.mu.Lock()
	if err != nil || !s.isActiveLocked(puzzleID) {
		s.givingUp = false
		s.mu.Unlock()
		if err != nil {
			return Result{}, fmt.Errorf("give up: %w", err)
		}
		return Result{}, ErrStale
	}
	s.mu.Unlock()

	if err := s.history.Clear(ctx); err != nil {
		log.Printf("[WARN] Failed to clear history for puzzle %s: %v", puzzleID, err)
	}
	if err := s.history.MarkGaveUp(ctx); err != nil {
		log.Printf("[WARN] Failed to persist give up for puzzle %s: %v", puzzleID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.givingUp = false
	s.gaveUp = true
	s.input = ""
	msg := resp.Message
	if msg == "" {
		msg = MessageGaveUp
	}
	res := Result{Kind: ResultGaveUp, Message: msg}
	s.result = &res
	s.recomputeLocked()
	return res, nil
}

// RevealHint attaches hint index to a guess. An empty guessID picks the most
// recent incorrect guess.
func (s *Session) RevealHint(ctx context.Context, guessID string, index int) error {
	s.mu.Lock()
	if s.puzzle == nil {
		s.mu.Unlock()
		return ErrNoPuzzle
	}
	numHints := s.puzzle.NumHints
	s.mu.Unlock()

	hasIncorrect := s.history.HasIncorrectGuess()
	if !HintsUnlocked(hasIncorrect) {
		return ErrHintsLocked
	}
	if index < 0 || index >= numHints {
		return ErrInvalidHint
	}

	if guessID == "" {
		guesses := s.history.Guesses()
		for i := len(guesses) - 1; i >= 0; i-- {
			if !guesses[i].IsCorrect {
				guessID = guesses[i].ID
				break
			}
		}
	}
	g, ok := s.history.Find(guessID)
	if !ok {
		return ErrGuessNotFound
	}
	if g.IsCorrect {
		return ErrInvalidHint
	}
	if !CanRevealHint(hasIncorrect, numHints, s.history.RevealedHints(), index) {
		return nil
	}
	return s.history.RevealHintForGuess(ctx, guessID, index)
}

// RevealNextHint reveals the lowest hint index not yet shown.
func (s *Session) RevealNextHint(ctx context.Context, guessID string) error {
	s.mu.Lock()
	if s.puzzle == nil {
		s.mu.Unlock()
		return ErrNoPuzzle
	}
	numHints := s.puzzle.NumHints
	s.mu.Unlock()

	next, ok := NextHint(numHints, s.history.RevealedHints())
	if !ok {
		return nil
	}
	return s.RevealHint(ctx, guessID, next)
}

func (s *Session) RevealCategory() {
	if !CanRevealCategory() {
		return
	}
	s.mu.Lock()
	s.categoryRevealed = true
	s.mu.Unlock()
}

// SetInput stores the draft guess. Editing clears the previous result.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
	if s.result != nil && s.result.Kind != ResultGaveUp && !s.solved {
		s.result = nil
	}
}

// LoadHintTexts fetches text for revealed hints not fetched yet. Missing
// text renders as a placeholder, so errors are only logged.
func (s *Session) LoadHintTexts(ctx context.Context, caller puzzleapi.Caller) {
	s.mu.Lock()
	if s.puzzle == nil {
		s.mu.Unlock()
		return
	}
	puzzleID := s.puzzle.ID
	var missing []int
	for idx := range s.history.RevealedHints() {
		if _, ok := s.hintText[idx]; !ok {
			missing = append(missing, idx)
		}
	}
	s.mu.Unlock()

	if len(missing) == 0 {
		return
	}
	texts, err := s.api.Hints(ctx, caller, puzzleID, missing)
	if err != nil {
		log.Printf("[WARN] Failed to load hints %v for puzzle %s: %v", missing, puzzleID, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isActiveLocked(puzzleID) {
		return
	}
	for idx, text := range texts {
		s.hintText[idx] = text
	}
}

// AttemptsUsed is the server's attempt count. ok is false when the count did
// not come from the attempts endpoint.
func (s *Session) AttemptsUsed() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil || !s.statusFromAttempts {
		return 0, false
	}
	return s.status.AttemptCount, true
}

func (s *Session) isActiveLocked(puzzleID string) bool {
	return s.puzzle != nil && s.puzzle.ID == puzzleID
}

// recomputeLocked derives the state. History is only consulted once it has
// been switched to the current puzzle.
func (s *Session) recomputeLocked() {
	current := s.puzzle != nil && s.history.PuzzleID() == s.puzzle.ID
	switch {
	case s.puzzle == nil && s.loadErr != nil:
		s.state = StateLoadFailed
	case s.puzzle == nil:
		s.state = StateLoading
	case s.solved || current && s.history.HasCorrectGuess():
		s.solved = true
		s.state = StateSolved
	case s.gaveUp || current && s.history.GaveUp():
		s.gaveUp = true
		s.state = StateGaveUp
	case s.status != nil && s.status.RemainingGuesses <= 0:
		s.state = StateOutOfGuesses
	default:
		s.state = StateReady
	}
}

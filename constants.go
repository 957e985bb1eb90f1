package main

const (
	appTitle = "In Other Words"
	tagline  = "One clue. One answer. A new puzzle every day."
)

// Cookie names
const (
	SessionCookieName     = "session_id"
	FingerprintCookieName = "puzzle_fingerprint"
	ThemeCookieName       = "theme"
)

// Route constants
const (
	RouteHome            = "/"
	RouteGameState       = "/game-state"
	RouteGuess           = "/guess"
	RouteInput           = "/input"
	RouteRetry           = "/retry"
	RouteRevealCategory  = "/hints/category"
	RouteRevealHint      = "/hints/reveal"
	RouteGiveUp          = "/give-up"
	RouteGiveUpCancel    = "/give-up/cancel"
	RouteStats           = "/stats"
	RouteTheme           = "/theme"
	RouteSignIn          = "/sign-in"
	RouteSignInCallback  = "/sign-in/callback"
	RouteSignOut         = "/sign-out"
	RouteSubscribe       = "/subscribe"
	RouteBillingPortal   = "/billing-portal"
	RouteCheckoutSuccess = "/checkout/success"
	RouteCheckoutCancel  = "/checkout/cancel"
	RouteHealthz         = "/healthz"
)

// Error message constants
const (
	ErrorEmptyGuess       = "Please enter a guess."
	ErrorSubmitInFlight   = "Your last guess is still being checked."
	ErrorPuzzleSolved     = "You've already solved today's puzzle."
	ErrorGaveUp           = "You gave up on today's puzzle. Come back tomorrow!"
	ErrorNoPuzzle         = "No puzzle is available right now."
	ErrorPuzzleChanged    = "The puzzle changed while your request was in flight. Please try again."
	ErrorHintsLocked      = "Puzzle hints unlock after your first incorrect guess"
	ErrorSignInToGiveUp   = "Sign in to give up"
	ErrorGiveUpInFlight   = "Already giving up..."
	ErrorGiveUpFailed     = "Failed to give up. Please try again."
	ErrorSomethingWrong   = "Something went wrong. Please try again."
	ErrorSignInDisabled   = "Sign-in is not configured on this server."
	ErrorStatsUnavailable = "Stats are unavailable right now."
)

type contextKey string

// Context key constants
const (
	requestIDKey contextKey = "request_id"
	identityKey  contextKey = "identity"
)

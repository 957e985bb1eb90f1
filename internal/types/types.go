package types

// Category is the puzzle category as published by the API.
type Category string

const (
	CategoryMusic         Category = "MUSIC"
	CategoryMoviesTV      Category = "MOVIES_TV"
	CategoryGames         Category = "GAMES"
	CategorySports        Category = "SPORTS"
	CategoryBooks         Category = "BOOKS"
	CategoryUncategorized Category = "UNCATEGORIZED"
)

type PuzzleQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Category Category `json:"category"`
	NumHints int      `json:"num_hints,omitempty"`
}

type AttemptStatus struct {
	AttemptCount     int `json:"attemptCount"`
	RemainingGuesses int `json:"remainingGuesses"`
	MaxGuesses       int `json:"maxGuesses"`
}

type SubmitRequest struct {
	Answer string `json:"answer"`
}

// SubmitResult is the payload of a submit call. Pointer fields are optional
// in the API response.
type SubmitResult struct {
	IsCorrect        bool   `json:"isCorrect"`
	PuzzleID         string `json:"puzzleId,omitempty"`
	SubmittedAnswer  string `json:"submittedAnswer,omitempty"`
	Hint             string `json:"hint,omitempty"`
	RemainingGuesses *int   `json:"remainingGuesses,omitempty"`
	MaxGuesses       *int   `json:"maxGuesses,omitempty"`
}

type GiveUpResult struct {
	Success  bool   `json:"success"`
	PuzzleID string `json:"puzzleId"`
	GaveUp   bool   `json:"gaveUp"`
	Message  string `json:"message"`
}

type ConvertAttemptsRequest struct {
	UserFingerprint string `json:"userFingerprint"`
}

type PlayerStats struct {
	TotalGames         int      `json:"totalGames"`
	GamesWon           int      `json:"gamesWon"`
	WinRate            float64  `json:"winRate"`
	CurrentStreak      *int     `json:"currentStreak,omitempty"`
	LongestStreak      *int     `json:"longestStreak,omitempty"`
	AverageGuesses     *float64 `json:"averageGuesses,omitempty"`
	AverageSolveTimeMs *int64   `json:"averageSolveTimeMs,omitempty"`
	FastestSolveMs     *int64   `json:"fastestSolveMs,omitempty"`
	LastPlayedAt       *string  `json:"lastPlayedAt,omitempty"`
}

type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled          SubscriptionStatus = "CANCELED"
	SubscriptionIncomplete        SubscriptionStatus = "INCOMPLETE"
	SubscriptionIncompleteExpired SubscriptionStatus = "INCOMPLETE_EXPIRED"
	SubscriptionPastDue           SubscriptionStatus = "PAST_DUE"
	SubscriptionPaused            SubscriptionStatus = "PAUSED"
	SubscriptionTrialing          SubscriptionStatus = "TRIALING"
	SubscriptionUnpaid            SubscriptionStatus = "UNPAID"
)

type Subscription struct {
	ID              string             `json:"id"`
	Status          SubscriptionStatus `json:"status"`
	BillingInterval string             `json:"billingInterval"`
	Quantity        int                `json:"quantity"`
	UserID          string             `json:"userId"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
}

type User struct {
	ID               string         `json:"id"`
	ClerkID          string         `json:"clerkId"`
	Role             string         `json:"role"`
	StripeCustomerID *string        `json:"stripeCustomerId,omitempty"`
	Subscriptions    []Subscription `json:"stripeSubscriptions,omitempty"`
	Archived         bool           `json:"archived"`
	CreatedAt        string         `json:"createdAt"`
	UpdatedAt        string         `json:"updatedAt"`
}

type Transaction struct {
	ID                string  `json:"id"`
	CheckoutSessionID *string `json:"checkoutSessionId,omitempty"`
	UserID            string  `json:"userId"`
	Amount            int64   `json:"amount"`
	Currency          string  `json:"currency"`
	Status            string  `json:"status"`
	Type              string  `json:"type"`
	SubscriptionID    *string `json:"subscriptionId,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

type Redirect struct {
	RedirectURL string `json:"redirectUrl"`
}

// Puzzle is the full content record managed through the CMS.
type Puzzle struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Hints        []string `json:"hints"`
	Category     Category `json:"category"`
	DisplayDate  *string  `json:"displayDate,omitempty"`
	DisplayOrder *int     `json:"displayOrder,omitempty"`
	Published    bool     `json:"published"`
	Archived     bool     `json:"archived"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

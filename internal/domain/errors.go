package domain

import (
	"errors"
	"fmt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Error taxonomy: every sentinel below wraps exactly one of these roots, so
// callers can branch on the kind with errors.Is or the Is* predicates.
// ──────────────────────────────────────────────────────────────────────────────

var (
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrState             = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrAuthorization     = errors.New("not authorized")
)

func kind(root error, msg string) error {
	return fmt.Errorf("%w: %s", root, msg)
}

// Bet placement / cancellation errors
var (
	// ErrInvalidAmount is returned when the stake is missing, zero or negative.
	ErrInvalidAmount = kind(ErrValidation, "amount must be strictly positive")

	// ErrNoOutcomes is returned when a bet references no outcomes at all.
	ErrNoOutcomes = kind(ErrValidation, "at least one outcome is required")

	// ErrEventClosed is returned when a referenced event is cancelled, completed
	// or already started.
	ErrEventClosed = kind(ErrState, "event is closed for betting")

	// ErrOutcomeNotPending is returned when an outcome has already been resolved.
	ErrOutcomeNotPending = kind(ErrState, "outcome is not pending")

	// ErrConflictingSelections is returned when two selected outcomes belong to
	// the same event and incompatible markets.
	ErrConflictingSelections = kind(ErrConflict, "selected outcomes are mutually incompatible")

	// ErrBetNotPending is returned when cancelling a bet that already settled.
	ErrBetNotPending = kind(ErrState, "bet is not pending")

	// ErrCancelWindowClosed is returned when an event of the bet starts too soon
	// for the bet to be cancelled.
	ErrCancelWindowClosed = kind(ErrState, "an event of this bet starts too soon to cancel")

	// ErrNotBetOwner is returned when a user acts on someone else's bet.
	ErrNotBetOwner = kind(ErrAuthorization, "bet belongs to another user")
)

// Event / outcome errors
var (
	ErrEventNotFound   = kind(ErrNotFound, "event not found")
	ErrOutcomeNotFound = kind(ErrNotFound, "outcome not found")
	ErrBetNotFound     = kind(ErrNotFound, "bet not found")
	ErrPlayerNotFound  = kind(ErrNotFound, "player not found")

	// ErrInvalidOdds is returned when a manual outcome is priced below 1.01.
	ErrInvalidOdds = kind(ErrValidation, "odds must be at least 1.01")

	// ErrInvalidScore is returned when a resolution carries negative goals.
	ErrInvalidScore = kind(ErrValidation, "goal counts must be non-negative")

	// ErrInvalidEvent is returned when an event is created without teams or a
	// start time.
	ErrInvalidEvent = kind(ErrValidation, "event needs a home team, an away team and a start time")

	// ErrInvalidStatus is returned when a correction targets an unknown or
	// PENDING status.
	ErrInvalidStatus = kind(ErrValidation, "outcome status must be WON, LOST or VOID")

	// ErrEventCancelled is returned when resolving or correcting a cancelled event.
	ErrEventCancelled = kind(ErrState, "event is cancelled")

	// ErrOutcomeInUse is returned when deleting an outcome that bets reference.
	ErrOutcomeInUse = kind(ErrState, "outcome is referenced by bets")

	// ErrDuplicateMarket is returned when a manual outcome duplicates an
	// existing selection of the same market.
	ErrDuplicateMarket = kind(ErrConflict, "market selection already exists")
)

// User / account errors
var (
	ErrUserNotFound       = kind(ErrNotFound, "user not found")
	ErrUsernameTaken      = kind(ErrConflict, "username is already taken")
	ErrEmailTaken         = kind(ErrConflict, "email address is already registered")
	ErrInvalidCredentials = kind(ErrAuthorization, "invalid email or password")
	ErrUserInactive       = kind(ErrAuthorization, "user account is inactive")

	// ErrSpinCooldown is returned when the reward wheel is spun again too soon.
	ErrSpinCooldown = kind(ErrState, "reward spin is still cooling down")
)

// Auth errors
var (
	ErrUnauthorized = kind(ErrAuthorization, "unauthorized")
	ErrForbidden    = kind(ErrAuthorization, "forbidden: insufficient permissions")
	ErrTokenInvalid = kind(ErrAuthorization, "token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsValidation reports whether err stems from bad or missing input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is a selection/duplicate conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsState reports whether err is a lifecycle violation.
func IsState(err error) bool { return errors.Is(err, ErrState) }

// IsNotFound reports whether err is one of the "not found" errors. Use this
// instead of comparing error values when translating to HTTP 404.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInsufficientFunds reports whether err is a balance shortfall.
func IsInsufficientFunds(err error) bool { return errors.Is(err, ErrInsufficientFunds) }

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool { return errors.Is(err, ErrAuthorization) }

package store

import (
	"context"
	"errors"

	"github.com/aquatrade/backend/internal/core"
)

// ErrNotFound is returned when no account exists for a wallet address.
var ErrNotFound = errors.New("user not found")

// UserRepository is the persistence contract for user accounts: four
// read-modify-write operations on a single record keyed by wallet address.
type UserRepository interface {
	// Get returns the account for the wallet address, or ErrNotFound.
	Get(ctx context.Context, walletAddress string) (*core.UserAccount, error)

	// CreateIfAbsent returns the existing account or creates an empty one.
	// Accounts are self-healing: a valid token with no record gets one.
	CreateIfAbsent(ctx context.Context, walletAddress string) (*core.UserAccount, error)

	// SetViewingKeys stores both viewing keys on the account.
	SetViewingKeys(ctx context.Context, walletAddress, sscrtKey, susdcKey string) (*core.UserAccount, error)

	// SetAllowanceFlags persists both authorization booleans as one update.
	SetAllowanceFlags(ctx context.Context, walletAddress string, sscrtAllowed, susdcAllowed bool) (*core.UserAccount, error)
}

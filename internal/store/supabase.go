package store

import (
	"context"
	"fmt"
	"log"

	supabase "github.com/supabase-community/supabase-go"

	"github.com/aquatrade/backend/internal/core"
)

const usersTable = "trading_users"

// SupabaseUserStore is the production UserRepository backed by Supabase
// (PostgREST). One row per wallet address.
type SupabaseUserStore struct {
	client *supabase.Client
	logger *log.Logger
}

// NewSupabaseUserStore connects to Supabase with a service key.
func NewSupabaseUserStore(url, serviceKey string) (*SupabaseUserStore, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase URL and service key must be set")
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseUserStore{
		client: client,
		logger: log.New(log.Writer(), "[UserStore:Supabase] ", log.LstdFlags),
	}, nil
}

func (s *SupabaseUserStore) Get(_ context.Context, walletAddress string) (*core.UserAccount, error) {
	var rows []core.UserAccount
	_, err := s.client.From(usersTable).
		Select("*", "", false).
		Eq("wallet_address", walletAddress).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", walletAddress, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *SupabaseUserStore) CreateIfAbsent(ctx context.Context, walletAddress string) (*core.UserAccount, error) {
	user, err := s.Get(ctx, walletAddress)
	if err == nil {
		return user, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	row := core.UserAccount{WalletAddress: walletAddress}
	var result []core.UserAccount
	_, err = s.client.From(usersTable).
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", walletAddress, err)
	}
	s.logger.Printf("Created account for %s", walletAddress)
	if len(result) > 0 {
		return &result[0], nil
	}
	return &row, nil
}

func (s *SupabaseUserStore) SetViewingKeys(ctx context.Context, walletAddress, sscrtKey, susdcKey string) (*core.UserAccount, error) {
	update := map[string]interface{}{
		"sscrt_key": sscrtKey,
		"susdc_key": susdcKey,
	}
	if err := s.update(walletAddress, update); err != nil {
		return nil, fmt.Errorf("set viewing keys for %s: %w", walletAddress, err)
	}
	return s.Get(ctx, walletAddress)
}

func (s *SupabaseUserStore) SetAllowanceFlags(ctx context.Context, walletAddress string, sscrtAllowed, susdcAllowed bool) (*core.UserAccount, error) {
	// Both flags travel in one update so a partial result can never land.
	update := map[string]interface{}{
		"sscrt_allowed": sscrtAllowed,
		"susdc_allowed": susdcAllowed,
	}
	if err := s.update(walletAddress, update); err != nil {
		return nil, fmt.Errorf("set allowance flags for %s: %w", walletAddress, err)
	}
	return s.Get(ctx, walletAddress)
}

func (s *SupabaseUserStore) update(walletAddress string, fields map[string]interface{}) error {
	var result []core.UserAccount
	_, err := s.client.From(usersTable).
		Update(fields, "", "").
		Eq("wallet_address", walletAddress).
		ExecuteTo(&result)
	return err
}

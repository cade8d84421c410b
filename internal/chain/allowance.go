package chain

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/aquatrade/backend/internal/core"
	"github.com/aquatrade/backend/internal/store"
)

// allowanceQuery is the SNIP-20 allowance view query document.
type allowanceQuery struct {
	Allowance allowanceQueryInner `json:"allowance"`
}

type allowanceQueryInner struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Key     string `json:"key"`
}

// allowanceResponse mirrors the SNIP-20 allowance view response. The amount
// is a decimal string; tokens omit it when the viewing key sees nothing.
type allowanceResponse struct {
	Allowance struct {
		Allowance *string `json:"allowance"`
	} `json:"allowance"`
}

// AllowanceResult is the parsed outcome of a single asset's allowance query.
// Defaulted marks an absent amount coerced to zero, so callers can tell
// "zero allowance" from "field missing from the response".
type AllowanceResult struct {
	Asset     string
	Amount    uint64
	Defaulted bool
}

// Granted reports whether the spender may move a positive amount.
func (r AllowanceResult) Granted() bool { return r.Amount > 0 }

// Verifier reconciles on-ledger spend allowances into the persisted account
// record. It holds the agent's own ledger address as the spender identity.
type Verifier struct {
	querier      ContractQuerier
	users        store.UserRepository
	agentAddress string
	logger       *log.Logger
}

func NewVerifier(querier ContractQuerier, users store.UserRepository, agentAddress string) *Verifier {
	return &Verifier{
		querier:      querier,
		users:        users,
		agentAddress: agentAddress,
		logger:       log.New(log.Writer(), "[Allowance] ", log.LstdFlags),
	}
}

// CheckAllowance queries both tracked assets and persists the two
// authorization booleans as a single account update. Any query failure
// aborts the whole check: nothing is persisted and the previously stored
// flags survive untouched.
func (v *Verifier) CheckAllowance(ctx context.Context, ownerID string) (*core.UserAccount, error) {
	user, err := v.users.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", ownerID, err)
	}
	if !user.HasViewingKeys() {
		return nil, &core.ConfigurationError{Reason: "viewing keys missing"}
	}

	sscrt, err := v.CheckAsset(ctx, AssetSSCRT, user.WalletAddress, user.SscrtKey)
	if err != nil {
		return nil, err
	}
	susdc, err := v.CheckAsset(ctx, AssetSUSDC, user.WalletAddress, user.SusdcKey)
	if err != nil {
		return nil, err
	}

	v.logger.Printf("Allowance check for %s: sSCRT=%v sUSDC=%v", ownerID, sscrt.Granted(), susdc.Granted())

	updated, err := v.users.SetAllowanceFlags(ctx, ownerID, sscrt.Granted(), susdc.Granted())
	if err != nil {
		return nil, fmt.Errorf("persist allowance flags for %s: %w", ownerID, err)
	}
	return updated, nil
}

// CheckAsset runs the allowance view query for one asset. An absent amount
// field parses to zero with the Defaulted marker set; a present but
// non-numeric amount is a malformed response and fails the query.
func (v *Verifier) CheckAsset(ctx context.Context, asset Asset, owner, viewingKey string) (AllowanceResult, error) {
	query := allowanceQuery{Allowance: allowanceQueryInner{
		Owner:   owner,
		Spender: v.agentAddress,
		Key:     viewingKey,
	}}

	var resp allowanceResponse
	if err := v.querier.QueryContract(ctx, asset.Address, asset.CodeHash, query, &resp); err != nil {
		return AllowanceResult{}, err
	}

	result := AllowanceResult{Asset: asset.Symbol}
	if resp.Allowance.Allowance == nil {
		result.Defaulted = true
		return result, nil
	}

	amount, err := strconv.ParseUint(*resp.Allowance.Allowance, 10, 64)
	if err != nil {
		return AllowanceResult{}, &ChainQueryError{Contract: asset.Address,
			Err: fmt.Errorf("malformed allowance amount %q: %w", *resp.Allowance.Allowance, err)}
	}
	result.Amount = amount
	return result, nil
}

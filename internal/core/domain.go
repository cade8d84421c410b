package core

// UserAccount is the persisted record for one wallet. The wallet address is
// the primary key; viewing keys are opaque secrets granting read access to
// the user's confidential balances. The allowance flags are only ever set by
// the allowance verifier, never directly from client input.
type UserAccount struct {
	WalletAddress string `json:"wallet_address"`
	SscrtKey      string `json:"sscrt_key,omitempty"`
	SusdcKey      string `json:"susdc_key,omitempty"`
	SscrtAllowed  bool   `json:"sscrt_allowed"`
	SusdcAllowed  bool   `json:"susdc_allowed"`
}

// HasViewingKeys reports whether both viewing keys are set. Allowance checks
// cannot run without them.
func (u *UserAccount) HasViewingKeys() bool {
	return u.SscrtKey != "" && u.SusdcKey != ""
}

// Message is a single role-tagged entry in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AuditRecord documents one completed trade, stored immutably on the bucket.
// Used for user-facing history, never for authorization decisions.
type AuditRecord struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Kind      string `json:"kind"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// MessageKindTradeExecution is the fixed kind written for completed trades.
const MessageKindTradeExecution = "TRADE_EXECUTION"

// TradeIntent is a fully specified contract-call payload that still requires
// the end-user's signature before it has any on-ledger effect. Computed fresh
// per request from fixed route constants plus the caller's identity; never
// persisted.
type TradeIntent struct {
	Sender          string      `json:"sender"`
	ContractAddress string      `json:"contract_address"`
	CodeHash        string      `json:"code_hash"`
	Msg             interface{} `json:"msg"`
}

// TradePreparation is the structured unit emitted when the trade trigger
// fires: the unsigned intent plus the human-readable confirmation the
// frontend shows before asking the wallet to sign.
type TradePreparation struct {
	Action    string      `json:"action"`
	TradeArgs TradeIntent `json:"trade_args"`
	Message   string      `json:"message"`
}

// ActionExecuteTrade tags a TradePreparation for the frontend.
const ActionExecuteTrade = "execute_trade"

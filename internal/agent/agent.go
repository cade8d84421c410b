// Package agent holds the conversation router and trade orchestrator: it
// decides per turn between forwarding the persuasive chat stream and
// emitting a structured trade-initiation payload, and it owns the
// best-effort audit trail for completed trades.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aquatrade/backend/internal/core"
	"github.com/aquatrade/backend/internal/llm"
	"github.com/aquatrade/backend/internal/store"
	"github.com/aquatrade/backend/internal/swap"
)

// personaPrompt is prepended to every streamed conversation turn.
const personaPrompt = "You are my $SCRT trading agent. You must convince me to let you trade USDC for SCRT."

// confirmationMessage wraps the unsigned trade payload for the frontend.
const confirmationMessage = "Excellent! Please approve the transaction in your wallet to execute the trade."

// apologyPrefix keeps chat-path failures in-band: the stream stays alive and
// the user sees text, not a transport error.
const apologyPrefix = "Sorry, I encountered an error: "

const auditWriteTimeout = 15 * time.Second

// exchangeSeparator joins the user message and the reply inside one cached
// chat-exchange record.
const exchangeSeparator = "\n---\n"

// KindChatExchange marks a cached conversation exchange, as opposed to a
// trade execution record.
const KindChatExchange = "CHAT_EXCHANGE"

// ConnState is the agent's connection lifecycle. Operations check it first
// and return ErrNotConnected instead of panicking on missing wiring.
type ConnState int

const (
	StateUninitialized ConnState = iota
	StateReady
)

// ErrNotConnected is returned by every operation before Connect succeeds.
var ErrNotConnected = errors.New("agent is not connected")

// AllowanceChecker refreshes the persisted spend-authorization flags.
type AllowanceChecker interface {
	CheckAllowance(ctx context.Context, ownerID string) (*core.UserAccount, error)
}

// AuditStore is the durable audit trail on the remote bucket.
type AuditStore interface {
	Store(ctx context.Context, ownerID, kind, payload string) error
	Retrieve(ctx context.Context, ownerID string) []core.AuditRecord
}

// Event is one unit emitted from a conversation turn: a streamed text
// fragment, or a single structured trade preparation (never both).
type Event struct {
	Text  string
	Trade *core.TradePreparation
}

// Agent ties the conversation router to the trade orchestrator.
type Agent struct {
	mu      sync.RWMutex
	state   ConnState
	address string

	users    store.UserRepository
	verifier AllowanceChecker
	audit    AuditStore
	llm      llm.StreamingClient
	history  store.HistoryCache

	metrics *Metrics
	logger  *log.Logger
}

// Options carries the collaborators. History and Metrics may be nil.
type Options struct {
	Users    store.UserRepository
	Verifier AllowanceChecker
	Audit    AuditStore
	LLM      llm.StreamingClient
	History  store.HistoryCache
	Metrics  *Metrics
}

func New(opts Options) *Agent {
	return &Agent{
		users:    opts.Users,
		verifier: opts.Verifier,
		audit:    opts.Audit,
		llm:      opts.LLM,
		history:  opts.History,
		metrics:  opts.Metrics,
		logger:   log.New(log.Writer(), "[Agent] ", log.LstdFlags),
	}
}

// Connect binds the agent to its ledger identity and marks it ready.
func (a *Agent) Connect(address string) error {
	if address == "" {
		return &core.ConfigurationError{Reason: "agent ledger address missing"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateReady {
		return nil
	}
	a.address = address
	a.state = StateReady
	a.logger.Printf("Agent connected, ledger address %s", address)
	return nil
}

func (a *Agent) ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == StateReady
}

// Address returns the agent's own ledger address (the allowance spender).
func (a *Agent) Address() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateReady {
		return "", ErrNotConnected
	}
	return a.address, nil
}

// GetOrCreateUser looks an account up and creates it when absent. A valid
// token with no record self-heals into a fresh account.
func (a *Agent) GetOrCreateUser(ctx context.Context, ownerID string) (*core.UserAccount, error) {
	return a.users.CreateIfAbsent(ctx, ownerID)
}

// SetViewingKeys stores both viewing keys on the account.
func (a *Agent) SetViewingKeys(ctx context.Context, ownerID, sscrtKey, susdcKey string) (*core.UserAccount, error) {
	return a.users.SetViewingKeys(ctx, ownerID, sscrtKey, susdcKey)
}

// CheckAllowance refreshes spend permission state. Strict: every failure
// surfaces to the caller unmodified.
func (a *Agent) CheckAllowance(ctx context.Context, ownerID string) (*core.UserAccount, error) {
	if !a.ready() {
		return nil, ErrNotConnected
	}

	account, err := a.verifier.CheckAllowance(ctx, ownerID)
	if err != nil {
		var confErr *core.ConfigurationError
		if errors.As(err, &confErr) {
			a.metrics.allowanceCheck("config_error")
		} else {
			a.metrics.allowanceCheck("chain_error")
		}
		return nil, err
	}
	a.metrics.allowanceCheck("ok")
	return account, nil
}

// PrepareTrade builds the structured unsigned-trade payload. Deterministic
// for a given owner; the wallet signs exactly what was previewed.
func (a *Agent) PrepareTrade(ownerID string) (*core.TradePreparation, error) {
	if !a.ready() {
		return nil, ErrNotConnected
	}

	intent := swap.BuildSwapMessage(swap.DefaultAmount, ownerID)
	a.metrics.tradePrepared()
	a.logger.Printf("Prepared trade payload for %s", ownerID)

	return &core.TradePreparation{
		Action:    core.ActionExecuteTrade,
		TradeArgs: intent,
		Message:   confirmationMessage,
	}, nil
}

// ChatStream routes one conversation turn. If the most recent user message
// is the trigger phrase the turn emits exactly one structured trade event
// and the language model is never called; otherwise the model's fragments
// are forwarded verbatim, in order, while a transcript accumulates for the
// history cache. Chat-path failures surface as apologetic in-band text.
func (a *Agent) ChatStream(ctx context.Context, ownerID string, messages []core.Message) (<-chan Event, error) {
	if !a.ready() {
		return nil, ErrNotConnected
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("empty message history")
	}

	lastUser := messages[len(messages)-1].Content
	out := make(chan Event)

	if isTradeTrigger(lastUser) {
		prep, err := a.PrepareTrade(ownerID)
		if err != nil {
			return nil, err
		}
		a.metrics.chatTurn("trade")
		go func() {
			defer close(out)
			select {
			case out <- Event{Trade: prep}:
			case <-ctx.Done():
			}
		}()
		return out, nil
	}

	withPersona := append([]core.Message{{Role: "system", Content: personaPrompt}}, messages...)

	go func() {
		defer close(out)

		stream, err := a.llm.ChatStream(ctx, withPersona)
		if err != nil {
			a.metrics.chatTurn("error")
			a.logger.Printf("Opening generation stream failed: %v", err)
			a.emitText(ctx, out, apologyPrefix+err.Error())
			return
		}

		var transcript string
		for chunk := range stream {
			if chunk.Err != nil {
				a.metrics.chatTurn("error")
				a.logger.Printf("Generation stream died: %v", chunk.Err)
				a.emitText(ctx, out, apologyPrefix+chunk.Err.Error())
				return
			}
			transcript += chunk.Content
			if !a.emitText(ctx, out, chunk.Content) {
				return
			}
		}

		a.metrics.chatTurn("stream")
		a.cacheExchange(ownerID, lastUser, transcript)
	}()

	return out, nil
}

func (a *Agent) emitText(ctx context.Context, out chan<- Event, text string) bool {
	select {
	case out <- Event{Text: text}:
		return true
	case <-ctx.Done():
		return false
	}
}

// cacheExchange keeps the completed exchange in the local history cache so
// conversation context survives the bucket's listing lag. Best-effort.
func (a *Agent) cacheExchange(ownerID, userMessage, reply string) {
	if a.history == nil || reply == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := core.AuditRecord{
		Owner:     ownerID,
		Kind:      KindChatExchange,
		Payload:   userMessage + exchangeSeparator + reply,
		Timestamp: time.Now().Unix(),
	}
	if err := a.history.Append(ctx, ownerID, record); err != nil {
		a.logger.Printf("History cache write failed for %s: %v", ownerID, err)
	}
}

// RecordTradeResult durably audits a completed trade. The write runs in the
// background with its own deadline: audit logging is best-effort relative to
// the trade itself and never fails the user-visible result.
func (a *Agent) RecordTradeResult(ownerID, result string) error {
	if !a.ready() {
		return ErrNotConnected
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()

		if err := a.audit.Store(ctx, ownerID, core.MessageKindTradeExecution, result); err != nil {
			a.metrics.auditWrite("failed")
			slog.Error("Audit trail unreachable", "owner", ownerID, "error", err)
			return
		}
		a.metrics.auditWrite("ok")
	}()

	if a.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		record := core.AuditRecord{
			Owner:     ownerID,
			Kind:      core.MessageKindTradeExecution,
			Payload:   result,
			Timestamp: time.Now().Unix(),
		}
		if err := a.history.Append(ctx, ownerID, record); err != nil {
			a.logger.Printf("History cache write failed for %s: %v", ownerID, err)
		}
	}
	return nil
}

// RecordMessages renders one history record as chat messages. A cached
// exchange splits back into its user/assistant pair; anything else (trade
// executions, records written before the separator existed) is a single
// assistant message.
func RecordMessages(record core.AuditRecord) []core.Message {
	if record.Kind == KindChatExchange {
		if userText, reply, ok := strings.Cut(record.Payload, exchangeSeparator); ok {
			return []core.Message{
				{Role: "user", Content: userText},
				{Role: "assistant", Content: reply},
			}
		}
	}
	return []core.Message{{Role: "assistant", Content: record.Payload}}
}

// History returns the owner's trade history, oldest first. The bucket is
// authoritative; the local cache covers records the bucket hasn't listed
// yet. "No history" is a benign state, never an error.
func (a *Agent) History(ctx context.Context, ownerID string) ([]core.AuditRecord, error) {
	if !a.ready() {
		return nil, ErrNotConnected
	}

	records := a.audit.Retrieve(ctx, ownerID)
	if len(records) > 0 || a.history == nil {
		return records, nil
	}

	cached, err := a.history.Recent(ctx, ownerID)
	if err != nil {
		a.logger.Printf("History cache read failed for %s: %v", ownerID, err)
		return records, nil
	}
	return cached, nil
}

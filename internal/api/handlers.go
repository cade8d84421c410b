package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aquatrade/backend/internal/agent"
	"github.com/aquatrade/backend/internal/auth"
	"github.com/aquatrade/backend/internal/core"
)

type loginRequest struct {
	WalletAddress string `json:"walletAddress"`
	Timestamp     int64  `json:"timestamp"`
	Message       string `json:"message"`
	Signature     string `json:"signature"`
}

// handleLogin verifies a signed, timestamped challenge and mints a token.
// The account is created on first contact.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WalletAddress == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "wallet address and signature are required")
		return
	}
	if err := auth.ValidateWalletAddress(req.WalletAddress); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := auth.CheckChallengeFresh(req.Timestamp, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	// The signed message must be exactly the canonical challenge for this
	// wallet and timestamp. Reconstructing it server-side stops a client
	// from submitting a signature over arbitrary text, or over a challenge
	// naming a different wallet.
	if req.Message != auth.ChallengeMessage(req.WalletAddress, req.Timestamp) {
		writeError(w, http.StatusBadRequest, "message does not match the login challenge")
		return
	}
	if err := auth.ValidateSignatureFormat(req.Signature); err != nil {
		writeError(w, http.StatusUnauthorized, "%v", err)
		return
	}

	user, err := s.agent.GetOrCreateUser(r.Context(), req.WalletAddress)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create account: %v", err)
		return
	}

	token, err := s.tokens.IssueToken(req.WalletAddress)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue token: %v", err)
		return
	}
	s.logger.Printf("Login for %s", req.WalletAddress)

	writeData(w, http.StatusOK, map[string]interface{}{
		"user":          user,
		"token":         token,
		"walletAddress": req.WalletAddress,
	})
}

func (s *Server) handleAgentAddress(w http.ResponseWriter, r *http.Request) {
	address, err := s.agent.Address()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "%v", err)
		return
	}
	writeData(w, http.StatusOK, address)
}

type keysRequest struct {
	SscrtKey string `json:"sscrtKey"`
	SusdcKey string `json:"susdcKey"`
}

func (s *Server) handleSetKeys(w http.ResponseWriter, r *http.Request) {
	wallet := walletFromContext(r.Context())

	var req keysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SscrtKey == "" || req.SusdcKey == "" {
		writeError(w, http.StatusBadRequest, "both viewing keys are required")
		return
	}

	user, err := s.agent.SetViewingKeys(r.Context(), wallet, req.SscrtKey, req.SusdcKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "set viewing keys: %v", err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	wallet := walletFromContext(r.Context())

	user, err := s.agent.GetOrCreateUser(r.Context(), wallet)
	if err != nil {
		writeError(w, http.StatusNotFound, "user could not be found or created")
		return
	}
	writeData(w, http.StatusOK, user)
}

func (s *Server) handleAuthorizeSpend(w http.ResponseWriter, r *http.Request) {
	wallet := walletFromContext(r.Context())

	user, err := s.agent.CheckAllowance(r.Context(), wallet)
	if err != nil {
		var confErr *core.ConfigurationError
		switch {
		case errors.As(err, &confErr):
			writeError(w, http.StatusBadRequest, "%v", confErr)
		case errors.Is(err, agent.ErrNotConnected):
			writeError(w, http.StatusServiceUnavailable, "%v", err)
		default:
			writeError(w, http.StatusBadGateway, "allowance check failed: %v", err)
		}
		return
	}
	writeData(w, http.StatusOK, user)
}

type chatRequest struct {
	Messages []core.Message `json:"messages"`
}

// handleChat routes one turn. A trigger turn answers with one JSON payload;
// everything else streams plain-text fragments as they arrive.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	wallet := walletFromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	events, err := s.agent.ChatStream(r.Context(), wallet, req.Messages)
	if err != nil {
		if errors.Is(err, agent.ErrNotConnected) {
			writeError(w, http.StatusServiceUnavailable, "%v", err)
			return
		}
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	headerSent := false

	for ev := range events {
		if ev.Trade != nil {
			// Structured unit: a single JSON document, not a stream.
			writeJSON(w, http.StatusOK, ev.Trade)
			return
		}
		if !headerSent {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			headerSent = true
		}
		if _, err := w.Write([]byte(ev.Text)); err != nil {
			return // client went away; ctx cancellation stops the agent
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	wallet := walletFromContext(r.Context())

	records, err := s.agent.History(r.Context(), wallet)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "%v", err)
		return
	}

	// Render records as role-tagged messages for the chat window; cached
	// exchanges expand back into their user/assistant pairs.
	messages := make([]core.Message, 0, len(records)*2)
	for _, record := range records {
		messages = append(messages, agent.RecordMessages(record)...)
	}
	writeData(w, http.StatusOK, messages)
}

type tradeResultRequest struct {
	Result string `json:"result"`
}

// handleTradeResult accepts the outcome reported after off-system signing
// and broadcasts; the audit write behind it is best-effort.
func (s *Server) handleTradeResult(w http.ResponseWriter, r *http.Request) {
	wallet := walletFromContext(r.Context())

	var req tradeResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Result == "" {
		writeError(w, http.StatusBadRequest, "result is required")
		return
	}

	if err := s.agent.RecordTradeResult(wallet, req.Result); err != nil {
		writeError(w, http.StatusServiceUnavailable, "%v", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "recorded"})
}

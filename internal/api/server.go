// Package api exposes the trading agent over REST/JSON for the web
// frontend. The routing layer stays thin: request plumbing, auth and rate
// limiting live here, everything else is delegated to the agent.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquatrade/backend/internal/agent"
	"github.com/aquatrade/backend/internal/auth"
)

// Server wires the HTTP surface to the agent.
type Server struct {
	agent   *agent.Agent
	tokens  *auth.TokenIssuer
	limiter *RateLimiter
	logger  *log.Logger
}

func NewServer(a *agent.Agent, tokens *auth.TokenIssuer) *Server {
	return &Server{
		agent:   a,
		tokens:  tokens,
		limiter: NewRateLimiter(RateLimitConfig{}),
		logger:  log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/login", s.handleLogin).Methods("POST", "OPTIONS")

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(s.authMiddleware, s.rateLimitMiddleware)
	authed.HandleFunc("/agent/address", s.handleAgentAddress).Methods("GET")
	authed.HandleFunc("/user/keys", s.handleSetKeys).Methods("POST")
	authed.HandleFunc("/user/info", s.handleUserInfo).Methods("GET")
	authed.HandleFunc("/user/authorize_spend", s.handleAuthorizeSpend).Methods("GET")
	authed.HandleFunc("/chat", s.handleChat).Methods("POST")
	authed.HandleFunc("/chat", s.handleChatHistory).Methods("GET")
	authed.HandleFunc("/chat/ws", s.handleChatWS).Methods("GET")
	authed.HandleFunc("/trade/result", s.handleTradeResult).Methods("POST")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{"data": data})
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

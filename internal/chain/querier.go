package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
)

// ContractQuerier executes a read-only view query against a contract and
// decodes the response document into result. Implementations never cause
// ledger-side state changes.
type ContractQuerier interface {
	QueryContract(ctx context.Context, contractAddr, codeHash string, query, result interface{}) error
}

// ChainQueryError wraps a failed or malformed ledger query. Callers treat it
// as fatal for the whole operation that issued the query.
type ChainQueryError struct {
	Contract string
	Err      error
}

func (e *ChainQueryError) Error() string {
	return fmt.Sprintf("chain query against %s failed: %v", e.Contract, e.Err)
}

func (e *ChainQueryError) Unwrap() error { return e.Err }

// LCDClient queries contracts through an LCD REST endpoint. It carries no
// state beyond the connection settings; deadlines are the caller's problem
// (pass them on the context).
type LCDClient struct {
	baseURL    string
	chainID    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewLCDClient(baseURL, chainID string) *LCDClient {
	return &LCDClient{
		baseURL:    baseURL,
		chainID:    chainID,
		httpClient: &http.Client{},
		logger:     log.New(log.Writer(), "[LCD] ", log.LstdFlags),
	}
}

// lcdQueryResponse is the envelope the LCD wraps smart-query results in.
type lcdQueryResponse struct {
	Data json.RawMessage `json:"data"`
}

// QueryContract runs a smart query: the query document is JSON-encoded,
// base64'd into the URL, and the response data is decoded into result.
func (c *LCDClient) QueryContract(ctx context.Context, contractAddr, codeHash string, query, result interface{}) error {
	body, err := json.Marshal(query)
	if err != nil {
		return &ChainQueryError{Contract: contractAddr, Err: fmt.Errorf("encode query: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/compute/v1beta1/query/%s?query=%s",
		c.baseURL, url.PathEscape(contractAddr),
		url.QueryEscape(base64.StdEncoding.EncodeToString(body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &ChainQueryError{Contract: contractAddr, Err: err}
	}
	if codeHash != "" {
		req.Header.Set("X-Contract-Code-Hash", codeHash)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ChainQueryError{Contract: contractAddr, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ChainQueryError{Contract: contractAddr, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Printf("Query against %s returned status %d", contractAddr, resp.StatusCode)
		return &ChainQueryError{Contract: contractAddr,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))}
	}

	// The LCD may wrap the result in a data envelope or return it bare.
	var envelope lcdQueryResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		raw = envelope.Data
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &ChainQueryError{Contract: contractAddr, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

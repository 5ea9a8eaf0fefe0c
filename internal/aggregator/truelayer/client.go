// Package truelayer talks to the backend that fronts the TrueLayer API.
package truelayer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"banklink/internal/aggregator"
	"banklink/internal/core"
)

const (
	pathAuth         = "/api/truelayer/auth"
	pathExchange     = "/api/truelayer/exchange"
	pathAccounts     = "/api/truelayer/accounts"
	pathTransactions = "/api/truelayer/transactions"
)

type (
	authRequest struct {
		State string `json:"state"`
		Nonce string `json:"nonce"`
	}

	authResponse struct {
		AuthURL string `json:"authUrl"`
		State   string `json:"state,omitempty"`
		Nonce   string `json:"nonce,omitempty"`
	}

	exchangeRequest struct {
		Code string `json:"code"`
	}

	exchangeResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token,omitempty"`
	}

	accountsRequest struct {
		AccessToken string `json:"accessToken"`
	}

	transactionsRequest struct {
		AccessToken string `json:"accessToken"`
		AccountID   string `json:"accountId"`
	}

	accountDTO struct {
		AccountID   string `json:"account_id"`
		DisplayName string `json:"display_name"`
		Currency    string `json:"currency"`
	}

	transactionDTO struct {
		TransactionID string          `json:"transaction_id"`
		Timestamp     string          `json:"timestamp"`
		Amount        decimal.Decimal `json:"amount"`
		Description   string          `json:"description"`
	}

	results[T any] struct {
		Results []T `json:"results"`
	}
)

// Client implements aggregator.AuthBackend and aggregator.DataSource.
type Client struct {
	api *aggregator.Client
}

func New(baseURL string, doer aggregator.HTTPDoer) *Client {
	return &Client{api: aggregator.NewClient(baseURL, doer)}
}

// AuthURL asks the backend for an authorization URL bound to state and nonce.
func (c *Client) AuthURL(ctx context.Context, state, nonce string) (aggregator.AuthURL, error) {
	resp, err := c.api.Do(ctx, http.MethodPost, pathAuth, authRequest{State: state, Nonce: nonce})
	if err != nil {
		return aggregator.AuthURL{}, aggregator.WrapBackendError(err, aggregator.MsgLinkInitiationFailed, aggregator.TextLinkInitiationFailed)
	}
	if !resp.OK() {
		return aggregator.AuthURL{}, failure(resp, aggregator.MsgLinkInitiationFailed, aggregator.TextLinkInitiationFailed)
	}

	var body authResponse
	if err := resp.Decode(&body); err != nil || strings.TrimSpace(body.AuthURL) == "" {
		return aggregator.AuthURL{}, aggregator.BackendError(aggregator.MsgLinkInitiationFailed, aggregator.TextLinkInitiationFailed, http.StatusBadGateway, nil)
	}
	return aggregator.AuthURL{URL: body.AuthURL, State: body.State, Nonce: body.Nonce}, nil
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (core.AuthTokens, error) {
	resp, err := c.api.Do(ctx, http.MethodPost, pathExchange, exchangeRequest{Code: code})
	if err != nil {
		return core.AuthTokens{}, aggregator.WrapBackendError(err, aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed)
	}
	if !resp.OK() {
		return core.AuthTokens{}, failure(resp, aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed)
	}

	var body exchangeResponse
	if err := resp.Decode(&body); err != nil {
		return core.AuthTokens{}, aggregator.WrapBackendError(err, aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed)
	}
	tokens := core.AuthTokens{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}
	if err := tokens.Validate(); err != nil {
		return core.AuthTokens{}, aggregator.BackendError(aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed, http.StatusBadGateway, nil)
	}
	return tokens, nil
}

// Accounts lists the accounts reachable with accessToken.
func (c *Client) Accounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	resp, err := c.api.Do(ctx, http.MethodPost, pathAccounts, accountsRequest{AccessToken: accessToken})
	if err != nil {
		return nil, aggregator.WrapBackendError(err, "Failed to fetch accounts", aggregator.TextBackendUnavailable)
	}
	if !resp.OK() {
		return nil, failure(resp, "Failed to fetch accounts", aggregator.TextBackendUnavailable)
	}

	var body results[accountDTO]
	if err := resp.Decode(&body); err != nil {
		return nil, aggregator.WrapBackendError(err, "Failed to fetch accounts", aggregator.TextBackendUnavailable)
	}
	accounts := make([]core.Account, 0, len(body.Results))
	for _, a := range body.Results {
		accounts = append(accounts, core.Account{ID: a.AccountID, Name: a.DisplayName, Currency: a.Currency})
	}
	return accounts, nil
}

// AccountTransactions lists the transactions of one account.
func (c *Client) AccountTransactions(ctx context.Context, accessToken, accountID string) ([]core.Transaction, error) {
	resp, err := c.api.Do(ctx, http.MethodPost, pathTransactions, transactionsRequest{AccessToken: accessToken, AccountID: accountID})
	if err != nil {
		return nil, aggregator.WrapBackendError(err, aggregator.MsgTransactionsFailed, aggregator.TextBackendUnavailable)
	}
	if !resp.OK() {
		return nil, failure(resp, aggregator.MsgTransactionsFailed, aggregator.TextBackendUnavailable)
	}

	var body results[transactionDTO]
	if err := resp.Decode(&body); err != nil {
		return nil, aggregator.WrapBackendError(err, aggregator.MsgTransactionsFailed, aggregator.TextBackendUnavailable)
	}

	txs := make([]core.Transaction, 0, len(body.Results))
	for _, t := range body.Results {
		ts, err := aggregator.ParseTimestamp(t.Timestamp)
		if err != nil {
			slog.WarnContext(ctx, "Skipping transaction with bad timestamp", "transaction_id", t.TransactionID, "error", err)
			continue
		}
		txs = append(txs, core.Transaction{
			ID:          t.TransactionID,
			Timestamp:   ts,
			Amount:      t.Amount,
			Description: t.Description,
			AccountID:   accountID,
		})
	}
	return txs, nil
}

// Transactions returns the first account's transactions. No accounts means
// no transactions.
func (c *Client) Transactions(ctx context.Context, tokens core.AuthTokens) ([]core.Transaction, error) {
	if err := tokens.Validate(); err != nil {
		return nil, fmt.Errorf("truelayer transactions: %w", err)
	}
	accounts, err := c.Accounts(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return c.AccountTransactions(ctx, tokens.AccessToken, accounts[0].ID)
}

// failure keeps the backend's own error text when there is one.
func failure(resp aggregator.Response, fallback, textCode string) error {
	msg := resp.ErrorField()
	if msg == "" {
		msg = fallback
	}
	return aggregator.BackendError(msg, textCode, resp.Status, map[string]any{"status": resp.Status})
}

package plaid

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"banklink/internal/aggregator"
	"banklink/internal/core"
)

const (
	pathCreateLinkToken     = "/create_link_token"
	pathExchangePublicToken = "/exchange_public_token"
	pathTransactions        = "/transactions"
)

type (
	linkTokenResponse struct {
		LinkToken string `json:"link_token"`
	}

	exchangeRequest struct {
		PublicToken string `json:"public_token"`
	}

	exchangeResponse struct {
		AccessToken string `json:"access_token"`
	}

	transactionDTO struct {
		TransactionID string          `json:"transaction_id"`
		AccountID     string          `json:"account_id"`
		Name          string          `json:"name"`
		Amount        decimal.Decimal `json:"amount"`
		Date          string          `json:"date"`
	}

	transactionsResponse struct {
		Transactions      []transactionDTO `json:"transactions"`
		TotalTransactions int              `json:"total_transactions"`
	}
)

// BackendClient reaches Plaid through the app's backend.
type BackendClient struct {
	api   *aggregator.Client
	retry aggregator.RetryPolicy
}

func NewBackendClient(baseURL string, doer aggregator.HTTPDoer, retry aggregator.RetryPolicy) *BackendClient {
	return &BackendClient{api: aggregator.NewClient(baseURL, doer), retry: retry}
}

func (c *BackendClient) CreateLinkToken(ctx context.Context) (string, error) {
	resp, err := c.api.Do(ctx, http.MethodPost, pathCreateLinkToken, struct{}{})
	if err != nil {
		return "", aggregator.WrapBackendError(err, aggregator.MsgLinkInitiationFailed, aggregator.TextLinkInitiationFailed)
	}
	if !resp.OK() {
		return "", c.failure(resp, aggregator.MsgLinkInitiationFailed, aggregator.TextLinkInitiationFailed)
	}
	var body linkTokenResponse
	if err := resp.Decode(&body); err != nil || body.LinkToken == "" {
		return "", aggregator.BackendError(aggregator.MsgLinkInitiationFailed, aggregator.TextLinkInitiationFailed, http.StatusBadGateway, nil)
	}
	return body.LinkToken, nil
}

func (c *BackendClient) ExchangePublicToken(ctx context.Context, publicToken string) (core.AuthTokens, error) {
	resp, err := c.api.Do(ctx, http.MethodPost, pathExchangePublicToken, exchangeRequest{PublicToken: publicToken})
	if err != nil {
		return core.AuthTokens{}, aggregator.WrapBackendError(err, aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed)
	}
	if !resp.OK() {
		return core.AuthTokens{}, c.failure(resp, aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed)
	}
	var body exchangeResponse
	if err := resp.Decode(&body); err != nil || body.AccessToken == "" {
		return core.AuthTokens{}, aggregator.BackendError(aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed, http.StatusBadGateway, nil)
	}
	return core.AuthTokens{AccessToken: body.AccessToken}, nil
}

// Transactions fetches the item's transactions, waiting out PRODUCT_NOT_READY.
func (c *BackendClient) Transactions(ctx context.Context, tokens core.AuthTokens) ([]core.Transaction, error) {
	if err := tokens.Validate(); err != nil {
		return nil, err
	}
	var out []core.Transaction
	err := c.retry.Do(ctx, IsProductNotReady, func(ctx context.Context) error {
		txs, err := c.fetchTransactions(ctx, tokens.AccessToken)
		if err == nil {
			out = txs
		}
		return err
	})
	return out, err
}

func (c *BackendClient) fetchTransactions(ctx context.Context, accessToken string) ([]core.Transaction, error) {
	resp, err := c.api.Do(ctx, http.MethodGet, pathTransactions+"?access_token="+url.QueryEscape(accessToken), nil)
	if err != nil {
		return nil, aggregator.WrapBackendError(err, aggregator.MsgTransactionsFailed, aggregator.TextBackendUnavailable)
	}
	// Plaid errors may arrive with any status, including 200.
	if apiErr, ok := parseAPIError(resp.Body); ok {
		return nil, toError(apiErr, resp.Status, aggregator.MsgTransactionsFailed)
	}
	if !resp.OK() {
		return nil, c.failure(resp, aggregator.MsgTransactionsFailed, aggregator.TextBackendUnavailable)
	}

	var body transactionsResponse
	if err := resp.Decode(&body); err != nil {
		return nil, aggregator.WrapBackendError(err, aggregator.MsgTransactionsFailed, aggregator.TextBackendUnavailable)
	}
	txs := make([]core.Transaction, 0, len(body.Transactions))
	for _, t := range body.Transactions {
		ts, err := aggregator.ParseTimestamp(t.Date)
		if err != nil {
			continue
		}
		txs = append(txs, core.Transaction{
			ID:          t.TransactionID,
			Timestamp:   ts,
			Amount:      t.Amount,
			Description: t.Name,
			AccountID:   t.AccountID,
		})
	}
	return txs, nil
}

func (c *BackendClient) failure(resp aggregator.Response, fallback, textCode string) error {
	if apiErr, ok := parseAPIError(resp.Body); ok {
		return toError(apiErr, resp.Status, fallback)
	}
	msg := resp.ErrorField()
	if msg == "" {
		msg = fallback
	}
	return aggregator.BackendError(msg, textCode, resp.Status, nil)
}

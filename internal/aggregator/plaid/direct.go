package plaid

import (
	"context"
	"fmt"
	"net/http"

	plaidsdk "github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"

	"banklink/internal/aggregator"
	"banklink/internal/core"
)

// DirectConfig holds the Plaid credentials used without an intermediate backend.
type DirectConfig struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	BaseURL     string // overrides Environment when set
	ClientName  string
	UserID      string
	HTTPClient  *http.Client
}

// Direct calls the Plaid API through the official SDK.
type Direct struct {
	api        *plaidsdk.APIClient
	clientName string
	userID     string
	retry      aggregator.RetryPolicy
}

func NewDirect(cfg DirectConfig, retry aggregator.RetryPolicy) (*Direct, error) {
	configuration := plaidsdk.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	if cfg.HTTPClient != nil {
		configuration.HTTPClient = cfg.HTTPClient
	}

	switch {
	case cfg.BaseURL != "":
		configuration.UseEnvironment(plaidsdk.Environment(cfg.BaseURL))
	case cfg.Environment == "sandbox", cfg.Environment == "":
		configuration.UseEnvironment(plaidsdk.Sandbox)
	case cfg.Environment == "production":
		configuration.UseEnvironment(plaidsdk.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %s", cfg.Environment)
	}

	name := cfg.ClientName
	if name == "" {
		name = "banklink"
	}
	user := cfg.UserID
	if user == "" {
		user = "banklink-user"
	}
	return &Direct{
		api:        plaidsdk.NewAPIClient(configuration),
		clientName: name,
		userID:     user,
		retry:      retry,
	}, nil
}

func (d *Direct) CreateLinkToken(ctx context.Context) (string, error) {
	request := plaidsdk.NewLinkTokenCreateRequest(
		d.clientName,
		"en",
		[]plaidsdk.CountryCode{plaidsdk.COUNTRYCODE_US},
	)
	request.SetUser(plaidsdk.LinkTokenCreateRequestUser{ClientUserId: d.userID})
	request.SetProducts([]plaidsdk.Products{plaidsdk.PRODUCTS_TRANSACTIONS})

	resp, _, err := d.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", sdkError(err, aggregator.MsgLinkInitiationFailed, aggregator.TextLinkInitiationFailed)
	}
	return resp.GetLinkToken(), nil
}

func (d *Direct) ExchangePublicToken(ctx context.Context, publicToken string) (core.AuthTokens, error) {
	request := plaidsdk.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := d.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return core.AuthTokens{}, sdkError(err, aggregator.MsgExchangeFailed, aggregator.TextExchangeFailed)
	}
	return core.AuthTokens{AccessToken: resp.GetAccessToken()}, nil
}

// Transactions pages through /transactions/sync, waiting out PRODUCT_NOT_READY.
func (d *Direct) Transactions(ctx context.Context, tokens core.AuthTokens) ([]core.Transaction, error) {
	if err := tokens.Validate(); err != nil {
		return nil, err
	}

	var out []core.Transaction
	err := d.retry.Do(ctx, IsProductNotReady, func(ctx context.Context) error {
		txs, err := d.sync(ctx, tokens.AccessToken)
		if err == nil {
			out = txs
		}
		return err
	})
	return out, err
}

func (d *Direct) sync(ctx context.Context, accessToken string) ([]core.Transaction, error) {
	var (
		out    []core.Transaction
		cursor string
	)
	for {
		request := plaidsdk.NewTransactionsSyncRequest(accessToken)
		if cursor != "" {
			request.SetCursor(cursor)
		}
		resp, _, err := d.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
		if err != nil {
			return nil, sdkError(err, aggregator.MsgTransactionsFailed, aggregator.TextBackendUnavailable)
		}

		for _, t := range resp.GetAdded() {
			ts, err := aggregator.ParseTimestamp(t.GetDate())
			if err != nil {
				continue
			}
			out = append(out, core.Transaction{
				ID:          t.GetTransactionId(),
				Timestamp:   ts,
				Amount:      decimal.NewFromFloat(t.GetAmount()),
				Description: t.GetName(),
				AccountID:   t.GetAccountId(),
			})
		}

		if !resp.GetHasMore() {
			return out, nil
		}
		cursor = resp.GetNextCursor()
	}
}

// sdkError converts an SDK failure, keeping Plaid's own error code and message.
func sdkError(err error, fallback, textCode string) error {
	if pe, perr := plaidsdk.ToPlaidError(err); perr == nil && pe.GetErrorCode() != "" {
		display := pe.GetDisplayMessage()
		return toError(APIError{
			ErrorType:      string(pe.GetErrorType()),
			ErrorCode:      pe.GetErrorCode(),
			ErrorMessage:   pe.GetErrorMessage(),
			DisplayMessage: &display,
		}, http.StatusBadRequest, fallback)
	}
	return aggregator.WrapBackendError(err, fallback, textCode)
}

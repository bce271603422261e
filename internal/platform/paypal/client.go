package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	sdk "github.com/plutov/paypal/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/metrics"
	"github.com/fatflowers/partypay/pkg/types"
)

const (
	headerRequestID          = "PayPal-Request-Id"
	headerPartnerAttribution = "PayPal-Partner-Attribution-Id"
)

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks . Gateway

// Gateway is the payment processor as seen by the payment flow.
type Gateway interface {
	AccessToken(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CreateMarketplaceOrder(ctx context.Context, req CreateMarketplaceOrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID, idempotencyKey string) (*Capture, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	RefundCapture(ctx context.Context, captureID string, amountCents int64, currency, idempotencyKey string) (*Refund, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error)
	ReleaseDelayedDisbursement(ctx context.Context, captureID, idempotencyKey string) (*DisbursementRelease, error)
	CreatePartnerReferral(ctx context.Context, seller SellerData) (*PartnerReferral, error)
	GetMerchantStatus(ctx context.Context, merchantID string) (*MerchantStatus, error)
	CheckSellerStatus(ctx context.Context, merchantID string) SellerStatus
	VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, body []byte) (bool, error)
}

type Options struct {
	Environment          types.PaypalEnvironment
	ClientID             string
	ClientSecret         string
	BaseURL              string
	PartnerAttributionID string
	PartnerMerchantID    string
	WebhookID            string
	BrandName            string
	Timeout              time.Duration
	// HTTPClient is used for both token and API requests; nil means a client with Timeout.
	HTTPClient *http.Client
}

// Client is the PayPal REST implementation of Gateway. Requests go through the
// plutov/paypal SDK; bearer tokens come from a client-credentials cache shared by all calls.
type Client struct {
	opts     Options
	baseURL  string
	http     *http.Client
	creds    *clientcredentials.Config
	credsErr error
	logger   *zap.SugaredLogger
	metrics  *metrics.Payments

	mu    sync.Mutex
	token *oauth2.Token
}

var _ Gateway = (*Client)(nil)

// New builds a client. Missing credentials do not fail construction so the service still
// boots; every call then returns ErrCredentialsMissing.
func New(opts Options, logger *zap.SugaredLogger, m *metrics.Payments) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = sdk.APIBaseSandBox
		if opts.Environment == types.PaypalEnvironmentLive {
			baseURL = sdk.APIBaseLive
		}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		opts:    opts,
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
		metrics: m,
	}
	if opts.ClientID == "" || opts.ClientSecret == "" {
		c.credsErr = ErrCredentialsMissing
		logger.Warnw("paypal_credentials_missing", "environment", opts.Environment)
		return c
	}
	c.creds = &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return c
}

// AccessToken returns a bearer token, fetching a new one only after the cached one expires.
// The fetch runs on ctx, so a cancelled request stops waiting for PayPal.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.credsErr != nil {
		return "", c.credsErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Valid() {
		return c.token.AccessToken, nil
	}

	tok, err := c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", &GatewayAuthError{StatusCode: re.Response.StatusCode, Body: string(re.Body)}
		}
		if IsTimeout(err) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: access token: %v", ErrGatewayTimeout, err)
		}
		return "", fmt.Errorf("paypal: access token: %w", err)
	}
	c.token = tok
	return tok.AccessToken, nil
}

// api returns an SDK client bound to the cached token. It is built per call, so concurrent
// calls never share SDK token state.
func (c *Client) api(ctx context.Context) (*sdk.Client, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	api, err := sdk.NewClient(c.opts.ClientID, c.opts.ClientSecret, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("paypal: %w", err)
	}
	api.SetHTTPClient(c.http)
	api.SetAccessToken(token)
	return api, nil
}

type request struct {
	op             string
	method         string
	path           string
	body           any
	idempotencyKey string
	// prefer asks PayPal to return the full resource representation
	prefer bool
}

// do sends one JSON call through the SDK with the PayPal request-id and partner headers the
// typed SDK helpers do not set, and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, r request, out any) error {
	return c.call(ctx, r.op, func(ctx context.Context, api *sdk.Client) error {
		req, err := api.NewRequest(ctx, r.method, c.baseURL+r.path, r.body)
		if err != nil {
			return fmt.Errorf("paypal %s: build request: %w", r.op, err)
		}
		if r.idempotencyKey != "" {
			req.Header.Set(headerRequestID, r.idempotencyKey)
		}
		if c.opts.PartnerAttributionID != "" {
			req.Header.Set(headerPartnerAttribution, c.opts.PartnerAttributionID)
		}
		if r.prefer {
			req.Header.Set("Prefer", "return=representation")
		}
		return api.SendWithAuth(req, out)
	})
}

// call runs fn under the client timeout, records metrics and maps SDK errors.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context, *sdk.Client) error) (err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultOK
		switch {
		case err == nil:
		case IsTimeout(err):
			result = metrics.ResultTimeout
		default:
			result = metrics.ResultError
		}
		c.metrics.ObserveGatewayCall(op, result, start)
		if err != nil {
			logctx.FromCtx(ctx, c.logger).Warnw("paypal_call_failed", "op", op, "err", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, api); err != nil {
		return mapError(ctx, op, err)
	}
	return nil
}

func mapError(ctx context.Context, op string, err error) error {
	var er *sdk.ErrorResponse
	if errors.As(err, &er) {
		gw := &GatewayError{Op: op, Name: er.Name, Message: er.Message, DebugID: er.DebugID}
		if er.Response != nil {
			gw.StatusCode = er.Response.StatusCode
			if gw.DebugID == "" {
				gw.DebugID = er.Response.Header.Get("Paypal-Debug-Id")
			}
		}
		for _, d := range er.Details {
			if d.Issue != "" {
				gw.Issues = append(gw.Issues, d.Issue)
			}
		}
		return gw
	}
	if IsTimeout(err) || ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", ErrGatewayTimeout, op, err)
	}
	return fmt.Errorf("paypal %s: %w", op, err)
}

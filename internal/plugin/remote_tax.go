package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/checkout-next/internal/models"

	"github.com/shopspring/decimal"
)

// RemoteTaxID 远程计税插件标识
const RemoteTaxID = "checkout.taxes.remote"

const defaultRemoteTimeout = 3 * time.Second

var (
	ErrRemoteRequestFailed   = errors.New("remote tax request failed")
	ErrRemoteResponseInvalid = errors.New("remote tax response invalid")
)

var remoteTaxSpecs = []OptionSpec{
	{Name: "endpoint", Kind: KindString, Required: true, Validate: validateEndpointOption},
	{Name: "api_key", Kind: KindSecret, Required: true},
	{Name: "timeout_ms", Kind: KindString, Default: "3000", Validate: validateTimeoutOption},
}

// RemoteTax 调用外部计税服务
type RemoteTax struct {
	endpoint string
	apiKey   Secret
	timeout  time.Duration
	client   *http.Client
}

// NewRemoteTaxFromOptions 由原始配置创建
func NewRemoteTaxFromOptions(raw map[string]interface{}) (Plugin, error) {
	options, err := ParseOptions(remoteTaxSpecs, raw)
	if err != nil {
		return nil, err
	}
	return NewRemoteTax(options, nil)
}

// NewRemoteTax 由已校验配置创建；client 为空时使用默认客户端
func NewRemoteTax(options Options, client *http.Client) (*RemoteTax, error) {
	endpoint := strings.TrimRight(options.String("endpoint"), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint", ErrConfigInvalid)
	}
	if options.Secret("api_key") == "" {
		return nil, fmt.Errorf("%w: api_key", ErrConfigInvalid)
	}
	timeout := defaultRemoteTimeout
	if raw := options.String("timeout_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("%w: timeout_ms", ErrConfigInvalid)
		}
		timeout = time.Duration(ms) * time.Millisecond
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteTax{
		endpoint: endpoint,
		apiKey:   options.Secret("api_key"),
		timeout:  timeout,
		client:   client,
	}, nil
}

// ID 插件标识
func (p *RemoteTax) ID() string {
	return RemoteTaxID
}

type remoteTaxRequest struct {
	Kind        string `json:"kind"`
	Checkout    string `json:"checkout_token"`
	Channel     string `json:"channel"`
	ReferenceID uint   `json:"reference_id"`
	Quantity    int    `json:"quantity,omitempty"`
	ChargeTaxes bool   `json:"charge_taxes"`
	Currency    string `json:"currency"`
	Net         string `json:"net"`
	Gross       string `json:"gross"`
	Country     string `json:"country"`
	PostalCode  string `json:"postal_code,omitempty"`
}

type remoteTaxResponse struct {
	Net      string `json:"net"`
	Gross    string `json:"gross"`
	Currency string `json:"currency"`
}

// CalculateLineTotal 远程计算行税额
func (p *RemoteTax) CalculateLineTotal(ctx context.Context, input LineTotalInput, previous models.TaxedPrice) (models.TaxedPrice, error) {
	req := remoteTaxRequest{
		Kind:        "line",
		Checkout:    input.CheckoutToken,
		Channel:     input.Channel,
		ReferenceID: input.LineID,
		Quantity:    input.Quantity,
		ChargeTaxes: input.ChargeTaxes,
	}
	return p.calculate(ctx, "/lines", req, input.Address, previous)
}

// CalculateShippingPrice 远程计算运费税额
func (p *RemoteTax) CalculateShippingPrice(ctx context.Context, input ShippingPriceInput, previous models.TaxedPrice) (models.TaxedPrice, error) {
	req := remoteTaxRequest{
		Kind:        "shipping",
		Checkout:    input.CheckoutToken,
		Channel:     input.Channel,
		ReferenceID: input.MethodID,
		ChargeTaxes: true,
	}
	return p.calculate(ctx, "/shipping", req, input.Address, previous)
}

func (p *RemoteTax) calculate(ctx context.Context, path string, req remoteTaxRequest, address *models.Address, previous models.TaxedPrice) (models.TaxedPrice, error) {
	req.Currency = previous.Currency()
	req.Net = previous.Net.Amount.String()
	req.Gross = previous.Gross.Amount.String()
	req.Country = address.CountryCode()
	if address != nil {
		req.PostalCode = address.PostalCode
	}
	body, err := json.Marshal(req)
	if err != nil {
		return models.TaxedPrice{}, Fatal(fmt.Errorf("%w: encode request", ErrRemoteRequestFailed))
	}

	respBody, status, err := p.doJSONRequest(ctx, path, body)
	if err != nil {
		return models.TaxedPrice{}, Retryable(err)
	}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return models.TaxedPrice{}, Retryable(fmt.Errorf("%w: status %d", ErrRemoteRequestFailed, status))
	}
	if status < 200 || status >= 300 {
		return models.TaxedPrice{}, Fatal(fmt.Errorf("%w: status %d", ErrRemoteRequestFailed, status))
	}
	return parseRemoteTaxResponse(respBody, previous.Currency())
}

func parseRemoteTaxResponse(body []byte, currency string) (models.TaxedPrice, error) {
	var resp remoteTaxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.TaxedPrice{}, Fatal(fmt.Errorf("%w: decode body", ErrRemoteResponseInvalid))
	}
	if resp.Currency != "" && models.NormalizeCurrency(resp.Currency) != currency {
		return models.TaxedPrice{}, Fatal(fmt.Errorf("%w: currency %s", ErrRemoteResponseInvalid, resp.Currency))
	}
	net, err := decimal.NewFromString(strings.TrimSpace(resp.Net))
	if err != nil {
		return models.TaxedPrice{}, Fatal(fmt.Errorf("%w: net", ErrRemoteResponseInvalid))
	}
	gross, err := decimal.NewFromString(strings.TrimSpace(resp.Gross))
	if err != nil {
		return models.TaxedPrice{}, Fatal(fmt.Errorf("%w: gross", ErrRemoteResponseInvalid))
	}
	if net.IsNegative() || gross.IsNegative() {
		return models.TaxedPrice{}, Fatal(fmt.Errorf("%w: negative amount", ErrRemoteResponseInvalid))
	}
	return models.NewTaxedPrice(models.NewPrice(net, currency), models.NewPrice(gross, currency)), nil
}

func (p *RemoteTax) doJSONRequest(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := p.withDefaultTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRemoteRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey.Reveal())

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("%w: %w", ErrRemoteRequestFailed, context.DeadlineExceeded)
		}
		return nil, 0, fmt.Errorf("%w: http request failed", ErrRemoteRequestFailed)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrRemoteRequestFailed)
	}
	return respBody, resp.StatusCode, nil
}

func (p *RemoteTax) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

func validateEndpointOption(option Option) error {
	value, _ := option.AsString()
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" {
		return errors.New("endpoint must be an absolute url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("endpoint scheme must be http or https")
	}
	return nil
}

func validateTimeoutOption(option Option) error {
	value, _ := option.AsString()
	ms, err := strconv.Atoi(value)
	if err != nil || ms <= 0 {
		return errors.New("timeout_ms must be a positive integer")
	}
	return nil
}

// Package revolut is the Open Banking PaymentVerifier adapter: consent
// creation, JWS-signed domestic-payment initiation, authorization-token
// polling, and payment-detail verification against a proxied Revolut
// host.
package revolut

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/signer"
	"github.com/rampforge/agent/store"
	"github.com/shopspring/decimal"
)

// Config carries the Revolut Open Banking app identity: the sandbox/live
// API host, the proxy host fronting the token and consent endpoints, the
// JWS signing key and its key id, and the transport access number (tan)
// required on signed-data requests.
type Config struct {
	APIBaseURL string
	ProxyURL   string
	ClientID   string
	KID        string
	TAN        string
	PrivateKey *rsa.PrivateKey
}

// Client is C9's Provider-B adapter. It exposes both the parts
// OrderManager's HTTP surface needs directly (consent, authorization URL)
// and the Verifier interface used once a payment_id exists.
type Client struct {
	cfg  Config
	http *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// ResetToken drops the cached Open Banking access token, forcing the next
// call to accessToken to re-fetch it from the proxy. Called on config
// upgrade, per spec §6's "access tokens are always cleared".
func (c *Client) ResetToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}

// accessToken returns the proxy-cached Open Banking access token,
// refreshing it from the proxy's /revolut/token endpoint when expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProxyURL+"/revolut/token", nil)
	if err != nil {
		return "", common.NewSystemError(common.ErrInternalError, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", common.NewHttpRequestError(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.NewSystemError(common.ErrInternalError, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return "", common.NewHttpRequestError(int64(resp.StatusCode), string(body))
	}

	var parsed accessTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", common.NewSystemError(common.ErrParseError, err.Error())
	}

	c.token = parsed.AccessToken
	c.expiry = time.Unix(parsed.ExpiresAt, 0)
	return c.token, nil
}

func (c *Client) sign(payload []byte) (string, error) {
	return signer.CreateJWS(payload, c.cfg.PrivateKey, c.cfg.KID, c.cfg.TAN)
}

type consentIDResponse struct {
	ConsentID string `json:"ConsentId"`
}

type consentDataResponse struct {
	Data consentIDResponse `json:"Data"`
}

type apiErrorResponse struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// CreateAccountAccessConsent POSTs /domestic-payment-consents with a
// JWS-signed body and returns the resulting ConsentId, per spec §4.9's
// consent-creation step.
func (c *Client) CreateAccountAccessConsent(ctx context.Context, amount decimal.Decimal, currency, debtorScheme, debtorID, creditorScheme, creditorID, creditorName string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := domesticPaymentBody(nil, amount, currency, debtorScheme, debtorID, creditorScheme, creditorID, creditorName)
	jws, err := c.sign(payload)
	if err != nil {
		return "", err
	}

	resp, err := c.doSignedPost(ctx, "/domestic-payment-consents", payload, token, jws)
	if err != nil {
		return "", err
	}

	var data consentDataResponse
	if err := json.Unmarshal(resp, &data); err == nil && data.Data.ConsentID != "" {
		return data.Data.ConsentID, nil
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(resp, &apiErr); err == nil && apiErr.Code != "" {
		return "", common.NewSystemError(common.ErrParseError, fmt.Sprintf("API Error: %s - %s", apiErr.Code, apiErr.Message))
	}
	return "", common.NewSystemError(common.ErrParseError, "unknown response format")
}

// jwtClaims mirrors the authorization-request claims object signed when
// building the authorization URL.
type jwtClaims struct {
	ResponseType string `json:"response_type"`
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope"`
	Claims       struct {
		IDToken struct {
			OpenbankingIntentID struct {
				Value string `json:"value"`
			} `json:"openbanking_intent_id"`
		} `json:"id_token"`
	} `json:"claims"`
}

// AuthorizationURL builds the signed authorization-code URL the onramper
// is redirected to in order to grant account access for consentID.
func (c *Client) AuthorizationURL(consentID string) (string, error) {
	redirectURI := c.cfg.ProxyURL + "/revolut/exchange"

	var claims jwtClaims
	claims.ResponseType = "code id_token"
	claims.ClientID = c.cfg.ClientID
	claims.RedirectURI = redirectURI
	claims.Scope = "payments"
	claims.Claims.IDToken.OpenbankingIntentID.Value = consentID

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", common.NewSystemError(common.ErrParseError, err.Error())
	}

	jws, err := signer.CreateJWS(payload, c.cfg.PrivateKey, c.cfg.KID, "")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"%s/ui/index.html?response_type=code%%20id_token&scope=payments&redirect_uri=%s&client_id=%s&request=%s&state=%s",
		c.cfg.APIBaseURL,
		url.QueryEscape(redirectURI),
		url.QueryEscape(c.cfg.ClientID),
		url.QueryEscape(jws),
		url.QueryEscape(consentID),
	), nil
}

// domesticPaymentInitResponse carries the DomesticPaymentId returned by
// POST /domestic-payments.
type domesticPaymentInitResponse struct {
	Data struct {
		DomesticPaymentID string `json:"DomesticPaymentId"`
	} `json:"Data"`
}

// InitiateDomesticPayment POSTs /domestic-payments against consentID using
// accessToken, returning the resulting DomesticPaymentId to be stored as
// the order's payment_id.
func (c *Client) InitiateDomesticPayment(ctx context.Context, consentID, accessToken string, amount decimal.Decimal, currency, debtorScheme, debtorID, creditorScheme, creditorID, creditorName string) (string, error) {
	payload := domesticPaymentBody(&consentID, amount, currency, debtorScheme, debtorID, creditorScheme, creditorID, creditorName)
	jws, err := c.sign(payload)
	if err != nil {
		return "", err
	}

	resp, err := c.doSignedPost(ctx, "/domestic-payments", payload, accessToken, jws)
	if err != nil {
		return "", err
	}

	var parsed domesticPaymentInitResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return "", common.NewSystemError(common.ErrParseError, err.Error())
	}
	return parsed.Data.DomesticPaymentID, nil
}

// paymentAccessToken fetches the per-ConsentId access token the proxy
// records once the onramper completes authorization.
func (c *Client) paymentAccessToken(ctx context.Context, consentID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/revolut/payment_token?consent_id=%s", c.cfg.ProxyURL, url.QueryEscape(consentID)), nil)
	if err != nil {
		return "", common.NewSystemError(common.ErrInternalError, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", common.NewHttpRequestError(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.NewSystemError(common.ErrInternalError, err.Error())
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", common.NewHttpRequestError(404, "no token found for the given ConsentId")
	}
	if resp.StatusCode != http.StatusOK {
		return "", common.NewHttpRequestError(int64(resp.StatusCode), string(body))
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", common.NewSystemError(common.ErrParseError, err.Error())
	}
	token, ok := parsed["access_token"].(string)
	if !ok || token == "" {
		return "", common.NewOrderError(common.ErrMissingAccessToken)
	}
	return token, nil
}

// WaitForAccessToken polls the proxy for consentID's access token every
// interval, up to maxAttempts times. On success it initiates the
// domestic payment and returns the resulting payment id; the caller is
// responsible for recording it on the order and calling Verify. On
// exhaustion it returns TransactionTimeout, leaving the order Locked with
// no payment_id so it can be retried or auto-unlocked by the lock-expiry
// timer, per spec §4.9 and §5's cancellation notes.
func (c *Client) WaitForAccessToken(ctx context.Context, order store.LockedOrder, maxAttempts int, interval time.Duration) (string, error) {
	provider := order.OnramperProvider
	if provider.Kind != common.ProviderRevolut || provider.RevolutName == "" {
		return "", common.NewOrderError(common.ErrInvalidOnramperProvider)
	}
	if order.Consent == nil {
		return "", common.NewOrderError(common.ErrInvalidOnramperProvider)
	}
	consentID := order.Consent.ID

	// Must match Verify's expected settled amount (fiat + offramper fee),
	// or a real Revolut host echoing back the initiated amount fails its
	// own verification.
	amount := decimal.New(int64(order.Base.FiatAmount+order.Base.OfframperFee), -2)
	currency := order.Base.CurrencySymbol
	scheme := provider.RevolutScheme
	id := provider.RevolutID
	name := provider.RevolutName

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := c.paymentAccessToken(ctx, consentID)
		if err == nil {
			return c.InitiateDomesticPayment(ctx, consentID, token, amount, currency, scheme, id, scheme, id, name)
		}
		if attempt+1 >= maxAttempts {
			return "", common.NewBlockchainError(common.ErrTransactionTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
	return "", common.NewBlockchainError(common.ErrTransactionTimeout)
}

// paymentDetailsResponse mirrors PaymentDetailsResponse from the Rust
// outcall, trimmed to the fields Verify checks.
type paymentDetailsResponse struct {
	Data struct {
		Status      string `json:"Status"`
		Initiation  struct {
			InstructedAmount struct {
				Amount   string `json:"Amount"`
				Currency string `json:"Currency"`
			} `json:"InstructedAmount"`
			CreditorAccount struct {
				SchemeName     string `json:"SchemeName"`
				Identification string `json:"Identification"`
			} `json:"CreditorAccount"`
		} `json:"Initiation"`
	} `json:"Data"`
}

// Verify fetches /domestic-payments/{id} and checks status, amount, and
// creditor against the Locked order, per spec §4.9's verification step.
func (c *Client) Verify(ctx context.Context, order store.LockedOrder) error {
	if order.PaymentID == nil {
		return common.NewOrderError(common.ErrMissingAccessToken)
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/domestic-payments/%s", c.cfg.APIBaseURL, *order.PaymentID), nil)
	if err != nil {
		return common.NewSystemError(common.ErrInternalError, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-fapi-financial-id", "001580000103UAvAAM")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return common.NewHttpRequestError(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.NewSystemError(common.ErrInternalError, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return common.NewHttpRequestError(int64(resp.StatusCode), string(body))
	}

	var parsed paymentDetailsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return common.NewSystemError(common.ErrParseError, err.Error())
	}

	if parsed.Data.Status != "AcceptedSettlementCompleted" && parsed.Data.Status != "AcceptedCreditSettlementCompleted" {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}
	if !strings.EqualFold(parsed.Data.Initiation.InstructedAmount.Currency, order.Base.CurrencySymbol) {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}

	offramperProvider, ok := order.Base.OfframperProviders.Get(common.ProviderRevolut)
	if !ok {
		return common.NewOrderError(common.ErrInvalidOfframperProvider)
	}
	if parsed.Data.Initiation.CreditorAccount.Identification != offramperProvider.RevolutID {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}

	settled, err := decimal.NewFromString(parsed.Data.Initiation.InstructedAmount.Amount)
	if err != nil {
		return common.NewSystemError(common.ErrParseFloatError, err.Error())
	}
	expectedCents := order.Base.FiatAmount + order.Base.OfframperFee
	expected := decimal.New(int64(expectedCents), -2)
	if settled.Sub(expected).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}
	return nil
}

func (c *Client) doSignedPost(ctx context.Context, path string, payload []byte, token, jws string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, common.NewSystemError(common.ErrInternalError, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-fapi-financial-id", "001580000103UAvAAM")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-idempotency-key", strconv.FormatInt(time.Now().UnixNano(), 10))
	req.Header.Set("x-jws-signature", jws)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.NewHttpRequestError(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewSystemError(common.ErrInternalError, err.Error())
	}
	return body, nil
}

// domesticPaymentBody builds the OBIE domestic-payment(-consent) request
// body shared by consent creation and payment initiation; consentID is
// nil for the former.
func domesticPaymentBody(consentID *string, amount decimal.Decimal, currency, debtorScheme, debtorID, creditorScheme, creditorID, creditorName string) []byte {
	data := map[string]interface{}{
		"InstructionIdentification": "ID412",
		"EndToEndIdentification":    "E2E123",
		"InstructedAmount": map[string]string{
			"Amount":   amount.StringFixed(2),
			"Currency": currency,
		},
		"DebtorAccount": map[string]string{
			"SchemeName":     debtorScheme,
			"Identification": debtorID,
		},
		"CreditorAccount": map[string]string{
			"SchemeName":     creditorScheme,
			"Identification": creditorID,
			"Name":           creditorName,
		},
	}

	outer := map[string]interface{}{
		"Risk": map[string]string{"PaymentContextCode": "PartyToParty"},
	}
	if consentID != nil {
		outer["Data"] = map[string]interface{}{
			"ConsentId":  *consentID,
			"Initiation": data,
		}
	} else {
		outer["Data"] = map[string]interface{}{
			"Initiation": data,
		}
	}

	body, _ := json.Marshal(outer)
	return body
}

// Package paypal is the bearer-OAuth PaymentVerifier adapter: token
// caching over oauth2/clientcredentials and capture-order lookup against
// a proxied PayPal host.
package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenLifetime is PayPal's fixed sandbox token lifetime; the verifier
// computes its own expiry from this constant rather than trusting the
// response's expires_in field, per the captured-order flow's fixed
// 9-hour cache window.
const tokenLifetime = 32400 * time.Second

// amountEpsilon bounds the acceptable drift between the capture's reported
// value and the order's computed price + fee, absorbing currency rounding.
var amountEpsilon = decimal.NewFromFloat(0.01)

// Config carries the PayPal app credentials and the proxied API host
// captures are looked up against (a sandbox or live base URL).
type Config struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string // e.g. https://api-m.sandbox.paypal.com
	TokenURL     string // e.g. https://api-m.sandbox.paypal.com/v1/oauth2/token
}

// Verifier is C9's Provider-A adapter.
type Verifier struct {
	cfg    Config
	http   *http.Client
	store  *store.Store
	oauth  *clientcredentials.Config
	mu     sync.Mutex
	token  string
	expiry time.Time
}

func New(cfg Config, httpClient *http.Client, st *store.Store) *Verifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Verifier{
		cfg:   cfg,
		http:  httpClient,
		store: st,
		oauth: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		},
	}
}

// ResetToken drops the cached bearer token, forcing the next call to
// accessToken to re-authenticate. Called on config upgrade, per spec §6's
// "access tokens are always cleared".
func (v *Verifier) ResetToken() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.token = ""
	v.expiry = time.Time{}
}

// accessToken returns a cached bearer token, refreshing it via the
// client-credentials grant when expired.
func (v *Verifier) accessToken(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.token != "" && time.Now().Before(v.expiry) {
		return v.token, nil
	}

	token, err := v.oauth.Token(ctx)
	if err != nil {
		return "", common.NewHttpRequestError(0, err.Error())
	}

	v.token = token.AccessToken
	v.expiry = time.Now().Add(tokenLifetime)
	return v.token, nil
}

// captureDetails mirrors PayPalCaptureDetails in the Rust outcall.
type captureDetails struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
	Payee struct {
		EmailAddress string `json:"email_address"`
	} `json:"payee"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

func (v *Verifier) fetchCapture(ctx context.Context, captureID string) (*captureDetails, error) {
	token, err := v.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/payments/captures/%s", v.cfg.APIBaseURL, captureID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, common.NewSystemError(common.ErrInternalError, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, common.NewHttpRequestError(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewSystemError(common.ErrInternalError, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, common.NewHttpRequestError(int64(resp.StatusCode), string(body))
	}

	var details captureDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, common.NewSystemError(common.ErrParseError, err.Error())
	}
	return &details, nil
}

// Verify looks up the capture recorded as order.PaymentID and checks its
// status, amount, currency, and payee against the Locked order, per spec
// §4.9's Provider-A contract. A successfully matched capture id is marked
// processed so a duplicate submission is rejected.
func (v *Verifier) Verify(ctx context.Context, order store.LockedOrder) error {
	if order.PaymentID == nil {
		return common.NewOrderError(common.ErrMissingAccessToken)
	}
	captureID := *order.PaymentID

	offramperProvider, ok := order.Base.OfframperProviders.Get(common.ProviderPayPal)
	if !ok {
		return common.NewOrderError(common.ErrInvalidOfframperProvider)
	}

	details, err := v.fetchCapture(ctx, captureID)
	if err != nil {
		return err
	}

	if details.Status != "COMPLETED" {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}
	if !strings.EqualFold(details.Amount.CurrencyCode, order.Base.CurrencySymbol) {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}
	if details.Payee.EmailAddress != offramperProvider.PayPalID {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}

	settled, err := decimal.NewFromString(details.Amount.Value)
	if err != nil {
		return common.NewSystemError(common.ErrParseFloatError, err.Error())
	}
	expectedCents := order.Base.FiatAmount + order.Base.OfframperFee
	expected := decimal.New(int64(expectedCents), -2)
	if settled.Sub(expected).Abs().GreaterThan(amountEpsilon) {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}

	hash := captureHash(captureID)
	if v.store.IsTxHashProcessed(hash) {
		return common.NewOrderError(common.ErrPaymentVerificationFailed)
	}
	if err := v.store.MarkTxHashProcessed(hash); err != nil {
		return err
	}
	return nil
}

// captureHash derives the ProcessedTxHashes dedupe key for a capture id.
// A plain prefix is enough since capture ids are already globally unique
// strings issued by PayPal; no need to actually hash them.
func captureHash(captureID string) string {
	return "paypal:" + captureID
}

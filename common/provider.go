package common

import "math/big"

// PaymentProviderKind identifies a payment rail without carrying its
// credentials, so it can key a set and appear on errors.
type PaymentProviderKind int

const (
	ProviderPayPal PaymentProviderKind = iota
	ProviderRevolut
)

func (k PaymentProviderKind) String() string {
	switch k {
	case ProviderPayPal:
		return "paypal"
	case ProviderRevolut:
		return "revolut"
	default:
		return "unknown"
	}
}

// PaymentProvider is a user's configured fiat rail. Equality, and therefore
// set membership, is by Kind alone — a user has at most one PayPal and one
// Revolut provider at a time, and registering a new one overwrites the old.
type PaymentProvider struct {
	Kind PaymentProviderKind

	// PayPal
	PayPalID string

	// Revolut
	RevolutScheme string
	RevolutID     string
	RevolutName   string // optional
}

func NewPayPalProvider(id string) PaymentProvider {
	return PaymentProvider{Kind: ProviderPayPal, PayPalID: id}
}

func NewRevolutProvider(scheme, id, name string) PaymentProvider {
	return PaymentProvider{Kind: ProviderRevolut, RevolutScheme: scheme, RevolutID: id, RevolutName: name}
}

// Validate rejects providers with missing required fields, mirroring
// PaymentProvider::validate in the original canister.
func (p PaymentProvider) Validate() error {
	switch p.Kind {
	case ProviderPayPal:
		if p.PayPalID == "" {
			return NewSystemError(ErrInvalidInput, "paypal id is empty")
		}
		return nil
	case ProviderRevolut:
		if p.RevolutScheme == "" || p.RevolutID == "" {
			return NewSystemError(ErrInvalidInput, "revolut details are empty")
		}
		return nil
	default:
		return NewSystemError(ErrInvalidInput, "unknown payment provider kind")
	}
}

// PaymentProviderSet is a replace-on-reinsert-per-kind collection: at most
// one entry per PaymentProviderKind, matching the HashSet<PaymentProvider>
// semantics in model/types/user.rs where PartialEq compares only the kind.
type PaymentProviderSet struct {
	byKind map[PaymentProviderKind]PaymentProvider
}

func NewPaymentProviderSet() *PaymentProviderSet {
	return &PaymentProviderSet{byKind: make(map[PaymentProviderKind]PaymentProvider)}
}

// Put inserts p, replacing any existing provider of the same kind.
func (s *PaymentProviderSet) Put(p PaymentProvider) {
	if s.byKind == nil {
		s.byKind = make(map[PaymentProviderKind]PaymentProvider)
	}
	s.byKind[p.Kind] = p
}

func (s *PaymentProviderSet) Get(kind PaymentProviderKind) (PaymentProvider, bool) {
	p, ok := s.byKind[kind]
	return p, ok
}

func (s *PaymentProviderSet) Contains(kind PaymentProviderKind) bool {
	_, ok := s.byKind[kind]
	return ok
}

func (s *PaymentProviderSet) Remove(kind PaymentProviderKind) {
	delete(s.byKind, kind)
}

// List returns the set's providers in no particular order.
func (s *PaymentProviderSet) List() []PaymentProvider {
	out := make([]PaymentProvider, 0, len(s.byKind))
	for _, p := range s.byKind {
		out = append(out, p)
	}
	return out
}

// CalculateFees splits the offramper's fiat fee and the admin's crypto fee
// off a settled amount, per OFFRAMPER_FIAT_FEE_DENOM / ADMIN_CRYPTO_FEE_DENOM
// (model/types/orders/fees.rs): 2.5% fiat, 0.5% crypto. cryptoAmount is a
// wei-denominated *big.Int (the original's u128) since any 18-decimal
// ERC-20 amount routinely exceeds a uint64.
func CalculateFees(fiatAmount uint64, cryptoAmount *big.Int) (offramperFee uint64, adminFee *big.Int) {
	const offramperFiatFeeDenom = 40
	const adminCryptoFeeDenom = 200
	return fiatAmount / offramperFiatFeeDenom, new(big.Int).Div(cryptoAmount, big.NewInt(adminCryptoFeeDenom))
}

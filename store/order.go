package store

import (
	"math/big"
	"time"

	"github.com/rampforge/agent/common"
)

// MaxOrderEncodedSize bounds a single Order record (MAX_ORDER_SIZE upstream).
const MaxOrderEncodedSize = 8000

// Crypto describes the on-chain leg of an order: which chain, which token
// (nil means the chain's native asset), and the settled amount/fee in the
// asset's smallest unit.
type Crypto struct {
	Blockchain common.Blockchain
	Token      *string // contract address for EVM ERC-20s, nil for native
	Amount     *big.Int
	Fee        *big.Int
}

// Order is the offramper-authored half of a trade, present from creation
// through every later state.
type Order struct {
	ID                 uint64
	OfframperUserID    uint64
	CreatedAt          time.Time
	FiatAmount         uint64
	OfframperFee       uint64
	CurrencySymbol     string
	OfframperProviders *common.PaymentProviderSet
	Crypto             Crypto
	OfframperAddress   common.TransactionAddress
}

// NewOrder validates the offramper address against the target chain and
// computes fees, mirroring Order::new.
func NewOrder(
	id uint64,
	offramperUserID uint64,
	fiatAmount uint64,
	currencySymbol string,
	providers *common.PaymentProviderSet,
	blockchain common.Blockchain,
	token *string,
	cryptoAmount *big.Int,
	offramperAddress common.TransactionAddress,
) (*Order, error) {
	if err := offramperAddress.Validate(); err != nil {
		return nil, err
	}
	if !offramperAddress.Type.MatchesBlockchain(blockchain) {
		return nil, common.NewSystemError(common.ErrInvalidInput, "address type does not match blockchain type")
	}

	offramperFee, cryptoFee := common.CalculateFees(fiatAmount, cryptoAmount)

	return &Order{
		ID:                 id,
		OfframperUserID:    offramperUserID,
		CreatedAt:          time.Now(),
		FiatAmount:         fiatAmount,
		OfframperFee:       offramperFee,
		CurrencySymbol:     currencySymbol,
		OfframperProviders: providers,
		Crypto: Crypto{
			Blockchain: blockchain,
			Token:      token,
			Amount:     new(big.Int).Set(cryptoAmount),
			Fee:        cryptoFee,
		},
		OfframperAddress: offramperAddress,
	}, nil
}

// RevolutConsent is carried on a LockedOrder whenever the onramper's chosen
// rail is Open Banking; it is the account-access grant the consent flow
// produced at lock time.
type RevolutConsent struct {
	ID  string
	URL string
}

// LockedOrder is an Order an onramper has committed to fulfil.
type LockedOrder struct {
	Base             Order
	OnramperUserID   uint64
	OnramperProvider common.PaymentProvider
	OnramperAddress  common.TransactionAddress
	Consent          *RevolutConsent
	PaymentDone      bool
	PaymentID        *string
	Uncommitted      bool
	LockedAt         time.Time
}

// Lock transitions a Created order into Locked, re-checking the onramper's
// address kind against the order's chain.
func (o Order) Lock(
	onramperUserID uint64,
	onramperProvider common.PaymentProvider,
	onramperAddress common.TransactionAddress,
	consent *RevolutConsent,
) (*LockedOrder, error) {
	if !onramperAddress.Type.MatchesBlockchain(o.Crypto.Blockchain) {
		return nil, common.NewSystemError(common.ErrInvalidInput, "address type does not match blockchain type")
	}
	return &LockedOrder{
		Base:             o,
		OnramperUserID:   onramperUserID,
		OnramperProvider: onramperProvider,
		OnramperAddress:  onramperAddress,
		Consent:          consent,
		LockedAt:         time.Now(),
	}, nil
}

// CompletedOrder is the settled, terminal record of a trade.
type CompletedOrder struct {
	Onramper     common.TransactionAddress
	Offramper    common.TransactionAddress
	FiatAmount   uint64
	OfframperFee uint64
	Blockchain   common.Blockchain
	CompletedAt  time.Time
}

// Complete closes out a LockedOrder, matching From<LockedOrder> for
// CompletedOrder.
func (l LockedOrder) Complete() CompletedOrder {
	return CompletedOrder{
		Onramper:     l.OnramperAddress,
		Offramper:    l.Base.OfframperAddress,
		FiatAmount:   l.Base.FiatAmount,
		OfframperFee: l.Base.OfframperFee,
		Blockchain:   l.Base.Crypto.Blockchain,
		CompletedAt:  time.Now(),
	}
}

// OrderStateKind discriminates OrderState's variants.
type OrderStateKind int

const (
	OrderCreated OrderStateKind = iota
	OrderLocked
	OrderCompleted
	OrderCancelled
)

func (k OrderStateKind) String() string {
	switch k {
	case OrderCreated:
		return "Created"
	case OrderLocked:
		return "Locked"
	case OrderCompleted:
		return "Completed"
	case OrderCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// OrderState is the sum type Store actually holds, one variant per lifecycle
// stage. Cancelled carries only the order id (matching the original's
// `Cancelled(u64)`), since every other field is irrelevant once cancelled.
type OrderState struct {
	Kind        OrderStateKind
	Created     *Order
	Locked      *LockedOrder
	Completed   *CompletedOrder
	CancelledID uint64
}

func NewCreatedState(o *Order) OrderState   { return OrderState{Kind: OrderCreated, Created: o} }
func NewLockedState(l *LockedOrder) OrderState { return OrderState{Kind: OrderLocked, Locked: l} }
func NewCompletedState(c *CompletedOrder) OrderState {
	return OrderState{Kind: OrderCompleted, Completed: c}
}
func NewCancelledState(id uint64) OrderState { return OrderState{Kind: OrderCancelled, CancelledID: id} }

func (s OrderState) String() string { return s.Kind.String() }

// ID returns the order id regardless of which variant is active.
func (s OrderState) ID() uint64 {
	switch s.Kind {
	case OrderCreated:
		return s.Created.ID
	case OrderLocked:
		return s.Locked.Base.ID
	case OrderCancelled:
		return s.CancelledID
	default:
		return 0 // CompletedOrder carries no id upstream either
	}
}

// OrderFilter selects a subset of OrderStates. Exactly one field is set.
type OrderFilter struct {
	OfframperID      *uint64
	OnramperID       *uint64
	OfframperAddress *common.TransactionAddress
	LockedByOnramper *common.TransactionAddress
	State            *OrderStateKind
	Blockchain       *common.Blockchain
}

// Matches reports whether state satisfies the filter.
func (f OrderFilter) Matches(s OrderState) bool {
	switch {
	case f.OfframperID != nil:
		return s.Kind == OrderCreated && s.Created.OfframperUserID == *f.OfframperID ||
			s.Kind == OrderLocked && s.Locked.Base.OfframperUserID == *f.OfframperID
	case f.OnramperID != nil:
		return s.Kind == OrderLocked && s.Locked.OnramperUserID == *f.OnramperID
	case f.OfframperAddress != nil:
		return s.Kind == OrderCreated && addressEqual(s.Created.OfframperAddress, *f.OfframperAddress) ||
			s.Kind == OrderLocked && addressEqual(s.Locked.Base.OfframperAddress, *f.OfframperAddress)
	case f.LockedByOnramper != nil:
		return s.Kind == OrderLocked && addressEqual(s.Locked.OnramperAddress, *f.LockedByOnramper)
	case f.State != nil:
		return s.Kind == *f.State
	case f.Blockchain != nil:
		switch s.Kind {
		case OrderCreated:
			return s.Created.Crypto.Blockchain == *f.Blockchain
		case OrderLocked:
			return s.Locked.Base.Crypto.Blockchain == *f.Blockchain
		case OrderCompleted:
			return s.Completed.Blockchain == *f.Blockchain
		default:
			return false
		}
	default:
		return false
	}
}

func addressEqual(a, b common.TransactionAddress) bool {
	return a.Type == b.Type && a.Address == b.Address
}

// OrderStore is the ordered id→OrderState container described in spec §4.1.
type OrderStore struct {
	byID  map[uint64]OrderState
	order []uint64
}

func newOrderStore() *OrderStore {
	return &OrderStore{byID: make(map[uint64]OrderState)}
}

// Insert stores a freshly Created order, returning the previous state if the
// id was already in use.
func (s *OrderStore) Insert(o *Order) *OrderState {
	state := NewCreatedState(o)
	prev, existed := s.byID[o.ID]
	s.byID[o.ID] = state
	if !existed {
		s.order = append(s.order, o.ID)
		return nil
	}
	return &prev
}

func (s *OrderStore) Get(id uint64) (OrderState, error) {
	st, ok := s.byID[id]
	if !ok {
		return OrderState{}, common.NewOrderError(common.ErrOrderNotFound)
	}
	return st, nil
}

// Mutate always rewrites the record, matching mutate_order's contract.
func (s *OrderStore) Mutate(id uint64, f func(*OrderState) error) error {
	st, ok := s.byID[id]
	if !ok {
		return common.NewOrderError(common.ErrOrderNotFound)
	}
	err := f(&st)
	s.byID[id] = st
	return err
}

// Filter returns states matching pred, newest-insertion-first, sliced to
// (page, pageSize) with page starting at 1 — identical pagination arithmetic
// to filter_orders upstream. page=0 or pageSize=0 default to 1 and 10.
func (s *OrderStore) Filter(pred func(OrderState) bool, page, pageSize uint32) []OrderState {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	end := start + pageSize

	matched := make([]OrderState, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		st := s.byID[s.order[i]]
		if pred(st) {
			matched = append(matched, st)
		}
	}
	if int(start) >= len(matched) {
		return []OrderState{}
	}
	if int(end) > len(matched) {
		end = uint32(len(matched))
	}
	return matched[start:end]
}

func (s *OrderStore) len() int { return len(s.order) }

// UnlockCreated reverts a Locked order to Created in place, returning the
// order's onramper id so the caller can apply the score penalty — exactly
// the two side effects unlock_order performs upstream.
func UnlockCreated(st *OrderState) (onramperID uint64, err error) {
	if st.Kind != OrderLocked {
		return 0, common.NewInvalidOrderStateError(st.String())
	}
	onramperID = st.Locked.OnramperUserID
	base := st.Locked.Base
	*st = NewCreatedState(&base)
	return onramperID, nil
}

package store

import (
	"github.com/rampforge/agent/common"
)

// MaxUserEncodedSize bounds a single User record, mirroring MAX_USER_SIZE in
// the original canister's Storable impl.
const MaxUserEncodedSize = 1000

// UserType distinguishes the two sides of a ramp.
type UserType int

const (
	UserOfframper UserType = iota
	UserOnramper
)

// User is a registered account. Store is its sole owner; every mutation goes
// through MutateUser so readers never observe a half-updated record.
type User struct {
	ID               uint64
	Type             UserType
	PaymentProviders *common.PaymentProviderSet
	FiatAmount       uint64 // cumulative received (offramper) or paid (onramper)
	Score            int32
	Login            common.LoginAddress
	Addresses        map[common.AddressType]common.TransactionAddress
	Session          *Session
}

// NewUser constructs a fresh user around a validated login identity. A
// non-email login implicitly owns the matching address-book entry, exactly
// as User::new does in the original canister.
func NewUser(id uint64, userType UserType, login common.LoginAddress) (*User, error) {
	if err := login.Validate(); err != nil {
		return nil, err
	}
	u := &User{
		ID:               id,
		Type:             userType,
		PaymentProviders: common.NewPaymentProviderSet(),
		Score:            1,
		Login:            login,
		Addresses:        make(map[common.AddressType]common.TransactionAddress),
	}
	if addr, ok := login.ToTransactionAddress(); ok {
		u.Addresses[addr.Type] = addr
	}
	return u, nil
}

func (u *User) IsOfframper() error {
	if u.Type != UserOfframper {
		return common.NewUserError(common.ErrUserNotOfframper)
	}
	return nil
}

func (u *User) IsOnramper() error {
	if u.Type != UserOnramper {
		return common.NewUserError(common.ErrUserNotOnramper)
	}
	return nil
}

func (u *User) IsBanned() error {
	if u.Score < 0 {
		return common.NewUserError(common.ErrUserBanned)
	}
	return nil
}

func (u *User) UpdateFiatAmount(amount uint64) {
	u.FiatAmount += amount
}

func (u *User) DecreaseScore() {
	u.Score--
}

// IncreaseScore rewards a completed order proportionally to its size; amount
// is denominated in fiat cents, per User::increase_score.
func (u *User) IncreaseScore(amountCents uint64) {
	u.Score += int32(amountCents / 1000)
}

// AddAddress replaces any existing entry of the same kind, matching the
// address-book's one-per-AddressType invariant.
func (u *User) AddAddress(addr common.TransactionAddress) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	u.Addresses[addr.Type] = addr
	return nil
}

// UserStore is the ordered id→User container described in spec §4.1: insert,
// atomic mutate, get, and an O(N) find-by-login scan.
type UserStore struct {
	byID  map[uint64]*User
	order []uint64 // insertion order, oldest first
}

func newUserStore() *UserStore {
	return &UserStore{byID: make(map[uint64]*User)}
}

// Insert adds or replaces u, returning the previous value if one existed.
func (s *UserStore) Insert(u *User) *User {
	prev, existed := s.byID[u.ID]
	s.byID[u.ID] = u
	if !existed {
		s.order = append(s.order, u.ID)
	}
	if existed {
		return prev
	}
	return nil
}

func (s *UserStore) Get(id uint64) (*User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, common.NewUserError(common.ErrUserNotFound)
	}
	return u, nil
}

// Mutate runs f against the stored user and always leaves the record
// rewritten, matching mutate_user's "any Ok(result) always re-inserts"
// contract.
func (s *UserStore) Mutate(id uint64, f func(*User) error) error {
	u, ok := s.byID[id]
	if !ok {
		return common.NewUserError(common.ErrUserNotFound)
	}
	err := f(u)
	s.byID[id] = u
	return err
}

// FindByLogin is an O(N) scan over all users, matching the original's
// explicit "required to be O(N) but is not hot" contract.
func (s *UserStore) FindByLogin(login common.LoginAddress) (uint64, error) {
	for _, id := range s.order {
		u := s.byID[id]
		if loginsEqual(u.Login, login) {
			return id, nil
		}
	}
	return 0, common.NewUserError(common.ErrUserNotFound)
}

// loginsEqual compares the discriminant used to identify an account, not the
// password hash — matching LoginAddress's PartialEq in the original which
// never compares the `password` field in the Email variant.
func loginsEqual(a, b common.LoginAddress) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case common.LoginEmail:
		return a.Email == b.Email
	case common.LoginEVMAddress:
		return a.EVMAddress == b.EVMAddress
	case common.LoginPrincipal:
		return a.Principal == b.Principal
	case common.LoginSolanaAddress:
		return a.SolanaAddress == b.SolanaAddress
	default:
		return false
	}
}

// All returns every user, newest insertion first.
func (s *UserStore) All() []*User {
	out := make([]*User, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.byID[s.order[i]])
	}
	return out
}

func (s *UserStore) len() int { return len(s.order) }

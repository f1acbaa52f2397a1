// Package user is C10 UserManager: registration, PBKDF2 password
// verification, session issuance/validation, the address book, and the
// payment-provider set, all layered on top of store.Store.
package user

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/signer"
	"github.com/rampforge/agent/store"
)

// loginChallenge is the fixed message an EVM-address login's signature is
// checked against. A production deployment would mint a fresh nonce per
// attempt; a fixed challenge is the simplest thing that satisfies spec §4.10
// without a separate nonce-issuance round trip, and is called out as such
// below rather than left unstated.
const loginChallenge = "Sign in to RampForge"

// Manager is C10 UserManager.
type Manager struct {
	store *store.Store
	log   log.Logger
}

func New(st *store.Store) *Manager {
	return &Manager{store: st, log: log.New("component", "user")}
}

// Register validates the login shape, requires a password iff the login is
// Email, rejects an empty provider list, and inserts a fresh user, matching
// register_user's contract.
func (m *Manager) Register(
	userType store.UserType,
	providers []common.PaymentProvider,
	login common.LoginAddress,
	password *string,
) (uint64, error) {
	if err := login.Validate(); err != nil {
		return 0, err
	}
	if len(providers) == 0 {
		return 0, common.NewSystemError(common.ErrInvalidInput, "provider list is empty")
	}
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return 0, err
		}
	}

	if login.Kind == common.LoginEmail {
		if password == nil {
			return 0, common.NewUserError(common.ErrPasswordRequired)
		}
		hash, err := signer.HashPassword(*password)
		if err != nil {
			return 0, err
		}
		login.PasswordHash = hash
	}

	id := m.store.NextUserID()
	u, err := store.NewUser(id, userType, login)
	if err != nil {
		return 0, err
	}
	for _, p := range providers {
		u.PaymentProviders.Put(p)
	}

	if prev := m.store.InsertUser(u); prev != nil {
		return 0, common.NewSystemError(common.ErrInternalError, "user id already in use")
	}
	return id, nil
}

// ResetPassword overwrites an Email-login user's password hash. Only valid
// for Email logins, matching reset_password_user.
func (m *Manager) ResetPassword(login common.LoginAddress, newPassword string) error {
	if err := login.Validate(); err != nil {
		return err
	}
	if login.Kind != common.LoginEmail {
		return common.NewSystemError(common.ErrInvalidInput, "login address must be of type email")
	}
	hash, err := signer.HashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := m.store.FindUserByLogin(login)
	if err != nil {
		return err
	}
	return m.store.MutateUser(userID, func(u *store.User) error {
		u.Login.PasswordHash = hash
		return nil
	})
}

// Login verifies the supplied credential against the stored login identity
// and mints a fresh 12-hour session. Email logins are checked against the
// PBKDF2 hash; EVM-address logins are checked against a signature over
// loginChallenge. Other login kinds carry no additional credential here.
func (m *Manager) Login(login common.LoginAddress, password *string, signature []byte) (uint64, store.Session, error) {
	userID, err := m.store.FindUserByLogin(login)
	if err != nil {
		return 0, store.Session{}, err
	}
	u, err := m.store.GetUser(userID)
	if err != nil {
		return 0, store.Session{}, err
	}

	switch login.Kind {
	case common.LoginEmail:
		if password == nil {
			return 0, store.Session{}, common.NewUserError(common.ErrPasswordRequired)
		}
		ok, err := signer.VerifyPassword(*password, u.Login.PasswordHash)
		if err != nil {
			return 0, store.Session{}, err
		}
		if !ok {
			return 0, store.Session{}, common.NewUserError(common.ErrInvalidPassword)
		}
	case common.LoginEVMAddress:
		if err := signer.VerifySignature(u.Login.EVMAddress, loginChallenge, signature); err != nil {
			return 0, store.Session{}, err
		}
	}

	if err := u.IsBanned(); err != nil {
		return 0, store.Session{}, err
	}

	session, err := store.NewSession()
	if err != nil {
		return 0, store.Session{}, err
	}
	err = m.store.MutateUser(userID, func(u *store.User) error {
		u.Session = &session
		return nil
	})
	if err != nil {
		return 0, store.Session{}, err
	}
	return userID, session, nil
}

// ValidateSession checks token against userID's current session, failing
// with SessionNotFound if none has ever been issued.
func (m *Manager) ValidateSession(userID uint64, token string) error {
	u, err := m.store.GetUser(userID)
	if err != nil {
		return err
	}
	return checkSession(u, token)
}

func checkSession(u *store.User, token string) error {
	if u.Session == nil {
		return common.NewUserError(common.ErrSessionNotFound)
	}
	return u.Session.Validate(token)
}

// AddAddress inserts or replaces an address-book entry, session-gated.
func (m *Manager) AddAddress(userID uint64, token string, addr common.TransactionAddress) error {
	return m.store.MutateUser(userID, func(u *store.User) error {
		if err := checkSession(u, token); err != nil {
			return err
		}
		return u.AddAddress(addr)
	})
}

// AddPaymentProvider inserts or replaces a payment provider, session-gated.
func (m *Manager) AddPaymentProvider(userID uint64, token string, provider common.PaymentProvider) error {
	if err := provider.Validate(); err != nil {
		return err
	}
	return m.store.MutateUser(userID, func(u *store.User) error {
		if err := checkSession(u, token); err != nil {
			return err
		}
		u.PaymentProviders.Put(provider)
		return nil
	})
}

// RemovePaymentProvider removes a payment provider by kind, session-gated.
func (m *Manager) RemovePaymentProvider(userID uint64, token string, kind common.PaymentProviderKind) error {
	return m.store.MutateUser(userID, func(u *store.User) error {
		if err := checkSession(u, token); err != nil {
			return err
		}
		u.PaymentProviders.Remove(kind)
		return nil
	})
}

// RecordPayment applies a settled order's fiat amount to userID's running
// total, and for an on-ramper additionally rewards their score, matching
// update_onramper_payment/update_offramper_payment.
func (m *Manager) RecordPayment(userID uint64, fiatAmount uint64) error {
	return m.store.MutateUser(userID, func(u *store.User) error {
		u.UpdateFiatAmount(fiatAmount)
		if u.Type == store.UserOnramper {
			u.IncreaseScore(fiatAmount)
		}
		return nil
	})
}

// Get returns the stored user record at id.
func (m *Manager) Get(userID uint64) (*store.User, error) {
	return m.store.GetUser(userID)
}

// Package common holds the small cross-cutting types shared by every component:
// the four error kinds from the spec, address/blockchain tagging, and payment
// provider identity. Nothing here owns state.
package common

import "fmt"

// UserError is returned by UserManager and by any operation gated on session
// or account state.
type UserError struct {
	Kind     UserErrorKind
	Provider PaymentProviderKind // only set for ProviderNotInUser
}

type UserErrorKind int

const (
	ErrOnlyController UserErrorKind = iota
	ErrInvalidPassword
	ErrPasswordRequired
	ErrUnauthorizedPrincipal
	ErrUnauthorized
	ErrInvalidSignature
	ErrTokenInvalid
	ErrTokenExpired
	ErrSessionNotFound
	ErrUserNotFound
	ErrUserNotOfframper
	ErrUserNotOnramper
	ErrUserBanned
	ErrProviderNotInUser
)

var userErrorText = map[UserErrorKind]string{
	ErrOnlyController:        "only controller is allowed",
	ErrInvalidPassword:       "password is invalid",
	ErrPasswordRequired:      "password is required",
	ErrUnauthorizedPrincipal: "principal is not authorized",
	ErrUnauthorized:          "user is not authorized",
	ErrInvalidSignature:      "signature is not valid",
	ErrTokenInvalid:          "token is invalid",
	ErrTokenExpired:          "token is expired",
	ErrSessionNotFound:       "session not found",
	ErrUserNotFound:          "user not found",
	ErrUserNotOfframper:      "user is not an offramper",
	ErrUserNotOnramper:       "user is not an onramper",
	ErrUserBanned:            "user score is below zero",
	ErrProviderNotInUser:     "payment provider not defined for user",
}

func (e *UserError) Error() string {
	if e.Kind == ErrProviderNotInUser {
		return fmt.Sprintf("%s: %v", userErrorText[e.Kind], e.Provider)
	}
	return userErrorText[e.Kind]
}

func NewUserError(kind UserErrorKind) error { return &UserError{Kind: kind} }

func NewProviderNotInUserError(p PaymentProviderKind) error {
	return &UserError{Kind: ErrProviderNotInUser, Provider: p}
}

// IsUserError reports whether err is a UserError of the given kind.
func IsUserError(err error, kind UserErrorKind) bool {
	ue, ok := err.(*UserError)
	return ok && ue.Kind == kind
}

// OrderError is returned by OrderManager state transitions.
type OrderError struct {
	Kind  OrderErrorKind
	State string // only set for InvalidOrderState
}

type OrderErrorKind int

const (
	ErrOrderNotFound OrderErrorKind = iota
	ErrOrderProcessing
	ErrOrderNotProcessing
	ErrOrderTimerNotFound
	ErrInvalidOrderState
	ErrOrderUncommitted
	ErrOrderInLockTime
	ErrPaymentDone
	ErrInvalidOnramperProvider
	ErrInvalidOfframperProvider
	ErrMissingDebtorAccount
	ErrMissingAccessToken
	ErrPaymentVerificationFailed
)

var orderErrorText = map[OrderErrorKind]string{
	ErrOrderNotFound:             "order not found",
	ErrOrderProcessing:           "order is already being processed",
	ErrOrderNotProcessing:        "order is not being processed",
	ErrOrderTimerNotFound:        "order timer not found",
	ErrInvalidOrderState:         "invalid order state",
	ErrOrderUncommitted:          "order is uncommitted in the vault",
	ErrOrderInLockTime:           "order is still within its lock time",
	ErrPaymentDone:               "payment is already done",
	ErrInvalidOnramperProvider:   "invalid onramper provider",
	ErrInvalidOfframperProvider:  "invalid offramper provider",
	ErrMissingDebtorAccount:      "missing debtor account",
	ErrMissingAccessToken:        "missing access token",
	ErrPaymentVerificationFailed: "payment verification failed",
}

func (e *OrderError) Error() string {
	if e.Kind == ErrInvalidOrderState {
		return fmt.Sprintf("%s: %s", orderErrorText[e.Kind], e.State)
	}
	return orderErrorText[e.Kind]
}

func NewOrderError(kind OrderErrorKind) error { return &OrderError{Kind: kind} }

func NewInvalidOrderStateError(state string) error {
	return &OrderError{Kind: ErrInvalidOrderState, State: state}
}

func IsOrderError(err error, kind OrderErrorKind) bool {
	oe, ok := err.(*OrderError)
	return ok && oe.Kind == kind
}

// BlockchainError covers the on-chain transaction pipeline.
type BlockchainError struct {
	Kind    BlockchainErrorKind
	ChainID uint64
	Code    int64
	Msg     string
}

type BlockchainErrorKind int

const (
	ErrInvalidAddress BlockchainErrorKind = iota
	ErrChainIDNotFound
	ErrVaultManagerAddressNotFound
	ErrNonceLockTimeout
	ErrUnregisteredEvmToken
	ErrTransactionTimeout
	ErrInconsistentStatus
	ErrEthersAbiError
	ErrEmptyTransactionHash
	ErrNonceTooLow
	ErrNonceTooHigh
	ErrInsufficientFunds
	ErrReplacementUnderpriced
	ErrFundsBelowFees
	ErrFundsTooLow
	ErrLedgerPrincipalNotSupported
	ErrUnsupportedBlockchain
	ErrEvmLogError
	ErrGasLogError
	ErrGasEstimationFailed
	ErrRpcProviderNotFound
	ErrEvmExecutionReverted
)

func (e *BlockchainError) Error() string {
	switch e.Kind {
	case ErrChainIDNotFound:
		return fmt.Sprintf("chain id not found: %d", e.ChainID)
	case ErrVaultManagerAddressNotFound:
		return fmt.Sprintf("vault manager address not found for chain id: %d", e.ChainID)
	case ErrNonceLockTimeout:
		return fmt.Sprintf("timeout waiting for nonce lock on chain id: %d", e.ChainID)
	case ErrEthersAbiError, ErrEvmLogError, ErrGasLogError:
		return e.Msg
	case ErrLedgerPrincipalNotSupported:
		return fmt.Sprintf("ledger principal not supported: %s", e.Msg)
	case ErrEvmExecutionReverted:
		return fmt.Sprintf("evm execution reverted. code: %d, message: %s", e.Code, e.Msg)
	default:
		return blockchainErrorText[e.Kind]
	}
}

var blockchainErrorText = map[BlockchainErrorKind]string{
	ErrInvalidAddress:         "invalid address",
	ErrUnregisteredEvmToken:   "token is unregistered",
	ErrTransactionTimeout:     "transaction timeout",
	ErrInconsistentStatus:     "inconsistent transaction status",
	ErrEmptyTransactionHash:   "transaction hash is empty",
	ErrNonceTooLow:            "nonce too low",
	ErrNonceTooHigh:           "nonce too high",
	ErrInsufficientFunds:      "insufficient funds",
	ErrReplacementUnderpriced: "replacement transaction underpriced",
	ErrFundsBelowFees:         "fees exceed the funds amount",
	ErrFundsTooLow:            "funds are too low",
	ErrUnsupportedBlockchain:  "blockchain is not supported",
	ErrGasEstimationFailed:    "gas estimation failed",
	ErrRpcProviderNotFound:    "rpc provider not found",
}

func NewBlockchainError(kind BlockchainErrorKind) error { return &BlockchainError{Kind: kind} }

func NewChainIDNotFoundError(chainID uint64) error {
	return &BlockchainError{Kind: ErrChainIDNotFound, ChainID: chainID}
}

func NewVaultManagerAddressNotFoundError(chainID uint64) error {
	return &BlockchainError{Kind: ErrVaultManagerAddressNotFound, ChainID: chainID}
}

func NewNonceLockTimeoutError(chainID uint64) error {
	return &BlockchainError{Kind: ErrNonceLockTimeout, ChainID: chainID}
}

func NewEvmExecutionRevertedError(code int64, msg string) error {
	return &BlockchainError{Kind: ErrEvmExecutionReverted, Code: code, Msg: msg}
}

func NewEthersAbiError(msg string) error {
	return &BlockchainError{Kind: ErrEthersAbiError, Msg: msg}
}

func NewGasLogError(msg string) error {
	return &BlockchainError{Kind: ErrGasLogError, Msg: msg}
}

func IsBlockchainError(err error, kind BlockchainErrorKind) bool {
	be, ok := err.(*BlockchainError)
	return ok && be.Kind == kind
}

// SystemError covers infrastructure/parsing failures not specific to a domain
// object.
type SystemError struct {
	Kind BlockchainErrorKindSystem
	Code int64
	Msg  string
}

type BlockchainErrorKindSystem int

const (
	ErrInvalidInput BlockchainErrorKindSystem = iota
	ErrInternalError
	ErrCurrencySymbolNotFound
	ErrParseError
	ErrHttpRequestError
	ErrUtf8Error
	ErrExchangeRateError
	ErrCanisterCallError
	ErrParseFloatError
	ErrPkcs8Error
	ErrRsaError
	ErrRpcError
	ErrICRejectionError
)

func (e *SystemError) Error() string {
	switch e.Kind {
	case ErrInvalidInput:
		return fmt.Sprintf("invalid input: %s", e.Msg)
	case ErrInternalError:
		return fmt.Sprintf("internal error: %s", e.Msg)
	case ErrParseError:
		return fmt.Sprintf("failed to parse response: %s", e.Msg)
	case ErrHttpRequestError:
		return fmt.Sprintf("http request failed. code: %d, error: %s", e.Code, e.Msg)
	case ErrExchangeRateError:
		return fmt.Sprintf("exchange rate error: %s", e.Msg)
	case ErrCanisterCallError:
		return fmt.Sprintf("failed to call upstream: %s", e.Msg)
	case ErrParseFloatError:
		return fmt.Sprintf("failed to parse float amount: %s", e.Msg)
	case ErrPkcs8Error:
		return fmt.Sprintf("pkcs8 error: %s", e.Msg)
	case ErrRsaError:
		return fmt.Sprintf("rsa error: %s", e.Msg)
	case ErrRpcError:
		return fmt.Sprintf("rpc error: %s", e.Msg)
	default:
		return systemErrorText[e.Kind]
	}
}

var systemErrorText = map[BlockchainErrorKindSystem]string{
	ErrCurrencySymbolNotFound: "currency symbol not found",
	ErrUtf8Error:              "response is not utf-8 encoded",
}

func NewSystemError(kind BlockchainErrorKindSystem, msg string) error {
	return &SystemError{Kind: kind, Msg: msg}
}

func NewHttpRequestError(code int64, msg string) error {
	return &SystemError{Kind: ErrHttpRequestError, Code: code, Msg: msg}
}

func IsSystemError(err error, kind BlockchainErrorKindSystem) bool {
	se, ok := err.(*SystemError)
	return ok && se.Kind == kind
}

package common

import (
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Blockchain tags which chain family a TransactionAddress belongs to, and for
// EVM carries the chain id the order was created against.
type Blockchain struct {
	Kind    BlockchainKind
	ChainID uint64 // only meaningful when Kind == BlockchainEVM
}

type BlockchainKind int

const (
	BlockchainEVM BlockchainKind = iota
	BlockchainICP
	BlockchainSolana
)

func (b Blockchain) String() string {
	switch b.Kind {
	case BlockchainEVM:
		return "evm"
	case BlockchainICP:
		return "icp"
	case BlockchainSolana:
		return "solana"
	default:
		return "unknown"
	}
}

// AddressType mirrors BlockchainKind but lives on TransactionAddress so the
// "address kind matches blockchain kind" invariant (spec.md §3 invariant 1) is
// a simple equality check rather than a string comparison.
type AddressType int

const (
	AddressEVM AddressType = iota
	AddressICP
	AddressSolana
)

func (t AddressType) MatchesBlockchain(b Blockchain) bool {
	switch t {
	case AddressEVM:
		return b.Kind == BlockchainEVM
	case AddressICP:
		return b.Kind == BlockchainICP
	case AddressSolana:
		return b.Kind == BlockchainSolana
	default:
		return false
	}
}

// TransactionAddress is an on-chain address tagged with its kind, so that
// address-book entries and order participants can be validated without a
// blockchain RPC round trip.
type TransactionAddress struct {
	Type    AddressType
	Address string
}

// Validate checks the address is syntactically well formed for its declared
// kind. For EVM it delegates to go-ethereum's checksum/length rules and
// rewrites Address to the canonical EIP-55 checksum form, exactly as the
// teacher's accounts package treats any address it accepts from the outside.
func (a *TransactionAddress) Validate() error {
	switch a.Type {
	case AddressEVM:
		if !ethcommon.IsHexAddress(a.Address) {
			return NewBlockchainError(ErrInvalidAddress)
		}
		a.Address = ethcommon.HexToAddress(a.Address).Hex()
		return nil
	case AddressICP:
		if len(a.Address) == 0 || !strings.Contains(a.Address, "-") {
			return NewBlockchainError(ErrInvalidAddress)
		}
		return nil
	case AddressSolana:
		if len(a.Address) < 32 || len(a.Address) > 44 {
			return NewBlockchainError(ErrInvalidAddress)
		}
		return nil
	default:
		return NewBlockchainError(ErrInvalidAddress)
	}
}

// LoginKind enumerates how a user authenticates.
type LoginKind int

const (
	LoginEmail LoginKind = iota
	LoginEVMAddress
	LoginPrincipal
	LoginSolanaAddress
)

// LoginAddress is the sum-typed login identity described in spec.md §3.
type LoginAddress struct {
	Kind          LoginKind
	Email         string // LoginEmail
	PasswordHash  string // LoginEmail, PHC-formatted PBKDF2 hash
	EVMAddress    string // LoginEVMAddress
	Principal     string // LoginPrincipal
	SolanaAddress string // LoginSolanaAddress
}

func (l *LoginAddress) Validate() error {
	switch l.Kind {
	case LoginEmail:
		if !strings.Contains(l.Email, "@") {
			return NewSystemError(ErrInvalidInput, "malformed email login")
		}
		return nil
	case LoginEVMAddress:
		if !ethcommon.IsHexAddress(l.EVMAddress) {
			return NewBlockchainError(ErrInvalidAddress)
		}
		l.EVMAddress = ethcommon.HexToAddress(l.EVMAddress).Hex()
		return nil
	case LoginPrincipal:
		if l.Principal == "" {
			return NewSystemError(ErrInvalidInput, "empty principal login")
		}
		return nil
	case LoginSolanaAddress:
		if len(l.SolanaAddress) < 32 {
			return NewBlockchainError(ErrInvalidAddress)
		}
		return nil
	default:
		return NewSystemError(ErrInvalidInput, "unknown login kind")
	}
}

// ToTransactionAddress converts a non-email login into the address-book entry
// it implicitly owns, mirroring `LoginAddress::to_transaction_address` in the
// original canister.
func (l *LoginAddress) ToTransactionAddress() (TransactionAddress, bool) {
	switch l.Kind {
	case LoginEVMAddress:
		return TransactionAddress{Type: AddressEVM, Address: l.EVMAddress}, true
	case LoginPrincipal:
		return TransactionAddress{Type: AddressICP, Address: l.Principal}, true
	case LoginSolanaAddress:
		return TransactionAddress{Type: AddressSolana, Address: l.SolanaAddress}, true
	default:
		return TransactionAddress{}, false
	}
}

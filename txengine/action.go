package txengine

// Variant distinguishes a native-asset transfer from an ERC-20 token
// transfer for actions whose ABI (and therefore calldata shape) differs
// between the two.
type Variant int

const (
	Native Variant = iota
	Token
)

// Action enumerates every vault-manager call the engine can build and
// broadcast. Zero-value fields (Variant) are ignored by actions that don't
// need one (Commit, Uncommit).
type Action struct {
	Kind    ActionKind
	Variant Variant
}

type ActionKind int

const (
	ActionCommit ActionKind = iota
	ActionUncommit
	ActionCancel
	ActionRelease
	ActionTransfer
)

func (a Action) String() string {
	switch a.Kind {
	case ActionCommit:
		return "Commit"
	case ActionUncommit:
		return "Uncommit"
	case ActionCancel:
		return variantName("Cancel", a.Variant)
	case ActionRelease:
		return variantName("Release", a.Variant)
	case ActionTransfer:
		return variantName("Transfer", a.Variant)
	default:
		return "Unknown"
	}
}

func variantName(base string, v Variant) string {
	if v == Token {
		return base + "Token"
	}
	return base + "Native"
}

// FunctionName is the vault-manager Solidity function this action invokes.
func (a Action) FunctionName() string {
	switch a.Kind {
	case ActionCommit:
		return "commitDeposit"
	case ActionUncommit:
		return "uncommitDeposit"
	case ActionCancel:
		if a.Variant == Native {
			return "withdrawBaseCurrency"
		}
		return "withdrawToken"
	case ActionRelease:
		if a.Variant == Native {
			return "releaseBaseCurrency"
		}
		return "releaseToken"
	case ActionTransfer:
		return "transfer"
	default:
		return ""
	}
}

// ABI is the minimal Solidity interface JSON for this action's function,
// sufficient for accounts/abi to pack its arguments.
func (a Action) ABI() string {
	switch a.Kind {
	case ActionCommit:
		return commitABI
	case ActionUncommit:
		return uncommitABI
	case ActionCancel:
		if a.Variant == Native {
			return cancelNativeABI
		}
		return cancelTokenABI
	case ActionRelease:
		if a.Variant == Native {
			return releaseNativeABI
		}
		return releaseTokenABI
	case ActionTransfer:
		return transferTokenABI
	default:
		return ""
	}
}

// mantleChainIDs derive gas price from an L1 oracle contract rather than a
// standard EIP-1559 fee market, so their default_gas table differs sharply
// from every other chain's.
func isMantle(chainID uint64) bool { return chainID == 5000 || chainID == 5003 }

// DefaultGas is the gas limit to use for this action when the caller didn't
// estimate one itself.
func (a Action) DefaultGas(chainID uint64) uint64 {
	if isMantle(chainID) {
		switch a.Kind {
		case ActionCommit:
			return 1_800_000_000
		case ActionUncommit:
			return 2_000_000_000
		case ActionCancel:
			if a.Variant == Native {
				return 2_000_000_000
			}
			return 2_500_000_000
		case ActionRelease:
			if a.Variant == Native {
				return 2_000_000_000
			}
			return 2_500_000_000
		case ActionTransfer:
			if a.Variant == Native {
				return 2_000_000_000
			}
			return 2_500_000_000
		}
	}

	switch a.Kind {
	case ActionCommit, ActionUncommit:
		return 100_000
	case ActionCancel, ActionRelease, ActionTransfer:
		if a.Variant == Native {
			return 100_000
		}
		return 120_000
	default:
		return 100_000
	}
}

const commitABI = `[{"inputs":[{"internalType":"address","name":"_offramper","type":"address"},{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"commitDeposit","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const uncommitABI = `[{"inputs":[{"internalType":"address","name":"_offramper","type":"address"},{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"uncommitDeposit","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const cancelNativeABI = `[{"inputs":[{"internalType":"address","name":"_offramper","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"},{"internalType":"uint256","name":"_fees","type":"uint256"}],"name":"withdrawBaseCurrency","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const cancelTokenABI = `[{"inputs":[{"internalType":"address","name":"_offramper","type":"address"},{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"},{"internalType":"uint256","name":"_fees","type":"uint256"}],"name":"withdrawToken","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const releaseNativeABI = `[{"inputs":[{"internalType":"address","name":"_offramper","type":"address"},{"internalType":"address","name":"_onramper","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"},{"internalType":"uint256","name":"_fees","type":"uint256"}],"name":"releaseBaseCurrency","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const releaseTokenABI = `[{"inputs":[{"internalType":"address","name":"_offramper","type":"address"},{"internalType":"address","name":"_onramper","type":"address"},{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"},{"internalType":"uint256","name":"_fees","type":"uint256"}],"name":"releaseToken","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const transferTokenABI = `[{"inputs":[{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

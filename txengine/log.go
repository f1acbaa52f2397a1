package txengine

import (
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rampforge/agent/rpcgateway"
	"github.com/rampforge/agent/timer"
)

// logRemovalDelay is how long a Confirmed log lingers before the reaper
// drops it, matching set_transaction_removal_timer's 300-second window.
const logRemovalDelay = 300 * time.Second

// StatusKind discriminates TransactionLog's status field.
type StatusKind int

const (
	StatusBroadcasting StatusKind = iota
	StatusBroadcasted
	StatusBroadcastError
	StatusPending
	StatusConfirmed
	StatusFailed
	StatusUnresolved
)

func (k StatusKind) String() string {
	switch k {
	case StatusBroadcasting:
		return "Broadcasting"
	case StatusBroadcasted:
		return "Broadcasted"
	case StatusBroadcastError:
		return "BroadcastError"
	case StatusPending:
		return "Pending"
	case StatusConfirmed:
		return "Confirmed"
	case StatusFailed:
		return "Failed"
	case StatusUnresolved:
		return "Unresolved"
	default:
		return "Unknown"
	}
}

// Status is the current disposition of a broadcast transaction. Hash and
// Receipt are set only once known; Err carries the broadcast/confirmation
// failure reason for BroadcastError and Failed.
type Status struct {
	Kind    StatusKind
	Hash    string
	Receipt *rpcgateway.Receipt
	Err     string
}

func BroadcastingStatus() Status { return Status{Kind: StatusBroadcasting} }
func BroadcastedStatus(hash string) Status {
	return Status{Kind: StatusBroadcasted, Hash: hash}
}
func BroadcastErrorStatus(err string) Status {
	return Status{Kind: StatusBroadcastError, Err: err}
}
func PendingStatus(hash string) Status { return Status{Kind: StatusPending, Hash: hash} }
func ConfirmedStatus(hash string, r *rpcgateway.Receipt) Status {
	return Status{Kind: StatusConfirmed, Hash: hash, Receipt: r}
}
func FailedStatus(hash, reason string) Status {
	return Status{Kind: StatusFailed, Hash: hash, Err: reason}
}
func UnresolvedStatus(hash string) Status { return Status{Kind: StatusUnresolved, Hash: hash} }

// Log is the per-order record of a single broadcast attempt's lifecycle.
type Log struct {
	OrderID uint64
	Action  Action
	Status  Status
}

// LogStore is the agent's keyed transaction-log registry, one entry per
// order id, reaped 300s after reaching Confirmed.
type LogStore struct {
	mu     sync.Mutex
	logs   map[uint64]*Log
	timers *timer.Service
	log    log.Logger
}

func NewLogStore(timers *timer.Service) *LogStore {
	return &LogStore{
		logs:   make(map[uint64]*Log),
		timers: timers,
		log:    log.New("component", "txengine", "registry", "logs"),
	}
}

// New registers a fresh Broadcasting log for orderID, replacing any prior
// entry.
func (s *LogStore) New(orderID uint64, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[orderID] = &Log{OrderID: orderID, Action: action, Status: BroadcastingStatus()}
}

// Update overwrites orderID's status. Reaching Confirmed arms the removal
// timer; any other status clears a previously-armed one, mirroring the
// original's single timer-on-Confirmed rule.
func (s *LogStore) Update(orderID uint64, status Status) {
	s.mu.Lock()
	if l, ok := s.logs[orderID]; ok {
		l.Status = status
	}
	s.mu.Unlock()

	s.log.Debug("transaction log updated", "order_id", orderID, "status", status.Kind)

	key := removalTimerKey(orderID)
	if status.Kind == StatusConfirmed {
		s.timers.Schedule(key, logRemovalDelay, func() { s.Remove(orderID) })
	}
}

// Remove drops orderID's log and cancels any pending removal timer.
func (s *LogStore) Remove(orderID uint64) {
	s.mu.Lock()
	delete(s.logs, orderID)
	s.mu.Unlock()
	s.timers.Cancel(removalTimerKey(orderID))
}

// Get returns orderID's current log, if any.
func (s *LogStore) Get(orderID uint64) (Log, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[orderID]
	if !ok {
		return Log{}, false
	}
	return *l, true
}

// Pending returns every log currently in the Pending state, for the poller
// to sweep.
func (s *LogStore) Pending() []Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Log
	for _, l := range s.logs {
		if l.Status.Kind == StatusPending {
			out = append(out, *l)
		}
	}
	return out
}

func removalTimerKey(orderID uint64) string {
	return "txlog-removal-" + strconv.FormatUint(orderID, 10)
}

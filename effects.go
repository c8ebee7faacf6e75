package idgov

// ExecutionStatus is the outcome of a transaction execution.
type ExecutionStatus struct {
	Success bool
	// Error is the ledger provided failure description.
	Error string
}

// Effects describe ledger state changes caused by a transaction.
type Effects struct {
	Status   ExecutionStatus
	TxDigest Digest
	Created  []OwnedObjectRef
	Mutated  []OwnedObjectRef
	Deleted  []ObjectRef
	GasUsed  uint64
}

// CreatedShared returns the ids of all shared objects created by the
// transaction.
func (e *Effects) CreatedShared() []ObjectID {
	var ids []ObjectID
	for _, c := range e.Created {
		if c.Owner.Kind == Shared {
			ids = append(ids, c.Ref.ID)
		}
	}
	return ids
}

// IsDeleted returns true if the transaction deleted given object.
func (e *Effects) IsDeleted(id ObjectID) bool {
	for _, d := range e.Deleted {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Event is emitted by a contract during transaction execution.
type Event struct {
	// Type is the fully qualified type of the event contents.
	Type   string
	Sender Address
	// Contents is the binary encoded event.
	Contents []byte
}

// Events is a pool of transaction events. Events are consumed while the
// effects of a transaction are applied so that one event is never matched
// twice.
type Events struct {
	items []Event
}

// NewEvents returns a pool holding given events.
func NewEvents(events []Event) *Events {
	items := make([]Event, len(events))
	copy(items, events)
	return &Events{items: items}
}

// Len returns the number of events left in the pool.
func (e *Events) Len() int {
	return len(e.items)
}

// All returns a copy of events left in the pool.
func (e *Events) All() []Event {
	res := make([]Event, len(e.items))
	copy(res, e.items)
	return res
}

// Take removes and returns the first event accepted by match. The last event
// of the pool takes the place of the removed one.
func (e *Events) Take(match func(Event) bool) (Event, bool) {
	for i, ev := range e.items {
		if !match(ev) {
			continue
		}
		last := len(e.items) - 1
		e.items[i] = e.items[last]
		e.items = e.items[:last]
		return ev, true
	}
	return Event{}, false
}

// TxResponse is the ledger answer to a transaction submission.
type TxResponse struct {
	Effects Effects
	Events  []Event
}

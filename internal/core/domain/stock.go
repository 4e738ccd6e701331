package domain

type BatchState string

const (
	BatchStatePending    BatchState = "pending"
	BatchStateEvaluating BatchState = "evaluating"
	BatchStateRejected   BatchState = "rejected"
	BatchStateApplying   BatchState = "applying"
	BatchStateCommitted  BatchState = "committed"
	BatchStateRolledBack BatchState = "rolled_back"
)

// Terminal reports whether no further transition is possible.
func (s BatchState) Terminal() bool {
	switch s {
	case BatchStateRejected, BatchStateCommitted, BatchStateRolledBack:
		return true
	}
	return false
}

type StockLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity" validate:"gte=0"`
}

type StockBatch struct {
	Lines []StockLine `validate:"required,min=1,dive"`
}

func NewStockBatch(lines ...StockLine) StockBatch {
	return StockBatch{Lines: lines}
}

func (b StockBatch) Validate() error {
	return validateStruct(b)
}

// StockOutcome summarizes a batch evaluation or commit. Err carries the
// failure kind (ErrNotFound, ErrInsufficientStock, ErrConcurrentModification)
// when OK is false.
type StockOutcome struct {
	OK            bool
	FailingItemID *int64
	Reason        string
	State         BatchState
	Err           error
}

func Success(state BatchState) StockOutcome {
	return StockOutcome{OK: true, State: state}
}

func Failure(state BatchState, itemID int64, reason string, kind error) StockOutcome {
	id := itemID
	return StockOutcome{
		OK:            false,
		FailingItemID: &id,
		Reason:        reason,
		State:         state,
		Err:           kind,
	}
}

package app

// Run statuses stored with each recorded invocation.
const (
	RunSuccess = "success"
	RunError   = "error"
)

// Operation tracks one CLI invocation that may be recorded in the run
// history. Operations are created in memory with ID=0; only mutating modes
// persist them, which gives them an auto-increment ID from the database.
type Operation struct {
	ID     int64
	RunID  string
	Mode   string
	Status string
}

// NewOperation creates a new in-memory operation.
func NewOperation(mode, runID string) *Operation {
	return &Operation{
		RunID:  runID,
		Mode:   mode,
		Status: RunSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed. It is never reset to success.
func (op *Operation) Fail() {
	op.Status = RunError
}

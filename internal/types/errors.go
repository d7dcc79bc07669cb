package types

import "errors"

// Sentinel errors for ProfileKeeper operations.
var (
	// ErrFieldNotFound indicates a condition referenced a field absent from
	// the flattened record. Fatal to that evaluation, not to the batch.
	ErrFieldNotFound = errors.New("field not found")

	// ErrUnsupportedMergeType indicates the merge engine encountered a value
	// shape it has no combination rule for. The affected merge is abandoned
	// without partial application.
	ErrUnsupportedMergeType = errors.New("unsupported merge type")

	// ErrStoreUnavailable indicates a transport-level store failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrFlowNotFound indicates a rule references a workflow the runtime
	// cannot resolve. Captured per (event,rule) unit as a diagnostic.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrProfileNotFound indicates a profile lookup returned no row.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrBatchTooLarge indicates an orchestration batch exceeds MaxBatchEvents.
	ErrBatchTooLarge = errors.New("event batch exceeds maximum size")
)

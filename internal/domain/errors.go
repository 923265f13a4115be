package domain

import "errors"

var (
	// ErrStorageUnavailable marks transient backend faults (timeouts,
	// connectivity). The merge engine retries these; everything else
	// propagates unchanged.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConstraintViolation marks permanent backend-side integrity faults.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrSchemaViolation marks an event or filter referencing a field or kind
	// that does not exist on the entity schema.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrNotFound marks a referenced nested item missing where presence is
	// required (collection update). Removes are idempotent and never raise it.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedFilter marks a filter the active backend cannot translate.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	// ErrPersistenceFailed marks a merge whose retries are exhausted; the
	// event stays with the event source for redelivery.
	ErrPersistenceFailed = errors.New("persistence failed")
)

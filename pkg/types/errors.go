package types

import "errors"

// Schema-time errors, reported while loading namespaces or resolving
// effective schemas.
var (
	ErrNamespaceConflict = errors.New("namespace conflict")
	ErrUnresolvedImport  = errors.New("unresolved namespace import")
	ErrCyclicInheritance = errors.New("cyclic inheritance")
	ErrSchemaConflict    = errors.New("schema conflict")
	ErrNamespaceNotFound = errors.New("namespace not found")
	ErrTypeNotFound      = errors.New("type not found")
	ErrInvalidSpec       = errors.New("invalid spec")
)

// Instantiation-time errors.
var (
	ErrUnknownAttribute     = errors.New("unknown attribute")
	ErrFixedValueViolation  = errors.New("fixed value violation")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrOwnershipConflict    = errors.New("ownership conflict")
	ErrValueTypeMismatch    = errors.New("value type mismatch")
	ErrDuplicateName        = errors.New("duplicate name")
	ErrChildTypeMismatch    = errors.New("child type not allowed")
	ErrContainerRemoved     = errors.New("container removed")
)

// Table-time errors.
var (
	ErrDuplicateColumn       = errors.New("duplicate column")
	ErrColumnLengthMismatch  = errors.New("column length mismatch")
	ErrRowShapeMismatch      = errors.New("row shape mismatch")
	ErrReferenceTypeMismatch = errors.New("reference type mismatch")
	ErrRegionIndexOutOfRange = errors.New("region index out of range")
	ErrNotATable             = errors.New("container is not a table")
	ErrColumnNotFound        = errors.New("column not found")
)

// Reference-time errors.
var (
	ErrDanglingReference            = errors.New("dangling reference")
	ErrExternalReferenceUnsupported = errors.New("external reference unsupported")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrHandleNotFound  = errors.New("persisted handle not found")
)

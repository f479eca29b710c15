package inventory

import "errors"

// Error codes carried on the wire and in API replies. The strings match the
// upstream consumers of this service and must not change.
const (
	CodeCreatedExistingProduct  = "CREATED_EXISTING_PRODUCT"
	CodeInventoryNotFound       = "INVENTORY_NOT_FOUND"
	CodeProductNotEnough        = "PRODUCT_NOT_ENOUGH"
	CodeProductNotFound         = "PRODUCT_NOT_FOUND"
	CodeProductIsAlreadyDeleted = "PRODUCT_IS_ALREADY_DELETED"
	CodeUnknownEventType        = "UNKNOWN_EVENT_TYPE"
)

var (
	// ErrCreatedExistingProduct: a creation event met already existing state.
	ErrCreatedExistingProduct = errors.New(CodeCreatedExistingProduct)
	// ErrInventoryNotFound: a non-creation event met absent state.
	ErrInventoryNotFound = errors.New(CodeInventoryNotFound)
	// ErrProductNotEnough: a deduction exceeds the current quantity.
	ErrProductNotEnough = errors.New(CodeProductNotEnough)
	// ErrProductNotFound: the read-model row for a product is missing.
	ErrProductNotFound = errors.New(CodeProductNotFound)
	// ErrProductIsAlreadyDeleted: a command was issued against a deleted product.
	ErrProductIsAlreadyDeleted = errors.New(CodeProductIsAlreadyDeleted)
)

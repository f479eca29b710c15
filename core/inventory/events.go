// Package inventory holds the product inventory domain: the closed event
// set, the pure reducer rebuilding product state from a stream, the command
// functions enforcing business invariants, and the read-model projection.
package inventory

import (
	"fmt"
	"time"

	"github.com/SE121-UIT/inventory-service/core/es"
)

// Wire tags of the closed inventory event set.
const (
	EventTypeProductCreated        = "product-created"
	EventTypeProductDeleted        = "product-deleted"
	EventTypeProductAddQuantity    = "product-add-quantity"
	EventTypeProductDeductQuantity = "product-deduct-quantity"
	EventTypeProductUpdateInfo     = "product-update-info"
)

type (
	ProductCreated struct {
		ProductID string    `json:"productId"`
		Name      string    `json:"name"`
		Price     int64     `json:"price"`
		Desc      *string   `json:"desc,omitempty"`
		Quantity  int64     `json:"quantity"`
		CreatedAt time.Time `json:"createdAt"`
	}

	ProductDeleted struct {
		ProductID string `json:"productId"`
	}

	ProductAddQuantity struct {
		ProductID string `json:"productId"`
		Quantity  int64  `json:"quantity"`
	}

	ProductDeductQuantity struct {
		ProductID string `json:"productId"`
		Quantity  int64  `json:"quantity"`
	}

	// ProductUpdateInfo overwrites name/price only when provided. Desc is
	// always overwritten, including to empty, when the field was included.
	ProductUpdateInfo struct {
		ProductID string  `json:"productId"`
		Name      *string `json:"name,omitempty"`
		Price     *int64  `json:"price,omitempty"`
		Desc      *string `json:"desc,omitempty"`
	}
)

func (ProductCreated) EventType() string        { return EventTypeProductCreated }
func (ProductDeleted) EventType() string        { return EventTypeProductDeleted }
func (ProductAddQuantity) EventType() string    { return EventTypeProductAddQuantity }
func (ProductDeductQuantity) EventType() string { return EventTypeProductDeductQuantity }
func (ProductUpdateInfo) EventType() string     { return EventTypeProductUpdateInfo }

// RegisterEvents registers the inventory event set with a registry.
func RegisterEvents(r es.Registrar) error {
	return es.RegisterEvents(
		r,
		es.Event[ProductCreated](),
		es.Event[ProductDeleted](),
		es.Event[ProductAddQuantity](),
		es.Event[ProductDeductQuantity](),
		es.Event[ProductUpdateInfo](),
	)
}

// StreamName derives the deterministic stream name for a product.
func StreamName(productID string) string {
	return fmt.Sprintf("inventory-%s", productID)
}

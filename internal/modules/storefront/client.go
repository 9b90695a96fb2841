// Package storefront talks to the connected e-commerce platform's content
// management API: enumerating a tenant's products with their SEO-relevant
// fields and writing corrected values back.
package storefront

import (
	"context"
	"errors"

	"github.com/seopilot/core/internal/models"
)

// SEO-relevant product fields addressable by field updates.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldSEOTitle       = "seo_title"
	FieldSEODescription = "seo_description"
	FieldImageAltText   = "image_alt_text"
)

// ErrWriteTimeout marks a write whose outcome is unknown: the request was
// sent but no response arrived in time. Callers must not record the
// mutation as applied.
var ErrWriteTimeout = errors.New("storefront write timed out, outcome unknown")

// Product is one content resource with its current SEO-relevant fields.
type Product struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	SEOTitle       string `json:"seo_title"`
	SEODescription string `json:"seo_description"`
	ImageAltText   string `json:"image_alt_text"`
}

// Fields returns the product's SEO fields keyed by update field name.
func (p Product) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldTitle:          p.Title,
		FieldDescription:    p.Description,
		FieldSEOTitle:       p.SEOTitle,
		FieldSEODescription: p.SEODescription,
		FieldImageAltText:   p.ImageAltText,
	}
}

// Client is the content-management API surface the pipeline consumes.
//
// ListProducts returns resources in stable platform order. UpdateProduct
// batches all field changes for one resource into a single call and reports
// success or failure unambiguously; partial success is not a possible
// outcome.
type Client interface {
	ListProducts(ctx context.Context, conn *models.ConnectionModel) ([]Product, error)
	GetProduct(ctx context.Context, conn *models.ConnectionModel, productID string) (*Product, error)
	UpdateProduct(ctx context.Context, conn *models.ConnectionModel, productID string, fields map[string]interface{}) error
}

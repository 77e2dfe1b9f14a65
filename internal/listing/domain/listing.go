package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Listing represents a part offered for sale
type Listing struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Title        string    `json:"title" gorm:"type:text;not null"`
	Description  string    `json:"description" gorm:"type:text"`
	Price        *int64    `json:"price"`
	Location     string    `json:"location" gorm:"type:text"`
	ImageURL     string    `json:"image_url" gorm:"column:image_url;type:text"`
	ContactEmail string    `json:"contact_email" gorm:"type:text"`
	ContactPhone string    `json:"contact_phone" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime;index"`

	// ValidationToken is cleared once the listing has been validated
	ValidationToken *string `json:"-" gorm:"type:varchar(128);uniqueIndex"`
	IsValidated     bool    `json:"is_validated" gorm:"not null;default:false;index"`
}

// TableName specifies the table name
func (Listing) TableName() string {
	return "parts"
}

// ListingSummary is the public projection used by browse results
type ListingSummary struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        *int64    `json:"price"`
	Location     string    `json:"location"`
	ImageURL     string    `json:"image_url"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary drops the validation fields
func (l *Listing) Summary() ListingSummary {
	return ListingSummary{
		ID:           l.ID,
		Title:        l.Title,
		Description:  l.Description,
		Price:        l.Price,
		Location:     l.Location,
		ImageURL:     l.ImageURL,
		ContactEmail: l.ContactEmail,
		ContactPhone: l.ContactPhone,
		CreatedAt:    l.CreatedAt,
	}
}

// Token returns the pending validation token or "" once validated
func (l *Listing) Token() string {
	if l.ValidationToken == nil {
		return ""
	}
	return *l.ValidationToken
}

// ListingPatch carries the fields of a partial update. Nil means "leave as is".
// Validation state is deliberately absent: only RedeemToken may change it.
type ListingPatch struct {
	Title        *string
	Description  *string
	Price        *int64
	Location     *string
	ImageURL     *string
	ContactEmail *string
	ContactPhone *string

	// ClearPrice sets the price to NULL. Ignored when Price is set.
	ClearPrice bool
}

// IsEmpty reports whether the patch changes nothing
func (p ListingPatch) IsEmpty() bool {
	return len(p.Columns()) == 0
}

// Validate rejects patches that would break listing invariants
func (p ListingPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return InvalidInput("title must not be empty")
	}
	return nil
}

// Columns maps the present fields to their column names
func (p ListingPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Title != nil {
		cols["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	} else if p.ClearPrice {
		cols["price"] = nil
	}
	if p.Location != nil {
		cols["location"] = *p.Location
	}
	if p.ImageURL != nil {
		cols["image_url"] = *p.ImageURL
	}
	if p.ContactEmail != nil {
		cols["contact_email"] = *p.ContactEmail
	}
	if p.ContactPhone != nil {
		cols["contact_phone"] = *p.ContactPhone
	}
	return cols
}

// NewValidationToken mints an unguessable one-time token (random UUIDv4, hex)
func NewValidationToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ListingRepository defines the contract for listing data access.
// Missing ids are reported as ErrNotFound (FindByID) or false (Update,
// Delete, RedeemToken); connectivity problems as ErrStoreUnavailable.
type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	FindByID(ctx context.Context, id uint) (*Listing, error)
	FindValidated(ctx context.Context, limit int) ([]Listing, error)
	Update(ctx context.Context, id uint, patch ListingPatch) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
	RedeemToken(ctx context.Context, token string) (bool, error)
}

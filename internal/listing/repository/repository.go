package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

const defaultOperationTimeout = 5 * time.Second

// GormListingRepository implements domain.ListingRepository using GORM
type GormListingRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormListingRepository creates a repository whose calls are bounded by timeout
func NewGormListingRepository(db *gorm.DB, timeout time.Duration) *GormListingRepository {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &GormListingRepository{db: db, timeout: timeout}
}

// AutoMigrate runs database migrations
func (r *GormListingRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Listing{})
}

func (r *GormListingRepository) withTimeout(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

// Create inserts a new listing and fills its ID and CreatedAt
func (r *GormListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := db.Create(listing).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create listing: %w", domain.ErrDuplicateToken)
		}
		return fmt.Errorf("failed to create listing: %w", classify(err))
	}
	return nil
}

// FindByID retrieves a listing by ID regardless of its validation state
func (r *GormListingRepository) FindByID(ctx context.Context, id uint) (*domain.Listing, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var listing domain.Listing
	if err := db.First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find listing: %w", classify(err))
	}
	return &listing, nil
}

// FindValidated returns up to limit validated listings, newest first
func (r *GormListingRepository) FindValidated(ctx context.Context, limit int) ([]domain.Listing, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	listings := []domain.Listing{}
	err := db.
		Where("is_validated = ?", true).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list validated listings: %w", classify(err))
	}
	return listings, nil
}

// Update applies the fields present in patch. It reports false when the
// listing does not exist.
func (r *GormListingRepository) Update(ctx context.Context, id uint, patch domain.ListingPatch) (bool, error) {
	cols := patch.Columns()
	if len(cols) == 0 {
		return false, domain.InvalidInput("no updatable fields supplied")
	}

	db, cancel := r.withTimeout(ctx)
	defer cancel()

	result := db.Model(&domain.Listing{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update listing: %w", classify(result.Error))
	}
	return result.RowsAffected > 0, nil
}

// Delete removes a listing. It reports false when the listing does not exist.
func (r *GormListingRepository) Delete(ctx context.Context, id uint) (bool, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	result := db.Delete(&domain.Listing{}, id)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete listing: %w", classify(result.Error))
	}
	return result.RowsAffected > 0, nil
}

// RedeemToken validates the listing holding token in a single conditional
// UPDATE, so concurrent redemptions of one token succeed at most once.
func (r *GormListingRepository) RedeemToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	db, cancel := r.withTimeout(ctx)
	defer cancel()

	result := db.Model(&domain.Listing{}).
		Where("validation_token = ? AND is_validated = ?", token, false).
		Updates(map[string]interface{}{
			"is_validated":     true,
			"validation_token": gorm.Expr("NULL"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to redeem token: %w", classify(result.Error))
	}
	return result.RowsAffected == 1, nil
}

// classify maps connectivity failures onto domain.ErrStoreUnavailable and
// leaves every other error untouched.
func classify(err error) error {
	if isUnavailable(err) {
		return domain.StoreUnavailable(err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08: connection exception, 57P01-57P03: server shutting down
		return pqErr.Code.Class() == "08" ||
			pqErr.Code == "57P01" || pqErr.Code == "57P02" || pqErr.Code == "57P03"
	}

	// database/sql does not export its closed-pool error
	return strings.Contains(err.Error(), "sql: database is closed")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

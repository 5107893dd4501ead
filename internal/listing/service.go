// Package listing accepts community price submissions and normalises them
// into listings the repricing engine can consume.
package listing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumberlens/backend-lumber/internal/common"
	"github.com/lumberlens/backend-lumber/internal/lumber"
	"github.com/lumberlens/backend-lumber/internal/repo"
)

// SourceUser marks listings that came from community submissions.
const SourceUser = "user"

// Store defines the listing persistence the service needs.
type Store interface {
	Insert(ctx context.Context, n repo.NewListing) (repo.Listing, error)
}

// CatalogStore resolves the product and vendor a submission points at.
type CatalogStore interface {
	Get(ctx context.Context, id uuid.UUID) (repo.Product, error)
	GetVendor(ctx context.Context, id uuid.UUID) (repo.Vendor, error)
}

// Quota limits how many submissions a user may make per window.
type Quota interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Submission is the request payload for a price submission.
type Submission struct {
	ProductID  string `json:"productId" validate:"required,uuid"`
	VendorID   string `json:"vendorId" validate:"required,uuid"`
	PriceCents int64  `json:"priceCents" validate:"required,gt=0"`
	PriceUnit  string `json:"priceUnit" validate:"omitempty,oneof=piece board_foot linear_foot"`
	InStock    *bool  `json:"inStock"`
	Notes      string `json:"notes" validate:"omitempty,max=500"`
}

// Result is the accepted listing returned to the submitter.
type Result struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"productId"`
	VendorID   string     `json:"vendorId"`
	PriceCents int64      `json:"priceCents"`
	PriceUnit  string     `json:"priceUnit"`
	PerBFCents int64      `json:"perBfCents"`
	InStock    bool       `json:"inStock"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source"`
	CapturedAt time.Time  `json:"capturedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Service validates and stores community price submissions.
type Service struct {
	store      Store
	catalog    CatalogStore
	quota      Quota
	onQuotaErr func(error)
	validate   *validator.Validate
	expiry     time.Duration
	confidence float64
	quotaMax   int
	now        func() time.Time
}

// Config groups Service dependencies.
type Config struct {
	Store   Store
	Catalog CatalogStore
	Quota   Quota
	// OnQuotaError is invoked when the quota backend fails. The submission
	// proceeds anyway; the hook exists so a dead backend is visible.
	OnQuotaError func(error)
	Expiry       time.Duration
	Confidence   float64
	QuotaPerDay  int
}

// NewService constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("listing: store is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("listing: catalog store is required")
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 14 * 24 * time.Hour
	}
	confidence := cfg.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}
	quotaMax := cfg.QuotaPerDay
	if quotaMax <= 0 {
		quotaMax = 20
	}
	return &Service{
		store:      cfg.Store,
		catalog:    cfg.Catalog,
		quota:      cfg.Quota,
		onQuotaErr: cfg.OnQuotaError,
		validate:   validator.New(),
		expiry:     expiry,
		confidence: confidence,
		quotaMax:   quotaMax,
		now:        time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Submit records a user-observed price. The listing carries a reduced
// confidence and expires after the configured window.
func (s *Service) Submit(ctx context.Context, userID string, sub Submission) (Result, error) {
	sub.PriceUnit = strings.TrimSpace(strings.ToLower(sub.PriceUnit))
	if sub.PriceUnit == "" {
		sub.PriceUnit = lumber.UnitPiece
	}
	if err := s.validate.Struct(sub); err != nil {
		return Result{}, validationError(err)
	}

	uid, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return Result{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	productID, err := uuid.Parse(sub.ProductID)
	if err != nil {
		return Result{}, common.NewAppError("VALIDATION_ERROR", "productId must be a valid id", http.StatusBadRequest, err)
	}
	vendorID, err := uuid.Parse(sub.VendorID)
	if err != nil {
		return Result{}, common.NewAppError("VALIDATION_ERROR", "vendorId must be a valid id", http.StatusBadRequest, err)
	}

	if s.quota != nil {
		allowed, _, reset, err := s.quota.Allow(ctx, "listing:"+uid.String(), 24*time.Hour, s.quotaMax)
		switch {
		case err != nil:
			// Fail open, but surface the backend failure.
			if s.onQuotaErr != nil {
				s.onQuotaErr(err)
			}
		case !allowed:
			appErr := common.NewAppError("RATE_LIMITED", "submission quota exceeded", http.StatusTooManyRequests, nil)
			appErr.Details = map[string]any{"reset_at": reset}
			return Result{}, appErr
		}
	}

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Result{}, fmt.Errorf("get product: %w", err)
	}
	if _, err := s.catalog.GetVendor(ctx, vendorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{}, common.NewAppError("NOT_FOUND", "vendor not found", http.StatusNotFound, err)
		}
		return Result{}, fmt.Errorf("get vendor: %w", err)
	}

	inStock := true
	if sub.InStock != nil {
		inStock = *sub.InStock
	}

	// Submissions are stored per piece regardless of how the shopper saw the
	// price tag.
	perPiece := lumber.PerPieceCents(sub.PriceCents, sub.PriceUnit, product.BoardFeet)
	perBF := lumber.PerBoardFootCents(perPiece, lumber.UnitPiece, product.BoardFeet)

	now := s.now()
	expiresAt := now.Add(s.expiry)
	newListing := repo.NewListing{
		ProductID:   productID,
		VendorID:    vendorID,
		PriceCents:  perPiece,
		PriceUnit:   lumber.UnitPiece,
		InStock:     inStock,
		Confidence:  s.confidence,
		Source:      SourceUser,
		SubmittedBy: &uid,
		ExpiresAt:   &expiresAt,
	}
	if perBF > 0 {
		newListing.PricePerBFCents = &perBF
	}
	if notes := strings.TrimSpace(sub.Notes); notes != "" {
		newListing.Notes = &notes
	}

	stored, err := s.store.Insert(ctx, newListing)
	if err != nil {
		return Result{}, fmt.Errorf("insert listing: %w", err)
	}

	result := Result{
		ID:         stored.ID.String(),
		ProductID:  stored.ProductID.String(),
		VendorID:   stored.VendorID.String(),
		PriceCents: stored.PriceCents,
		PriceUnit:  stored.PriceUnit,
		PerBFCents: perBF,
		InStock:    stored.InStock,
		Confidence: stored.Confidence,
		Source:     stored.Source,
		CapturedAt: stored.CapturedAt,
		ExpiresAt:  stored.ExpiresAt,
	}
	return result, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		appErr := common.NewAppError("VALIDATION_ERROR", "invalid submission", http.StatusBadRequest, err)
		appErr.Details = details
		return appErr
	}
	return common.NewAppError("VALIDATION_ERROR", "invalid submission", http.StatusBadRequest, err)
}

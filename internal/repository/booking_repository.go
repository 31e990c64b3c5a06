package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	bookingDomain "github.com/Swiftline-Couriers/service-quotes/internal/domain/booking"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingModel is the GORM model for the submitted_bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Reference     string          `gorm:"uniqueIndex;not null;size:20"`
	SessionID     uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	TierName      string          `gorm:"not null;size:50"`
	Pickup        string          `gorm:"not null;size:500"`
	Destination   string          `gorm:"not null;size:500"`
	DistanceMiles float64         `gorm:"not null"`
	Price         float64         `gorm:"not null"`
	Breakdown     json.RawMessage `gorm:"type:jsonb;not null"`
	PaymentMethod string          `gorm:"not null;size:10"`
	PaymentStatus string          `gorm:"not null;size:10"`
	PickupDate    string          `gorm:"size:10"`
	PickupTime    string          `gorm:"size:5"`
	DropoffDate   string          `gorm:"size:10"`
	DropoffTime   string          `gorm:"size:5"`
	Contact       json.RawMessage `gorm:"type:jsonb;not null"`
	SubmittedAt   time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "submitted_bookings"
}

// GormBookingRepository is the GORM-based implementation of booking.Repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// Save persists a new record.
func (r *GormBookingRepository) Save(ctx context.Context, record *bookingDomain.Record) error {
	model, err := toBookingModel(record)
	if err != nil {
		return fmt.Errorf("failed to convert booking record to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking record: %w", err)
	}
	return nil
}

// FindByReference retrieves a record by its booking reference.
func (r *GormBookingRepository) FindByReference(ctx context.Context, reference string) (*bookingDomain.Record, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("booking", reference)
		}
		return nil, fmt.Errorf("failed to find booking by reference: %w", err)
	}
	return toDomainRecord(&model)
}

// FindBySessionID retrieves the record submitted from a given session.
func (r *GormBookingRepository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*bookingDomain.Record, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("booking", sessionID.String())
		}
		return nil, fmt.Errorf("failed to find booking by session: %w", err)
	}
	return toDomainRecord(&model)
}

// ListRecent retrieves the most recently submitted records with pagination.
func (r *GormBookingRepository) ListRecent(ctx context.Context, page, limit int) ([]*bookingDomain.Record, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count booking records: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("submitted_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list booking records: %w", err)
	}

	records := make([]*bookingDomain.Record, len(models))
	for i, m := range models {
		record, err := toDomainRecord(&m)
		if err != nil {
			return nil, 0, err
		}
		records[i] = record
	}
	return records, total, nil
}

// --- Conversion Helpers ---

func toBookingModel(record *bookingDomain.Record) (*BookingModel, error) {
	breakdownJSON, err := json.Marshal(record.Breakdown())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	contactJSON, err := json.Marshal(record.Contact())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contact: %w", err)
	}

	pickupDate, pickupTime, dropoffDate, dropoffTime := record.Schedule()
	return &BookingModel{
		ID:            record.ID(),
		Reference:     record.Reference(),
		SessionID:     record.SessionID(),
		TierName:      record.TierName(),
		Pickup:        record.Pickup(),
		Destination:   record.Destination(),
		DistanceMiles: record.DistanceMiles(),
		Price:         record.Price(),
		Breakdown:     breakdownJSON,
		PaymentMethod: record.PaymentMethod(),
		PaymentStatus: record.PaymentStatus(),
		PickupDate:    pickupDate,
		PickupTime:    pickupTime,
		DropoffDate:   dropoffDate,
		DropoffTime:   dropoffTime,
		Contact:       contactJSON,
		SubmittedAt:   record.SubmittedAt(),
	}, nil
}

func toDomainRecord(m *BookingModel) (*bookingDomain.Record, error) {
	var breakdown quote.Breakdown
	if err := json.Unmarshal(m.Breakdown, &breakdown); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
	}
	var contact map[string]string
	if err := json.Unmarshal(m.Contact, &contact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact: %w", err)
	}

	return bookingDomain.ReconstructRecord(
		m.ID,
		m.Reference,
		m.SessionID,
		m.TierName,
		m.Pickup,
		m.Destination,
		m.DistanceMiles,
		m.Price,
		breakdown,
		m.PaymentMethod,
		m.PaymentStatus,
		m.PickupDate,
		m.PickupTime,
		m.DropoffDate,
		m.DropoffTime,
		contact,
		m.SubmittedAt,
	), nil
}

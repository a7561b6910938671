// Package billing resolves plan entitlements and meters daily usage.
// Payment processing itself happens at an external provider; this package
// only reacts to its webhook events and enforces the resulting limits.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrQuotaExceeded = errors.New("daily quota exceeded for plan")
	ErrUnknownPlan   = errors.New("unknown plan")
	ErrUserNotFound  = errors.New("user not found")
)

// Entitlements are the limits a plan grants. Zero means unlimited.
type Entitlements struct {
	MaxJars          int
	AIRequestsPerDay int
	SpinsPerDay      int
}

var planEntitlements = map[string]Entitlements{
	models.PlanFree: {
		MaxJars:          3,
		AIRequestsPerDay: 5,
		SpinsPerDay:      3,
	},
	models.PlanPremium: {
		MaxJars:          0,
		AIRequestsPerDay: 50,
		SpinsPerDay:      0,
	},
}

// ForPlan returns the entitlements of a plan, defaulting unknown values to
// the free tier.
func ForPlan(plan string) Entitlements {
	if e, ok := planEntitlements[plan]; ok {
		return e
	}
	return planEntitlements[models.PlanFree]
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ConsumeAIRequest records one AI generation against today's allowance.
func (s *Service) ConsumeAIRequest(ctx context.Context, user *models.User) error {
	limit := ForPlan(user.Plan).AIRequestsPerDay
	return s.consume(ctx, user.ID, "ai_requests", limit)
}

// ConsumeSpin records one jar spin against today's allowance.
func (s *Service) ConsumeSpin(ctx context.Context, user *models.User) error {
	limit := ForPlan(user.Plan).SpinsPerDay
	return s.consume(ctx, user.ID, "spins", limit)
}

// consume increments the named counter for today, failing once the limit is
// hit. The check and increment share a transaction; the unique index on
// (user_id, day) keeps concurrent first-of-the-day increments from creating
// two rows.
func (s *Service) consume(ctx context.Context, userID uuid.UUID, column string, limit int) error {
	if limit <= 0 {
		return nil // unlimited
	}

	day := time.Now().UTC().Format("2006-01-02")

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		usage := models.DailyUsage{UserID: userID, Day: day}
		err := tx.Where("user_id = ? AND day = ?", userID, day).First(&usage).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&usage).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
		} else if err != nil {
			return err
		}

		result := tx.Model(&models.DailyUsage{}).
			Where("user_id = ? AND day = ? AND "+column+" < ?", userID, day, limit).
			Update(column, gorm.Expr(column+" + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrQuotaExceeded
		}
		return nil
	})
}

// SetPlan switches a user's plan. Called from the payment provider webhook.
func (s *Service) SetPlan(ctx context.Context, userID uuid.UUID, plan string) error {
	if _, ok := planEntitlements[plan]; !ok {
		return ErrUnknownPlan
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("plan", plan)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetPlanByEmail is the webhook variant for providers that only carry the
// customer email.
func (s *Service) SetPlanByEmail(ctx context.Context, email, plan string) error {
	if _, ok := planEntitlements[plan]; !ok {
		return ErrUnknownPlan
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return s.SetPlan(ctx, user.ID, plan)
}

// Package ideas manages the activity ideas inside a jar, including the spin
// (random selection) and the AI planner.
package ideas

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrIdeaNotFound = errors.New("idea not found")
	ErrNotMember    = errors.New("not a member of this jar")
	ErrNotAllowed   = errors.New("not allowed to modify this idea")
	ErrJarEmpty     = errors.New("no unpicked ideas left in jar")
)

type Service struct {
	db      *gorm.DB
	billing *billing.Service
}

func NewService(db *gorm.DB, billingService *billing.Service) *Service {
	return &Service{db: db, billing: billingService}
}

type AddInput struct {
	Title       string
	Description string
	Category    string
	CostHint    string
}

type ListFilter struct {
	Category     string
	UnpickedOnly bool
}

// Add inserts a member-suggested idea into the jar.
func (s *Service) Add(ctx context.Context, userID, jarID uuid.UUID, input AddInput) (*models.Idea, error) {
	if err := s.requireMember(ctx, userID, jarID); err != nil {
		return nil, err
	}

	idea := models.Idea{
		JarID:         jarID,
		Title:         input.Title,
		Description:   input.Description,
		Category:      input.Category,
		CostHint:      input.CostHint,
		Source:        models.IdeaSourceMember,
		SuggestedByID: &userID,
	}
	if err := s.db.WithContext(ctx).Create(&idea).Error; err != nil {
		return nil, err
	}
	return &idea, nil
}

// List returns the jar's ideas, newest first.
func (s *Service) List(ctx context.Context, userID, jarID uuid.UUID, filter ListFilter) ([]models.Idea, error) {
	if err := s.requireMember(ctx, userID, jarID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("jar_id = ?", jarID)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.UnpickedOnly {
		query = query.Where("picked_at IS NULL")
	}

	var list []models.Idea
	err := query.Order("created_at DESC").Find(&list).Error
	return list, err
}

type UpdateInput struct {
	Title       string
	Description string
	Category    string
	CostHint    string
}

// Update edits an idea. Only the suggesting member or the jar owner may edit.
func (s *Service) Update(ctx context.Context, userID, ideaID uuid.UUID, input UpdateInput) (*models.Idea, error) {
	idea, err := s.authorize(ctx, userID, ideaID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Title != "" {
		updates["title"] = input.Title
	}
	if input.Description != "" {
		updates["description"] = input.Description
	}
	if input.Category != "" {
		updates["category"] = input.Category
	}
	if input.CostHint != "" {
		updates["cost_hint"] = input.CostHint
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(idea).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return idea, nil
}

// Delete removes an idea. Same authorization as Update.
func (s *Service) Delete(ctx context.Context, userID, ideaID uuid.UUID) error {
	idea, err := s.authorize(ctx, userID, ideaID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(idea).Error
}

// Spin picks one unpicked idea uniformly at random and marks it picked.
// Counts against the caller's daily spin allowance.
func (s *Service) Spin(ctx context.Context, user *models.User, jarID uuid.UUID) (*models.Idea, error) {
	if err := s.requireMember(ctx, user.ID, jarID); err != nil {
		return nil, err
	}

	if err := s.billing.ConsumeSpin(ctx, user); err != nil {
		return nil, err
	}

	var picked models.Idea
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.Idea
		if err := tx.Where("jar_id = ? AND picked_at IS NULL", jarID).Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidates) == 0 {
			return ErrJarEmpty
		}

		picked = candidates[rand.IntN(len(candidates))]
		now := time.Now().UTC()
		return tx.Model(&picked).Updates(map[string]interface{}{
			"picked_at":    now,
			"picked_by_id": user.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return &picked, nil
}

func (s *Service) requireMember(ctx context.Context, userID, jarID uuid.UUID) error {
	var membership models.Membership
	err := s.db.WithContext(ctx).Where("user_id = ? AND jar_id = ? AND status = ?",
		userID, jarID, models.MembershipActive).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}
	return nil
}

// authorize loads an idea and checks the caller may modify it: either they
// suggested it, or they own the jar it lives in.
func (s *Service) authorize(ctx context.Context, userID, ideaID uuid.UUID) (*models.Idea, error) {
	var idea models.Idea
	if err := s.db.WithContext(ctx).First(&idea, ideaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdeaNotFound
		}
		return nil, err
	}

	if idea.SuggestedByID != nil && *idea.SuggestedByID == userID {
		return &idea, nil
	}

	var membership models.Membership
	err := s.db.WithContext(ctx).Where("user_id = ? AND jar_id = ? AND status = ? AND role = ?",
		userID, idea.JarID, models.MembershipActive, models.RoleOwner).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAllowed
		}
		return nil, err
	}
	return &idea, nil
}

// Package jars implements the jar membership lifecycle: invite-code
// resolution, join/leave, jar deletion, and the per-user active-jar pointer.
package jars

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrJarNotFound        = errors.New("jar not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrNotMember          = errors.New("not a member of this jar")
	ErrNotOwner           = errors.New("not an owner of this jar")
	ErrInviteTokenInvalid = errors.New("invite token missing or invalid")
	ErrJarLimitReached    = errors.New("jar limit reached for plan")
	ErrUserNotFound       = errors.New("user not found")
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// JarSummary is the public view of a jar returned to members and joiners.
type JarSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Topic       string    `json:"topic,omitempty"`
	Location    string    `json:"location,omitempty"`
	RefCode     string    `json:"ref_code"`
	IsCommunity bool      `json:"is_community"`
	MemberCount int64     `json:"member_count"`
}

// MemberInfo is one row of a jar's member listing.
type MemberInfo struct {
	UserID   uuid.UUID             `json:"user_id"`
	Name     string                `json:"name"`
	Role     models.MembershipRole `json:"role"`
	JoinedAt time.Time             `json:"joined_at"`
}

// JarWithRole pairs a jar with the caller's role in it.
type JarWithRole struct {
	Jar  models.Jar            `json:"jar"`
	Role models.MembershipRole `json:"role"`
}

type CreateInput struct {
	Name        string
	Topic       string
	Location    string
	IsCommunity bool
	InviteGated bool
}

// ResolveCode maps an invite code to its jar. Read-only; no side effects.
func (s *Service) ResolveCode(ctx context.Context, code string) (*models.Jar, error) {
	var jar models.Jar
	if err := s.db.WithContext(ctx).Where("ref_code = ?", code).First(&jar).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJarNotFound
		}
		return nil, err
	}
	return &jar, nil
}

// Join attaches the user to the jar identified by code. Already a member is
// success, not an error: an active membership is returned as-is and a left or
// removed one is reactivated in place. The membership write and the
// active-jar switch share one transaction. Duplicate memberships under
// concurrent joins are prevented by the unique index on (user_id, jar_id),
// not by the existence check.
func (s *Service) Join(ctx context.Context, userID uuid.UUID, code, inviteToken string) (*JarSummary, error) {
	jar, err := s.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if jar.InviteGated {
		if err := s.checkInviteToken(ctx, jar, inviteToken); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership models.Membership
		err := tx.Where("user_id = ? AND jar_id = ?", userID, jar.ID).First(&membership).Error
		switch {
		case err == nil:
			if !membership.IsActive() {
				if err := tx.Model(&membership).Update("status", models.MembershipActive).Error; err != nil {
					return err
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			membership = models.Membership{
				UserID:   userID,
				JarID:    jar.ID,
				Role:     models.RoleMember,
				Status:   models.MembershipActive,
				JoinedAt: time.Now().UTC(),
			}
			if err := tx.Create(&membership).Error; err != nil {
				// A concurrent join won the race on the unique index; the
				// membership exists now, which is what we wanted.
				if !errors.Is(err, gorm.ErrDuplicatedKey) {
					return err
				}
			}
		default:
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("active_jar_id", jar.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user joined jar", "user_id", userID, "jar_id", jar.ID, "ref_code", jar.RefCode)

	return s.summarize(ctx, jar)
}

// Leave removes the caller's active membership. The row is status-marked
// rather than deleted so a later re-join reactivates it. If the jar was the
// caller's active jar the pointer is nulled; it is never auto-reassigned.
// A second leave finds no active membership and returns ErrMembershipNotFound.
func (s *Service) Leave(ctx context.Context, userID, jarID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership models.Membership
		err := tx.Where("user_id = ? AND jar_id = ? AND status = ?",
			userID, jarID, models.MembershipActive).First(&membership).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMembershipNotFound
			}
			return err
		}

		if err := tx.Model(&membership).Update("status", models.MembershipLeft).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ? AND active_jar_id = ?", userID, jarID).
			Update("active_jar_id", nil).Error
	})
}

// Delete removes a jar and everything hanging off it: ideas, reminders,
// memberships, and every user's active-jar pointer into it. All writes run in
// one transaction; a partially deleted jar is a correctness violation.
// Only an owner-role member may delete.
func (s *Service) Delete(ctx context.Context, userID, jarID uuid.UUID) error {
	var jar models.Jar
	if err := s.db.WithContext(ctx).First(&jar, jarID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJarNotFound
		}
		return err
	}

	var membership models.Membership
	err := s.db.WithContext(ctx).Where("user_id = ? AND jar_id = ? AND status = ?",
		userID, jarID, models.MembershipActive).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotOwner
		}
		return err
	}
	if membership.Role != models.RoleOwner {
		return ErrNotOwner
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("jar_id = ?", jarID).Delete(&models.Idea{}).Error; err != nil {
			return err
		}
		if err := tx.Where("jar_id = ?", jarID).Delete(&models.Reminder{}).Error; err != nil {
			return err
		}
		if err := tx.Where("jar_id = ?", jarID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("active_jar_id = ?", jarID).
			Update("active_jar_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&jar).Error
	})
}

// SwitchActive points the user's active-jar pointer at jarID. Requires an
// active membership; the pointer may only ever reference a jar the user is in.
func (s *Service) SwitchActive(ctx context.Context, userID, jarID uuid.UUID) error {
	var membership models.Membership
	err := s.db.WithContext(ctx).Where("user_id = ? AND jar_id = ? AND status = ?",
		userID, jarID, models.MembershipActive).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}

	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("active_jar_id", jarID).Error
}

// ClearActive nulls the user's active-jar pointer. Always succeeds for an
// existing user.
func (s *Service) ClearActive(ctx context.Context, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("active_jar_id", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Create makes a new jar with the caller as owner and switches focus to it.
// maxJars <= 0 means unlimited.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, input CreateInput, maxJars int) (*models.Jar, error) {
	if maxJars > 0 {
		var owned int64
		err := s.db.WithContext(ctx).Model(&models.Membership{}).
			Where("user_id = ? AND role = ? AND status = ?", userID, models.RoleOwner, models.MembershipActive).
			Count(&owned).Error
		if err != nil {
			return nil, err
		}
		if owned >= int64(maxJars) {
			return nil, ErrJarLimitReached
		}
	}

	var jar models.Jar
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Retry ref-code generation on the rare unique-index collision.
		for attempt := 0; ; attempt++ {
			refCode, err := models.NewRefCode()
			if err != nil {
				return err
			}
			jar = models.Jar{
				Name:        input.Name,
				Topic:       input.Topic,
				Location:    input.Location,
				RefCode:     refCode,
				OwnerID:     userID,
				IsCommunity: input.IsCommunity,
				InviteGated: input.InviteGated,
			}
			err = tx.Create(&jar).Error
			if err == nil {
				break
			}
			if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt >= 3 {
				return err
			}
		}

		membership := models.Membership{
			UserID:   userID,
			JarID:    jar.ID,
			Role:     models.RoleOwner,
			Status:   models.MembershipActive,
			JoinedAt: time.Now().UTC(),
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("active_jar_id", jar.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return &jar, nil
}

// ListForUser returns the jars the user holds an active membership in,
// together with the role held.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]JarWithRole, error) {
	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Preload("Jar").
		Where("user_id = ? AND status = ?", userID, models.MembershipActive).
		Order("joined_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	result := make([]JarWithRole, 0, len(memberships))
	for _, m := range memberships {
		if m.Jar == nil {
			continue
		}
		result = append(result, JarWithRole{Jar: *m.Jar, Role: m.Role})
	}
	return result, nil
}

// Summary returns the jar's public summary. The caller must be an active
// member.
func (s *Service) Summary(ctx context.Context, userID, jarID uuid.UUID) (*JarSummary, error) {
	jar, err := s.requireMember(ctx, userID, jarID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, jar)
}

// Members lists a jar's active members. The caller must be one of them.
func (s *Service) Members(ctx context.Context, userID, jarID uuid.UUID) ([]MemberInfo, *models.Jar, error) {
	jar, err := s.requireMember(ctx, userID, jarID)
	if err != nil {
		return nil, nil, err
	}

	var memberships []models.Membership
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("jar_id = ? AND status = ?", jarID, models.MembershipActive).
		Order("joined_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, nil, err
	}

	members := make([]MemberInfo, 0, len(memberships))
	for _, m := range memberships {
		info := MemberInfo{
			UserID:   m.UserID,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
		if m.User != nil {
			info.Name = m.User.Name
		}
		members = append(members, info)
	}
	return members, jar, nil
}

// MemberIDs returns the user ids of a jar's active members. Used for push
// notification fan-out.
func (s *Service) MemberIDs(ctx context.Context, jarID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("jar_id = ? AND status = ?", jarID, models.MembershipActive).
		Pluck("user_id", &ids).Error
	return ids, err
}

// RegenerateInviteToken issues a fresh invite token for the user, invalidating
// the previous one: only the single current value is stored.
func (s *Service) RegenerateInviteToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := crypto.GenerateRandomString(32)
	if err != nil {
		return "", err
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("invite_token", token)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", ErrUserNotFound
	}
	return token, nil
}

func (s *Service) checkInviteToken(ctx context.Context, jar *models.Jar, supplied string) error {
	if supplied == "" {
		return ErrInviteTokenInvalid
	}

	var owner models.User
	if err := s.db.WithContext(ctx).First(&owner, jar.OwnerID).Error; err != nil {
		return ErrInviteTokenInvalid
	}
	if owner.InviteToken == "" {
		return ErrInviteTokenInvalid
	}
	if subtle.ConstantTimeCompare([]byte(owner.InviteToken), []byte(supplied)) != 1 {
		return ErrInviteTokenInvalid
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, userID, jarID uuid.UUID) (*models.Jar, error) {
	var jar models.Jar
	if err := s.db.WithContext(ctx).First(&jar, jarID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJarNotFound
		}
		return nil, err
	}

	var membership models.Membership
	err := s.db.WithContext(ctx).Where("user_id = ? AND jar_id = ? AND status = ?",
		userID, jarID, models.MembershipActive).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return &jar, nil
}

func (s *Service) summarize(ctx context.Context, jar *models.Jar) (*JarSummary, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("jar_id = ? AND status = ?", jar.ID, models.MembershipActive).
		Count(&count).Error
	if err != nil {
		return nil, err
	}

	return &JarSummary{
		ID:          jar.ID,
		Name:        jar.Name,
		Topic:       jar.Topic,
		Location:    jar.Location,
		RefCode:     jar.RefCode,
		IsCommunity: jar.IsCommunity,
		MemberCount: count,
	}, nil
}

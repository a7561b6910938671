package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"gorm.io/gorm"
)

var ErrDeviceNotFound = errors.New("device token not found")

// DeviceService manages the device token registry.
type DeviceService struct {
	db *gorm.DB
}

func NewDeviceService(db *gorm.DB) *DeviceService {
	return &DeviceService{db: db}
}

// Register stores a device token for the user. Registering a token that
// already exists re-homes it to the new user (same device, new login).
func (s *DeviceService) Register(ctx context.Context, userID uuid.UUID, token, platform string) (*models.DeviceToken, error) {
	var device models.DeviceToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&device).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Model(&device).
			Updates(map[string]interface{}{"user_id": userID, "platform": platform}).Error; err != nil {
			return nil, err
		}
		device.UserID = userID
		device.Platform = platform
		return &device, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		device = models.DeviceToken{
			UserID:   userID,
			Token:    token,
			Platform: platform,
		}
		if err := s.db.WithContext(ctx).Create(&device).Error; err != nil {
			return nil, err
		}
		return &device, nil
	default:
		return nil, err
	}
}

// Unregister removes a token owned by the user.
func (s *DeviceService) Unregister(ctx context.Context, userID uuid.UUID, token string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.DeviceToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// TokensForUsers collects the device tokens of the given users.
func (s *DeviceService) TokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var tokens []string
	err := s.db.WithContext(ctx).Model(&models.DeviceToken{}).
		Where("user_id IN ?", userIDs).
		Pluck("token", &tokens).Error
	return tokens, err
}

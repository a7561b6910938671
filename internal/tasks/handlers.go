package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/ideas"
	"github.com/graemedakers/decision-jar/internal/jars"
	"github.com/graemedakers/decision-jar/internal/notify"
	"github.com/graemedakers/decision-jar/pkg/util"
	"gorm.io/gorm"
)

type Handler struct {
	db         *gorm.DB
	logger     *slog.Logger
	jarService *jars.Service
	planner    *ideas.Planner
	pusher     notify.Pusher
	devices    *notify.DeviceService
}

func NewHandler(db *gorm.DB, logger *slog.Logger, jarService *jars.Service, planner *ideas.Planner, pusher notify.Pusher, devices *notify.DeviceService) *Handler {
	return &Handler{
		db:         db,
		logger:     logger,
		jarService: jarService,
		planner:    planner,
		pusher:     pusher,
		devices:    devices,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePushNotify, h.HandlePushNotify)
	mux.HandleFunc(TypeIdeaGenerate, h.HandleIdeaGenerate)
	mux.HandleFunc(TypeReminderTick, h.HandleReminderTick)
}

func (h *Handler) HandlePushNotify(ctx context.Context, t *asynq.Task) error {
	var payload PushNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("fanning out push notification",
		"jar_id", payload.JarID,
		"title", payload.Title,
	)

	memberIDs, err := h.jarService.MemberIDs(ctx, payload.JarID)
	if err != nil {
		return fmt.Errorf("loading jar members: %w", err)
	}

	recipients := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != payload.ActorID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	tokens, err := h.devices.TokensForUsers(ctx, recipients)
	if err != nil {
		return fmt.Errorf("loading device tokens: %w", err)
	}

	if err := h.pusher.Send(ctx, notify.Message{
		Tokens: tokens,
		Title:  payload.Title,
		Body:   payload.Body,
		Data:   payload.Data,
	}); err != nil {
		h.logger.Error("push delivery failed", "jar_id", payload.JarID, "error", err)
		return err
	}

	h.logger.Info("push notification delivered",
		"jar_id", payload.JarID,
		"recipients", len(recipients),
		"devices", len(tokens),
	)
	return nil
}

func (h *Handler) HandleIdeaGenerate(ctx context.Context, t *asynq.Task) error {
	var payload IdeaGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("generating ideas",
		"jar_id", payload.JarID,
		"user_id", payload.UserID,
		"count", payload.Count,
	)

	stored, err := h.planner.Suggest(ctx, payload.UserID, payload.JarID, payload.Prompt, payload.Count)
	if err != nil {
		h.logger.Error("idea generation failed", "jar_id", payload.JarID, "error", err)
		return err
	}

	task, err := NewPushNotifyTask(PushNotifyPayload{
		JarID:   payload.JarID,
		ActorID: uuid.Nil, // everyone hears about new AI ideas, including the requester
		Title:   "New ideas in your jar",
		Body:    fmt.Sprintf("%d fresh ideas were added. Give it a spin!", len(stored)),
		Data:    map[string]string{"jar_id": payload.JarID.String()},
	})
	if err != nil {
		return err
	}
	return h.HandlePushNotify(ctx, task)
}

// HandleReminderTick sweeps reminders that are due, nudges the jar's members,
// and advances each reminder to its next occurrence. A reminder whose cron
// expression no longer parses is disabled rather than retried forever.
func (h *Handler) HandleReminderTick(ctx context.Context, t *asynq.Task) error {
	now := time.Now().UTC()

	var due []models.Reminder
	if err := h.db.WithContext(ctx).
		Where("is_enabled = ? AND next_run_at > 0 AND next_run_at <= ?", true, now.Unix()).
		Preload("Jar").
		Find(&due).Error; err != nil {
		return fmt.Errorf("loading due reminders: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	h.logger.Info("processing due reminders", "count", len(due))

	for _, reminder := range due {
		if err := h.fireReminder(ctx, reminder, now); err != nil {
			h.logger.Error("reminder failed",
				"reminder_id", reminder.ID,
				"jar_id", reminder.JarID,
				"error", err,
			)
		}
	}
	return nil
}

func (h *Handler) fireReminder(ctx context.Context, reminder models.Reminder, now time.Time) error {
	jarName := "your jar"
	if reminder.Jar != nil {
		jarName = reminder.Jar.Name
	}

	task, err := NewPushNotifyTask(PushNotifyPayload{
		JarID:   reminder.JarID,
		ActorID: uuid.Nil,
		Title:   "Time to spin the jar",
		Body:    fmt.Sprintf("%s is waiting. Pick something to do together!", jarName),
		Data:    map[string]string{"jar_id": reminder.JarID.String()},
	})
	if err != nil {
		return err
	}
	if err := h.HandlePushNotify(ctx, task); err != nil {
		return err
	}

	next, err := util.NextCronTime(reminder.CronExpr, now)
	if err != nil {
		h.logger.Warn("disabling reminder with invalid schedule",
			"reminder_id", reminder.ID,
			"cron", reminder.CronExpr,
		)
		return h.db.WithContext(ctx).Model(&models.Reminder{}).
			Where("id = ?", reminder.ID).
			Update("is_enabled", false).Error
	}

	lastRun := now.Unix()
	return h.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ?", reminder.ID).
		Updates(map[string]interface{}{
			"last_run_at": lastRun,
			"next_run_at": next.Unix(),
		}).Error
}

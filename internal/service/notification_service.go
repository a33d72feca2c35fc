package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"courtyard/internal/directory"
	"courtyard/internal/featureflags"
	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/notifications"
	"courtyard/internal/observability"
	"courtyard/internal/push"
	"courtyard/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// nowFunc is swapped in tests for deterministic timestamps.
var nowFunc = time.Now

// NotificationService stores notifications, resolves their audience and
// fans them out over push and realtime channels.
type NotificationService struct {
	notifRepo  repository.NotificationRepository
	tokenRepo  repository.DeviceTokenRepository
	dispatcher push.Dispatcher
	notifier   *notifications.Notifier
	flags      *featureflags.Manager
	directory  *directory.Client
}

type CreateNotificationInput struct {
	Type             models.NotificationType  `json:"type"`
	Title            string                   `json:"title"`
	Message          string                   `json:"message"`
	Scope            models.NotificationScope `json:"scope"`
	TargetBuildingID *uuid.UUID               `json:"target_building_id"`
	TargetRole       string                   `json:"target_role"`
	TargetResidentID *uuid.UUID               `json:"target_resident_id"`
	ReferenceID      *uuid.UUID               `json:"reference_id"`
	ReferenceType    string                   `json:"reference_type"`
	ActionURL        string                   `json:"action_url"`
	IconURL          string                   `json:"icon_url"`
}

// ResidentNotificationInput is the service-to-service payload for
// resident-scoped notifications carrying the dedupe triple.
type ResidentNotificationInput struct {
	ResidentID    uuid.UUID               `json:"resident_id"`
	Type          models.NotificationType `json:"type"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	ReferenceID   *uuid.UUID              `json:"reference_id"`
	ReferenceType string                  `json:"reference_type"`
	ActionURL     string                  `json:"action_url"`
}

type UpdateNotificationInput struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url"`
	IconURL   string `json:"icon_url"`
}

// NewNotificationService wires the fan-out pipeline. dir may be nil when no
// directory service is configured; household push resolution is skipped then.
func NewNotificationService(
	notifRepo repository.NotificationRepository,
	tokenRepo repository.DeviceTokenRepository,
	dispatcher push.Dispatcher,
	notifier *notifications.Notifier,
	flags *featureflags.Manager,
	dir *directory.Client,
) *NotificationService {
	return &NotificationService{
		notifRepo:  notifRepo,
		tokenRepo:  tokenRepo,
		dispatcher: dispatcher,
		notifier:   notifier,
		flags:      flags,
		directory:  dir,
	}
}

// Create validates, stores and fans out a notification.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	if in.Title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if in.Type == "" {
		return nil, models.NewValidationError("Type is required")
	}

	n := &models.Notification{
		Type:             in.Type,
		Title:            in.Title,
		Message:          in.Message,
		Scope:            in.Scope,
		TargetBuildingID: in.TargetBuildingID,
		TargetRole:       in.TargetRole,
		TargetResidentID: in.TargetResidentID,
		ReferenceID:      in.ReferenceID,
		ReferenceType:    in.ReferenceType,
		ActionURL:        in.ActionURL,
		IconURL:          in.IconURL,
	}
	if err := n.ValidateScope(); err != nil {
		return nil, err
	}

	if err := s.notifRepo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.fanOut(ctx, n)
	return n, nil
}

// CreateForResident is the internal resident-scoped path with the dedupe
// guard: when a notification sharing (reference id, type, resident id)
// already exists, nothing new is stored and neither push nor realtime
// fires — the caller gets the existing record back.
func (s *NotificationService) CreateForResident(ctx context.Context, in ResidentNotificationInput) (*models.Notification, bool, error) {
	if in.ResidentID == uuid.Nil {
		return nil, false, models.NewValidationError("resident_id is required")
	}
	if in.Title == "" {
		return nil, false, models.NewValidationError("Title is required")
	}
	if in.Type == "" {
		return nil, false, models.NewValidationError("Type is required")
	}

	if in.ReferenceID != nil {
		existing, err := s.notifRepo.FindByReference(ctx, *in.ReferenceID, in.Type, in.ResidentID)
		if err != nil {
			return nil, false, err
		}
		if len(existing) > 0 {
			observability.NotificationsDeduped.Inc()
			return existing[0], false, nil
		}
	}

	n := &models.Notification{
		Type:             in.Type,
		Title:            in.Title,
		Message:          in.Message,
		Scope:            models.ScopeResident,
		TargetResidentID: &in.ResidentID,
		ReferenceID:      in.ReferenceID,
		ReferenceType:    in.ReferenceType,
		ActionURL:        in.ActionURL,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return nil, false, err
	}

	s.fanOut(ctx, n)
	return n, true, nil
}

// GetByID returns one active notification.
func (s *NotificationService) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	n, err := s.notifRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Notification", id)
		}
		return nil, err
	}
	if n.IsDeleted() {
		return nil, models.NewNotFoundError("Notification", id)
	}
	return n, nil
}

// ListActive returns all notifications that were not soft-deleted.
func (s *NotificationService) ListActive(ctx context.Context) ([]*models.Notification, error) {
	return s.notifRepo.ListActive(ctx)
}

// Feed pages one resident's notification feed, newest first.
func (s *NotificationService) Feed(ctx context.Context, residentID uuid.UUID, buildingID *uuid.UUID, page, size int) ([]*models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return s.notifRepo.ListForResident(ctx, residentID, buildingID, page, size)
}

// Update edits the presentation fields of an active notification. Edits
// announce the new content on the realtime topics but never re-send push;
// re-pushing on every typo fix would spam devices.
func (s *NotificationService) Update(ctx context.Context, id uuid.UUID, in UpdateNotificationInput) (*models.Notification, error) {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, models.NewValidationError("Title is required")
	}

	n.Title = in.Title
	n.Message = in.Message
	n.ActionURL = in.ActionURL
	n.IconURL = in.IconURL
	if err := s.notifRepo.Update(ctx, n); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, n, "notification_updated", n)
	return n, nil
}

// SoftDelete hides a notification from every read path while keeping the
// row, and tells connected clients to drop it.
func (s *NotificationService) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID) error {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := nowFunc()
	n.DeletedAt = &now
	n.DeletedBy = &deletedBy
	if err := s.notifRepo.Update(ctx, n); err != nil {
		return err
	}

	s.publishEvent(ctx, n, "notification_deleted", map[string]string{"id": n.ID.String()})
	return nil
}

// NotifyCommentCreated produces the resident-scoped notifications for a new
// comment: a reply notice for the parent author and a comment notice for the
// post owner. Self-notifications are suppressed and failures only logged —
// the comment is already saved.
func (s *NotificationService) NotifyCommentCreated(ctx context.Context, post *models.Post, comment *models.Comment, parent *models.Comment) {
	refID := comment.ID

	if parent != nil && parent.ResidentID != comment.ResidentID {
		_, _, err := s.CreateForResident(ctx, ResidentNotificationInput{
			ResidentID:    parent.ResidentID,
			Type:          models.TypeCommentReply,
			Title:         "New reply to your comment",
			Message:       snippet(comment.Content),
			ReferenceID:   &refID,
			ReferenceType: "COMMENT",
			ActionURL:     "/posts/" + post.ID.String(),
		})
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "reply notification failed",
				slog.String("comment_id", comment.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	notifyOwner := post.ResidentID != comment.ResidentID &&
		(parent == nil || post.ResidentID != parent.ResidentID)
	if notifyOwner {
		_, _, err := s.CreateForResident(ctx, ResidentNotificationInput{
			ResidentID:    post.ResidentID,
			Type:          models.TypeCommentCreated,
			Title:         "New comment on your post",
			Message:       snippet(comment.Content),
			ReferenceID:   &refID,
			ReferenceType: "COMMENT",
			ActionURL:     "/posts/" + post.ID.String(),
		})
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "comment notification failed",
				slog.String("comment_id", comment.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// fanOut delivers a stored notification to its audience over realtime and
// push. Both legs are best-effort and individually feature-flagged.
func (s *NotificationService) fanOut(ctx context.Context, n *models.Notification) {
	s.publishEvent(ctx, n, "notification", n)

	if s.dispatcher != nil && s.flags.Enabled("push_fanout", n.ID.String()) {
		s.pushOut(ctx, n, n.Audience())
	}
}

// publishEvent pushes a lifecycle event for the notification onto its
// audience topics. Best-effort.
func (s *NotificationService) publishEvent(ctx context.Context, n *models.Notification, event string, body any) {
	if s.notifier == nil || !s.flags.Enabled("realtime_fanout", n.ID.String()) {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":    event,
		"payload": body,
	})
	if err != nil {
		return
	}
	topics := notifications.TopicsFor(n.Audience())
	if err := s.notifier.PublishAll(ctx, topics, string(payload)); err != nil {
		middleware.Logger.ErrorContext(ctx, "realtime publish failed",
			slog.String("notification_id", n.ID.String()),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *NotificationService) pushOut(ctx context.Context, n *models.Notification, audience models.Audience) {
	tokens, err := s.resolveTokens(ctx, audience)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "token resolution failed",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(tokens) == 0 {
		return
	}

	data := map[string]string{
		"notification_id": n.ID.String(),
		"type":            string(n.Type),
	}
	if n.ActionURL != "" {
		data["action_url"] = n.ActionURL
	}
	if n.ReferenceID != nil {
		data["reference_id"] = n.ReferenceID.String()
		data["reference_type"] = n.ReferenceType
	}

	result, err := s.dispatcher.Send(ctx, tokens, push.Payload{
		Title:    n.Title,
		Body:     n.Message,
		Data:     data,
		ImageURL: n.IconURL,
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "push dispatch failed",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	observability.PushDelivered.WithLabelValues(string(n.Type)).Add(float64(result.Delivered))
	observability.PushFailed.WithLabelValues(string(n.Type)).Add(float64(result.Failed))

	if len(result.Invalid) > 0 {
		if err := s.tokenRepo.Disable(ctx, result.Invalid); err != nil {
			middleware.Logger.ErrorContext(ctx, "disabling rejected tokens failed",
				slog.Int("tokens", len(result.Invalid)),
				slog.String("error", err.Error()),
			)
		} else {
			observability.PushTokensDisabled.Add(float64(len(result.Invalid)))
		}
	}

	middleware.Logger.InfoContext(ctx, "push fan-out complete",
		slog.String("notification_id", n.ID.String()),
		slog.Int("delivered", result.Delivered),
		slog.Int("failed", result.Failed),
		slog.Int("disabled", len(result.Invalid)),
	)
}

// resolveTokens maps a delivery audience to the active device tokens it
// covers. The switch is exhaustive over the audience kinds; disabled tokens
// never come back from the repository.
func (s *NotificationService) resolveTokens(ctx context.Context, a models.Audience) ([]string, error) {
	switch a.Kind {
	case models.AudienceResident:
		return s.tokenRepo.ListForResident(ctx, a.ResidentID)
	case models.AudienceBuilding:
		return s.tokenRepo.ListForBuilding(ctx, a.BuildingID)
	case models.AudienceRole:
		return s.tokenRepo.ListForRole(ctx, a.Role)
	case models.AudienceBroadcast:
		return s.tokenRepo.ListActive(ctx)
	default:
		return nil, nil
	}
}

// PushOnlyInput is an ephemeral push: delivered to devices but never stored,
// so it leaves no feed entry. With a unit_id the push also reaches the unit's
// other active residents, resolved through the directory service.
type PushOnlyInput struct {
	ResidentID uuid.UUID         `json:"resident_id"`
	UnitID     *uuid.UUID        `json:"unit_id"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Data       map[string]string `json:"data"`
}

// SendPushOnly delivers a push without storing a notification. Returns how
// many devices accepted it.
func (s *NotificationService) SendPushOnly(ctx context.Context, in PushOnlyInput) (int, error) {
	if in.ResidentID == uuid.Nil && in.UnitID == nil {
		return 0, models.NewValidationError("resident_id or unit_id is required")
	}
	if in.Title == "" {
		return 0, models.NewValidationError("Title is required")
	}
	subject := in.ResidentID.String()
	if in.ResidentID == uuid.Nil {
		subject = in.UnitID.String()
	}
	if s.dispatcher == nil || !s.flags.Enabled("push_fanout", subject) {
		return 0, nil
	}

	tokens, err := s.pushOnlyTokens(ctx, in)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	result, err := s.dispatcher.Send(ctx, tokens, push.Payload{
		Title: in.Title,
		Body:  in.Message,
		Data:  in.Data,
	})
	if err != nil {
		return 0, err
	}

	observability.PushDelivered.WithLabelValues("EPHEMERAL").Add(float64(result.Delivered))
	observability.PushFailed.WithLabelValues("EPHEMERAL").Add(float64(result.Failed))
	if len(result.Invalid) > 0 {
		if err := s.tokenRepo.Disable(ctx, result.Invalid); err != nil {
			middleware.Logger.ErrorContext(ctx, "disabling rejected tokens failed",
				slog.Int("tokens", len(result.Invalid)),
				slog.String("error", err.Error()),
			)
		} else {
			observability.PushTokensDisabled.Add(float64(len(result.Invalid)))
		}
	}
	return result.Delivered, nil
}

// pushOnlyTokens gathers the device tokens an ephemeral push targets: the
// named resident, plus the rest of the household when a unit is given.
// Household resolution is best-effort; a directory outage must not swallow
// the direct delivery.
func (s *NotificationService) pushOnlyTokens(ctx context.Context, in PushOnlyInput) ([]string, error) {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(ts []string) {
		for _, t := range ts {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}

	if in.ResidentID != uuid.Nil {
		ts, err := s.tokenRepo.ListForResident(ctx, in.ResidentID)
		if err != nil {
			return nil, err
		}
		add(ts)
	}

	if in.UnitID == nil || s.directory == nil {
		return tokens, nil
	}
	members, err := s.directory.HouseholdMembers(ctx, *in.UnitID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "household lookup failed, pushing to the direct target only",
			slog.String("unit_id", in.UnitID.String()),
			slog.String("error", err.Error()),
		)
		return tokens, nil
	}
	for _, m := range members {
		if !m.Active || m.ID == in.ResidentID {
			continue
		}
		ts, err := s.tokenRepo.ListForResident(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		add(ts)
	}
	return tokens, nil
}

// snippet trims a comment body down to notification length. Truncation
// happens on a rune boundary so multi-byte text never turns into invalid
// UTF-8 in the push payload.
func snippet(content string) string {
	const maxLen = 120
	if len(content) <= maxLen {
		return content
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

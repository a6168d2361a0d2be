package hse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"crewlink/infrastructure"
	"crewlink/internal/models"
	"crewlink/internal/notifications"
	"crewlink/internal/permissions"
)

const maxCommentLength = 1000

// Audience lists the active users an alert scope reaches.
type Audience interface {
	UsersInScope(ctx context.Context, companyID int64, scope models.AlertScope, vesselID *int64, department string) ([]int64, error)
}

type Service struct {
	repo     Repository
	rules    Rules
	audience Audience
	notifier notifications.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, audience Audience, notifier notifications.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		rules:    Rules{},
		audience: audience,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type AlertInput struct {
	Title      string
	Message    string
	Severity   string
	Scope      string
	VesselID   *int64
	Department string
}

func (s *Service) CreateAlert(ctx context.Context, author models.Identity, in AlertInput) (*Alert, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	in.Department = strings.TrimSpace(in.Department)
	if in.Title == "" || in.Message == "" {
		return nil, infrastructure.Validation("title and message are required")
	}
	if !s.rules.IsValidScope(in.Scope) {
		return nil, infrastructure.Validation("invalid scope")
	}
	if !s.rules.IsValidSeverity(in.Severity) {
		return nil, infrastructure.Validation("invalid severity")
	}
	scope := models.AlertScope(in.Scope)
	switch scope {
	case models.ScopeVessel:
		if in.VesselID == nil {
			in.VesselID = author.VesselID
		}
		if in.VesselID == nil {
			return nil, infrastructure.Validation("vessel scope requires vesselId")
		}
	case models.ScopeDepartment:
		if in.Department == "" {
			in.Department = author.Department
		}
		if in.Department == "" {
			return nil, infrastructure.Validation("department scope requires department")
		}
	}
	if !permissions.CanCreateAlert(author, scope, in.VesselID) {
		return nil, infrastructure.Authorization("you cannot issue HSE updates for this scope")
	}

	alert := &Alert{
		CompanyID: author.CompanyID,
		CreatedBy: author.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Severity:  Severity(in.Severity),
		Scope:     scope,
		CreatedAt: s.now(),
	}
	switch scope {
	case models.ScopeVessel:
		alert.VesselID = in.VesselID
	case models.ScopeDepartment:
		alert.Department = in.Department
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}

	if alert.Severity.Urgent() {
		s.notifyAudience(ctx, alert)
	}
	return alert, nil
}

// Acknowledge records that user has seen the alert. A repeated acknowledgment
// succeeds with created=false.
func (s *Service) Acknowledge(ctx context.Context, user models.Identity, alertID int64, comments string) (ack *Acknowledgment, alert *Alert, created bool, err error) {
	comments = strings.TrimSpace(comments)
	if utf8.RuneCountInString(comments) > maxCommentLength {
		return nil, nil, false, infrastructure.Validation(fmt.Sprintf("comments exceed %d characters", maxCommentLength))
	}
	alert, err = s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return nil, nil, false, err
	}
	if !permissions.CanAcknowledge(user, alert.CompanyID, alert.Scope, alert.VesselID, alert.Department) {
		return nil, nil, false, infrastructure.Authorization("this HSE update is not addressed to you")
	}

	ack = &Acknowledgment{AlertID: alertID, UserID: user.UserID, Comments: comments, AcknowledgedAt: s.now()}
	created, err = s.repo.Acknowledge(ctx, ack)
	if err != nil {
		return nil, nil, false, err
	}
	return ack, alert, created, nil
}

func (s *Service) notifyAudience(ctx context.Context, alert *Alert) {
	if s.audience == nil || s.notifier == nil {
		return
	}
	userIDs, err := s.audience.UsersInScope(ctx, alert.CompanyID, alert.Scope, alert.VesselID, alert.Department)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve HSE audience", slog.Int64("alert_id", alert.ID), slog.Any("error", err))
		return
	}
	priority := notifications.PriorityHigh
	if alert.Severity == SeverityCritical {
		priority = notifications.PriorityUrgent
	}
	for _, id := range userIDs {
		if id == alert.CreatedBy {
			continue
		}
		err := s.notifier.Dispatch(ctx, notifications.Request{
			UserID:   id,
			Type:     notifications.TypeHSEAlert,
			Title:    fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title),
			Message:  alert.Message,
			Data:     map[string]any{"updateId": alert.ID, "scope": alert.Scope},
			Priority: priority,
			Channels: []notifications.DeliveryChannel{notifications.DeliverInApp, notifications.DeliverEmail, notifications.DeliverPush},
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to dispatch HSE notification", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
}

package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
	ErrQueueFull        = errors.New("notification queue is full")
)

type Inbox interface {
	Save(ctx context.Context, n *Notification) error
}

type Mailer interface {
	SendNotification(to, subject, body string) error
}

// Recipients resolves the email address of a user.
type Recipients interface {
	EmailOf(ctx context.Context, userID int64) (string, error)
}

// PushClient sends a device push. Implementations pick the provider (FCM,
// APNS) from the user's registered devices.
type PushClient interface {
	Send(ctx context.Context, userID int64, title, message string, data map[string]any) error
}

// Service is the asynchronous Dispatcher. Requests are queued and delivered
// by a fixed pool of workers, one delivery route at a time.
type Service struct {
	inbox      Inbox
	mailer     Mailer
	recipients Recipients
	push       PushClient
	logger     *slog.Logger

	workers   int
	queue     chan Request
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewService(inbox Inbox, mailer Mailer, recipients Recipients, push PushClient, logger *slog.Logger, workers, queueSize int) *Service {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 256
	}
	return &Service{
		inbox:      inbox,
		mailer:     mailer,
		recipients: recipients,
		push:       push,
		logger:     logger,
		workers:    workers,
		queue:      make(chan Request, queueSize),
		closed:     make(chan struct{}),
	}
}

// Start launches the worker pool. Workers stop when ctx is done or Close is
// called; requests still queued at Close are delivered first.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.work(ctx)
	}
}

func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	s.wg.Wait()
}

// Dispatch queues req for delivery. It never waits for queue space: when the
// queue is full the request is dropped and ErrQueueFull returned.
func (s *Service) Dispatch(ctx context.Context, req Request) error {
	if req.UserID <= 0 {
		return fmt.Errorf("notification requires a user")
	}
	if len(req.Channels) == 0 {
		req.Channels = []DeliveryChannel{DeliverInApp}
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}

	select {
	case <-s.closed:
		return ErrDispatcherClosed
	default:
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.queue <- req:
		return nil
	default:
		s.logger.WarnContext(ctx, "notification dropped, queue is full",
			slog.Int64("user_id", req.UserID),
			slog.String("type", req.Type))
		return ErrQueueFull
	}
}

func (s *Service) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.queue:
			s.handle(ctx, req)
		case <-ctx.Done():
			return
		case <-s.closed:
			for {
				select {
				case req := <-s.queue:
					s.handle(context.WithoutCancel(ctx), req)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, req Request) {
	if err := s.deliver(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "notification delivery failed",
			slog.Int64("user_id", req.UserID),
			slog.String("type", req.Type),
			slog.Any("error", err))
	}
}

func (s *Service) deliver(ctx context.Context, req Request) error {
	var errs []error
	for _, ch := range req.Channels {
		var err error
		switch ch {
		case DeliverInApp:
			err = s.deliverInApp(ctx, req)
		case DeliverEmail:
			err = s.deliverEmail(ctx, req)
		case DeliverPush:
			err = s.deliverPush(ctx, req)
		default:
			err = fmt.Errorf("unknown delivery channel %q", ch)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) deliverInApp(ctx context.Context, req Request) error {
	if s.inbox == nil {
		return nil
	}
	n, err := newNotification(req)
	if err != nil {
		return err
	}
	return s.inbox.Save(ctx, n)
}

func (s *Service) deliverEmail(ctx context.Context, req Request) error {
	if s.mailer == nil || s.recipients == nil {
		s.logger.DebugContext(ctx, "email delivery not configured", slog.Int64("user_id", req.UserID))
		return nil
	}
	to, err := s.recipients.EmailOf(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if to == "" {
		return nil
	}
	return s.mailer.SendNotification(to, req.Title, req.Message)
}

func (s *Service) deliverPush(ctx context.Context, req Request) error {
	if s.push == nil {
		return nil
	}
	return s.push.Send(ctx, req.UserID, req.Title, req.Message, req.Data)
}

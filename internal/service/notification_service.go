package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/push-relay/internal/domain"
	"github.com/kursadbilgin/push-relay/internal/observability"
	"github.com/kursadbilgin/push-relay/internal/pushover"
	"go.uber.org/zap"
)

// NotificationLedger is the record store the service writes through.
type NotificationLedger interface {
	Append(n domain.Notification) (domain.Notification, error)
	List(recipient string) []domain.Notification
	GetByID(id string) (domain.Notification, error)
	MarkRead(id string) (domain.Notification, error)
	Delete(id string) (bool, error)
	Clear() error
	Count() int
}

// Gateway is the outbound push delivery port.
type Gateway interface {
	Enabled() bool
	SendNotification(ctx context.Context, msg pushover.Message) (*string, error)
	Sounds() *pushover.SoundCatalog
}

// DeliveryDefaults are applied to every gateway message.
type DeliveryDefaults struct {
	Sound    string
	Priority int
}

// CreateInput is the caller-supplied part of a notification.
type CreateInput struct {
	Title     string
	Message   string
	Recipient string
}

type NotificationService struct {
	ledger   NotificationLedger
	gateway  Gateway
	defaults DeliveryDefaults
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	newID    func() (string, error)
}

func NewNotificationService(
	ledger NotificationLedger,
	gateway Gateway,
	defaults DeliveryDefaults,
	logger *zap.Logger,
) (*NotificationService, error) {
	if ledger == nil {
		return nil, fmt.Errorf("notification ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(defaults.Sound) == "" {
		defaults.Sound = pushover.DefaultSound
	}

	s := &NotificationService{
		ledger:   ledger,
		gateway:  gateway,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
		newID:    newNotificationID,
	}

	if _, ok := s.catalog().Name(defaults.Sound); !ok {
		logger.Warn("default sound is not in the sound catalog, gateway may reject deliveries",
			zap.String("sound", defaults.Sound),
		)
	}

	return s, nil
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
	s.metrics.SetLedgerRecords(s.ledger.Count())
}

// Create builds a record, tries to deliver it and stores it. Delivery problems
// never fail the call; the record is returned with pushoverSent=false instead.
func (s *NotificationService) Create(ctx context.Context, input CreateInput) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	notification := domain.Notification{
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Recipient: strings.TrimSpace(input.Recipient),
	}
	if err := notification.Validate(); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate notification id: %w", err)
	}
	notification.ID = id
	notification.CreatedAt = s.now().UTC()

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("notificationId", id))
	s.deliver(ctx, &notification, logger)

	created, err := s.ledger.Append(notification)
	s.absorbStorageError(logger, "append", err)
	s.metrics.IncNotificationCreated()
	s.metrics.SetLedgerRecords(s.ledger.Count())

	return &created, nil
}

func (s *NotificationService) deliver(ctx context.Context, n *domain.Notification, logger *zap.Logger) {
	if s.gateway == nil || !s.gateway.Enabled() {
		s.metrics.IncDeliverySkipped()
		return
	}

	start := s.now()
	receipt, err := s.gateway.SendNotification(ctx, pushover.Message{
		Title:    n.Title,
		Message:  n.Message,
		Sound:    s.defaults.Sound,
		Priority: s.defaults.Priority,
	})
	s.metrics.ObserveDeliveryDuration(s.now().Sub(start))

	if err != nil {
		reason := string(pushover.KindOf(err))
		if reason == "" {
			reason = "client"
		}
		logger.Warn("pushover delivery failed, storing record as not sent",
			zap.String("reason", reason),
			zap.Error(err),
		)
		s.metrics.IncDeliveryFailed(reason)
		return
	}

	n.MarkDelivered(receipt)
	s.metrics.IncDeliverySent()
	logger.Info("pushover delivery succeeded", zap.Bool("receipt", n.PushoverReceipt != nil))
}

func (s *NotificationService) List(ctx context.Context, recipient string) ([]domain.Notification, error) {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}
	return s.ledger.List(trimmed), nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	n, err := s.ledger.GetByID(trimmed)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	n, err := s.ledger.MarkRead(trimmed)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	s.absorbStorageError(observability.WithContextLogger(s.logger, ctx), "mark_read", err)

	return &n, nil
}

func (s *NotificationService) Delete(ctx context.Context, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	deleted, err := s.ledger.Delete(trimmed)
	if !deleted {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, trimmed)
	}
	s.absorbStorageError(observability.WithContextLogger(s.logger, ctx), "delete", err)
	s.metrics.SetLedgerRecords(s.ledger.Count())

	return nil
}

// SoundList is the catalog snapshot served to API callers. UpdatedAt is zero while
// the builtin list is in use.
type SoundList struct {
	Sounds    map[string]string
	UpdatedAt time.Time
}

// Sounds returns the gateway's sound catalog, or the builtin list when no gateway is wired.
func (s *NotificationService) Sounds() SoundList {
	catalog := s.catalog()
	return SoundList{Sounds: catalog.All(), UpdatedAt: catalog.UpdatedAt()}
}

func (s *NotificationService) catalog() *pushover.SoundCatalog {
	if s.gateway != nil {
		if catalog := s.gateway.Sounds(); catalog != nil {
			return catalog
		}
	}
	return pushover.NewSoundCatalog()
}

// Clear drops every record. Intended for tests and administration.
func (s *NotificationService) Clear(ctx context.Context) error {
	err := s.ledger.Clear()
	s.absorbStorageError(observability.WithContextLogger(s.logger, ctx), "clear", err)
	s.metrics.SetLedgerRecords(0)
	return nil
}

// absorbStorageError logs failed ledger writes and lets the in-memory result stand.
// Anything that is not a storage error is still only logged: the ledger reports
// nothing else from its mutation paths.
func (s *NotificationService) absorbStorageError(logger *zap.Logger, operation string, err error) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = s.logger
	}

	logger.Error("ledger write failed, in-memory state kept",
		zap.String("operation", operation),
		zap.Bool("storage", errors.Is(err, domain.ErrStorage)),
		zap.Error(err),
	)
	s.metrics.IncLedgerPersistFailure(operation)
}

func newNotificationID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

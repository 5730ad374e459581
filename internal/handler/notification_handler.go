package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/push-relay/internal/domain"
	"github.com/kursadbilgin/push-relay/internal/service"
)

type NotificationService interface {
	Create(ctx context.Context, input service.CreateInput) (*domain.Notification, error)
	List(ctx context.Context, recipient string) ([]domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Sounds() service.SoundList
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	api := router.Group("/api")
	api.Post("/notifications", h.CreateNotification)
	api.Get("/notifications", h.ListNotifications)
	api.Delete("/notifications", h.ClearNotifications)
	api.Get("/notifications/:id", h.GetNotification)
	api.Patch("/notifications/:id/read", h.MarkNotificationRead)
	api.Delete("/notifications/:id", h.DeleteNotification)
	api.Get("/sounds", h.ListSounds)

	return nil
}

type createNotificationRequest struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Recipient string `json:"recipient"`
}

type notificationResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Recipient       string    `json:"recipient"`
	Read            bool      `json:"read"`
	CreatedAt       time.Time `json:"createdAt"`
	PushoverSent    bool      `json:"pushoverSent"`
	PushoverReceipt *string   `json:"pushoverReceipt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Recipient string `json:"recipient"`
	Total     int    `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.Create(c.UserContext(), service.CreateInput{
		Title:     req.Title,
		Message:   req.Message,
		Recipient: req.Recipient,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	recipient := strings.TrimSpace(c.Query("recipient"))
	notifications, err := h.service.List(c.UserContext(), recipient)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Recipient: recipient,
			Total:     len(notifications),
		},
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) MarkNotificationRead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.MarkRead(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) DeleteNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) ClearNotifications(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext()); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type soundsResponse struct {
	Sounds    map[string]string `json:"sounds"`
	UpdatedAt *time.Time        `json:"updatedAt"`
}

func (h *NotificationHandler) ListSounds(c *fiber.Ctx) error {
	list := h.service.Sounds()

	resp := soundsResponse{Sounds: list.Sounds}
	if !list.UpdatedAt.IsZero() {
		updatedAt := list.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:              n.ID,
		Title:           n.Title,
		Message:         n.Message,
		Recipient:       n.Recipient,
		Read:            n.Read,
		CreatedAt:       n.CreatedAt,
		PushoverSent:    n.PushoverSent,
		PushoverReceipt: n.PushoverReceipt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}

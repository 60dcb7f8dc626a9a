package waitlist

import (
	"shoplive-backend/internal/middleware"
	"shoplive-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes the reservation endpoints over the Waitlist Ledger.
type Handlers struct {
	Service *Service
}

// CreateRequest is the reservation body.
type CreateRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Create POST /api/v1/reservations
func (h *Handlers) Create(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return response.Error(c, "product_id must be a valid uuid", fiber.StatusBadRequest, nil)
	}

	reservation, err := h.Service.RequestReservation(c.UserContext(), userID, productID, req.Quantity)
	if err != nil {
		return err
	}
	position, err := h.Service.QueuePosition(c.UserContext(), productID, reservation.SequenceNumber)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Reservation created", fiber.Map{
		"reservation": reservation,
		"position":    position,
	}, nil)
}

// Cancel DELETE /api/v1/reservations/:id
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	reservationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "id must be a valid uuid", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.CancelReservation(c.UserContext(), userID, reservationID); err != nil {
		return err
	}
	return response.Success(c, "Reservation cancelled", nil, nil)
}

// List GET /api/v1/reservations
func (h *Handlers) List(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	views, err := h.Service.ListReservations(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return response.Success(c, "Reservations", fiber.Map{"reservations": views}, nil)
}

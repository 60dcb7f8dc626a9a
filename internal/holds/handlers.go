package holds

import (
	"shoplive-backend/internal/middleware"
	"shoplive-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers exposes the cart endpoints over the Hold Ledger.
type Handlers struct {
	Service *Service
}

// AddItemRequest is the purchase-intent body.
type AddItemRequest struct {
	ProductID string  `json:"product_id"`
	Color     *string `json:"color"`
	Size      *string `json:"size"`
	Quantity  int     `json:"quantity"`
}

// UpdateItemRequest changes a line's quantity.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// AddItem POST /api/v1/cart/items
func (h *Handlers) AddItem(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return response.Error(c, "product_id must be a valid uuid", fiber.StatusBadRequest, nil)
	}

	hold, err := h.Service.RequestHold(c.UserContext(), userID, productID, req.Color, req.Size, req.Quantity)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Item added to cart", fiber.Map{"hold": hold}, nil)
}

// UpdateItem PATCH /api/v1/cart/items/:id
func (h *Handlers) UpdateItem(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	holdID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "id must be a valid uuid", fiber.StatusBadRequest, nil)
	}
	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	hold, err := h.Service.UpdateHoldQuantity(c.UserContext(), userID, holdID, req.Quantity)
	if err != nil {
		return err
	}
	return response.Success(c, "Quantity updated", fiber.Map{"hold": hold}, nil)
}

// RemoveItem DELETE /api/v1/cart/items/:id
func (h *Handlers) RemoveItem(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	holdID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "id must be a valid uuid", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.RemoveHold(c.UserContext(), userID, holdID); err != nil {
		return err
	}
	return response.Success(c, "Item removed", nil, nil)
}

// Clear DELETE /api/v1/cart
func (h *Handlers) Clear(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.Service.ClearHolds(c.UserContext(), userID); err != nil {
		return err
	}
	return response.Success(c, "Cart cleared", nil, nil)
}

// Summary GET /api/v1/cart
func (h *Handlers) Summary(c *fiber.Ctx) error {
	userID, ok := middleware.SessionUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	summary, err := h.Service.GetCartSummary(c.UserContext(), userID, middleware.SessionDestination(c))
	if err != nil {
		return err
	}
	return response.Success(c, "Cart summary", summary, nil)
}

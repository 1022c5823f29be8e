package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Gatepass-api/internal/application/dto"
	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// EventHandler recibe los eventos del sistema de documentos origen (rol integracion).
type EventHandler struct {
	uc *gatepass.UseCase
}

// NewEventHandler construye el handler.
func NewEventHandler(uc *gatepass.UseCase) *EventHandler {
	return &EventHandler{uc: uc}
}

// ParentSubmitted godoc
// @Summary      Documento origen aprobado: encola la creación automática
// @Tags         events
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ParentEventRequest  true  "Documento origen"
// @Success      202   {object}  dto.ParentSubmittedResponse
// @Router       /api/events/parent-submitted [post]
func (h *EventHandler) ParentSubmitted(c *fiber.Ctx) error {
	ev, ok := h.parentEvent(c)
	if !ok {
		return nil
	}
	task, err := h.uc.OnParentSubmitted(c.UserContext(), ev)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.ParentSubmittedResponse{Queued: task != nil}
	if task != nil {
		t := dto.ToAutoCreateTaskResponse(task)
		out.Task = &t
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}

// ParentCancelled godoc
// @Summary      Documento origen anulado: anula o desvincula sus pases
// @Tags         events
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ParentEventRequest  true  "Documento origen"
// @Success      200   {object}  gatepass.CascadeSummary
// @Router       /api/events/parent-cancelled [post]
func (h *EventHandler) ParentCancelled(c *fiber.Ctx) error {
	ev, ok := h.parentEvent(c)
	if !ok {
		return nil
	}
	sum, err := h.uc.OnParentCancelled(c.UserContext(), ev)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sum)
}

// ParentDeleted godoc
// @Summary      Documento origen eliminado: desvincula sus pases
// @Tags         events
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ParentEventRequest  true  "Documento origen"
// @Success      200   {object}  gatepass.CascadeSummary
// @Router       /api/events/parent-deleted [post]
func (h *EventHandler) ParentDeleted(c *fiber.Ctx) error {
	ev, ok := h.parentEvent(c)
	if !ok {
		return nil
	}
	sum, err := h.uc.OnParentDeleted(c.UserContext(), ev)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sum)
}

// ReceiptSubmitted godoc
// @Summary      Recepción confirmada: el pase pasa a RECEIPTED
// @Tags         events
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiptEventRequest  true  "Recepción"
// @Success      200   {object}  dto.MovementRecordResponse
// @Router       /api/events/receipt-submitted [post]
func (h *EventHandler) ReceiptSubmitted(c *fiber.Ctx) error {
	ev, ok := h.receiptEvent(c)
	if !ok {
		return nil
	}
	rec, err := h.uc.OnReceiptSubmitted(c.UserContext(), ev)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// ReceiptCancelled godoc
// @Summary      Recepción anulada: se limpia el vínculo del pase
// @Tags         events
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiptEventRequest  true  "Recepción"
// @Success      200   {object}  dto.MovementRecordResponse
// @Router       /api/events/receipt-cancelled [post]
func (h *EventHandler) ReceiptCancelled(c *fiber.Ctx) error {
	ev, ok := h.receiptEvent(c)
	if !ok {
		return nil
	}
	rec, err := h.uc.OnReceiptCancelled(c.UserContext(), ev)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// FailedTasks godoc
// @Summary      Tareas de creación automática escaladas
// @Tags         events
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Límite"  default(100)
// @Success      200    {array}  dto.AutoCreateTaskResponse
// @Router       /api/auto-create/failed [get]
func (h *EventHandler) FailedTasks(c *fiber.Ctx) error {
	tasks, err := h.uc.ListFailedTasks(c.UserContext(), c.QueryInt("limit", 100))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.AutoCreateTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, dto.ToAutoCreateTaskResponse(t))
	}
	return c.JSON(out)
}

func (h *EventHandler) parentEvent(c *fiber.Ctx) (gatepass.ParentEvent, bool) {
	companyID, ok := requireCompany(c)
	if !ok {
		return gatepass.ParentEvent{}, false
	}
	var in dto.ParentEventRequest
	if err := c.BodyParser(&in); err != nil {
		_ = badBody(c)
		return gatepass.ParentEvent{}, false
	}
	if in.ParentType == "" || in.ParentID == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parent_type y parent_id son requeridos"})
		return gatepass.ParentEvent{}, false
	}
	return gatepass.ParentEvent{
		Ref:       entity.DocumentRef{Type: entity.DocumentType(strings.ToUpper(in.ParentType)), ID: in.ParentID},
		CompanyID: companyID,
		IsReturn:  in.IsReturn,
	}, true
}

func (h *EventHandler) receiptEvent(c *fiber.Ctx) (gatepass.ReceiptEvent, bool) {
	companyID, ok := requireCompany(c)
	if !ok {
		return gatepass.ReceiptEvent{}, false
	}
	var in dto.ReceiptEventRequest
	if err := c.BodyParser(&in); err != nil {
		_ = badBody(c)
		return gatepass.ReceiptEvent{}, false
	}
	receiptType := entity.DocPurchaseReceipt
	if in.ReceiptType != "" {
		receiptType = entity.DocumentType(strings.ToUpper(in.ReceiptType))
	}
	return gatepass.ReceiptEvent{
		RecordID:  in.RecordID,
		CompanyID: companyID,
		Receipt:   entity.DocumentRef{Type: receiptType, ID: in.ReceiptID},
	}, true
}

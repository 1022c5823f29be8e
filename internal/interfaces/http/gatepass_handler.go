package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Gatepass-api/internal/application/dto"
	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
)

// GatePassHandler maneja las peticiones HTTP de pases de portería (protegido).
type GatePassHandler struct {
	uc   *gatepass.UseCase
	slip *gatepass.SlipUseCase
}

// NewGatePassHandler construye el handler. slip puede ser nil si no se sirve el comprobante.
func NewGatePassHandler(uc *gatepass.UseCase, slip *gatepass.SlipUseCase) *GatePassHandler {
	return &GatePassHandler{uc: uc, slip: slip}
}

// Create godoc
// @Summary      Crear pase de portería en borrador
// @Tags         gate-passes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateMovementRecordRequest  true  "Documento origen, transporte y líneas"
// @Success      201   {object}  dto.MovementRecordResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/gate-passes [post]
func (h *GatePassHandler) Create(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	var in dto.CreateMovementRecordRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.ParentType == "" || in.ParentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parent_type y parent_id son requeridos"})
	}
	cmd := gatepass.CreateCommand{
		CompanyID:     companyID,
		UserID:        GetUserID(c),
		ParentType:    entity.DocumentType(strings.ToUpper(in.ParentType)),
		ParentID:      in.ParentID,
		Direction:     entity.Direction(strings.ToUpper(in.Direction)),
		ReturnOf:      in.ReturnOf,
		VehicleNumber: in.VehicleNumber,
		DriverName:    in.DriverName,
		DriverContact: in.DriverContact,
		OpenEnded:     in.OpenEnded,
		RecordDate:    in.RecordDate,
	}
	for _, l := range in.Lines {
		cmd.Lines = append(cmd.Lines, gatepass.LineInput{ItemCode: l.ItemCode, ConfirmedQty: l.ConfirmedQty, UnitRate: l.UnitRate})
	}
	rec, err := h.uc.Create(c.UserContext(), cmd)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToMovementRecordResponse(rec))
}

// GetByID godoc
// @Summary      Obtener pase por ID
// @Tags         gate-passes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pase"
// @Success      200  {object}  dto.MovementRecordResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id} [get]
func (h *GatePassHandler) GetByID(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	rec, err := h.uc.Get(c.UserContext(), c.Params("id"), companyID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// List godoc
// @Summary      Listar pases
// @Tags         gate-passes
// @Security     Bearer
// @Produce      json
// @Param        direction    query  string  false  "INBOUND | OUTBOUND"
// @Param        status       query  string  false  "Estados separados por coma"
// @Param        parent_type  query  string  false  "Tipo de documento origen"
// @Param        parent_id    query  string  false  "ID del documento origen"
// @Param        from         query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to           query  string  false  "Hasta, inclusive (YYYY-MM-DD)"
// @Param        limit        query  int     false  "Límite"  default(20)
// @Param        offset       query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.MovementRecordListResponse
// @Router       /api/gate-passes [get]
func (h *GatePassHandler) List(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	page := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	page.DefaultPage()
	if page.Limit > 100 {
		page.Limit = 100
	}
	from, to, err := dateRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	f := repository.RecordFilter{
		CompanyID:  companyID,
		Direction:  entity.Direction(strings.ToUpper(c.Query("direction"))),
		ParentType: entity.DocumentType(strings.ToUpper(c.Query("parent_type"))),
		ParentID:   c.Query("parent_id"),
		From:       from,
		To:         to,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			f.Statuses = append(f.Statuses, entity.RecordStatus(s))
		}
	}
	records, err := h.uc.List(c.UserContext(), f)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.MovementRecordListResponse{
		Items: make([]dto.MovementRecordResponse, 0, len(records)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, rec := range records {
		out.Items = append(out.Items, dto.ToMovementRecordResponse(rec))
	}
	return c.JSON(out)
}

// UpdateTransport godoc
// @Summary      Actualizar vehículo y conductor del borrador
// @Tags         gate-passes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                true  "ID del pase"
// @Param        body  body  dto.TransportRequest  true  "Campos a cambiar"
// @Success      200   {object}  dto.MovementRecordResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/transport [patch]
func (h *GatePassHandler) UpdateTransport(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	var in dto.TransportRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rec, err := h.uc.UpdateTransport(c.UserContext(), gatepass.TransportCommand{
		RecordID:      c.Params("id"),
		CompanyID:     companyID,
		VehicleNumber: in.VehicleNumber,
		DriverName:    in.DriverName,
		DriverContact: in.DriverContact,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// AddLine godoc
// @Summary      Agregar línea al borrador
// @Tags         gate-passes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string           true  "ID del pase"
// @Param        body  body  dto.LineRequest  true  "Ítem y cantidad"
// @Success      200   {object}  dto.MovementRecordResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/lines [post]
func (h *GatePassHandler) AddLine(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	var in dto.LineRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rec, err := h.uc.AddLine(c.UserContext(), gatepass.AddLineCommand{
		RecordID:  c.Params("id"),
		CompanyID: companyID,
		Line:      gatepass.LineInput{ItemCode: in.ItemCode, ConfirmedQty: in.ConfirmedQty, UnitRate: in.UnitRate},
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// SetLineQuantity godoc
// @Summary      Cambiar cantidad confirmada de una línea
// @Tags         gate-passes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id      path  string                   true  "ID del pase"
// @Param        lineId  path  string                   true  "ID de la línea"
// @Param        body    body  dto.LineQuantityRequest  true  "Cantidad"
// @Success      200     {object}  dto.MovementRecordResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/lines/{lineId} [put]
func (h *GatePassHandler) SetLineQuantity(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	var in dto.LineQuantityRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rec, err := h.uc.SetLineQuantity(c.UserContext(), gatepass.SetLineQuantityCommand{
		RecordID:     c.Params("id"),
		CompanyID:    companyID,
		LineID:       c.Params("lineId"),
		ConfirmedQty: in.ConfirmedQty,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// RemoveLine godoc
// @Summary      Quitar línea del borrador
// @Tags         gate-passes
// @Security     Bearer
// @Produce      json
// @Param        id      path  string  true  "ID del pase"
// @Param        lineId  path  string  true  "ID de la línea"
// @Success      200     {object}  dto.MovementRecordResponse
// @Router       /api/gate-passes/{id}/lines/{lineId} [delete]
func (h *GatePassHandler) RemoveLine(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	rec, err := h.uc.RemoveLine(c.UserContext(), gatepass.RemoveLineCommand{
		RecordID:  c.Params("id"),
		CompanyID: companyID,
		LineID:    c.Params("lineId"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// SetDiscrepancy godoc
// @Summary      Registrar faltantes o daños
// @Tags         gate-passes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID del pase"
// @Param        body  body  dto.DiscrepancyRequest  true  "Discrepancia"
// @Success      200   {object}  dto.MovementRecordResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/discrepancy [put]
func (h *GatePassHandler) SetDiscrepancy(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	var in dto.DiscrepancyRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rec, err := h.uc.SetDiscrepancy(c.UserContext(), gatepass.DiscrepancyCommand{
		RecordID:       c.Params("id"),
		CompanyID:      companyID,
		HasDiscrepancy: in.HasDiscrepancy,
		LostQty:        in.LostQty,
		DamagedQty:     in.DamagedQty,
		Notes:          in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// SetReturnLink godoc
// @Summary      Vincular la entrada con la salida que revierte
// @Tags         gate-passes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID del pase"
// @Param        body  body  dto.ReturnLinkRequest  true  "Registro y/o traslado de salida"
// @Success      200   {object}  dto.MovementRecordResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/return-link [put]
func (h *GatePassHandler) SetReturnLink(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	var in dto.ReturnLinkRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rec, err := h.uc.SetReturnLink(c.UserContext(), gatepass.ReturnLinkCommand{
		RecordID:           c.Params("id"),
		CompanyID:          companyID,
		OutboundRecordID:   in.OutboundRecordID,
		OutboundTransferID: in.OutboundTransferID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// Submit godoc
// @Summary      Confirmar el pase en portería
// @Tags         gate-passes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pase"
// @Success      200  {object}  dto.MovementRecordResponse
// @Failure      409  {object}  dto.ErrorResponse  "Guarda fallida (detalle en details)"
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/submit [post]
func (h *GatePassHandler) Submit(c *fiber.Ctx) error {
	return h.transition(c, h.uc.Submit)
}

// Cancel godoc
// @Summary      Anular el pase
// @Tags         gate-passes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pase"
// @Success      200  {object}  dto.MovementRecordResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/cancel [post]
func (h *GatePassHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.uc.Cancel)
}

func (h *GatePassHandler) transition(c *fiber.Ctx, fn func(context.Context, gatepass.TransitionCommand) (*entity.MovementRecord, error)) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	rec, err := fn(c.UserContext(), gatepass.TransitionCommand{
		RecordID:  c.Params("id"),
		CompanyID: companyID,
		UserID:    GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToMovementRecordResponse(rec))
}

// Delete godoc
// @Summary      Eliminar un borrador
// @Tags         gate-passes
// @Security     Bearer
// @Param        id   path  string  true  "ID del pase"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id} [delete]
func (h *GatePassHandler) Delete(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	if err := h.uc.Delete(c.UserContext(), gatepass.DeleteCommand{RecordID: c.Params("id"), CompanyID: companyID}); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateReceipt godoc
// @Summary      Crear la recepción en el ERP desde un pase de entrada confirmado
// @Tags         gate-passes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pase"
// @Success      201  {object}  entity.DocumentRef
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/receipt [post]
func (h *GatePassHandler) CreateReceipt(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	ref, err := h.uc.CreateDownstreamReceipt(c.UserContext(), gatepass.TransitionCommand{
		RecordID:  c.Params("id"),
		CompanyID: companyID,
		UserID:    GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

// Compliance godoc
// @Summary      Evaluar la compuerta de cumplimiento del pase
// @Tags         gate-passes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pase"
// @Success      200  {object}  dto.ComplianceResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/compliance [get]
func (h *GatePassHandler) Compliance(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	res, err := h.uc.Compliance(c.UserContext(), c.Params("id"), companyID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToComplianceResponse(res))
}

// Slip godoc
// @Summary      Descargar comprobante PDF del pase
// @Description  Solo disponible para pases confirmados (SUBMITTED o RECEIPTED).
// @Tags         gate-passes
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID del pase"
// @Success      200  {file}    binary
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/gate-passes/{id}/pdf [get]
func (h *GatePassHandler) Slip(c *fiber.Ctx) error {
	companyID, ok := requireCompany(c)
	if !ok {
		return nil
	}
	if h.slip == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_IMPLEMENTED", Message: "comprobante no disponible"})
	}
	doc, filename, err := h.slip.DownloadSlip(c.UserContext(), c.Params("id"), companyID)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(doc)
}

// dateRange lee from/to (YYYY-MM-DD o RFC3339). Una fecha sin hora en "to" incluye ese día completo.
func dateRange(c *fiber.Ctx) (*time.Time, *time.Time, error) {
	from, err := parseDate(c.Query("from"), false)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDate(c.Query("to"), true)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("fecha inválida: %q", s)
	}
	return &t, nil
}

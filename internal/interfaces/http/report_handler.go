package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Gatepass-api/internal/application/dto"
	"github.com/jhoicas/Gatepass-api/internal/application/reporting"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// ReportHandler informes de portería (protegido).
type ReportHandler struct {
	uc *reporting.UseCase
}

func NewReportHandler(uc *reporting.UseCase) *ReportHandler {
	return &ReportHandler{uc: uc}
}

// Pending godoc
// @Summary      Pases pendientes con antigüedad
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        direction  query  string  false  "INBOUND | OUTBOUND"
// @Param        from       query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to         query  string  false  "Hasta, inclusive (YYYY-MM-DD)"
// @Success      200  {object}  dto.PendingReportResponse
// @Router       /api/reports/pending [get]
func (h *ReportHandler) Pending(c *fiber.Ctx) error {
	q, ok := reportQuery(c)
	if !ok {
		return nil
	}
	rep, err := h.uc.Pending(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToPendingReportResponse(rep.Rows, rep.Summary))
}

// Register godoc
// @Summary      Libro diario de entradas y salidas
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        direction  query  string  false  "INBOUND | OUTBOUND"
// @Param        from       query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to         query  string  false  "Hasta, inclusive (YYYY-MM-DD)"
// @Success      200  {array}  dto.RegisterDayResponse
// @Router       /api/reports/register [get]
func (h *ReportHandler) Register(c *fiber.Ctx) error {
	q, ok := reportQuery(c)
	if !ok {
		return nil
	}
	days, err := h.uc.Register(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToRegisterResponse(days))
}

// Variance godoc
// @Summary      Conciliación contra documentos origen
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        direction  query  string  false  "INBOUND | OUTBOUND"
// @Param        from       query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to         query  string  false  "Hasta, inclusive (YYYY-MM-DD)"
// @Success      200  {object}  dto.VarianceReportResponse
// @Router       /api/reports/variance [get]
func (h *ReportHandler) Variance(c *fiber.Ctx) error {
	q, ok := reportQuery(c)
	if !ok {
		return nil
	}
	rep, err := h.uc.Variance(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToVarianceReportResponse(rep.Rows, rep.Summary))
}

func reportQuery(c *fiber.Ctx) (reporting.Query, bool) {
	companyID, ok := requireCompany(c)
	if !ok {
		return reporting.Query{}, false
	}
	from, to, err := dateRange(c)
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		return reporting.Query{}, false
	}
	return reporting.Query{
		CompanyID: companyID,
		Direction: entity.Direction(strings.ToUpper(c.Query("direction"))),
		From:      from,
		To:        to,
	}, true
}

package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Gatepass-api/internal/application/dto"
	"github.com/jhoicas/Gatepass-api/internal/domain"
)

// writeError traduce errores de dominio a respuestas HTTP. Las guardas viajan con su detalle
// para que el operador vea qué soporte falta o en cuánto se excede la cantidad.
func writeError(c *fiber.Ctx, err error) error {
	if ge, ok := domain.AsGuardError(err); ok {
		details := dto.GuardDetails{
			Kind:     string(ge.Kind),
			Field:    ge.Field,
			ItemCode: ge.ItemCode,
			Missing:  ge.Missing,
		}
		if ge.Kind == domain.GuardAllocationExceeded {
			requested, available := ge.Requested, ge.Available
			details.Requested = &requested
			details.Available = &available
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: string(ge.Kind), Message: ge.Error(), Details: details})
	}

	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate):
		status, code = fiber.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrOverAllocation):
		status, code = fiber.StatusConflict, "ALLOCATION_EXCEEDED"
	case errors.Is(err, domain.ErrComplianceBlocked):
		status, code = fiber.StatusConflict, "COMPLIANCE_BLOCKED"
	case errors.Is(err, domain.ErrMissingRequiredField):
		status, code = fiber.StatusConflict, "MISSING_FIELD"
	case errors.Is(err, domain.ErrDiscrepancyOutOfBounds):
		status, code = fiber.StatusConflict, "DISCREPANCY_OUT_OF_BOUNDS"
	case errors.Is(err, domain.ErrDanglingReference):
		status, code = fiber.StatusUnprocessableEntity, "DANGLING_REFERENCE"
	case errors.Is(err, domain.ErrAdapterUnavailable):
		status, code = fiber.StatusServiceUnavailable, "ADAPTER_UNAVAILABLE"
	case errors.Is(err, domain.ErrForbidden):
		status, code = fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "UNAUTHORIZED"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func requireCompany(c *fiber.Ctx) (string, bool) {
	companyID := GetCompanyID(c)
	if companyID == "" {
		_ = c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "company_id requerido"})
		return "", false
	}
	return companyID, true
}

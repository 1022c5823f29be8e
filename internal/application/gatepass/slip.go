package gatepass

import (
	"context"
	"fmt"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// SlipGenerator genera el comprobante imprimible de un pase.
type SlipGenerator interface {
	GenerateSlip(ctx context.Context, rec *entity.MovementRecord) ([]byte, error)
}

// SlipUseCase comprobante de portería que acompaña al vehículo.
// Solo se imprime un pase confirmado (SUBMITTED o RECEIPTED).
type SlipUseCase struct {
	records   *UseCase
	generator SlipGenerator
}

// NewSlipUseCase construye el caso de uso.
func NewSlipUseCase(records *UseCase, generator SlipGenerator) *SlipUseCase {
	return &SlipUseCase{records: records, generator: generator}
}

// DownloadSlip devuelve el PDF del pase y el nombre de archivo sugerido.
//
// Retorna:
//   - domain.ErrNotFound     si el pase no existe o es de otra empresa.
//   - domain.ErrInvalidInput si el pase está en borrador o anulado.
func (uc *SlipUseCase) DownloadSlip(ctx context.Context, id, companyID string) ([]byte, string, error) {
	rec, err := uc.records.Get(ctx, id, companyID)
	if err != nil {
		return nil, "", err
	}
	if rec.Status != entity.StatusSubmitted && rec.Status != entity.StatusReceipted {
		return nil, "", fmt.Errorf("%w: el pase está en estado %s, confírmelo antes de imprimir el comprobante",
			domain.ErrInvalidInput, rec.Status)
	}
	doc, err := uc.generator.GenerateSlip(ctx, rec)
	if err != nil {
		return nil, "", fmt.Errorf("slip: generación fallida: %w", err)
	}
	return doc, fmt.Sprintf("pase_%s_%s.pdf", rec.Direction, rec.ID), nil
}

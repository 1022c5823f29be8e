package dto

import (
	"time"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// ParentEventRequest body de los eventos de documento origen publicados por el ERP.
type ParentEventRequest struct {
	ParentType string `json:"parent_type"`
	ParentID   string `json:"parent_id"`
	IsReturn   bool   `json:"is_return"`
}

// ReceiptEventRequest body de los eventos de recepción aguas abajo.
type ReceiptEventRequest struct {
	RecordID    string `json:"record_id"`
	ReceiptType string `json:"receipt_type"`
	ReceiptID   string `json:"receipt_id"`
}

// AutoCreateTaskResponse tarea de creación automática.
type AutoCreateTaskResponse struct {
	ID         string    `json:"id"`
	ParentType string    `json:"parent_type"`
	ParentID   string    `json:"parent_id"`
	Direction  string    `json:"direction"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	RecordID   string    `json:"record_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParentSubmittedResponse resultado de registrar el evento: la tarea o nada si no aplica.
type ParentSubmittedResponse struct {
	Queued bool                    `json:"queued"`
	Task   *AutoCreateTaskResponse `json:"task,omitempty"`
}

// ToAutoCreateTaskResponse mapea la tarea.
func ToAutoCreateTaskResponse(t *entity.AutoCreateTask) AutoCreateTaskResponse {
	return AutoCreateTaskResponse{
		ID:         t.ID,
		ParentType: string(t.ParentType),
		ParentID:   t.ParentID,
		Direction:  string(t.Direction),
		Status:     t.Status,
		Attempts:   t.Attempts,
		LastError:  t.LastError,
		RecordID:   t.RecordID,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

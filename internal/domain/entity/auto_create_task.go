package entity

import "time"

// Estados de la tarea de creación automática.
const (
	TaskPending = "PENDING"
	TaskDone    = "DONE"
	TaskFailed  = "FAILED" // escalada al operador, no se reintenta
)

// AutoCreateTask tarea de creación automática de un pase al aprobarse un documento origen.
// La clave de idempotencia es (ParentType, ParentID, Direction).
type AutoCreateTask struct {
	ID         string
	ParentType DocumentType
	ParentID   string
	Direction  Direction
	CompanyID  string
	Status     string
	Attempts   int
	LastError  string
	RecordID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key clave de idempotencia legible (logs, locks).
func (t *AutoCreateTask) Key() string {
	return string(t.ParentType) + ":" + t.ParentID + ":" + string(t.Direction)
}

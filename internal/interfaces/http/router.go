package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/application/reporting"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	GatePassUC  *gatepass.UseCase
	ReportingUC *reporting.UseCase
	SlipUC      *gatepass.SlipUseCase // opcional
	Metrics     http.Handler          // opcional
	JWTSecret   string
	JWTIssuer   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	// Pases de portería (operador y supervisor)
	passes := protected.Group("/gate-passes", RequireRole(RoleOperador, RoleSupervisor))
	gatePassHandler := NewGatePassHandler(deps.GatePassUC, deps.SlipUC)
	passes.Post("/", gatePassHandler.Create)
	passes.Get("/", gatePassHandler.List)
	passes.Get("/:id", gatePassHandler.GetByID)
	passes.Delete("/:id", gatePassHandler.Delete)
	passes.Patch("/:id/transport", gatePassHandler.UpdateTransport)
	passes.Post("/:id/lines", gatePassHandler.AddLine)
	passes.Put("/:id/lines/:lineId", gatePassHandler.SetLineQuantity)
	passes.Delete("/:id/lines/:lineId", gatePassHandler.RemoveLine)
	passes.Put("/:id/discrepancy", gatePassHandler.SetDiscrepancy)
	passes.Put("/:id/return-link", gatePassHandler.SetReturnLink)
	passes.Post("/:id/submit", gatePassHandler.Submit)
	passes.Post("/:id/cancel", gatePassHandler.Cancel)
	passes.Post("/:id/receipt", gatePassHandler.CreateReceipt)
	passes.Get("/:id/compliance", gatePassHandler.Compliance)
	passes.Get("/:id/pdf", gatePassHandler.Slip)

	// Eventos del ERP (integracion)
	eventHandler := NewEventHandler(deps.GatePassUC)
	events := protected.Group("/events", RequireRole(RoleIntegracion))
	events.Post("/parent-submitted", eventHandler.ParentSubmitted)
	events.Post("/parent-cancelled", eventHandler.ParentCancelled)
	events.Post("/parent-deleted", eventHandler.ParentDeleted)
	events.Post("/receipt-submitted", eventHandler.ReceiptSubmitted)
	events.Post("/receipt-cancelled", eventHandler.ReceiptCancelled)

	// Tareas escaladas (supervisor)
	protected.Get("/auto-create/failed", RequireRole(RoleSupervisor), eventHandler.FailedTasks)

	// Informes
	reports := protected.Group("/reports", RequireRole(RoleOperador, RoleSupervisor))
	reportHandler := NewReportHandler(deps.ReportingUC)
	reports.Get("/pending", reportHandler.Pending)
	reports.Get("/register", reportHandler.Register)
	reports.Get("/variance", reportHandler.Variance)
}

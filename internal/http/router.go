// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tidyhome/internal/http/handlers"
	"tidyhome/internal/http/middleware"
)

type RouterDeps struct {
	Homes        handlers.HomeService
	Appointments handlers.AppointmentService
	Assignments  handlers.AssignmentService
	Ranking      handlers.RankingService
	Log          *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	homeHandler := handlers.NewHomeHandler(deps.Homes)
	r.POST("/api/homes", homeHandler.Create)
	r.GET("/api/homes/:id", homeHandler.Get)
	r.PATCH("/api/homes/:id", homeHandler.Update)
	r.GET("/api/owners/:id/homes", homeHandler.ListByOwner)

	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments)
	r.POST("/api/quotes", appointmentHandler.Quote)
	r.POST("/api/homes/:id/appointments", appointmentHandler.Book)
	r.GET("/api/homes/:id/appointments", appointmentHandler.ListByHome)
	r.GET("/api/appointments/:id", appointmentHandler.Get)
	r.GET("/api/appointments/:id/events", appointmentHandler.Events)
	r.PATCH("/api/appointments/:id/options", appointmentHandler.UpdateOptions)
	r.POST("/api/appointments/:id/cancel", appointmentHandler.Cancel)
	r.POST("/api/appointments/:id/complete", appointmentHandler.Complete)
	r.POST("/api/appointments/:id/pay", appointmentHandler.Pay)
	r.GET("/api/owners/:id/amount-due", appointmentHandler.AmountDue)
	r.GET("/api/cleaners/:id/appointments", appointmentHandler.ListForCleaner)

	requestHandler := handlers.NewRequestHandler(deps.Assignments)
	r.POST("/api/appointments/:id/requests", requestHandler.Request)
	r.GET("/api/appointments/:id/requests", requestHandler.ListForAppointment)
	r.POST("/api/appointments/:id/requests/deny", requestHandler.Deny)
	r.POST("/api/appointments/:id/requests/undo", requestHandler.Undo)
	r.POST("/api/appointments/:id/assign", requestHandler.Assign)
	r.POST("/api/appointments/:id/unassign", requestHandler.Unassign)
	r.POST("/api/requests/:id/approve", requestHandler.Approve)
	r.GET("/api/cleaners/:id/requests", requestHandler.ListForCleaner)

	rankingHandler := handlers.NewRankingHandler(deps.Ranking, deps.Appointments, deps.Log)
	r.GET("/api/jobs", rankingHandler.OpenJobs)
	r.GET("/api/jobs/watch", rankingHandler.Watch)
	r.GET("/api/cleaners/:id/schedule", rankingHandler.Schedule)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}

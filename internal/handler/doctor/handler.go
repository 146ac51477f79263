package doctor

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointment-api/internal/handler"
	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/service/appointment"
	"github.com/jwalitptl/appointment-api/internal/service/availability"
	"github.com/jwalitptl/appointment-api/internal/service/user"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
	"github.com/jwalitptl/appointment-api/pkg/httputil"
)

// Handler serves the doctor directory, weekly availability and open slots.
type Handler struct {
	users        *user.Service
	availability *availability.Service
	appointments *appointment.Service
}

func NewHandler(users *user.Service, availability *availability.Service, appointments *appointment.Service) *Handler {
	return &Handler{users: users, availability: availability, appointments: appointments}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.GET("/:id/availability", h.GetAvailability)
		doctors.PUT("/:id/availability", h.SetAvailability)
		doctors.GET("/:id/slots", h.Slots)
	}
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.users.ListDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	doc, err := h.users.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doc)
}

func (h *Handler) GetAvailability(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	entries, err := h.availability.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

func (h *Handler) SetAvailability(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.SetAvailabilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	entries, err := h.availability.Set(c.Request.Context(), actor, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

// Slots returns the open slots for ?date=YYYY-MM-DD.
func (h *Handler) Slots(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	if c.Query("date") == "" {
		httputil.RespondWithError(c, apperrors.Validation("date is required"))
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}

	slots, err := h.appointments.AvailableSlots(c.Request.Context(), id, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

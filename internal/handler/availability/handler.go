package availability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawdesk/scheduling-api/internal/handler"
	"github.com/pawdesk/scheduling-api/internal/middleware"
	"github.com/pawdesk/scheduling-api/internal/model"
	"github.com/pawdesk/scheduling-api/internal/service/scheduler"
	"github.com/pawdesk/scheduling-api/pkg/validator"
)

type Handler struct {
	scheduler *scheduler.Service
	validate  *validator.Validator
}

func NewHandler(schedulerSvc *scheduler.Service) *Handler {
	return &Handler{
		scheduler: schedulerSvc,
		validate:  validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/availability/check", h.CheckAvailability)
	r.GET("/availability/slots", h.ListOpenSlots)
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	var req model.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid location ID"))
		return
	}
	serviceItemID, err := uuid.Parse(req.ServiceItemID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid service item ID"))
		return
	}
	var staffID *uuid.UUID
	if req.StaffID != "" {
		parsed, err := uuid.Parse(req.StaffID)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid staff ID"))
			return
		}
		staffID = &parsed
	}

	actor := middleware.ActorFrom(c)
	result, err := h.scheduler.CheckAvailability(c.Request.Context(), actor, locationID, serviceItemID, staffID, req.StartTime)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

// ListOpenSlots returns the start times still bookable for a service item
// on one calendar day at the location.
func (h *Handler) ListOpenSlots(c *gin.Context) {
	locationID, err := uuid.Parse(c.Query("location_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid location ID"))
		return
	}
	serviceItemID, err := uuid.Parse(c.Query("service_item_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid service item ID"))
		return
	}
	var staffID *uuid.UUID
	if raw := c.Query("staff_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid staff ID"))
			return
		}
		staffID = &parsed
	}
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("date must be YYYY-MM-DD"))
		return
	}

	actor := middleware.ActorFrom(c)
	slots, err := h.scheduler.ListOpenSlots(c.Request.Context(), actor, locationID, serviceItemID, staffID, day)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"date": day.Format("2006-01-02"), "slots": slots}))
}

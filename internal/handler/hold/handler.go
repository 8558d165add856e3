package hold

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawdesk/scheduling-api/internal/handler"
	"github.com/pawdesk/scheduling-api/internal/middleware"
	"github.com/pawdesk/scheduling-api/internal/model"
	holdService "github.com/pawdesk/scheduling-api/internal/service/hold"
	"github.com/pawdesk/scheduling-api/pkg/validator"
)

type Handler struct {
	holds    *holdService.Service
	validate *validator.Validator
}

func NewHandler(holds *holdService.Service) *Handler {
	return &Handler{
		holds:    holds,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	holds := r.Group("/holds")
	{
		holds.POST("", h.CreateHold)
		holds.GET("", h.ListHolds)
		holds.GET("/:id", h.GetHold)
		holds.DELETE("/:id", h.ReleaseHold)
	}
}

func (h *Handler) CreateHold(c *gin.Context) {
	var req model.CreateHoldRequest
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
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid customer ID"))
		return
	}

	entries := make([]model.TentativeEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entry := model.TentativeEntry{StartTime: e.StartTime, EndTime: e.EndTime}
		if e.StaffID != "" {
			staffID, err := uuid.Parse(e.StaffID)
			if err != nil {
				c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid staff ID"))
				return
			}
			entry.StaffID = &staffID
		}
		if e.ResourceTypeID != "" {
			resourceTypeID, err := uuid.Parse(e.ResourceTypeID)
			if err != nil {
				c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid resource type ID"))
				return
			}
			entry.ResourceTypeID = &resourceTypeID
		}
		entries = append(entries, entry)
	}

	actor := middleware.ActorFrom(c)
	ttl := time.Duration(req.TTLSeconds) * time.Second

	created, err := h.holds.Create(c.Request.Context(), actor, locationID, customerID, entries, ttl)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) GetHold(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid hold ID"))
		return
	}

	actor := middleware.ActorFrom(c)
	found, err := h.holds.Get(c.Request.Context(), actor.CompanyID, id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) ListHolds(c *gin.Context) {
	locationID, err := uuid.Parse(c.Query("location_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid location ID"))
		return
	}

	actor := middleware.ActorFrom(c)
	holds, err := h.holds.ListActive(c.Request.Context(), actor.CompanyID, locationID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewListResponse(holds, len(holds)))
}

func (h *Handler) ReleaseHold(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid hold ID"))
		return
	}

	actor := middleware.ActorFrom(c)
	if err := h.holds.Release(c.Request.Context(), actor.CompanyID, id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

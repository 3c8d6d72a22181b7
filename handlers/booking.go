package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campsite/models"
	"campsite/services/booking"
	"campsite/services/sheets"
	"campsite/utils"
)

// BookingHandler exposes the booking service over HTTP.
type BookingHandler struct {
	Service booking.BookingService
	Source  sheets.Source
}

// NewBookingHandler wires the booking service and the sheet source into a
// handler set.
func NewBookingHandler(svc booking.BookingService, src sheets.Source) *BookingHandler {
	return &BookingHandler{Service: svc, Source: src}
}

// ListBookingsHandler returns live bookings, optionally filtered by id,
// status or a from/to overlap window.
func (h *BookingHandler) ListBookingsHandler(c *gin.Context) {
	filter := booking.ListFilter{ID: c.Query("id")}

	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			utils.JSONError(c, http.StatusBadRequest, "Unknown status", raw)
			return
		}
		filter.Status = status
	}

	var err error
	if filter.From, err = parseQueryTime(c.Query("from")); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Bad from date", err.Error())
		return
	}
	if filter.To, err = parseQueryTime(c.Query("to")); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Bad to date", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": h.Service.List(filter),
		"age":      h.Service.Age(),
	})
}

// GetBookingHandler returns one booking by id.
func (h *BookingHandler) GetBookingHandler(c *gin.Context) {
	rec, err := h.Service.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "Booking not found", c.Param("id"))
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "Failed to load booking", err.Error())
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetStatesHandler returns the status names and the transition table.
func (h *BookingHandler) GetStatesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.States())
}

// GetArchiveHandler returns the archived booking facts.
func (h *BookingHandler) GetArchiveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.ArchiveList())
}

// ChangeStatusHandler applies one status transition to a booking.
func (h *BookingHandler) ChangeStatusHandler(c *gin.Context) {
	var input struct {
		Status      string `json:"status" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}

	status, ok := models.ParseStatus(input.Status)
	if !ok {
		utils.JSONError(c, http.StatusBadRequest, "Unknown status", input.Status)
		return
	}

	warnings, err := h.Service.ChangeStatus(c.Request.Context(), c.Param("id"), status, input.Description)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": status, "warnings": warnings})
}

// ModifyFieldsHandler merges per-section field updates into a booking.
func (h *BookingHandler) ModifyFieldsHandler(c *gin.Context) {
	var updates map[string]map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}

	changed, warnings, err := h.Service.ModifyFields(c.Request.Context(), c.Param("id"), updates)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "changed": changed, "warnings": warnings})
}

// PullSheetsHandler fetches rows from the sheet source and ingests them.
// pull_new=true bypasses the pull cache.
func (h *BookingHandler) PullSheetsHandler(c *gin.Context) {
	pullNew := c.Query("pull_new") == "true"

	result, err := h.Source.Rows(c.Request.Context(), pullNew)
	if err != nil {
		utils.JSONError(c, http.StatusBadGateway, "Sheet pull failed", err.Error())
		return
	}

	added, err := h.Service.AddNewData(c.Request.Context(), result)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Ingestion failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "age": h.Service.Age()})
}

// SweepHandler runs the time-based sweeps: auto status advancement, then
// archival of expired bookings.
func (h *BookingHandler) SweepHandler(c *gin.Context) {
	advanced, err := h.Service.AutoUpdateStatuses(c.Request.Context())
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Auto status sweep failed", err.Error())
		return
	}

	archived, warnings, err := h.Service.ArchiveOldBookings(c.Request.Context())
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Archive sweep failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"advanced": advanced, "archived": archived, "warnings": warnings})
}

// FixCalendarHandler reconciles the remote calendar. apply=true makes the
// changes; anything else is a dry run.
func (h *BookingHandler) FixCalendarHandler(c *gin.Context) {
	apply := c.Query("apply") == "true"

	audit, err := h.Service.FixCalendarEvents(c.Request.Context(), apply)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Calendar reconciliation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, audit)
}

// ReloadHandler re-reads the data files from disk.
func (h *BookingHandler) ReloadHandler(c *gin.Context) {
	if err := h.Service.Reload(true); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"reloaded": true, "age": h.Service.Age()})
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		utils.JSONError(c, http.StatusNotFound, "Booking not found", err.Error())
	case booking.IsValidation(err):
		utils.JSONError(c, http.StatusUnprocessableEntity, "Rejected", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "Operation failed", err.Error())
	}
}

// parseQueryTime accepts RFC3339 or a bare date in the site timezone.
func parseQueryTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, utils.SiteLocation())
}

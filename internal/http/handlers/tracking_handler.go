// README: Tracking handlers: event ingestion and timeline reads.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/tracking"
	"courier/internal/types"
)

type TrackingHandler struct {
	tracking *tracking.Service
}

func NewTrackingHandler(svc *tracking.Service) *TrackingHandler {
	return &TrackingHandler{tracking: svc}
}

type createEventReq struct {
	BookingID   string                 `json:"booking_id"`
	DeliveryID  string                 `json:"delivery_id"`
	Type        string                 `json:"type"`
	Lat         *float64               `json:"lat"`
	Lng         *float64               `json:"lng"`
	RiderUserID string                 `json:"rider_user_id"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (h *TrackingHandler) CreateEvent(c *gin.Context) {
	var req createEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := tracking.CreateEventCommand{
		BookingID:   req.BookingID,
		DeliveryID:  req.DeliveryID,
		Type:        req.Type,
		RiderUserID: req.RiderUserID,
		Metadata:    req.Metadata,
	}
	if req.Lat != nil && req.Lng != nil {
		cmd.Location = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	}
	e, err := h.tracking.CreateEvent(c.Request.Context(), cmd)
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *TrackingHandler) TimelineByBooking(c *gin.Context) {
	tl, err := h.tracking.TimelineByBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (h *TrackingHandler) TimelineByDelivery(c *gin.Context) {
	tl, err := h.tracking.TimelineByDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (h *TrackingHandler) CurrentLocation(c *gin.Context) {
	loc, err := h.tracking.CurrentLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeTrackingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": c.Param("id"), "location": loc})
}

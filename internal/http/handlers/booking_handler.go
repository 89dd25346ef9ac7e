// README: Booking handlers: create, read, edit, cancel, respond, progress, timers, complete.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/booking"
	"courier/internal/types"
)

type BookingHandler struct {
	booking *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{booking: svc}
}

type stopReq struct {
	Sequence int     `json:"sequence"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address"`
}

func (s stopReq) toStop() booking.Stop {
	return booking.Stop{
		Sequence: s.Sequence,
		Geo:      types.Point{Lat: s.Lat, Lng: s.Lng},
		Address:  s.Address,
	}
}

type createBookingReq struct {
	DeliveryID     string                 `json:"delivery_id"`
	VehicleType    string                 `json:"vehicle_type"`
	Pickup         stopReq                `json:"pickup"`
	Dropoffs       []stopReq              `json:"dropoffs"`
	CustomerUserID string                 `json:"customer_user_id"`
	CustomerName   string                 `json:"customer_name"`
	CustomerPhone  string                 `json:"customer_phone"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	dropoffs := make([]booking.Stop, len(req.Dropoffs))
	for i, d := range req.Dropoffs {
		dropoffs[i] = d.toStop()
	}
	res, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		DeliveryID:     req.DeliveryID,
		VehicleType:    req.VehicleType,
		Pickup:         req.Pickup.toStop(),
		Dropoffs:       dropoffs,
		CustomerUserID: req.CustomerUserID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"booking_id":           res.BookingID,
		"status":               res.Status,
		"estimated_search_sec": res.EstimatedSearchSec,
	})
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.booking.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

func (h *BookingHandler) GetByDelivery(c *gin.Context) {
	b, err := h.booking.GetByDeliveryID(c.Request.Context(), c.Param("deliveryID"))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

func (h *BookingHandler) ListByCustomer(c *gin.Context) {
	bs, err := h.booking.ListByCustomer(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	views := make([]gin.H, len(bs))
	for i, b := range bs {
		views[i] = bookingView(b)
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views})
}

type editBookingReq struct {
	Pickup   *stopReq               `json:"pickup"`
	Dropoffs []stopReq              `json:"dropoffs"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (h *BookingHandler) Edit(c *gin.Context) {
	var req editBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := booking.EditCommand{Metadata: req.Metadata}
	if req.Pickup != nil {
		p := req.Pickup.toStop()
		cmd.Pickup = &p
	}
	if req.Dropoffs != nil {
		cmd.Dropoffs = make([]booking.Stop, len(req.Dropoffs))
		for i, d := range req.Dropoffs {
			cmd.Dropoffs[i] = d.toStop()
		}
	}
	b, err := h.booking.Edit(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

type cancelBookingReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.booking.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

type respondReq struct {
	RiderUserID string `json:"rider_user_id"`
	Decision    string `json:"decision"`
}

func (h *BookingHandler) Respond(c *gin.Context) {
	var req respondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.booking.Respond(c.Request.Context(), c.Param("id"), booking.RespondCommand{
		RiderUserID: req.RiderUserID,
		Decision:    req.Decision,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

type progressReq struct {
	Stage string `json:"stage"`
}

func (h *BookingHandler) Progress(c *gin.Context) {
	var req progressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.booking.Progress(c.Request.Context(), c.Param("id"), req.Stage)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

func (h *BookingHandler) Timers(c *gin.Context) {
	wt, err := h.booking.Timers(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_id":       c.Param("id"),
		"pickup_wait_sec":  wt.PickupSec,
		"dropoff_wait_sec": wt.DropoffSec,
	})
}

type completeReq struct {
	Pricing interface{} `json:"pricing"`
	Payment interface{} `json:"payment"`
}

func (h *BookingHandler) Complete(c *gin.Context) {
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.booking.Complete(c.Request.Context(), c.Param("id"), req.Pricing, req.Payment)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

func bookingView(b *booking.Booking) gin.H {
	view := gin.H{
		"booking_id":       b.ID,
		"delivery_id":      b.DeliveryID,
		"status":           string(b.Status),
		"vehicle_type":     b.VehicleType,
		"pickup":           stopView(b.Pickup),
		"dropoffs":         stopViews(b.Dropoffs),
		"rider":            nil,
		"can_user_edit":    b.CanUserEdit,
		"customer_user_id": b.CustomerUserID,
		"wait_times": gin.H{
			"pickup_sec":  b.WaitTimes.PickupSec,
			"dropoff_sec": b.WaitTimes.DropoffSec,
		},
		"metadata":   b.Metadata,
		"created_at": b.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": b.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if b.Rider != nil {
		view["rider"] = b.Rider
	}
	if b.Status == booking.StatusOffered {
		offer := gin.H{"offered_to": b.Offer.OfferedTo}
		if b.Offer.ExpiresAt != nil {
			offer["expires_at"] = b.Offer.ExpiresAt.UTC().Format(time.RFC3339)
		}
		view["offer"] = offer
	}
	if b.CancellationReason != "" {
		view["cancellation_reason"] = b.CancellationReason
	}
	return view
}

func stopView(s booking.Stop) gin.H {
	return gin.H{
		"sequence": s.Sequence,
		"lat":      s.Geo.Lat,
		"lng":      s.Geo.Lng,
		"address":  s.Address,
	}
}

func stopViews(stops []booking.Stop) []gin.H {
	out := make([]gin.H, len(stops))
	for i, s := range stops {
		out[i] = stopView(s)
	}
	return out
}

// README: Rider handlers: presence and location updates for the matching pool.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/matching"
	"courier/internal/types"
)

type RiderHandler struct {
	matching *matching.Service
}

func NewRiderHandler(svc *matching.Service) *RiderHandler {
	return &RiderHandler{matching: svc}
}

type goOnlineReq struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	VehicleType string  `json:"vehicle_type"`
	Rating      float64 `json:"rating"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

func (h *RiderHandler) GoOnline(c *gin.Context) {
	var req goOnlineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.matching.GoOnline(c.Request.Context(), matching.GoOnlineCommand{
		UserID:      c.Param("id"),
		Name:        req.Name,
		Phone:       req.Phone,
		VehicleType: req.VehicleType,
		Rating:      req.Rating,
		Position:    types.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rider_id": c.Param("id"), "online": true})
}

func (h *RiderHandler) GoOffline(c *gin.Context) {
	if err := h.matching.GoOffline(c.Request.Context(), c.Param("id")); err != nil {
		writeMatchingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rider_id": c.Param("id"), "online": false})
}

type updateLocationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *RiderHandler) UpdateLocation(c *gin.Context) {
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.matching.UpdateLocation(c.Request.Context(), c.Param("id"), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rider_id": c.Param("id")})
}

func (h *RiderHandler) Get(c *gin.Context) {
	r, err := h.matching.GetRider(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

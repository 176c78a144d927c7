// README: Driver handlers for registration, availability, location and the driver's request list.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kirana/internal/modules/delivery"
	"kirana/internal/modules/presence"
	"kirana/internal/types"
)

type DriverHandler struct {
	drivers  *presence.Service
	requests *delivery.Service
}

func NewDriverHandler(drivers *presence.Service, requests *delivery.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, requests: requests}
}

type registerDriverReq struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	VehicleType   string `json:"vehicle_type"`
	LicenseNumber string `json:"license_number"`
	Address       string `json:"address"`
	DeviceToken   string `json:"device_token"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	var req registerDriverReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.drivers.Register(c.Request.Context(), presence.RegisterCommand{
		FullName:      req.FullName,
		Phone:         req.Phone,
		VehicleType:   req.VehicleType,
		LicenseNumber: req.LicenseNumber,
		Address:       req.Address,
		DeviceToken:   req.DeviceToken,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DriverHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type setOnlineReq struct {
	Online *bool `json:"online"`
}

func (h *DriverHandler) SetOnline(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req setOnlineReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Online == nil {
		writeError(c, http.StatusBadRequest, "validation_error", "online is required")
		return
	}
	d, err := h.drivers.SetOnline(c.Request.Context(), types.ID(id), *req.Online)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type locationReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req locationReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "validation_error", "lat and lng are required")
		return
	}
	d, err := h.drivers.ReportLocation(c.Request.Context(), types.ID(id), types.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

// ListRequests returns the driver's requests; ?active=false includes delivered history.
func (h *DriverHandler) ListRequests(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	activeOnly := true
	if v := c.Query("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "validation_error", "active must be a boolean")
			return
		}
		activeOnly = b
	}
	list, err := h.requests.ListByDriver(c.Request.Context(), types.ID(id), activeOnly)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"requests": list})
}

// README: Delivery request handlers for create/list/get/accept/status/verify-otp.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kirana/internal/modules/delivery"
	"kirana/internal/types"
)

type RequestHandler struct {
	requests *delivery.Service
}

func NewRequestHandler(svc *delivery.Service) *RequestHandler {
	return &RequestHandler{requests: svc}
}

type createRequestReq struct {
	ShopID          string   `json:"shop_id"`
	BuyerName       string   `json:"buyer_name"`
	BuyerPhone      string   `json:"buyer_phone"`
	DeliveryAddress string   `json:"delivery_address"`
	BuyerLat        *float64 `json:"buyer_lat"`
	BuyerLng        *float64 `json:"buyer_lng"`
	ShopLat         *float64 `json:"shop_lat"`
	ShopLng         *float64 `json:"shop_lng"`
	TotalAmount     int64    `json:"total_amount"`
	DeliveryFee     *int64   `json:"delivery_fee"`
}

// Create admits a request. The OTP is returned once here for the shopkeeper to
// hand to the buyer; it is never part of listings or events.
func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if !bindJSON(c, &req) {
		return
	}
	buyer, ok := optionalPoint(c, req.BuyerLat, req.BuyerLng, "buyer_lat/buyer_lng")
	if !ok {
		return
	}
	origin, ok := optionalPoint(c, req.ShopLat, req.ShopLng, "shop_lat/shop_lng")
	if !ok {
		return
	}
	cmd := delivery.CreateCommand{
		BuyerName:       req.BuyerName,
		BuyerPhone:      req.BuyerPhone,
		DeliveryAddress: req.DeliveryAddress,
		BuyerLocation:   buyer,
		ShopLocation:    origin,
		TotalAmount:     req.TotalAmount,
		DeliveryFee:     req.DeliveryFee,
	}
	if req.ShopID != "" {
		if !isValidID(req.ShopID) {
			writeError(c, http.StatusBadRequest, "validation_error", "invalid shop_id")
			return
		}
		id := types.ID(req.ShopID)
		cmd.ShopID = &id
	}
	r, err := h.requests.Create(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"request": r, "otp": r.OTP})
}

func (h *RequestHandler) List(c *gin.Context) {
	var filter *delivery.Status
	if v := c.Query("status"); v != "" {
		st, ok := delivery.ParseStatus(v)
		if !ok {
			writeError(c, http.StatusBadRequest, "validation_error", "unknown status "+v)
			return
		}
		filter = &st
	}
	list, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"requests": list})
}

func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.requests.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

// GetOTP is the buyer's view of the completion code.
func (h *RequestHandler) GetOTP(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.requests.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"request_id": r.ID, "otp": r.OTP, "status": r.Status})
}

type acceptReq struct {
	DriverID string `json:"driver_id"`
}

func (h *RequestHandler) Accept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req acceptReq
	if !bindJSON(c, &req) {
		return
	}
	if !isValidID(req.DriverID) {
		writeError(c, http.StatusBadRequest, "validation_error", "invalid driver_id")
		return
	}
	r, err := h.requests.Accept(c.Request.Context(), delivery.AcceptCommand{
		RequestID: types.ID(id),
		DriverID:  types.ID(req.DriverID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

type statusReq struct {
	Status   string `json:"status"`
	DriverID string `json:"driver_id"`
}

func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusReq
	if !bindJSON(c, &req) {
		return
	}
	to, ok := delivery.ParseStatus(req.Status)
	if !ok {
		writeError(c, http.StatusBadRequest, "validation_error", "unknown status "+req.Status)
		return
	}
	if to == delivery.StatusDelivered {
		writeError(c, http.StatusConflict, "invalid_transition", "delivery is completed through verify-otp")
		return
	}
	if req.DriverID != "" && !isValidID(req.DriverID) {
		writeError(c, http.StatusBadRequest, "validation_error", "invalid driver_id")
		return
	}
	r, err := h.requests.Advance(c.Request.Context(), delivery.AdvanceCommand{
		RequestID: types.ID(id),
		DriverID:  types.ID(req.DriverID),
		To:        to,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

type verifyOTPReq struct {
	Code string `json:"code"`
}

// VerifyOTP completes a picked-up request. A wrong code is a normal outcome
// reported as success=false.
func (h *RequestHandler) VerifyOTP(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req verifyOTPReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.requests.VerifyAndComplete(c.Request.Context(), delivery.CompleteCommand{
		RequestID: types.ID(id),
		Code:      req.Code,
	})
	if errors.Is(err, delivery.ErrInvalidOTP) {
		writeJSON(c, http.StatusOK, gin.H{"success": false, "error": "invalid_otp"})
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "request": r})
}

// README: Buyer handlers for profile registration and lookup.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kirana/internal/modules/buyer"
	"kirana/internal/types"
)

type BuyerHandler struct {
	buyers *buyer.Service
}

func NewBuyerHandler(buyers *buyer.Service) *BuyerHandler {
	return &BuyerHandler{buyers: buyers}
}

type registerBuyerReq struct {
	FullName string   `json:"full_name"`
	Phone    string   `json:"phone"`
	Address  string   `json:"address"`
	City     string   `json:"city"`
	Pincode  string   `json:"pincode"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

func (h *BuyerHandler) Register(c *gin.Context) {
	var req registerBuyerReq
	if !bindJSON(c, &req) {
		return
	}
	loc, ok := optionalPoint(c, req.Lat, req.Lng, "lat/lng")
	if !ok {
		return
	}
	b, err := h.buyers.Register(c.Request.Context(), buyer.RegisterCommand{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
		City:     req.City,
		Pincode:  req.Pincode,
		Location: loc,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BuyerHandler) List(c *gin.Context) {
	list, err := h.buyers.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"buyers": list})
}

func (h *BuyerHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.buyers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

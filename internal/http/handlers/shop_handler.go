// README: Shop handlers for registration, lookup and the shop's request list.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kirana/internal/modules/delivery"
	"kirana/internal/modules/shop"
	"kirana/internal/types"
)

type ShopHandler struct {
	shops    *shop.Service
	requests *delivery.Service
}

func NewShopHandler(shops *shop.Service, requests *delivery.Service) *ShopHandler {
	return &ShopHandler{shops: shops, requests: requests}
}

type registerShopReq struct {
	ShopName  string   `json:"shop_name"`
	OwnerName string   `json:"owner_name"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	Pincode   string   `json:"pincode"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

func (h *ShopHandler) Register(c *gin.Context) {
	var req registerShopReq
	if !bindJSON(c, &req) {
		return
	}
	loc, ok := optionalPoint(c, req.Lat, req.Lng, "lat/lng")
	if !ok {
		return
	}
	s, err := h.shops.Register(c.Request.Context(), shop.RegisterCommand{
		ShopName:  req.ShopName,
		OwnerName: req.OwnerName,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
		Pincode:   req.Pincode,
		Location:  loc,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, s)
}

func (h *ShopHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s, err := h.shops.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *ShopHandler) ListRequests(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.requests.ListByShop(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"requests": list})
}

// optionalPoint builds a point from a lat/lng pair where both or neither must be set.
func optionalPoint(c *gin.Context, lat, lng *float64, field string) (*types.Point, bool) {
	if lat == nil && lng == nil {
		return nil, true
	}
	if lat == nil || lng == nil {
		writeError(c, http.StatusBadRequest, "validation_error", field+" must be given together")
		return nil, false
	}
	return &types.Point{Lat: *lat, Lng: *lng}, true
}

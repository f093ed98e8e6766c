package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cafepos/internal/cart"
	"cafepos/internal/database"
	"cafepos/internal/models"
	"cafepos/internal/pos"
)

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type tableRequest struct {
	TableID string `json:"table_id"`
}

type typeRequest struct {
	Type models.OrderType `json:"type" binding:"required"`
}

func (s *Server) ListOrders(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Active())
}

func (s *Server) ListHeld(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Held())
}

func (s *Server) CreateOrder(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, svc.NewOrder(c.Request.Context(), identity(c)))
}

func (s *Server) GetOrder(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	v, err := svc.View(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) AddItem(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req cart.AddItem
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := svc.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) UpdateQuantity(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := svc.UpdateQuantity(c.Request.Context(), c.Param("id"), c.Param("lineId"), *req.Quantity)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) RemoveItem(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	v, err := svc.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("lineId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) SetDiscount(c *gin.Context) {
	s.setAmount(c, (*pos.Service).SetDiscount)
}

func (s *Server) SetOtherCharges(c *gin.Context) {
	s.setAmount(c, (*pos.Service).SetOtherCharges)
}

func (s *Server) setAmount(c *gin.Context, apply func(*pos.Service, context.Context, string, decimal.Decimal) (pos.OrderView, error)) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := apply(svc, c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) SetTable(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := svc.SetTable(c.Request.Context(), c.Param("id"), req.TableID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) SetType(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req typeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := svc.SetType(c.Request.Context(), c.Param("id"), req.Type)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) HoldOrder(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	v, err := svc.Hold(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) ResumeOrder(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	v, err := svc.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) FinalizeOrder(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var p pos.Payment
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	res, err := svc.Finalize(c.Request.Context(), c.Param("id"), p, identity(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) CancelOrder(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	rec, err := svc.Cancel(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// OrderHistory lists persisted orders. Query: status (comma separated),
// table, from and to (RFC 3339), limit.
func (s *Server) OrderHistory(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	f, err := orderFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	records, err := svc.History(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func orderFilter(c *gin.Context) (database.OrderFilter, error) {
	var f database.OrderFilter
	if v := c.Query("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			f.Statuses = append(f.Statuses, models.OrderStatus(strings.TrimSpace(st)))
		}
	}
	f.TableID = c.Query("table")

	var err error
	if f.From, err = queryTime(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		return f, err
	}
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("invalid limit %q", v)
		}
	}
	return f, nil
}

func queryTime(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

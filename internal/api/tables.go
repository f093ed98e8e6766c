package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cafepos/internal/models"
	"cafepos/internal/pos"
)

type tableBody struct {
	Name     string `json:"name" binding:"required"`
	Capacity int    `json:"capacity"`
}

func (s *Server) ListTables(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Tables())
}

func (s *Server) CreateTable(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req tableBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := svc.AddTable(c.Request.Context(), models.Table{Name: req.Name, Capacity: req.Capacity})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) UpdateTable(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req tableBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := svc.UpdateTable(c.Request.Context(), c.Param("id"), req.Name, req.Capacity)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteTable removes a table and cancels the order seated at it
func (s *Server) DeleteTable(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	cancelled, err := svc.DeleteTable(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id"), "cancelled_order": cancelled})
}

// OpenTable starts a dine-in order, or returns the order already seated there
func (s *Server) OpenTable(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	v, created, err := svc.StartTableOrder(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, v)
}

func (s *Server) BillTable(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	v, err := svc.GenerateBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) PayTable(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var p pos.Payment
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	res, err := svc.MarkPaid(c.Request.Context(), c.Param("id"), p, identity(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

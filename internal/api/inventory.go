package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cafepos/internal/database"
	"cafepos/internal/models"
)

type restockRequest struct {
	Quantity float64 `json:"quantity" binding:"required"`
	Notes    string  `json:"notes"`
}

type wastageRequest struct {
	Quantity float64 `json:"quantity" binding:"required"`
	Reason   string  `json:"reason"`
}

func (s *Server) ListInventory(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	ings, err := svc.Ingredients(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ings)
}

func (s *Server) CreateIngredient(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var ing models.Ingredient
	if err := c.ShouldBindJSON(&ing); err != nil {
		badRequest(c, err)
		return
	}
	created, err := svc.CreateIngredient(c.Request.Context(), ing)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) UpdateIngredient(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var ing models.Ingredient
	if err := c.ShouldBindJSON(&ing); err != nil {
		badRequest(c, err)
		return
	}
	ing.ID = c.Param("id")
	updated, err := svc.UpdateIngredient(c.Request.Context(), ing)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) Restock(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := svc.Restock(c.Request.Context(), c.Param("id"), req.Quantity, req.Notes, identity(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) RecordWastage(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req wastageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := svc.RecordWastage(c.Request.Context(), c.Param("id"), req.Quantity, req.Reason, identity(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) LowStock(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	low, err := svc.LowStock(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, low)
}

// ListMovements lists stock movements. Query: ingredient, kind, limit.
func (s *Server) ListMovements(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	f := database.MovementFilter{
		IngredientID: c.Query("ingredient"),
		Kind:         models.MovementKind(c.Query("kind")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid limit %q", v))
			return
		}
		f.Limit = n
	}
	mvs, err := svc.Movements(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mvs)
}

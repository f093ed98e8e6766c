package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cafepos/internal/auth"
	"cafepos/internal/menuimport"
	"cafepos/internal/models"
)

type importRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) ListMenu(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	items, err := svc.Menu(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) CreateMenuItem(c *gin.Context) {
	s.saveMenuItem(c, "", http.StatusCreated)
}

func (s *Server) UpdateMenuItem(c *gin.Context) {
	s.saveMenuItem(c, c.Param("id"), http.StatusOK)
}

func (s *Server) saveMenuItem(c *gin.Context, id string, status int) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var item models.MenuItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, err)
		return
	}
	if id != "" {
		item.ID = id
	}
	saved, err := svc.SaveMenuItem(c.Request.Context(), item)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, saved)
}

func (s *Server) DeleteMenuItem(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	if err := svc.DeleteMenuItem(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) ListCategories(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	cats, err := svc.Categories(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (s *Server) CreateCategory(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var cat models.MenuCategory
	if err := c.ShouldBindJSON(&cat); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := svc.SaveCategory(c.Request.Context(), cat)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// ImportMenu turns pasted menu text into draft items. Nothing is saved;
// the client posts the drafts it accepts to /menu/items.
func (s *Server) ImportMenu(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.importer.Import(c.Request.Context(), auth.OutletFrom(c), req.Text)
	switch {
	case errors.Is(err, menuimport.ErrDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		return
	case errors.Is(err, menuimport.ErrEmptyInput), errors.Is(err, menuimport.ErrNoJSON):
		badRequest(c, err)
		return
	case err != nil:
		s.log.WithError(err).Error("Menu import failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

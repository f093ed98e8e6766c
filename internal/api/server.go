// Package api exposes the point of sale over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cafepos/internal/auth"
	"cafepos/internal/logging"
	"cafepos/internal/menuimport"
	"cafepos/internal/models"
	"cafepos/internal/pos"
	"cafepos/internal/realtime"
)

// Options wire the server to the running services
type Options struct {
	Registry  *pos.Registry
	Importer  *menuimport.Importer
	Hub       *realtime.Hub
	JWTSecret string
	Logger    *logrus.Logger
}

// Server is the HTTP surface of the point of sale
type Server struct {
	router   *gin.Engine
	registry *pos.Registry
	importer *menuimport.Importer
	hub      *realtime.Hub
	secret   string
	log      *logrus.Entry
}

// NewServer creates the router and registers every route
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger))

	s := &Server{
		router:   router,
		registry: opts.Registry,
		importer: opts.Importer,
		hub:      opts.Hub,
		secret:   opts.JWTSecret,
		log:      logging.Component(logger, "api"),
	}
	s.setupRoutes()
	return s
}

// Router returns the gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "cafepos API is running"})
	})

	managers := auth.RequireRole(models.RoleAdmin, models.RoleManager)

	v1 := s.router.Group("/api/v1")
	v1.Use(auth.Middleware(s.secret), auth.OutletScope())
	{
		v1.GET("/status", s.Status)

		// Orders
		v1.GET("/orders", s.ListOrders)
		v1.GET("/orders/held", s.ListHeld)
		v1.GET("/orders/history", s.OrderHistory)
		v1.POST("/orders", s.CreateOrder)
		v1.GET("/orders/:id", s.GetOrder)
		v1.POST("/orders/:id/items", s.AddItem)
		v1.PATCH("/orders/:id/items/:lineId", s.UpdateQuantity)
		v1.DELETE("/orders/:id/items/:lineId", s.RemoveItem)
		v1.PUT("/orders/:id/discount", s.SetDiscount)
		v1.PUT("/orders/:id/charges", s.SetOtherCharges)
		v1.PUT("/orders/:id/table", s.SetTable)
		v1.PUT("/orders/:id/type", s.SetType)
		v1.POST("/orders/:id/hold", s.HoldOrder)
		v1.POST("/orders/:id/resume", s.ResumeOrder)
		v1.POST("/orders/:id/finalize", s.FinalizeOrder)
		v1.POST("/orders/:id/cancel", s.CancelOrder)

		// Tables
		v1.GET("/tables", s.ListTables)
		v1.POST("/tables", managers, s.CreateTable)
		v1.PUT("/tables/:id", managers, s.UpdateTable)
		v1.DELETE("/tables/:id", managers, s.DeleteTable)
		v1.POST("/tables/:id/open", s.OpenTable)
		v1.POST("/tables/:id/bill", s.BillTable)
		v1.POST("/tables/:id/pay", s.PayTable)

		// Menu
		v1.GET("/menu", s.ListMenu)
		v1.POST("/menu/items", managers, s.CreateMenuItem)
		v1.PUT("/menu/items/:id", managers, s.UpdateMenuItem)
		v1.DELETE("/menu/items/:id", managers, s.DeleteMenuItem)
		v1.GET("/menu/categories", s.ListCategories)
		v1.POST("/menu/categories", managers, s.CreateCategory)
		v1.POST("/menu/import", managers, s.ImportMenu)

		// Inventory
		v1.GET("/inventory", s.ListInventory)
		v1.POST("/inventory", managers, s.CreateIngredient)
		v1.PUT("/inventory/:id", managers, s.UpdateIngredient)
		v1.POST("/inventory/:id/restock", s.Restock)
		v1.POST("/inventory/:id/wastage", s.RecordWastage)
		v1.GET("/inventory/low-stock", s.LowStock)
		v1.GET("/inventory/movements", s.ListMovements)

		// Settings
		v1.GET("/settings", s.GetSettings)
		v1.PUT("/settings", managers, s.UpdateSettings)

		// Sync
		v1.GET("/sync", s.ListSync)
		v1.POST("/sync/retry", s.RetrySync)

		// Reports
		v1.GET("/reports/sales.xlsx", managers, s.SalesReport)
		v1.GET("/reports/inventory.xlsx", managers, s.InventoryReport)

		// Live changes
		v1.GET("/ws", realtime.Handler(s.hub, auth.OutletFrom, s.log))
	}
}

// service resolves the outlet service of the request and writes the error response on failure
func (s *Server) service(c *gin.Context) (*pos.Service, bool) {
	svc, err := s.registry.Service(c.Request.Context(), auth.OutletFrom(c))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return svc, true
}

func identity(c *gin.Context) models.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
}

// respondError maps domain errors to HTTP status codes
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case pos.IsValidation(err):
		status = http.StatusBadRequest
	case pos.IsNotFound(err):
		status = http.StatusNotFound
	case pos.IsConflict(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"path":      c.FullPath(),
			"outlet_id": auth.OutletFrom(c),
		}).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// Status reports uptime, the outlet figures and sync backlog
func (s *Server) Status(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outlet_id":      svc.OutletID(),
		"outlets":        s.registry.Outlets(),
		"pending_writes": s.registry.Tracker().Pending(),
		"subscribers":    s.hub.Subscribers(),
		"metrics":        s.registry.Monitor().Snapshot(),
	})
}

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"cafepos/internal/models"
	"cafepos/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type retryRequest struct {
	ID string `json:"id"`
}

func (s *Server) GetSettings(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Settings())
}

func (s *Server) UpdateSettings(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var st models.Settings
	if err := c.ShouldBindJSON(&st); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := svc.UpdateSettings(c.Request.Context(), st)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// ListSync lists the tracked writes of the outlet with their status
func (s *Server) ListSync(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Sync())
}

// RetrySync re-queues one failed write, or all of them when no id is given
func (s *Server) RetrySync(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	var req retryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	n, err := svc.RetrySync(req.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": n})
}

// SalesReport exports finalized and cancelled orders. Query: from, to (RFC 3339).
func (s *Server) SalesReport(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	f, err := orderFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if len(f.Statuses) == 0 {
		f.Statuses = []models.OrderStatus{models.OrderStatusFinalized, models.OrderStatusCancelled}
	}
	if f.Limit == 0 {
		f.Limit = 10000
	}
	records, err := svc.History(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	wb, err := report.SalesWorkbook(records)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.sendWorkbook(c, wb, fmt.Sprintf("sales-%s-%s.xlsx", svc.OutletID(), time.Now().Format("20060102")))
}

func (s *Server) InventoryReport(c *gin.Context) {
	svc, ok := s.service(c)
	if !ok {
		return
	}
	ings, err := svc.Ingredients(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	wb, err := report.InventoryWorkbook(ings)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.sendWorkbook(c, wb, fmt.Sprintf("inventory-%s-%s.xlsx", svc.OutletID(), time.Now().Format("20060102")))
}

func (s *Server) sendWorkbook(c *gin.Context, wb *excelize.File, filename string) {
	defer wb.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := wb.Write(c.Writer); err != nil {
		s.log.WithError(err).WithField("file", filename).Error("Failed to write workbook")
	}
}

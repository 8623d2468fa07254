package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	billdomain "github.com/smallbiznis/billorder/internal/bill/domain"
)

type createBillRequest struct {
	Title  string `json:"title"`
	Remark string `json:"remark"`
}

type addItemRequest struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
	Remark      string `json:"remark"`
}

type updateItemRequest struct {
	Price    *string `json:"price,omitempty"`
	Quantity *int64  `json:"quantity,omitempty"`
	Status   *string `json:"status,omitempty"`
}

type cancelBillRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateBill(c *gin.Context) {
	var req createBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	bill, err := s.billSvc.CreateBill(c.Request.Context(), billdomain.CreateBillRequest{
		Title:  req.Title,
		Remark: req.Remark,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bill)
}

func (s *Server) GetBill(c *gin.Context) {
	bill, err := s.billSvc.GetByID(c.Request.Context(), c.Param("bill_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bill)
}

func (s *Server) GetBillByNumber(c *gin.Context) {
	bill, err := s.billSvc.GetByNumber(c.Request.Context(), c.Param("bill_number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bill)
}

func (s *Server) ListBills(c *gin.Context) {
	req, err := parseListRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AddBillItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	item, err := s.billSvc.AddItem(c.Request.Context(), billdomain.AddItemRequest{
		BillID:      c.Param("bill_id"),
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Remark:      req.Remark,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (s *Server) UpdateBillItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	update := billdomain.UpdateItemRequest{
		ItemID:   c.Param("item_id"),
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	if req.Status != nil {
		status := billdomain.BillItemStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		update.Status = &status
	}

	item, err := s.billSvc.UpdateItem(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (s *Server) RemoveBillItem(c *gin.Context) {
	removed, err := s.billSvc.RemoveItem(c.Request.Context(), c.Param("bill_id"), c.Param("item_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) SubmitBill(c *gin.Context) {
	s.transition(c, s.billSvc.Submit)
}

func (s *Server) PayBill(c *gin.Context) {
	s.transition(c, s.billSvc.Pay)
}

func (s *Server) CompleteBill(c *gin.Context) {
	s.transition(c, s.billSvc.Complete)
}

func (s *Server) CancelBill(c *gin.Context) {
	var req cancelBillRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}
	}

	bill, err := s.billSvc.Cancel(c.Request.Context(), c.Param("bill_id"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bill)
}

func (s *Server) GetStatistics(c *gin.Context) {
	stats, err := s.billSvc.Statistics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) GetStatisticsPDF(c *gin.Context) {
	if s.reports == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	stats, err := s.billSvc.Statistics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.reports.GenerateStatistics(c.Request.Context(), stats, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="bill-statistics.pdf"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, nil)
}

func (s *Server) ExportBillPDF(c *gin.Context) {
	if s.reports == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	bill, err := s.billSvc.GetByID(c.Request.Context(), c.Param("bill_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.reports.GenerateBill(c.Request.Context(), bill)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+bill.BillNumber+`.pdf"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, nil)
}

func (s *Server) GetPopularProducts(c *gin.Context) {
	limit := 10
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			AbortWithError(c, fmt.Errorf("%w: limit must be between 1 and 100", ErrInvalidRequest))
			return
		}
		limit = parsed
	}

	products, err := s.billSvc.PopularProducts(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (s *Server) transition(c *gin.Context, op func(ctx context.Context, billID string) (*billdomain.Bill, error)) {
	bill, err := op(c.Request.Context(), c.Param("bill_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bill)
}

func parseListRequest(c *gin.Context) (billdomain.ListBillsRequest, error) {
	var req billdomain.ListBillsRequest

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := billdomain.BillStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return req, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, raw)
		}
		req.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("keyword")); raw != "" {
		req.Keyword = &raw
	}

	from, err := parseTimeQuery(c, "created_from")
	if err != nil {
		return req, err
	}
	to, err := parseTimeQuery(c, "created_to")
	if err != nil {
		return req, err
	}
	if (from == nil) != (to == nil) {
		return req, fmt.Errorf("%w: created_from and created_to must be supplied together", ErrInvalidRequest)
	}
	req.CreatedFrom = from
	req.CreatedTo = to

	return req, nil
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", ErrInvalidRequest, name)
	}
	return &parsed, nil
}

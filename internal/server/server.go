package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/billorder/internal/bill"
	billdomain "github.com/smallbiznis/billorder/internal/bill/domain"
	"github.com/smallbiznis/billorder/internal/clock"
	"github.com/smallbiznis/billorder/internal/config"
	"github.com/smallbiznis/billorder/internal/report"
)

var Module = fx.Module("http.server",
	bill.Module,
	report.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine  *gin.Engine
	billSvc billdomain.Service
	reports report.Generator
	clock   clock.Clock
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	BillSvc billdomain.Service
	Reports report.Generator `optional:"true"`
	Clock   clock.Clock
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:  p.Gin,
		billSvc: p.BillSvc,
		reports: p.Reports,
		clock:   p.Clock,
	}
}

func registerRoutes(s *Server) {
	v1 := s.engine.Group("/v1")

	bills := v1.Group("/bills")
	bills.POST("", s.CreateBill)
	bills.GET("", s.ListBills)
	bills.GET("/statistics", s.GetStatistics)
	bills.GET("/statistics.pdf", s.GetStatisticsPDF)
	bills.GET("/popular-products", s.GetPopularProducts)
	bills.GET("/number/:bill_number", s.GetBillByNumber)
	bills.GET("/:bill_id", s.GetBill)
	bills.GET("/:bill_id/export.pdf", s.ExportBillPDF)

	bills.POST("/:bill_id/items", s.AddBillItem)
	bills.PATCH("/:bill_id/items/:item_id", s.UpdateBillItem)
	bills.DELETE("/:bill_id/items/:item_id", s.RemoveBillItem)

	bills.POST("/:bill_id/submit", s.SubmitBill)
	bills.POST("/:bill_id/pay", s.PayBill)
	bills.POST("/:bill_id/complete", s.CompleteBill)
	bills.POST("/:bill_id/cancel", s.CancelBill)
}

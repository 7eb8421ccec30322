// Package dashboard aggregates the home-screen counters from the other
// domains.
package dashboard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/pharmadesk/pharmadesk/internal/domain/sales"
	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
)

type Patients interface {
	Count(ctx context.Context) (int, error)
}

type Appointments interface {
	Today() datex.Date
	CountOn(ctx context.Context, day datex.Date) (int, error)
}

type Stock interface {
	CountLowStock(ctx context.Context) (int, error)
}

type Sales interface {
	Today(ctx context.Context) (sales.DaySummary, error)
}

// Summary is the body of GET /dashboard/summary.
type Summary struct {
	Date              string          `json:"date"`
	TotalPatients     int             `json:"total_patients"`
	TodayAppointments int             `json:"today_appointments"`
	LowStockCount     int             `json:"low_stock_count"`
	TodaySales        int             `json:"today_sales"`
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
}

type Service struct {
	patients     Patients
	appointments Appointments
	stock        Stock
	sales        Sales
}

func NewService(patients Patients, appointments Appointments, stock Stock, sales Sales) *Service {
	return &Service{patients: patients, appointments: appointments, stock: stock, sales: sales}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	out := &Summary{}

	n, err := s.patients.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	out.TotalPatients = n

	today := s.appointments.Today()
	out.Date = today.String()
	if out.TodayAppointments, err = s.appointments.CountOn(ctx, today); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}

	if out.LowStockCount, err = s.stock.CountLowStock(ctx); err != nil {
		return nil, fmt.Errorf("count low stock: %w", err)
	}

	day, err := s.sales.Today(ctx)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	out.TodaySales = day.Count
	out.TodayRevenue = day.Revenue
	return out, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard/summary", h.Summary)
}

func (h *Handler) Summary(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return httperr.From(err, "not found")
	}
	return c.JSON(http.StatusOK, sum)
}

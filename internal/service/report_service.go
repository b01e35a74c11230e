package service

import (
	"context"
	"time"

	"github.com/harborline/tablepos/internal/core"
)

// ReportService exposes read-only rollups over settled tickets. Paid
// tickets are frozen, so these reads need no locking against the mutating
// services.
type ReportService struct {
	reportRepo   core.ReportRepository
	venueName    string
	timezoneName string
}

// NewReportService creates a new report service
func NewReportService(reportRepo core.ReportRepository, venueName string, timezoneName string) *ReportService {
	return &ReportService{
		reportRepo:   reportRepo,
		venueName:    venueName,
		timezoneName: timezoneName,
	}
}

// PaidTicketsBetween lists paid tickets closed in a time range, with lines
func (s *ReportService) PaidTicketsBetween(ctx context.Context, from, to time.Time) ([]*core.Ticket, error) {
	return s.reportRepo.PaidBetween(ctx, from, to)
}

// Overview returns today's revenue, ticket count and average ticket
func (s *ReportService) Overview(ctx context.Context) (*core.SalesOverview, error) {
	return s.reportRepo.Overview(ctx)
}

// RevenueTrend returns daily settled revenue for the last n days
func (s *ReportService) RevenueTrend(ctx context.Context, days int) ([]*core.RevenueTrendPoint, error) {
	if days <= 0 {
		days = 7
	}
	return s.reportRepo.RevenueTrend(ctx, days)
}

// TopProducts returns the best sellers by settled revenue
func (s *ReportService) TopProducts(ctx context.Context, limit int) ([]*core.TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.reportRepo.TopProducts(ctx, limit)
}

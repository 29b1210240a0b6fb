// Package insights merges the three engine outputs into a single business
// summary. Pure function of its inputs: no independent computation, no I/O.
package insights

import (
	"customer-insights/pkg/models"
	"customer-insights/pkg/rfm"
)

// Summarize produces the business summary record. Win-back opportunity is
// the at-risk segment's monetary total times the configured success rate,
// rounded half away from zero to cents.
func Summarize(rfmRes *models.RFMResult, cohortRes *models.CohortResult, ltvRes *models.LTVResult, cfg models.Config) *models.BusinessSummary {
	summary := &models.BusinessSummary{Customers: len(rfmRes.Records)}

	totalRevenue := 0.0
	topRevenue := 0.0
	for _, s := range rfmRes.Summary {
		totalRevenue += s.TotalRevenue
		if s.TotalRevenue > topRevenue {
			topRevenue = s.TotalRevenue
			summary.TopSegment = s.Segment
		}
		if s.Segment == rfm.SegmentAtRisk {
			summary.AtRiskValue = s.TotalRevenue
		}
	}
	if totalRevenue > 0 {
		summary.TopSegmentRevenueShare = models.RoundMoney(topRevenue / totalRevenue * 100)
	}
	summary.WinBackOpportunity = models.RoundMoney(summary.AtRiskValue * cfg.WinBackRate)

	for _, p := range cohortRes.Trend {
		if p.PeriodIndex == 1 {
			summary.AvgMonth1Retention = models.RoundMoney(p.AvgRetention * 100)
			break
		}
	}

	if len(ltvRes.Records) > 0 {
		total := 0.0
		for _, r := range ltvRes.Records {
			total += r.HistoricalValue
		}
		summary.AvgLTV = models.RoundMoney(total / float64(len(ltvRes.Records)))
		if cfg.AcquisitionCost > 0 {
			summary.LTVCACRatio = models.RoundMoney(summary.AvgLTV / cfg.AcquisitionCost)
		}
	}

	return summary
}

// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// transactionChartHours is the depth of the transaction volume chart.
const transactionChartHours = 9

// UptimeSeries returns the 24h fleet uptime chart, one point per hour,
// oldest first. An empty fleet yields an empty series.
func (s *Service) UptimeSeries(ctx context.Context) ([]models.UptimeDataPoint, error) {
	return s.estimator.HourlySeries(ctx, time.Now())
}

// TransactionSeries returns transaction volume for the last 9 clock hours,
// oldest first. Hours with no bucket read 0, so the chart always has a full
// axis.
func (s *Service) TransactionSeries(ctx context.Context) ([]models.TransactionDataPoint, error) {
	now := time.Now()
	series := make([]models.TransactionDataPoint, 0, transactionChartHours)

	for i := transactionChartHours - 1; i >= 0; i-- {
		hourStart := now.Add(-time.Duration(i) * time.Hour).Truncate(time.Hour)
		count, err := s.db.GetHourlyBucketCount(ctx, hourStart)
		if err != nil {
			return nil, err
		}
		series = append(series, models.TransactionDataPoint{
			Hour:  fmt.Sprintf("%02d:00", hourStart.Local().Hour()),
			Count: count,
		})
	}

	return series, nil
}

// VersionDistribution returns each app version's share of the fleet,
// largest group first. An empty fleet yields an empty list.
func (s *Service) VersionDistribution(ctx context.Context) ([]models.VersionDistribution, error) {
	versions, err := s.db.GetVersionCounts(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, v := range versions {
		total += v.Count
	}
	if total == 0 {
		return []models.VersionDistribution{}, nil
	}

	for i := range versions {
		versions[i].Percentage = float64(versions[i].Count) / float64(total) * 100
	}

	return versions, nil
}

// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package uptime estimates terminal availability from heartbeat sampling
// completeness. Terminals report every 5 minutes; uptime for a window is the
// ratio of received samples to expected samples.
//
// A terminal only participates in a window once it has existed for at least
// 5 minutes of it, so freshly registered terminals do not drag averages down
// before they could have reported.
package uptime

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

// HeartbeatInterval is the nominal terminal reporting period.
const HeartbeatInterval = 5 * time.Minute

// minActiveMinutes is the minimum window participation before a terminal's
// uptime is counted.
const minActiveMinutes = 5

// Store is the subset of the database the estimator reads and writes.
type Store interface {
	ListTerminalActivity(ctx context.Context) ([]database.TerminalActivity, error)
	CountHeartbeats(ctx context.Context, deviceID string, from, to time.Time, inclusiveEnd bool) (int, error)
	CountHeartbeatsSince(ctx context.Context, deviceID string, from time.Time) (int, error)
	SetUptimePercentage(ctx context.Context, deviceID string, pct float64) error
}

// Estimator computes fleet uptime percentages from heartbeat counts.
type Estimator struct {
	store Store
}

// New creates an Estimator backed by the given store.
func New(store Store) *Estimator {
	return &Estimator{store: store}
}

// expectedSamples is the number of heartbeats a terminal should have sent
// over minutesActive minutes.
func expectedSamples(minutesActive int) int {
	return minutesActive / int(HeartbeatInterval/time.Minute)
}

// minutesBetween returns whole minutes from a to b, truncated.
func minutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

// laterOf returns the later of two instants.
func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// clamp bounds pct to [0, 100].
func clamp(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// HourlySeries returns the fleet-average uptime for each of the last 24
// one-hour windows, oldest first, labeled with the window end hour. Each
// window is end-exclusive and each terminal's ratio is capped at 100 before
// averaging, so over-reporters cannot mask silent terminals. A window with
// no eligible terminal reads 0. An empty fleet yields an empty series.
func (e *Estimator) HourlySeries(ctx context.Context, now time.Time) ([]models.UptimeDataPoint, error) {
	terminals, err := e.store.ListTerminalActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminals for uptime series: %w", err)
	}
	if len(terminals) == 0 {
		return []models.UptimeDataPoint{}, nil
	}

	series := make([]models.UptimeDataPoint, 0, 24)
	for i := 0; i < 24; i++ {
		periodEnd := now.Add(-time.Duration(23-i) * time.Hour)
		periodStart := periodEnd.Add(-time.Hour)
		label := fmt.Sprintf("%02d:00", periodEnd.Local().Hour())

		var (
			sum      float64
			eligible int
		)
		for _, term := range terminals {
			if term.CreatedAt.After(periodEnd) {
				continue
			}
			effectiveStart := laterOf(term.CreatedAt, periodStart)
			minutesActive := minutesBetween(effectiveStart, periodEnd)
			if minutesActive < minActiveMinutes {
				continue
			}

			received, err := e.store.CountHeartbeats(ctx, term.DeviceID, effectiveStart, periodEnd, false)
			if err != nil {
				return nil, fmt.Errorf("failed to count heartbeats for %s: %w", term.DeviceID, err)
			}

			expected := expectedSamples(minutesActive)
			if expected > 0 {
				sum += clamp(float64(received) / float64(expected) * 100)
			}
			eligible++
		}

		avg := 0.0
		if eligible > 0 {
			avg = sum / float64(eligible)
		}
		series = append(series, models.UptimeDataPoint{Time: label, Uptime: avg})
	}

	return series, nil
}

// LastHourAverage returns the fleet-average uptime over the trailing hour.
// The window is end-inclusive so the sample that triggered a request still
// counts. Each terminal's ratio is capped at 100 before averaging. Terminals
// registered within the last 5 minutes are excluded. Returns 0 when no
// terminal is eligible.
func (e *Estimator) LastHourAverage(ctx context.Context, now time.Time) (float64, error) {
	terminals, err := e.store.ListTerminalActivity(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list terminals for last-hour uptime: %w", err)
	}

	oneHourAgo := now.Add(-time.Hour)
	var (
		sum      float64
		eligible int
	)
	for _, term := range terminals {
		if term.CreatedAt.After(now.Add(-minActiveMinutes * time.Minute)) {
			continue
		}
		effectiveStart := laterOf(term.CreatedAt, oneHourAgo)
		minutesActive := minutesBetween(effectiveStart, now)
		if minutesActive < minActiveMinutes {
			continue
		}

		received, err := e.store.CountHeartbeats(ctx, term.DeviceID, effectiveStart, now, true)
		if err != nil {
			return 0, fmt.Errorf("failed to count heartbeats for %s: %w", term.DeviceID, err)
		}

		expected := expectedSamples(minutesActive)
		if expected > 0 {
			sum += clamp(float64(received) / float64(expected) * 100)
		}
		eligible++
	}

	if eligible == 0 {
		return 0, nil
	}
	return sum / float64(eligible), nil
}

// RecomputeAll recomputes and persists every terminal's 24h uptime
// percentage. The window is the trailing 24 hours, bounded below by the
// terminal's registration. Terminals younger than 5 minutes are skipped
// entirely; a terminal whose window expects no samples scores 100, treating
// lack of evidence as healthy in the persisted field.
func (e *Estimator) RecomputeAll(ctx context.Context, now time.Time) error {
	terminals, err := e.store.ListTerminalActivity(ctx)
	if err != nil {
		return fmt.Errorf("failed to list terminals for uptime recompute: %w", err)
	}

	windowStart := now.Add(-24 * time.Hour)
	for _, term := range terminals {
		start := laterOf(term.CreatedAt, windowStart)
		minutesActive := minutesBetween(start, now)
		if minutesActive < minActiveMinutes {
			continue
		}

		received, err := e.store.CountHeartbeatsSince(ctx, term.DeviceID, start)
		if err != nil {
			return fmt.Errorf("failed to count heartbeats for %s: %w", term.DeviceID, err)
		}

		expected := expectedSamples(minutesActive)
		pct := 100.0
		if expected > 0 {
			pct = float64(received) / float64(expected) * 100
		}
		pct = clamp(pct)

		if err := e.store.SetUptimePercentage(ctx, term.DeviceID, pct); err != nil {
			return fmt.Errorf("failed to persist uptime for %s: %w", term.DeviceID, err)
		}

		logging.Debug().
			Str("device_id", term.DeviceID).
			Int("received", received).
			Int("expected", expected).
			Float64("uptime", pct).
			Msg("Recomputed terminal uptime")
	}

	return nil
}

package snapshot

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/hkmcoding/landie-next-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// ClickHouseSource aggregates landing_page_events stored in ClickHouse
type ClickHouseSource struct {
	conn clickhouse.Conn
}

var _ AnalyticsSource = (*ClickHouseSource)(nil)

// NewClickHouseSource opens and pings a native-protocol connection
func NewClickHouseSource(cfg *config.Config) (*ClickHouseSource, error) {
	if cfg.ClickHouseHost == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST is required")
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logrus.Infof("Connected to ClickHouse at %s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)
	return &ClickHouseSource{conn: conn}, nil
}

// PageAnalytics aggregates views, visitors, clicks and session duration since
// the given time
func (s *ClickHouseSource) PageAnalytics(ctx context.Context, landingPageID string, since time.Time) (*models.AnalyticsSnapshot, error) {
	const query = `
		SELECT
			countIf(event_type = 'page_view')                 AS page_views,
			uniqIf(visitor_id, event_type = 'page_view')      AS unique_visitors,
			countIf(event_type = 'cta_click')                 AS cta_clicks,
			avgIf(duration_ms, event_type = 'session_end')    AS avg_duration_ms
		FROM landing_page_events
		WHERE landing_page_id = ? AND timestamp >= ?
	`

	var (
		views, visitors, clicks uint64
		avgDurationMs           float64
	)
	if err := s.conn.QueryRow(ctx, query, landingPageID, since).Scan(&views, &visitors, &clicks, &avgDurationMs); err != nil {
		return nil, fmt.Errorf("failed to query page analytics: %w", err)
	}

	// avgIf over zero rows yields NaN
	if math.IsNaN(avgDurationMs) {
		avgDurationMs = 0
	}

	snap := models.AnalyticsSnapshot{
		PageViews:          int(views),
		UniqueVisitors:     int(visitors),
		CTAClicks:          int(clicks),
		AvgSessionDuration: avgDurationMs / 1000,
		Timestamp:          time.Now(),
	}
	snap = snap.WithDerivedConversion()
	return &snap, nil
}

// DailyMetrics returns one point per day with views, clicks and conversion
func (s *ClickHouseSource) DailyMetrics(ctx context.Context, landingPageID string, since time.Time) (*models.DailyMetrics, error) {
	const query = `
		SELECT
			toStartOfDay(timestamp)           AS day,
			countIf(event_type = 'page_view') AS page_views,
			countIf(event_type = 'cta_click') AS cta_clicks
		FROM landing_page_events
		WHERE landing_page_id = ? AND timestamp >= ?
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := s.conn.Query(ctx, query, landingPageID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	defer rows.Close()

	metrics := &models.DailyMetrics{}
	for rows.Next() {
		var (
			day           time.Time
			views, clicks uint64
		)
		if err := rows.Scan(&day, &views, &clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily metrics row: %w", err)
		}

		conversion := 0.0
		if views > 0 {
			conversion = float64(clicks) / float64(views) * 100
		}
		metrics.PageViews = append(metrics.PageViews, models.DataPoint{Date: day, Value: float64(views)})
		metrics.CTAClicks = append(metrics.CTAClicks, models.DataPoint{Date: day, Value: float64(clicks)})
		metrics.ConversionRate = append(metrics.ConversionRate, models.DataPoint{Date: day, Value: conversion})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily metrics rows: %w", err)
	}

	return metrics, nil
}

// Close releases the connection
func (s *ClickHouseSource) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

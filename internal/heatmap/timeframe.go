package heatmap

import (
	"fmt"
	"time"
)

// Timeframe is a raw-series lookback accepted by the read API.
type Timeframe string

const (
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"

	DefaultTimeframe = Timeframe7d
)

func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "":
		return DefaultTimeframe, nil
	case Timeframe24h, Timeframe7d, Timeframe30d:
		return Timeframe(s), nil
	default:
		return "", fmt.Errorf("timeframe must be one of 24h, 7d, 30d; got %q", s)
	}
}

func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe24h:
		return 24 * time.Hour
	case Timeframe30d:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

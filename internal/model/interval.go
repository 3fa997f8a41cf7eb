package model

import (
	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

var intervalSeconds = map[string]int64{
	"1m":  60,
	"3m":  180,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"2h":  7200,
	"4h":  14400,
	"6h":  21600,
	"8h":  28800,
	"12h": 43200,
	"1d":  86400,
	"3d":  259200,
	"1w":  604800,
}

// IntervalSeconds returns the bar length of an interval tag in seconds.
// Calendar-length intervals (months) are not supported.
func IntervalSeconds(interval string) (int64, error) {
	secs, ok := intervalSeconds[interval]
	if !ok {
		return 0, errors.Wrapf(exception.ErrIntervalUnsupported, "interval: %s", interval)
	}

	return secs, nil
}

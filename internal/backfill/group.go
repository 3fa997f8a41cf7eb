package backfill

import (
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

// Chunk is one fetchable sub-range in unix milliseconds, sized to the
// exchange page limit.
type Chunk struct {
	Start int64
	End   int64
}

// Group partitions [startSec, endSec] into consecutive sub-ranges of at
// most limit bars each. Chunks are contiguous and non-overlapping: each
// chunk ends one millisecond before the next starts, and the last
// chunk's end is clamped to the exact end timestamp even if it covers
// fewer than limit bars.
func Group(interval string, startSec, endSec int64, limit int) ([]Chunk, error) {
	intervalSec, err := model.IntervalSeconds(interval)
	if err != nil {
		return nil, err
	}

	if startSec >= endSec {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "start %d must be before end %d", startSec, endSec)
	}

	if limit <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "limit: %d", limit)
	}

	var (
		startMs = startSec * 1000
		endMs   = endSec * 1000
		stepMs  = intervalSec * 1000 * int64(limit)
		chunks  []Chunk
	)

	for cursor := startMs; cursor <= endMs; cursor += stepMs {
		end := cursor + stepMs - 1
		if end >= endMs {
			end = endMs
		}
		chunks = append(chunks, Chunk{Start: cursor, End: end})
	}

	return chunks, nil
}

// ExpectedBars is the analytically expected bar count of [startSec, endSec].
func ExpectedBars(interval string, startSec, endSec int64) (int64, error) {
	intervalSec, err := model.IntervalSeconds(interval)
	if err != nil {
		return 0, err
	}

	if startSec >= endSec {
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "start %d must be before end %d", startSec, endSec)
	}

	span := endSec - startSec

	return (span+intervalSec-1)/intervalSec + 1, nil
}

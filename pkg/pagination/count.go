package pagination

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ErrCountUnknown is returned when the total result count could not be
// determined. It is distinct from a true count of zero.
var ErrCountUnknown = errors.New("result count unknown")

// ProbeCount fetches url once and returns response.numFound.
func ProbeCount(ctx context.Context, fetcher Fetcher, url string) (int, error) {
	body, err := fetcher.Get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCountUnknown, err)
	}
	if body == "" || !gjson.Valid(body) {
		return 0, fmt.Errorf("%w: response is not JSON", ErrCountUnknown)
	}

	numFound := gjson.Get(body, NumFoundPath)
	if numFound.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %s missing", ErrCountUnknown, NumFoundPath)
	}

	n := numFound.Int()
	if float64(n) != numFound.Num || n < 0 || n > math.MaxInt {
		return 0, fmt.Errorf("%w: %s = %s", ErrCountUnknown, NumFoundPath, numFound.Raw)
	}

	return int(n), nil
}

// ProbeCountOrZero is ProbeCount with every failure reported as 0.
func ProbeCountOrZero(ctx context.Context, fetcher Fetcher, url string) int {
	n, err := ProbeCount(ctx, fetcher, url)
	if err != nil {
		log.Warn().Err(err).Msg("Count probe failed, assuming zero results")
		return 0
	}
	return n
}

package progress

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"vfi-client/internal/domain"
	"vfi-client/internal/protocol"
)

// DefaultSteps is the step count used by count-based jobs when none is configured.
const DefaultSteps = 5

// Estimator turns server progress fields into a percentage in [0, 100].
type Estimator interface {
	Estimate(msg protocol.Control) float64
}

// ForKind picks the strategy the server uses for kind.
func ForKind(kind domain.JobKind, steps int, logger zerolog.Logger) Estimator {
	if kind == domain.JobKindEaseMotion {
		return &ETAEstimator{logger: logger}
	}
	return NewCountEstimator(steps)
}

// CountEstimator renders a server step counter 0..Steps as a percentage.
type CountEstimator struct {
	Steps int
}

// NewCountEstimator falls back to DefaultSteps for non-positive steps.
func NewCountEstimator(steps int) *CountEstimator {
	if steps <= 0 {
		steps = DefaultSteps
	}
	return &CountEstimator{Steps: steps}
}

// Estimate returns round(step*100/Steps); messages without a step report 0.
func (e *CountEstimator) Estimate(msg protocol.Control) float64 {
	if msg.ProgressBar == nil {
		return 0
	}
	unit := 100 / float64(e.Steps)
	return lo.Clamp(math.Round(*msg.ProgressBar*unit), 0, 100)
}

// ETAEstimator derives a percentage from total and remaining duration strings.
type ETAEstimator struct {
	logger zerolog.Logger
}

// NewETAEstimator builds an ETA strategy that logs malformed durations.
func NewETAEstimator(logger zerolog.Logger) *ETAEstimator {
	return &ETAEstimator{logger: logger}
}

// Estimate returns (eta-left)/eta*100 clamped to [0, 100], and 0 when eta is zero.
func (e *ETAEstimator) Estimate(msg protocol.Control) float64 {
	if msg.Status != protocol.StatusProcessing {
		return 0
	}

	total := e.seconds("eta", msg.ETA)
	if total == 0 {
		return 0
	}
	left := e.seconds("left", msg.Left)

	pct := float64(total-left) / float64(total) * 100
	return lo.Clamp(pct, 0, 100)
}

func (e *ETAEstimator) seconds(field, value string) int {
	secs, err := ClockSeconds(value)
	if err != nil {
		e.logger.Warn().Err(err).Str("field", field).Str("value", value).Msg("progress: invalid duration")
		return 0
	}
	return secs
}

// ClockSeconds converts HH:MM:SS or MM:SS into seconds.
func ClockSeconds(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time format %q", value)
	}

	nums := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time format %q", value)
		}
		nums[i] = n
	}

	if len(nums) == 3 {
		return nums[0]*3600 + nums[1]*60 + nums[2], nil
	}
	return nums[0]*60 + nums[1], nil
}

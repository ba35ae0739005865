package assessment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

func replyFor(n int) string {
	severities := []string{"Low", "Moderate", "High", "Critical"}
	return fmt.Sprintf("**1. Type of Damage:** Damage %d\n**2. Severity Level:** %s\n**3. Affected Areas:** area %d\n", n, severities[(n-1)%4], n)
}

func imageNumber(instructions string) int {
	var n, total int
	i := strings.Index(instructions, "Image ")
	if i < 0 {
		return 0
	}
	fmt.Sscanf(instructions[i:], "Image %d of %d", &n, &total)
	return n
}

func images(n int) []oracle.Image {
	out := make([]oracle.Image, n)
	for i := range out {
		out[i] = oracle.Image{Name: fmt.Sprintf("photo_%d.jpg", i+1), MIMEType: "image/jpeg", Data: []byte{byte(i)}}
	}
	return out
}

var vehicleHail = Metadata{LossType: "vehicle", IncidentType: "hail"}

func TestAnalyzer_SecondOfThreeFails(t *testing.T) {
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			require.Len(t, imgs, 1)
			n := imageNumber(instructions)
			if n == 2 {
				return "", &oracle.TransportError{Backend: "Mock", StatusCode: http.StatusInternalServerError, Message: "boom"}
			}
			return replyFor(n), nil
		},
	}
	a := &Analyzer{Oracle: mock}

	batch, err := a.Analyze(context.Background(), images(3), vehicleHail)
	require.NoError(t, err)
	require.Len(t, batch.Images, 3)

	assert.True(t, batch.Images[0].Succeeded())
	assert.False(t, batch.Images[1].Succeeded())
	assert.True(t, batch.Images[2].Succeeded())
	assert.Equal(t, 2, batch.Images[1].ImageNumber)
	assert.Equal(t, "photo_2.jpg", batch.Images[1].Name)
	assert.Equal(t, "Mock API Error (500): boom", batch.Images[1].Error)
	assert.Equal(t, 1, batch.Failed())

	require.NotNil(t, batch.Combined)
	assert.Equal(t, "High", batch.Combined.SeverityLevel)
	assert.Equal(t, "Multiple damage types identified: Damage 1, Damage 3", batch.Combined.DamageType)
	assert.Equal(t, "area 1; area 3", batch.Combined.AffectedAreas)
	assert.Contains(t, batch.Combined.FullReport, "=== Analysis from Image 3 ===")
	assert.NotContains(t, batch.Combined.FullReport, "=== Analysis from Image 2 ===")
}

func TestAnalyzer_AllFail(t *testing.T) {
	mock := &oracle.MockOracle{}
	a := &Analyzer{Oracle: mock}

	batch, err := a.Analyze(context.Background(), images(2), vehicleHail)
	assert.ErrorIs(t, err, ErrNoSuccessfulAnalyses)
	require.Len(t, batch.Images, 2)
	assert.Equal(t, 2, batch.Failed())
	assert.Nil(t, batch.Combined)
	assert.ErrorIs(t, batch.Images[0].Err, oracle.ErrEmptyResponse)
}

func TestAnalyzer_ValidationBeforeOracle(t *testing.T) {
	var calls atomic.Int32
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			calls.Add(1)
			return "x", nil
		},
	}
	a := &Analyzer{Oracle: mock, MinImages: 3}

	_, err := a.Analyze(context.Background(), images(2), vehicleHail)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "images", ve.Field)

	a.MinImages = 1
	_, err = a.Analyze(context.Background(), images(1), Metadata{})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "lossType", ve.Field)

	assert.Zero(t, calls.Load())
}

func TestAnalyzer_ConcurrentKeepsInputOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			n := imageNumber(instructions)
			// Earlier images finish last.
			time.Sleep(time.Duration(6-n) * 5 * time.Millisecond)
			return replyFor(n), nil
		},
	}
	a := &Analyzer{Oracle: mock, Concurrency: 2}

	batch, err := a.Analyze(context.Background(), images(5), vehicleHail)
	require.NoError(t, err)
	for i, r := range batch.Images {
		assert.Equal(t, i+1, r.ImageNumber)
		require.NotNil(t, r.Analysis)
		assert.Equal(t, fmt.Sprintf("Damage %d", i+1), r.Analysis.DamageType)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAnalyzer_RetriesRateLimited(t *testing.T) {
	defer func(d time.Duration) { minRetryBackoff = d }(minRetryBackoff)
	minRetryBackoff = time.Millisecond

	var calls atomic.Int32
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			if calls.Add(1) == 1 {
				return "", &oracle.TransportError{Backend: "Mock", StatusCode: http.StatusTooManyRequests}
			}
			return replyFor(1), nil
		},
	}
	a := &Analyzer{Oracle: mock, RateLimitRetries: 1}

	batch, err := a.Analyze(context.Background(), images(1), vehicleHail)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, batch.Images[0].Succeeded())
}

func TestAnalyzer_DoesNotRetryOtherErrors(t *testing.T) {
	var calls atomic.Int32
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			calls.Add(1)
			return "", &oracle.TransportError{Backend: "Mock", StatusCode: http.StatusUnauthorized}
		},
	}
	a := &Analyzer{Oracle: mock, RateLimitRetries: 3}

	_, err := a.Analyze(context.Background(), images(1), vehicleHail)
	assert.ErrorIs(t, err, ErrNoSuccessfulAnalyses)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzer_PauseSpacesCalls(t *testing.T) {
	var starts []time.Time
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			starts = append(starts, time.Now())
			return replyFor(1), nil
		},
	}
	a := &Analyzer{Oracle: mock, Pause: 30 * time.Millisecond}

	_, err := a.Analyze(context.Background(), images(3), vehicleHail)
	require.NoError(t, err)
	require.Len(t, starts, 3)
	assert.GreaterOrEqual(t, starts[2].Sub(starts[0]), 50*time.Millisecond)
}

func TestAnalyzer_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			if calls.Add(1) == 1 {
				cancel()
			}
			return replyFor(1), nil
		},
	}
	a := &Analyzer{Oracle: mock, Pause: time.Hour}

	batch, err := a.Analyze(ctx, images(3), vehicleHail)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, batch.Images, 3)
	assert.Nil(t, batch.Combined)
}

func TestAnalyzer_CombinedMode(t *testing.T) {
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			assert.Len(t, imgs, 3)
			assert.Contains(t, instructions, "Analyze all these images")
			return replyFor(3), nil
		},
	}
	a := &Analyzer{Oracle: mock, Mode: ModeCombined}

	batch, err := a.Analyze(context.Background(), images(3), vehicleHail)
	require.NoError(t, err)
	require.NotNil(t, batch.Combined)
	assert.Equal(t, "High", batch.Combined.SeverityLevel)
	require.Len(t, batch.Images, 3)
	assert.True(t, batch.Images[2].Succeeded())
}

func TestAnalyzer_CombinedModeFailure(t *testing.T) {
	mock := &oracle.MockOracle{
		AnalyzeFn: func(ctx context.Context, imgs []oracle.Image, instructions string) (string, error) {
			return "", &oracle.TransportError{Backend: "Mock", StatusCode: http.StatusForbidden}
		},
	}
	a := &Analyzer{Oracle: mock, Mode: ModeCombined}

	batch, err := a.Analyze(context.Background(), images(2), vehicleHail)
	assert.ErrorIs(t, err, ErrNoSuccessfulAnalyses)
	var te *oracle.TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, 2, batch.Failed())
}

package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestFlightRiskHighRisk(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	result := FlightRisk(Inputs{
		DateOfJoining:      now.AddDate(0, -8, 0),
		PerformanceRating:  intPtr(1),
		EngagementScore:    intPtr(10),
		LeaveDaysYTD:       25,
		OvertimeHoursMonth: 60,
	}, now)

	// raise staleness counts from joining (8 months)
	assert.Equal(t, BandHigh, result.Band)
	assert.InDelta(t, 8.33+20+22.5+10+10+10, result.Score, 0.1)
	require.Len(t, result.Factors, 6)
	assert.Equal(t, "disengagement", result.Factors[0].Name)
	for i := 1; i < len(result.Factors); i++ {
		assert.GreaterOrEqual(t, result.Factors[i-1].Contribution, result.Factors[i].Contribution)
	}
}

func TestFlightRiskLowRisk(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lastRaise := now.AddDate(0, -1, 0)
	result := FlightRisk(Inputs{
		DateOfJoining:     now.AddDate(-5, 0, 0),
		LastRaiseAt:       &lastRaise,
		PerformanceRating: intPtr(5),
		EngagementScore:   intPtr(95),
	}, now)

	assert.Equal(t, BandLow, result.Band)
	assert.Less(t, result.Score, 35.0)
}

func TestFlightRiskUnknownInputsUseMidpoint(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	result := FlightRisk(Inputs{DateOfJoining: now.AddDate(-2, 0, 0)}, now)

	byName := map[string]float64{}
	for _, f := range result.Factors {
		byName[f.Name] = f.Contribution
	}
	assert.Equal(t, 10.0, byName["performance"])
	assert.Equal(t, 12.5, byName["disengagement"])
	assert.Equal(t, 5.0, byName["tenure"])
	assert.InDelta(t, 25.0, byName["raise_staleness"], 0.01)
	assert.Equal(t, BandMedium, result.Band)
}

func TestBandBoundaries(t *testing.T) {
	assert.Equal(t, BandLow, Band(34.99))
	assert.Equal(t, BandMedium, Band(35))
	assert.Equal(t, BandMedium, Band(64.99))
	assert.Equal(t, BandHigh, Band(65))
}

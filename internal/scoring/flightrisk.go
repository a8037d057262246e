package scoring

import (
	"math"
	"sort"
	"time"
)

const (
	BandLow    = "low"
	BandMedium = "medium"
	BandHigh   = "high"
)

// Inputs are the signals the flight-risk score is built from. Nil pointers
// mean the value is unknown.
type Inputs struct {
	DateOfJoining      time.Time
	LastRaiseAt        *time.Time
	PerformanceRating  *int
	EngagementScore    *int
	LeaveDaysYTD       int
	OvertimeHoursMonth int
}

type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

type Result struct {
	Score   float64  `json:"score"`
	Band    string   `json:"band"`
	Factors []Factor `json:"factors"`
}

// FlightRisk scores how likely an employee is to leave, from 0 to 100.
func FlightRisk(in Inputs, now time.Time) Result {
	raiseFrom := in.DateOfJoining
	if in.LastRaiseAt != nil {
		raiseFrom = *in.LastRaiseAt
	}

	performance := 0.5
	if in.PerformanceRating != nil {
		rating := clamp(float64(*in.PerformanceRating), 1, 5)
		performance = (5 - rating) / 4
	}

	disengagement := 0.5
	if in.EngagementScore != nil {
		engagement := clamp(float64(*in.EngagementScore), 0, 100)
		disengagement = (100 - engagement) / 100
	}

	tenureMonths := monthsBetween(in.DateOfJoining, now)
	tenure := 0.2
	switch {
	case tenureMonths < 12:
		tenure = 1
	case tenureMonths < 36:
		tenure = 0.5
	}

	factors := []Factor{
		{Name: "raise_staleness", Contribution: math.Min(monthsBetween(raiseFrom, now)/24, 1) * 25},
		{Name: "performance", Contribution: performance * 20},
		{Name: "disengagement", Contribution: disengagement * 25},
		{Name: "leave", Contribution: math.Min(float64(max(in.LeaveDaysYTD, 0))/20, 1) * 10},
		{Name: "overtime", Contribution: math.Min(float64(max(in.OvertimeHoursMonth, 0))/40, 1) * 10},
		{Name: "tenure", Contribution: tenure * 10},
	}

	var score float64
	for i := range factors {
		factors[i].Contribution = round2(factors[i].Contribution)
		score += factors[i].Contribution
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Contribution > factors[j].Contribution
	})

	score = round2(clamp(score, 0, 100))
	return Result{Score: score, Band: Band(score), Factors: factors}
}

func Band(score float64) string {
	switch {
	case score < 35:
		return BandLow
	case score < 65:
		return BandMedium
	default:
		return BandHigh
	}
}

func monthsBetween(from, to time.Time) float64 {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return to.Sub(from).Hours() / 24 / 30.4375
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

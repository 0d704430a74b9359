// Package roi implements the landing page ROI calculator.
package roi

import "math"

// Range bounds one slider.
type Range struct {
	Min, Max, Step float64
}

// Clamp pins v to the range and snaps it to the step.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		v = r.Min
	}
	if v < r.Min {
		v = r.Min
	}
	if v > r.Max {
		v = r.Max
	}
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
		if v > r.Max {
			v = r.Max
		}
	}
	return v
}

// Slider ranges rendered by the calculator form.
var (
	EmployeesRange  = Range{Min: 1, Max: 1000, Step: 1}
	HoursSavedRange = Range{Min: 0, Max: 20, Step: 0.5}
	HourlyCostRange = Range{Min: 10, Max: 200, Step: 1}
	SeatsRange      = Range{Min: 1, Max: 1000, Step: 1}
	SeatPriceRange  = Range{Min: 0, Max: 100, Step: 1}
)

const (
	weeksPerYear  = 52.0
	monthsPerYear = 12.0
)

// Inputs are the raw slider values.
type Inputs struct {
	Employees  float64 // staff whose work the ERP touches
	HoursSaved float64 // hours saved per employee per week
	HourlyCost float64 // loaded hourly cost
	Seats      float64 // paid seats
	SeatPrice  float64 // price per seat per month
}

// Defaults are the initial slider positions.
func Defaults() Inputs {
	return Inputs{Employees: 25, HoursSaved: 3, HourlyCost: 45, Seats: 10, SeatPrice: 12}
}

// Clamp returns inputs pinned to their slider ranges.
func (in Inputs) Clamp() Inputs {
	return Inputs{
		Employees:  EmployeesRange.Clamp(in.Employees),
		HoursSaved: HoursSavedRange.Clamp(in.HoursSaved),
		HourlyCost: HourlyCostRange.Clamp(in.HourlyCost),
		Seats:      SeatsRange.Clamp(in.Seats),
		SeatPrice:  SeatPriceRange.Clamp(in.SeatPrice),
	}
}

// Result holds yearly figures in whole currency units.
type Result struct {
	Inputs        Inputs
	HoursPerYear  float64
	AnnualSavings float64
	AnnualCost    float64
	NetBenefit    float64
	// ROIPercent and PaybackMonths are nil when undefined (zero cost or
	// zero savings).
	ROIPercent    *float64
	PaybackMonths *float64
}

// Calculate clamps the inputs and derives the yearly figures.
func Calculate(in Inputs) Result {
	in = in.Clamp()
	hours := in.Employees * in.HoursSaved * weeksPerYear
	savings := round2(hours * in.HourlyCost)
	cost := round2(in.Seats * in.SeatPrice * monthsPerYear)

	res := Result{
		Inputs:        in,
		HoursPerYear:  hours,
		AnnualSavings: savings,
		AnnualCost:    cost,
		NetBenefit:    round2(savings - cost),
	}
	if cost > 0 {
		pct := round2((savings - cost) / cost * 100)
		res.ROIPercent = &pct
	}
	if savings > 0 {
		months := round2(cost / (savings / monthsPerYear))
		res.PaybackMonths = &months
	}
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

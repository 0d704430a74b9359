package roi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateDefaults(t *testing.T) {
	res := Calculate(Defaults())

	// 25 staff * 3h * 52 weeks = 3900h at 45/h
	require.Equal(t, 3900.0, res.HoursPerYear)
	require.Equal(t, 175500.0, res.AnnualSavings)
	// 10 seats * 12/month * 12
	require.Equal(t, 1440.0, res.AnnualCost)
	require.Equal(t, 174060.0, res.NetBenefit)
	require.NotNil(t, res.ROIPercent)
	require.InDelta(t, 12087.5, *res.ROIPercent, 0.01)
	require.NotNil(t, res.PaybackMonths)
	require.InDelta(t, 0.1, *res.PaybackMonths, 0.01)
}

func TestCalculateFreeTierHasNoROIPercent(t *testing.T) {
	in := Defaults()
	in.SeatPrice = 0
	res := Calculate(in)
	require.Zero(t, res.AnnualCost)
	require.Nil(t, res.ROIPercent)
	require.NotNil(t, res.PaybackMonths)
	require.Zero(t, *res.PaybackMonths)
}

func TestCalculateNoSavingsHasNoPayback(t *testing.T) {
	in := Defaults()
	in.HoursSaved = 0
	res := Calculate(in)
	require.Zero(t, res.AnnualSavings)
	require.Nil(t, res.PaybackMonths)
	require.NotNil(t, res.ROIPercent)
	require.Equal(t, -100.0, *res.ROIPercent)
}

func TestInputsAreClampedToSliders(t *testing.T) {
	res := Calculate(Inputs{Employees: -5, HoursSaved: 99, HourlyCost: 12.4, Seats: 1e9, SeatPrice: math.NaN()})
	require.Equal(t, Inputs{Employees: 1, HoursSaved: 20, HourlyCost: 12, Seats: 1000, SeatPrice: 0}, res.Inputs)
}

func TestRangeClampSnapsToStep(t *testing.T) {
	require.Equal(t, 2.5, HoursSavedRange.Clamp(2.6))
	require.Equal(t, 3.0, HoursSavedRange.Clamp(2.8))
	require.Equal(t, 5.0, Range{Min: 0, Max: 5}.Clamp(9))
}

package routing

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/fleetplan/pkg/cost"
	"github.com/paiban/fleetplan/pkg/model"
)

var baseTime = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

// lineProvider 将经度视为直线坐标，每单位一分钟
var lineProvider = cost.ProviderFunc(func(ctx context.Context, from, to model.Location) (cost.Estimate, error) {
	d := math.Abs(from.Longitude - to.Longitude)
	return cost.Estimate{DistanceKm: d, Duration: time.Duration(d * float64(time.Minute))}, nil
})

func makeTrips(passengers []int, xs []float64) []*model.Trip {
	trips := make([]*model.Trip, len(passengers))
	for i, p := range passengers {
		x := float64(i)
		if xs != nil {
			x = xs[i]
		}
		trips[i] = &model.Trip{
			ID:              uuid.New(),
			PassengerCount:  p,
			Pickup:          model.Location{Latitude: 1, Longitude: x},
			PickupTime:      baseTime.Add(time.Duration(i) * 15 * time.Minute),
			DurationMinutes: 30,
		}
	}
	return trips
}

func ones(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = 1
	}
	return p
}

func assertCoverage(t *testing.T, trips []*model.Trip, routes []*model.Route) {
	t.Helper()
	seen := make(map[uuid.UUID]int)
	for _, r := range routes {
		for _, id := range r.TripIDs {
			seen[id]++
		}
	}
	assert.Len(t, seen, len(trips))
	for _, trip := range trips {
		assert.Equal(t, 1, seen[trip.ID], "行程 %s 应恰好出现一次", trip.ID)
	}
}

func TestBuild_FirstFit(t *testing.T) {
	trips := makeTrips([]int{3, 4, 2, 3, 4}, nil)

	groups := Build(trips, 8)
	routes := Routes(groups)

	require.Len(t, routes, 3)
	assert.Equal(t, 7, routes[0].TotalPassengers)
	assert.Equal(t, 5, routes[1].TotalPassengers)
	assert.Equal(t, 4, routes[2].TotalPassengers)
	for _, r := range routes {
		assert.LessOrEqual(t, r.TotalPassengers, r.VehicleCapacity)
		assert.False(t, r.CapacityViolated)
		assert.Equal(t, r.VehicleCapacity, r.OccupiedSeats+r.EmptySeats)
	}
	assertCoverage(t, trips, routes)
}

func TestBuild_PickupTimeOrder(t *testing.T) {
	trips := makeTrips([]int{1, 1, 1}, nil)
	// 输入顺序倒置，构造结果仍按接客时间
	reversed := []*model.Trip{trips[2], trips[1], trips[0]}

	routes := Routes(Build(reversed, 8))

	require.Len(t, routes, 1)
	assert.Equal(t, []uuid.UUID{trips[0].ID, trips[1].ID, trips[2].ID}, routes[0].TripIDs)
}

func TestBuild_OverflowSingleton(t *testing.T) {
	trips := makeTrips([]int{10, 1}, nil)

	routes := Routes(Build(trips, 8))

	require.Len(t, routes, 2)
	assert.Equal(t, []uuid.UUID{trips[0].ID}, routes[0].TripIDs)
	assert.True(t, routes[0].CapacityViolated)
	assert.Equal(t, 2, routes[0].OverflowPassengers)
	assert.Equal(t, 8, routes[0].OccupiedSeats)
	assert.Equal(t, 0, routes[0].EmptySeats)

	assert.Equal(t, []uuid.UUID{trips[1].ID}, routes[1].TripIDs)
	assert.False(t, routes[1].CapacityViolated)
}

func TestBuild_Empty(t *testing.T) {
	groups := Build(nil, 8)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelStandard, false},
		{"quick", LevelQuick, false},
		{"standard", LevelStandard, false},
		{"thorough", LevelThorough, false},
		{"exhaustive", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestLevel_BudgetMonotonic(t *testing.T) {
	for n := 1; n <= 20; n++ {
		q, s, th := LevelQuick.Budget(n), LevelStandard.Budget(n), LevelThorough.Budget(n)
		assert.GreaterOrEqual(t, q, 1)
		assert.GreaterOrEqual(t, s, 1)
		if n >= 3 {
			assert.GreaterOrEqual(t, s, q, "n=%d", n)
		}
		assert.GreaterOrEqual(t, th, s, "n=%d", n)
	}
}

func TestTwoOpt_ImprovesZigZag(t *testing.T) {
	trips := makeTrips(ones(5), []float64{0, 10, 1, 11, 2})
	groups := Build(trips, 10)
	require.Len(t, groups, 1)

	m, err := BuildMatrix(context.Background(), lineProvider, groups[0])
	require.NoError(t, err)

	out := TwoOpt(context.Background(), m, LevelThorough)

	assert.InDelta(t, 38, out.BaselineCost, 1e-6)
	assert.Less(t, out.Cost, out.BaselineCost)
	assert.Greater(t, out.Iterations, 0)
	assert.InDelta(t, m.PathCost(out.Order), out.Cost, 1e-9)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, out.Order)
}

func TestTwoOpt_KeepsOptimalOrder(t *testing.T) {
	trips := makeTrips(ones(4), []float64{0, 1, 2, 3})
	groups := Build(trips, 10)
	m, err := BuildMatrix(context.Background(), lineProvider, groups[0])
	require.NoError(t, err)

	out := TwoOpt(context.Background(), m, LevelThorough)

	// 全段反转成本相同，不算改进
	assert.Equal(t, []int{0, 1, 2, 3}, out.Order)
	assert.Equal(t, 1, out.Iterations)
	assert.InDelta(t, out.BaselineCost, out.Cost, 1e-9)
}

func TestTwoOpt_CancelledContext(t *testing.T) {
	trips := makeTrips(ones(5), []float64{0, 10, 1, 11, 2})
	groups := Build(trips, 10)
	m, err := BuildMatrix(context.Background(), lineProvider, groups[0])
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := TwoOpt(ctx, m, LevelThorough)

	assert.True(t, out.Truncated)
	assert.Equal(t, 0, out.Iterations)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, out.Order)
	assert.Equal(t, out.BaselineCost, out.Cost)
}

// recomputeTwoOpt 每个候选都重算整条路径成本的 2-opt，用作对照
func recomputeTwoOpt(m Matrix, budget int) []int {
	n := len(m)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	candidate := make([]int, n)
	for it := 0; it < budget; it++ {
		current := m.PathCost(order)
		bestDelta, bestI, bestJ := 0.0, -1, -1
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				copy(candidate, order)
				reverse(candidate[i : j+1])
				if delta := m.PathCost(candidate) - current; delta < -epsilon && delta < bestDelta {
					bestDelta, bestI, bestJ = delta, i, j
				}
			}
		}
		if bestI < 0 {
			break
		}
		reverse(order[bestI : bestJ+1])
	}
	return order
}

func TestTwoOpt_AsymmetricMatchesRecompute(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{3, 5, 8, 13} {
		m := make(Matrix, n)
		for i := range m {
			m[i] = make([]float64, n)
			for j := range m[i] {
				if i != j {
					m[i][j] = float64(rng.Intn(60))
				}
			}
		}

		out := TwoOpt(context.Background(), m, LevelThorough)
		want := recomputeTwoOpt(m, LevelThorough.Budget(n))

		assert.Equal(t, want, out.Order, "n=%d", n)
		assert.Equal(t, m.PathCost(want), out.Cost, "n=%d", n)
		assert.LessOrEqual(t, out.Cost, out.BaselineCost)
	}
}

func TestLocalSearch_DeadlineCoversCostMatrix(t *testing.T) {
	slow := cost.ProviderFunc(func(ctx context.Context, from, to model.Location) (cost.Estimate, error) {
		time.Sleep(10 * time.Millisecond)
		return lineProvider(ctx, from, to)
	})
	trips := makeTrips(ones(12), nil)
	opt := NewLocalSearch(slow, 30*time.Millisecond, 1)

	start := time.Now()
	res, err := opt.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 20, Level: LevelThorough})
	require.NoError(t, err)

	// 完整矩阵需要 132 次查询
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, MethodFallback, res.Method)
	assert.True(t, res.Truncated)
	assertCoverage(t, trips, res.Routes)
}

func TestLocalSearch_CancelledParent(t *testing.T) {
	trips := makeTrips(ones(4), nil)
	opt := NewLocalSearch(lineProvider, time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := opt.Optimize(ctx, Request{Trips: trips, VehicleCapacity: 8})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalSearch_NonRegressionAllLevels(t *testing.T) {
	xs := []float64{5, 0, 9, 2, 7, 1, 8, 3, 6, 4, 12, 10}
	trips := makeTrips(ones(len(xs)), xs)
	opt := NewLocalSearch(lineProvider, 0, 2)

	iterations := make(map[Level]int)
	for _, level := range []Level{LevelQuick, LevelStandard, LevelThorough} {
		res, err := opt.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 6, Level: level})
		require.NoError(t, err)

		assert.Equal(t, MethodLocalSearch, res.Method)
		assert.LessOrEqual(t, res.TotalCost, res.BaselineCost+1e-9)
		assert.GreaterOrEqual(t, res.Improvement, 0.0)
		assert.False(t, res.Truncated)
		for _, r := range res.Routes {
			assert.LessOrEqual(t, r.TotalPassengers, r.VehicleCapacity)
		}
		assertCoverage(t, trips, res.Routes)
		iterations[level] = res.Iterations
	}

	assert.GreaterOrEqual(t, iterations[LevelThorough], iterations[LevelStandard])
	assert.GreaterOrEqual(t, iterations[LevelStandard], iterations[LevelQuick])
}

func TestLocalSearch_FiveTripScenario(t *testing.T) {
	trips := makeTrips([]int{2, 3, 4, 2, 3}, []float64{4, 0, 3, 1, 2})
	opt := NewLocalSearch(lineProvider, time.Second, 4)

	res, err := opt.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 8, Level: LevelThorough})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(res.Routes), 1)
	assertCoverage(t, trips, res.Routes)
	assert.False(t, math.IsNaN(res.Improvement))
	assert.False(t, math.IsInf(res.Improvement, 0))
	assert.GreaterOrEqual(t, res.Improvement, 0.0)
}

func TestLocalSearch_SingleTrip(t *testing.T) {
	trips := makeTrips([]int{2}, nil)
	opt := NewLocalSearch(lineProvider, 0, 1)

	res, err := opt.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 8, Level: LevelThorough})
	require.NoError(t, err)

	require.Len(t, res.Routes, 1)
	assert.Equal(t, []uuid.UUID{trips[0].ID}, res.Routes[0].TripIDs)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 0.0, res.Improvement)
}

func TestLocalSearch_EmptyInput(t *testing.T) {
	opt := NewLocalSearch(lineProvider, 0, 1)

	res, err := opt.Optimize(context.Background(), Request{VehicleCapacity: 8})
	require.NoError(t, err)

	assert.NotNil(t, res.Routes)
	assert.Empty(t, res.Routes)
	assert.Equal(t, LevelStandard, res.Level)
}

func TestLocalSearch_FallbackOnProviderError(t *testing.T) {
	failing := cost.ProviderFunc(func(ctx context.Context, from, to model.Location) (cost.Estimate, error) {
		return cost.Estimate{}, errors.New("upstream timeout")
	})
	trips := makeTrips(ones(4), nil)
	opt := NewLocalSearch(failing, 0, 2)

	res, err := opt.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 8, Level: LevelThorough})
	require.NoError(t, err)

	assert.Equal(t, MethodFallback, res.Method)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 0.0, res.TotalCost)
	assertCoverage(t, trips, res.Routes)
}

func TestLocalSearch_Deterministic(t *testing.T) {
	xs := []float64{5, 0, 9, 2, 7, 1, 8, 3, 6, 4}
	trips := makeTrips(ones(len(xs)), xs)
	opt := NewLocalSearch(lineProvider, 0, 4)

	first, err := opt.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 3, Level: LevelStandard})
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 3, Level: LevelStandard})
	require.NoError(t, err)

	require.Len(t, second.Routes, len(first.Routes))
	for i := range first.Routes {
		assert.Equal(t, first.Routes[i].TripIDs, second.Routes[i].TripIDs)
	}
	assert.Equal(t, first.Iterations, second.Iterations)
}

func TestNew_SelectsStrategy(t *testing.T) {
	assert.IsType(t, Greedy{}, New(Options{Enabled: false}, lineProvider))
	assert.IsType(t, Greedy{}, New(Options{Enabled: true}, nil))
	assert.IsType(t, &LocalSearch{}, New(Options{Enabled: true}, lineProvider))
}

func TestGreedy_Optimize(t *testing.T) {
	trips := makeTrips([]int{3, 4, 2}, nil)

	res, err := Greedy{}.Optimize(context.Background(), Request{Trips: trips, VehicleCapacity: 8, Level: LevelQuick})
	require.NoError(t, err)

	assert.Equal(t, MethodFallback, res.Method)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 0.0, res.TotalCost)
	assertCoverage(t, trips, res.Routes)
}

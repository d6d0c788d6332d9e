package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/fleetplan/pkg/model"
)

const testDate = "2025-01-15"

func clockAt(hour, min int) time.Time {
	return time.Date(2025, 1, 15, hour, min, 0, 0, time.UTC)
}

type fixture struct {
	drivers  []*model.Driver
	vehicles []*model.Vehicle
}

func (f *fixture) addDriver(name string, seats, wheelchair int) *model.Driver {
	d := &model.Driver{
		ID:             uuid.New(),
		Name:           name,
		Phone:          "0700 000 000",
		EmploymentType: model.EmploymentFullTime,
		Status:         "active",
	}
	if seats > 0 {
		v := &model.Vehicle{ID: uuid.New(), Registration: "REG-" + name, Seats: seats, WheelchairSpaces: wheelchair}
		f.vehicles = append(f.vehicles, v)
		d.VehicleID = &v.ID
	}
	f.drivers = append(f.drivers, d)
	return d
}

func (f *fixture) fleet() Fleet {
	return Fleet{Drivers: f.drivers, Vehicles: f.vehicles, History: HistoryByCustomer{}}
}

func newTrip(customer uuid.UUID, hour, passengers int) *model.Trip {
	return &model.Trip{
		ID:              uuid.New(),
		CustomerID:      customer,
		PassengerCount:  passengers,
		PickupTime:      clockAt(hour, 0),
		DurationMinutes: 60,
	}
}

func TestAutoAssign_BalancesWorkload(t *testing.T) {
	f := &fixture{}
	a := f.addDriver("A", 4, 0)
	b := f.addDriver("B", 4, 0)
	customer := uuid.New()
	trips := []*model.Trip{newTrip(customer, 9, 1), newTrip(customer, 11, 1), newTrip(customer, 13, 1), newTrip(customer, 15, 1)}

	engine := NewDispatchEngine(DefaultEngineConfig())
	res := engine.AutoAssign(context.Background(), AutoAssignRequest{
		Date:            testDate,
		Trips:           trips,
		Fleet:           f.fleet(),
		BalanceWorkload: true,
	})

	require.Equal(t, 4, res.Assigned)
	assert.Equal(t, 0, res.Unassigned)
	assert.False(t, res.Applied)

	counts := map[uuid.UUID]int{}
	for _, pa := range res.Assignments {
		counts[pa.DriverID]++
	}
	assert.Equal(t, 2, counts[a.ID])
	assert.Equal(t, 2, counts[b.ID])

	// 相邻两个行程不会分给同一司机
	for i := 1; i < len(res.Assignments); i++ {
		assert.NotEqual(t, res.Assignments[i-1].DriverID, res.Assignments[i].DriverID)
	}
}

func TestAutoAssign_RespectsMaxAssignments(t *testing.T) {
	f := &fixture{}
	f.addDriver("A", 4, 0)
	customer := uuid.New()
	trips := []*model.Trip{newTrip(customer, 9, 1), newTrip(customer, 11, 1), newTrip(customer, 13, 1)}

	res := NewDispatchEngine(DefaultEngineConfig()).AutoAssign(context.Background(), AutoAssignRequest{
		Date:           testDate,
		Trips:          trips,
		Fleet:          f.fleet(),
		MaxAssignments: 1,
	})

	assert.Equal(t, 1, res.Assigned)
	assert.Equal(t, 2, res.Unassigned)
	assert.Equal(t, trips[0].ID, res.Assignments[0].TripID)
	assert.ElementsMatch(t, []uuid.UUID{trips[1].ID, trips[2].ID}, res.UnassignedTripIDs)
}

func TestAutoAssign_TentativeAssignmentsBlockOverlap(t *testing.T) {
	f := &fixture{}
	f.addDriver("A", 4, 0)
	customer := uuid.New()
	first := newTrip(customer, 9, 1)
	overlapping := newTrip(customer, 9, 1)
	overlapping.PickupTime = clockAt(9, 30)

	res := NewDispatchEngine(DefaultEngineConfig()).AutoAssign(context.Background(), AutoAssignRequest{
		Date:  testDate,
		Trips: []*model.Trip{overlapping, first},
		Fleet: f.fleet(),
	})

	require.Equal(t, 1, res.Assigned)
	assert.Equal(t, first.ID, res.Assignments[0].TripID)
	assert.Equal(t, []uuid.UUID{overlapping.ID}, res.UnassignedTripIDs)
}

func TestAutoAssign_ExistingAssignmentsCount(t *testing.T) {
	f := &fixture{}
	busy := f.addDriver("A", 4, 0)
	free := f.addDriver("B", 4, 0)
	fleet := f.fleet()
	fleet.Assignments = []*model.Assignment{{
		ID:        uuid.New(),
		DriverID:  busy.ID,
		Date:      testDate,
		StartTime: clockAt(6, 0),
		EndTime:   clockAt(8, 0),
		Status:    model.AssignmentConfirmed,
	}}

	res := NewDispatchEngine(DefaultEngineConfig()).AutoAssign(context.Background(), AutoAssignRequest{
		Date:  testDate,
		Trips: []*model.Trip{newTrip(uuid.New(), 10, 1)},
		Fleet: fleet,
	})

	require.Equal(t, 1, res.Assigned)
	assert.Equal(t, free.ID, res.Assignments[0].DriverID)
}

func TestAutoAssign_HardGates(t *testing.T) {
	f := &fixture{}
	f.addDriver("Small", 2, 0)
	accessible := f.addDriver("Accessible", 6, 1)
	f.addDriver("NoVehicle", 0, 0)

	trip := newTrip(uuid.New(), 9, 3)
	trip.RequiresWheelchair = true
	// 轮椅行程且超出所有车辆座位数，无人可接
	impossible := newTrip(uuid.New(), 14, 10)
	impossible.RequiresWheelchair = true

	res := NewDispatchEngine(DefaultEngineConfig()).AutoAssign(context.Background(), AutoAssignRequest{
		Date:  testDate,
		Trips: []*model.Trip{trip, impossible},
		Fleet: f.fleet(),
	})

	require.Equal(t, 1, res.Assigned)
	assert.Equal(t, accessible.ID, res.Assignments[0].DriverID)
	assert.Equal(t, []uuid.UUID{impossible.ID}, res.UnassignedTripIDs)
}

func TestAutoAssign_DryRunIsIdempotent(t *testing.T) {
	f := &fixture{}
	for i := 0; i < 4; i++ {
		f.addDriver(fmt.Sprintf("D%d", i), 4, 0)
	}
	customer := uuid.New()
	var trips []*model.Trip
	for h := 7; h < 17; h++ {
		trips = append(trips, newTrip(customer, h, 2))
	}
	req := AutoAssignRequest{Date: testDate, Trips: trips, Fleet: f.fleet(), BalanceWorkload: true}
	engine := NewDispatchEngine(DefaultEngineConfig())

	first := engine.AutoAssign(context.Background(), req)
	second := engine.AutoAssign(context.Background(), req)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.UnassignedTripIDs, second.UnassignedTripIDs)
	for _, r := range first.Records {
		assert.Equal(t, uuid.Nil, r.ID)
	}
}

func TestAutoAssign_NoDrivers(t *testing.T) {
	trip := newTrip(uuid.New(), 9, 1)

	res := NewDispatchEngine(DefaultEngineConfig()).AutoAssign(context.Background(), AutoAssignRequest{
		Date:  testDate,
		Trips: []*model.Trip{trip},
	})

	assert.Equal(t, 0, res.Assigned)
	assert.Equal(t, []uuid.UUID{trip.ID}, res.UnassignedTripIDs)
	assert.NotNil(t, res.Assignments)
}

func TestAutoAssign_CancelledContext(t *testing.T) {
	f := &fixture{}
	f.addDriver("A", 4, 0)
	trips := []*model.Trip{newTrip(uuid.New(), 9, 1), newTrip(uuid.New(), 11, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewDispatchEngine(DefaultEngineConfig()).AutoAssign(ctx, AutoAssignRequest{
		Date:  testDate,
		Trips: trips,
		Fleet: f.fleet(),
	})

	assert.True(t, res.Truncated)
	assert.Equal(t, 0, res.Assigned)
	assert.Equal(t, 2, res.Unassigned)
}

func TestSuggest_RankingAndContract(t *testing.T) {
	f := &fixture{}
	for i := 0; i < 7; i++ {
		f.addDriver(fmt.Sprintf("D%d", i), 4, 0)
	}
	unvehicled := f.addDriver("NoVehicle", 0, 0)
	busy := f.drivers[0]

	customer := uuid.New()
	regular := f.drivers[1]
	fleet := f.fleet()
	fleet.History = HistoryByCustomer{customer: {
		regular.ID: {DriverID: regular.ID, TotalTrips: 20, CompletedTrips: 20, CustomerTrips: 6},
	}}
	fleet.Assignments = []*model.Assignment{{
		ID: uuid.New(), DriverID: busy.ID, Date: testDate,
		StartTime: clockAt(9, 0), EndTime: clockAt(9, 30), Status: model.AssignmentScheduled,
	}}

	trip := newTrip(customer, 9, 2)
	trip.PickupTime = clockAt(9, 10)
	recs := NewDispatchEngine(DefaultEngineConfig()).Suggest(context.Background(), SuggestRequest{Trip: trip, Fleet: fleet})

	require.Len(t, recs, MaxRecommendations)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
	for _, r := range recs {
		assert.NotEqual(t, busy.ID, r.DriverID, "不可用司机不应出现在推荐中")
		assert.NotEmpty(t, r.Name)
		assert.NotEmpty(t, r.Phone)
		if r.DriverID == unvehicled.ID {
			assert.Nil(t, r.Vehicle)
		}
	}

	top := recs[0]
	assert.Equal(t, regular.ID, top.DriverID)
	assert.True(t, top.IsRegularDriver)
	assert.Equal(t, 1.0, top.CompletionRate)
	assert.Equal(t, TierHighlyRecommended, top.Tier)
	assert.NotNil(t, top.Vehicle)
}

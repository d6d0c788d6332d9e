// Package routing 提供线路构造与线路优化
package routing

import (
	"sort"

	"github.com/paiban/fleetplan/pkg/model"
)

// Group 线路及其按执行顺序排列的行程
type Group struct {
	Route *model.Route
	Trips []*model.Trip
}

func (g *Group) add(trip *model.Trip) {
	g.Trips = append(g.Trips, trip)
	g.Route.Add(trip)
}

// reorder 按新的顺序重排行程
func (g *Group) reorder(order []int) {
	trips := make([]*model.Trip, len(order))
	for i, idx := range order {
		trips[i] = g.Trips[idx]
	}
	g.Trips = trips
	for i, t := range trips {
		g.Route.TripIDs[i] = t.ID
	}
}

// Build 贪心构造线路
// 行程按接客时间处理，放入第一个剩余座位足够的线路，否则新开线路。
// 单个行程超过车辆容量时独占一条线路并标记为超载。
func Build(trips []*model.Trip, capacity int) []*Group {
	if len(trips) == 0 {
		return []*Group{}
	}

	sorted := make([]*model.Trip, len(trips))
	copy(sorted, trips)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PickupTime.Before(sorted[j].PickupTime)
	})

	groups := make([]*Group, 0, len(sorted)/2+1)
	for _, trip := range sorted {
		if trip.PassengerCount > capacity {
			g := &Group{Route: model.NewRoute(capacity)}
			g.add(trip)
			groups = append(groups, g)
			continue
		}

		placed := false
		for _, g := range groups {
			if g.Route.CapacityViolated {
				continue
			}
			if g.Route.Remaining() >= trip.PassengerCount {
				g.add(trip)
				placed = true
				break
			}
		}
		if !placed {
			g := &Group{Route: model.NewRoute(capacity)}
			g.add(trip)
			groups = append(groups, g)
		}
	}
	return groups
}

// Routes 提取线路
func Routes(groups []*Group) []*model.Route {
	routes := make([]*model.Route, len(groups))
	for i, g := range groups {
		routes[i] = g.Route
	}
	return routes
}

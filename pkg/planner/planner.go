// Package planner implements the WeeklyPlanner (C7): frequency
// decomposition of a client book into concrete week-days, geographic
// clustering of each day's visit set, and per-day sequencing through the
// solver registry.
package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/geo"
	"routecore/pkg/matrix"
	"routecore/pkg/metrics"
	"routecore/pkg/solver"
)

// Client is a plannable visit target: identity, location, and the
// visit-frequency segment it belongs to.
type Client struct {
	ID             string
	Location       domain.Location
	Demand         domain.Demand
	RequiredSkills []string
	Segment        domain.ClientSegment
	Region         string // key into config.RegionalConfig, e.g. "almaty"
}

// Agent is the single vehicle a WeeklyPlanner sequences visits for.
type Agent struct {
	ID      string
	Vehicle domain.Vehicle
}

// PlanRequest is the WeeklyPlanner's input: one agent, its client book, and
// the target week.
type PlanRequest struct {
	Agent     Agent
	Clients   []Client
	WeekStart time.Time // the Monday of the target week, local time
}

// DayPlan is the sequenced visit plan for one week-day.
type DayPlan struct {
	Weekday   time.Weekday
	Date      time.Time
	Solution  *domain.Solution
	ClientIDs []string // clients targeted that day, union across clusters (see Solution.UnassignedJobs for any that didn't fit)
}

// WeekPlan is the full output of a Plan call: one DayPlan per week-day that
// received at least one visit.
type WeekPlan struct {
	AgentID   string
	WeekStart time.Time
	Days      []DayPlan
}

// WeeklyPlanner decomposes a client book into day-by-day routes.
type WeeklyPlanner struct {
	matrixSvc *matrix.Service
	registry  *solver.Registry
	history   VisitHistory
	clock     domain.Clock
	cfg       config.PlannerConfig
	regional  config.RegionalConfig
}

// NewWeeklyPlanner builds a WeeklyPlanner. history may be nil, in which case
// an InMemoryVisitHistory is used (suitable for a single-process
// deployment; a Repository-backed implementation is the production path).
func NewWeeklyPlanner(matrixSvc *matrix.Service, registry *solver.Registry, history VisitHistory, clock domain.Clock, cfg config.PlannerConfig, regional config.RegionalConfig) *WeeklyPlanner {
	if history == nil {
		history = NewInMemoryVisitHistory()
	}
	if clock == nil {
		clock = domain.RealClock{}
	}
	if cfg.MaxVisitsPerDay <= 0 {
		cfg.MaxVisitsPerDay = 12
	}
	return &WeeklyPlanner{matrixSvc: matrixSvc, registry: registry, history: history, clock: clock, cfg: cfg, regional: regional}
}

// Plan builds a full week's schedule for req.Agent over req.Clients.
func (p *WeeklyPlanner) Plan(ctx context.Context, req PlanRequest) (*WeekPlan, error) {
	start := time.Now()
	if req.Agent.ID == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "plan request requires an agent id")
	}
	isoWeek := isoWeekNumber(req.WeekStart)

	byWeekday := make(map[time.Weekday][]Client)
	visitsByCategory := make(map[domain.ClientSegment]int)
	for _, c := range req.Clients {
		prior, err := p.history.RollingVisitCount(ctx, c.ID, req.WeekStart, 4)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "read visit history").WithField(c.ID)
		}
		days := decomposeFrequency(c.Segment, isoWeek, prior)
		visitsByCategory[c.Segment] += len(days)
		for _, wd := range days {
			byWeekday[wd] = append(byWeekday[wd], c)
		}
	}

	plan := &WeekPlan{AgentID: req.Agent.ID, WeekStart: req.WeekStart}
	for _, wd := range orderedWeekdays() {
		clients := byWeekday[wd]
		if len(clients) == 0 {
			continue
		}
		sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })

		date := dateForWeekday(req.WeekStart, wd)
		dayPlan, err := p.planDay(ctx, req.Agent, clients, wd, date)
		if err != nil {
			return nil, err
		}
		plan.Days = append(plan.Days, *dayPlan)

		for _, c := range clients {
			if err := p.history.RecordVisit(ctx, c.ID, date); err != nil {
				return nil, apperror.Wrap(err, apperror.CodeInternal, "record visit").WithField(c.ID)
			}
		}
	}

	for segment, count := range visitsByCategory {
		metrics.Get().RecordPlanningRun(req.Agent.ID, string(segment), time.Since(start), count)
	}
	return plan, nil
}

// PlanDay synthesizes a single day's plan for date without touching the
// rest of the week — the path CacheWarmer uses to pre-build today's plan
// for an agent that doesn't have one cached yet (spec.md §4.10 step 4).
func (p *WeeklyPlanner) PlanDay(ctx context.Context, agent Agent, clients []Client, date time.Time) (*DayPlan, error) {
	wd := date.Weekday()
	isoWeek := isoWeekNumber(date)

	var due []Client
	for _, c := range clients {
		prior, err := p.history.RollingVisitCount(ctx, c.ID, date, 4)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "read visit history").WithField(c.ID)
		}
		for _, day := range decomposeFrequency(c.Segment, isoWeek, prior) {
			if day == wd {
				due = append(due, c)
				break
			}
		}
	}
	if len(due) == 0 {
		return &DayPlan{Weekday: wd, Date: date}, nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })

	dayPlan, err := p.planDay(ctx, agent, due, wd, date)
	if err != nil {
		return nil, err
	}
	for _, c := range due {
		if err := p.history.RecordVisit(ctx, c.ID, date); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "record visit").WithField(c.ID)
		}
	}
	return dayPlan, nil
}

func orderedWeekdays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
}

func dateForWeekday(weekStart time.Time, wd time.Weekday) time.Time {
	offset := int(wd - time.Monday)
	if offset < 0 {
		offset += 7
	}
	return weekStart.AddDate(0, 0, offset)
}

// isoWeekNumber returns t's ISO-8601 week number, used by the A/C
// frequency-decomposition alternation rules.
func isoWeekNumber(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// planDay clusters clients into at most MaxVisitsPerDay geographically
// coherent groups and sequences each group through the solver registry,
// merging the per-cluster solutions into a single DayPlan.
func (p *WeeklyPlanner) planDay(ctx context.Context, agent Agent, clients []Client, wd time.Weekday, date time.Time) (*DayPlan, error) {
	coords := make([]geo.Coordinate, len(clients))
	for i, c := range clients {
		coords[i] = c.Location.Coordinate
	}

	miniMatrix, err := p.matrixSvc.Compute(ctx, coords)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeBackendUnavailable, "weekly planner mini-matrix compute")
	}

	clusterCount := (len(clients) + p.cfg.MaxVisitsPerDay - 1) / p.cfg.MaxVisitsPerDay
	if clusterCount < 1 {
		clusterCount = 1
	}
	clusters := kMedoids(miniMatrix, clusterCount, int64(isoWeekNumber(date))+int64(wd))

	day := &DayPlan{Weekday: wd, Date: date}
	merged := &domain.Solution{SolverKind: domain.SolverGreedy}

	for _, clusterIdx := range clusters {
		if len(clusterIdx) == 0 {
			continue
		}
		clusterClients := make([]Client, len(clusterIdx))
		for i, idx := range clusterIdx {
			clusterClients[i] = clients[idx]
		}

		sol, err := p.sequenceCluster(ctx, agent, clusterClients, date)
		if err != nil {
			return nil, err
		}
		merged.Routes = append(merged.Routes, sol.Routes...)
		merged.UnassignedJobs = append(merged.UnassignedJobs, sol.UnassignedJobs...)
		for _, c := range clusterClients {
			day.ClientIDs = append(day.ClientIDs, c.ID)
		}
	}

	merged.TotalMeters, merged.TotalSeconds = merged.Totals()
	day.Solution = merged
	return day, nil
}

// agentVehicleForDate returns a copy of agent's vehicle with its work window
// anchored at date and its skills intersected with clients' requirements
// left untouched (skill filtering happens in the solver layer).
func agentVehicleForDate(agent Agent, date time.Time) domain.Vehicle {
	v := agent.Vehicle
	start := time.Date(date.Year(), date.Month(), date.Day(), v.WorkWindow.Start.Hour(), v.WorkWindow.Start.Minute(), 0, 0, date.Location())
	end := time.Date(date.Year(), date.Month(), date.Day(), v.WorkWindow.End.Hour(), v.WorkWindow.End.Minute(), 0, 0, date.Location())
	v.WorkWindow = domain.WorkWindow{Start: start, End: end}
	return v
}

func clientJobID(c Client, date time.Time) string {
	return fmt.Sprintf("%s-%s", c.ID, date.Format("2006-01-02"))
}

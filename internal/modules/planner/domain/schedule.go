package domain

// SimulationSlack is added to the simulation ceiling on top of the plan
// length and the days needed to introduce every task.
const SimulationSlack = 7

type PlanProgress struct {
	Completed int
	Total     int
}

// rollover replays the day-by-day assignment. Each day takes carried-over
// tasks first (oldest first), then new tasks in list order; every task in
// the day that is still incomplete is carried to the next day.
type rollover struct {
	tasks   []PlannerTask
	perDay  int
	pending []int
	next    int
}

func newRollover(plan Plan) *rollover {
	perDay := plan.TasksPerDay
	if perDay < 1 {
		perDay = 1
	}
	return &rollover{tasks: plan.Tasks, perDay: perDay}
}

func (r *rollover) day() []int {
	slots := make([]int, 0, r.perDay)
	for len(slots) < r.perDay && len(r.pending) > 0 {
		slots = append(slots, r.pending[0])
		r.pending = r.pending[1:]
	}
	for len(slots) < r.perDay && r.next < len(r.tasks) {
		slots = append(slots, r.next)
		r.next++
	}
	for _, idx := range slots {
		if !r.tasks[idx].Completed {
			r.pending = append(r.pending, idx)
		}
	}
	return slots
}

func (r *rollover) exhausted() bool {
	return r.next >= len(r.tasks) && len(r.pending) == 0
}

// AssignDay returns the tasks scheduled on day (1-based). Days before 1 and
// days after every task is done are empty.
func AssignDay(plan Plan, day int) []PlannerTask {
	if day < 1 {
		return []PlannerTask{}
	}
	r := newRollover(plan)
	var slots []int
	for d := 1; d <= day; d++ {
		if r.exhausted() {
			return []PlannerTask{}
		}
		slots = r.day()
	}
	out := make([]PlannerTask, 0, len(slots))
	for _, idx := range slots {
		out = append(out, plan.Tasks[idx])
	}
	return out
}

// CurrentDay is the first day holding an incomplete task. A finished plan
// reports its last scheduled day; an empty plan reports day 1.
func CurrentDay(plan Plan) int {
	if len(plan.Tasks) == 0 {
		return 1
	}
	r := newRollover(plan)
	ceiling := simulationCeiling(plan, r.perDay)
	last := 1
	for d := 1; d <= ceiling; d++ {
		if r.exhausted() {
			return last
		}
		slots := r.day()
		last = d
		for _, idx := range slots {
			if !plan.Tasks[idx].Completed {
				return d
			}
		}
	}
	return last
}

func Progress(plan Plan) PlanProgress {
	done := 0
	for _, task := range plan.Tasks {
		if task.Completed {
			done++
		}
	}
	return PlanProgress{Completed: done, Total: len(plan.Tasks)}
}

func simulationCeiling(plan Plan, perDay int) int {
	totalDays := plan.TotalDays
	if totalDays < 1 {
		totalDays = 1
	}
	introduce := (len(plan.Tasks) + perDay - 1) / perDay
	return totalDays + introduce + SimulationSlack
}

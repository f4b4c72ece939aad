package workflow

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrInvalidStepsRange       = errors.New("invalid steps range")
	ErrSelectedStepsDoNotExist = errors.New("selected steps do not exist in workflow")
	ErrStepsNotInOrder         = errors.New("selected steps are not in order")
)

// SelectSteps turns "1-3,5" into inclusive 1-based ranges. An empty
// expression selects every step.
func SelectSteps(str string, count int) ([][2]int, error) {
	if str == "" {
		return [][2]int{{1, count}}, nil
	}
	steps := make([][2]int, 0, 1)
	var currentHighest int
	for _, r := range strings.Split(str, ",") {
		r = strings.TrimSpace(r)
		from, to, isRange := strings.Cut(r, "-")
		if !isRange {
			to = from
		}
		first, err := strconv.Atoi(from)
		if err != nil {
			return nil, ErrInvalidStepsRange
		}
		last, err := strconv.Atoi(to)
		if err != nil {
			return nil, ErrInvalidStepsRange
		}
		if first <= currentHighest || first > last {
			return nil, ErrStepsNotInOrder
		}
		if first < 1 || last > count {
			return nil, ErrSelectedStepsDoNotExist
		}
		currentHighest = last
		steps = append(steps, [2]int{first, last})
	}
	return steps, nil
}

// Pick returns the steps covered by ranges, in order.
func (wf *Workflow) Pick(ranges [][2]int) []Step {
	var picked []Step
	for _, r := range ranges {
		picked = append(picked, wf.Steps[r[0]-1:r[1]]...)
	}
	return picked
}

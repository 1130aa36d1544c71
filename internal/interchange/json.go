package interchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/agenda/internal/model"
)

// ToJSON renders state as indented JSON.
func (c Codec) ToJSON(state model.ScheduleState) (string, error) {
	if state.Appointments == nil {
		state.Appointments = []model.Appointment{}
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schedule: %w", err)
	}
	return string(b), nil
}

// FromJSON parses a JSON schedule. A missing focusDate becomes now, so an
// empty export re-focuses on load.
func (c Codec) FromJSON(text string) (model.ScheduleState, error) {
	if strings.TrimSpace(text) == "" {
		text = "{}"
	}
	var state model.ScheduleState
	if err := json.Unmarshal([]byte(text), &state); err != nil {
		return model.ScheduleState{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if state.FocusDate.IsZero() {
		state.FocusDate = c.now()
	}
	if state.Appointments == nil {
		state.Appointments = []model.Appointment{}
	}
	if state.ViewMode == "" {
		state.ViewMode = model.ViewMonth
	}
	if state.SortMode == "" {
		state.SortMode = model.SortPriority
	}
	return state, nil
}

package appointment

import "github.com/dukerupert/agenda/internal/model"

// Replace returns a copy of list with the appointment sharing a.ID swapped
// for a, or a appended when no such appointment exists.
func Replace(list []model.Appointment, a model.Appointment) []model.Appointment {
	out := make([]model.Appointment, 0, len(list)+1)
	found := false
	for _, existing := range list {
		if existing.ID == a.ID {
			out = append(out, a)
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, a)
	}
	return out
}

// Remove returns a copy of list without the appointment with the given id,
// and whether one was removed.
func Remove(list []model.Appointment, id string) ([]model.Appointment, bool) {
	out := make([]model.Appointment, 0, len(list))
	removed := false
	for _, existing := range list {
		if existing.ID == id {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out, removed
}

// Find returns the appointment with the given id.
func Find(list []model.Appointment, id string) (model.Appointment, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return model.Appointment{}, false
}

package schedule

import (
	"context"

	"github.com/dukerupert/agenda/internal/interchange"
	"github.com/dukerupert/agenda/internal/model"
)

// ImportResult reports what an import did with each record it read.
type ImportResult struct {
	Format   interchange.Format    `json:"format"`
	Imported int                   `json:"imported"`
	Skipped  []interchange.Skipped `json:"skipped"`
	Rejected []Rejected            `json:"rejected"`
}

// Import reads text, normalizes every appointment it yields and stores the
// survivors. With replace the stored schedule is swapped for the import;
// otherwise imported appointments are upserted by id. Only JSON imports
// carry view settings, so other formats keep the stored ones.
func (s *Service) Import(ctx context.Context, filename, text string, replace bool) (ImportResult, error) {
	format := interchange.Detect(filename, text)
	parsed, err := s.codec.Import(filename, text)
	if err != nil {
		return ImportResult{}, err
	}

	appointments, rejected := s.normalizeAll(parsed.State.Appointments)
	result := ImportResult{
		Format:   format,
		Imported: len(appointments),
		Skipped:  parsed.Skipped,
		Rejected: rejected,
	}
	if result.Skipped == nil {
		result.Skipped = []interchange.Skipped{}
	}
	if result.Rejected == nil {
		result.Rejected = []Rejected{}
	}

	if !replace {
		for _, a := range appointments {
			if _, err := s.states.PutAppointment(ctx, a); err != nil {
				return ImportResult{}, err
			}
		}
		return result, nil
	}

	state := parsed.State
	state.Appointments = appointments
	if format != interchange.FormatJSON {
		current, err := s.State(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		state.ViewMode = current.ViewMode
		state.SortMode = current.SortMode
		state.FocusDate = current.FocusDate
	}
	if err := s.states.Save(ctx, state); err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// ParseState reads a JSON schedule the way a JSON import does.
func (s *Service) ParseState(text string) (model.ScheduleState, error) {
	return s.codec.FromJSON(text)
}

// Export renders the stored schedule as format.
func (s *Service) Export(ctx context.Context, format interchange.Format) (interchange.Export, error) {
	state, err := s.State(ctx)
	if err != nil {
		return interchange.Export{}, err
	}
	return s.codec.Export(state, format)
}

// ExportFor renders the stored schedule in the format preferred by
// targetApp.
func (s *Service) ExportFor(ctx context.Context, targetApp string) (interchange.Export, error) {
	return s.Export(ctx, interchange.PreferredFormat(targetApp))
}

// Convert re-encodes an interchange file in another format without
// touching the store.
func (s *Service) Convert(filename, text string, format interchange.Format) (interchange.Export, ImportResult, error) {
	parsed, err := s.codec.Import(filename, text)
	if err != nil {
		return interchange.Export{}, ImportResult{}, err
	}
	appointments, rejected := s.normalizeAll(parsed.State.Appointments)
	state := parsed.State
	state.Appointments = appointments
	if len(state.Calendars) == 0 {
		state.Calendars = model.DefaultCalendars()
	}
	out, err := s.codec.Export(state, format)
	if err != nil {
		return interchange.Export{}, ImportResult{}, err
	}
	return out, ImportResult{
		Format:   interchange.Detect(filename, text),
		Imported: len(appointments),
		Skipped:  parsed.Skipped,
		Rejected: rejected,
	}, nil
}

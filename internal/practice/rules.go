package practice

// Check enforces that the periods fit in the practice.
func Check(p *Plan) error {
	if p.TotalMinutes() > p.DurationMin {
		return ErrPeriodsExceedDuration
	}
	return nil
}

// ApplyUpdate copies non-nil fields onto p.
func ApplyUpdate(p *Plan, fields UpdateFields) {
	if fields.Title != nil {
		p.Title = *fields.Title
	}
	if fields.Date != nil {
		p.Date = *fields.Date
	}
	if fields.DurationMin != nil {
		p.DurationMin = *fields.DurationMin
	}
	if fields.Focus != nil {
		p.Focus = *fields.Focus
	}
	if fields.Periods != nil {
		p.Periods = *fields.Periods
	}
}

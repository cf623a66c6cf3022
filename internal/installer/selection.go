package installer

// PackageCheckState derives a package's selection from its tasks. Required
// tasks are always selected, so a package is Unchecked only when every task
// is optional and none is selected.
func PackageCheckState(s *Session) CheckState {
	var optional, checked int
	required := false
	for _, t := range s.Tasks() {
		if !t.Optional {
			required = true
			continue
		}
		optional++
		if t.Checked != Unchecked {
			checked++
		}
	}

	switch {
	case optional == 0 || checked == optional:
		return Checked
	case checked > 0 || required:
		return Indeterminate
	default:
		return Unchecked
	}
}

// SetOptional selects or deselects every optional task of s.
func SetOptional(s *Session, checked bool) {
	state := Unchecked
	if checked {
		state = Checked
	}
	for _, t := range s.Tasks() {
		if t.Optional {
			t.Checked = state
		}
	}
}

// Select splits sessions into those to run and those the user deselected
// entirely. For the selected ones, required tasks are forced on and
// deselected optional tasks are marked Ignore.
func Select(sessions []*Session) (selected, ignored []*Session) {
	for _, s := range sessions {
		if PackageCheckState(s) == Unchecked {
			ignored = append(ignored, s)
			continue
		}
		for _, t := range s.Tasks() {
			if !t.Optional {
				t.Checked = Checked
				t.Ignore = false
				continue
			}
			t.Ignore = t.Checked == Unchecked
		}
		selected = append(selected, s)
	}
	return selected, ignored
}

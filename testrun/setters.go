package testrun

// SetStatus returns an UpdateSetter that sets the test run's status.
func SetStatus(status Status) UpdateSetter {
	return func(tr *TestRun) error {
		if !status.IsValid() {
			return ErrInvalidStatus
		}
		tr.Status = status
		return nil
	}
}

// SetRole returns an UpdateSetter recording the credential role a run used.
func SetRole(role string) UpdateSetter {
	return func(tr *TestRun) error {
		tr.Role = role
		return nil
	}
}

// SetTitle returns an UpdateSetter that sets the case title.
func SetTitle(title string) UpdateSetter {
	return func(tr *TestRun) error {
		tr.Title = title
		return nil
	}
}

// SetError returns an UpdateSetter that sets the failure message.
func SetError(msg string) UpdateSetter {
	return func(tr *TestRun) error {
		tr.Error = msg
		return nil
	}
}

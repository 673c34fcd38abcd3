package provision

// FormInput is what the form-interaction boundary hands to a step: either
// a submission carrying field values, or a back/re-entry signal with no
// data. The zero value is the back signal.
type FormInput struct {
	submitted bool
	values    map[string]string
}

// Submit builds an input carrying submitted field values.
// A nil map is a valid empty submission (e.g., confirming a form with no
// fields).
func Submit(values map[string]string) FormInput {
	return FormInput{submitted: true, values: values}
}

// Back builds the no-data signal: the step is being re-entered or the
// surrounding form host backed out of it.
func Back() FormInput {
	return FormInput{}
}

// Submitted reports whether this input carries a submission.
func (in FormInput) Submitted() bool {
	return in.submitted
}

// Value returns the submitted value for key, or "" when absent.
func (in FormInput) Value(key string) string {
	return in.values[key]
}

// Values returns a copy of all submitted field values.
func (in FormInput) Values() map[string]string {
	if in.values == nil {
		return nil
	}
	out := make(map[string]string, len(in.values))
	for k, v := range in.values {
		out[k] = v
	}
	return out
}

// Has reports whether the submission carries a value for key.
func (in FormInput) Has(key string) bool {
	_, ok := in.values[key]
	return ok
}

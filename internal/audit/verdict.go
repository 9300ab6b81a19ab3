package audit

// Verdict captures the outcome of evaluating one book against the format
// compliance policy.
type Verdict struct {
	HasOriginal         bool
	HasTranslation      bool
	HasViewable         bool
	Extraneous          []string
	DescriptionLanguage string
	RecoveredISBN       string
	ISBNMissing         bool
}

// IsHealthy derives the aggregate health flag. It is a pure function of the
// verdict fields plus the set of description languages the policy accepts;
// nothing may set health independently of it.
func (v Verdict) IsHealthy(acceptedDescriptionLanguages ...string) bool {
	if !v.HasOriginal || !v.HasTranslation || !v.HasViewable {
		return false
	}
	if len(v.Extraneous) > 0 || v.ISBNMissing {
		return false
	}
	for _, lang := range acceptedDescriptionLanguages {
		if v.DescriptionLanguage == lang {
			return true
		}
	}
	return false
}

package hypothesis

import "github.com/rankpulse/diagnose-cli/internal/model"

// Finding is the raw output of one hypothesis gatherer before scoring.
type Finding struct {
	Evidence      []model.EvidenceBlock
	Disconfirming []model.EvidenceBlock
	MissingData   []string
}

// Score buckets a finding's evidence mix into a confidence level. Returns
// ok=false when there is no applicable supporting evidence at all, in which
// case the hypothesis is not emitted (absence, not a zero-confidence row).
//
// The scoring is purely a function of evidence strengths so new hypothesis
// keys can be added without touching it:
//
//	strong support, no strong/moderate disconfirmer  -> high
//	strong support, moderate disconfirmer            -> medium
//	moderate support, no strong disconfirmer         -> medium
//	weak-only support, or any strong disconfirmer    -> low
func Score(f Finding) (model.Confidence, bool) {
	if len(f.Evidence) == 0 {
		return "", false
	}

	strongest := model.Strength("")
	for _, e := range f.Evidence {
		if stronger(e.Strength, strongest) {
			strongest = e.Strength
		}
	}
	var strongDis, moderateDis bool
	for _, e := range f.Disconfirming {
		switch e.Strength {
		case model.StrengthStrong:
			strongDis = true
		case model.StrengthModerate:
			moderateDis = true
		}
	}

	if strongDis {
		return model.ConfidenceLow, true
	}
	switch strongest {
	case model.StrengthStrong:
		if moderateDis {
			return model.ConfidenceMedium, true
		}
		return model.ConfidenceHigh, true
	case model.StrengthModerate:
		return model.ConfidenceMedium, true
	default:
		return model.ConfidenceLow, true
	}
}

func stronger(a, b model.Strength) bool {
	return strengthOrder(a) > strengthOrder(b)
}

func strengthOrder(s model.Strength) int {
	switch s {
	case model.StrengthStrong:
		return 3
	case model.StrengthModerate:
		return 2
	case model.StrengthWeak:
		return 1
	default:
		return 0
	}
}

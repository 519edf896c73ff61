package policy

import "github.com/ppiankov/provenance-radar/internal/model"

// Window codes shipped by default
const (
	CodeNaziEra    = "NAZI_ERA"
	CodeUNESCO1970 = "UNESCO_1970"
)

// DefaultWindows returns the policy windows clients display and events are
// flagged against
func DefaultWindows() []model.PolicyWindow {
	return []model.PolicyWindow{
		{
			Code:  CodeNaziEra,
			Label: "Washington Conference Principles (1933–1945)",
			From:  "1933-01-01",
			To:    "1945-12-31",
			Ref:   "https://www.state.gov/washington-conference-principles-on-nazi-confiscated-art",
		},
		{
			Code:  CodeUNESCO1970,
			Label: "UNESCO 1970 Convention",
			From:  "1970-11-14",
			Ref:   "https://www.unesco.org/en/legal-affairs/convention-means-prohibiting-and-preventing-illicit-import-export-and-transfer-ownership-cultural",
		},
	}
}

// Matcher maps dates to the policy windows they fall within
type Matcher struct {
	windows []model.PolicyWindow
}

// NewMatcher creates a matcher over windows. A nil slice uses DefaultWindows.
func NewMatcher(windows []model.PolicyWindow) *Matcher {
	if windows == nil {
		windows = DefaultWindows()
	}
	return &Matcher{windows: append([]model.PolicyWindow(nil), windows...)}
}

// Matches returns the codes of every window containing date, in table order.
// Bounds are inclusive and an empty To is open-ended. ISO dates compare
// correctly as strings.
func (m *Matcher) Matches(date string) []string {
	codes := []string{}
	d := model.ISODate(date)
	if d == "" {
		return codes
	}
	for _, w := range m.windows {
		if w.From != "" && d < w.From {
			continue
		}
		if w.To != "" && d > w.To {
			continue
		}
		codes = append(codes, w.Code)
	}
	return codes
}

// Windows returns a copy of the configured windows for display
func (m *Matcher) Windows() []model.PolicyWindow {
	return append([]model.PolicyWindow(nil), m.windows...)
}

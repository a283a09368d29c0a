package ambassadors

import "time"

// FormatPartialDate renders "2019", "2019-05" or "2019-05-04" as "2019",
// "May 2019" or "May 4, 2019". Empty or malformed input is "Unknown".
func FormatPartialDate(s string) string {
	for _, f := range []struct{ in, out string }{
		{"2006-01-02", "January 2, 2006"},
		{"2006-01", "January 2006"},
		{"2006", "2006"},
	} {
		if len(s) != len(f.in) {
			continue
		}
		if t, err := time.Parse(f.in, s); err == nil {
			return t.Format(f.out)
		}
	}
	return "Unknown"
}

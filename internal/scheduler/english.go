package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var weekdayNames = map[string]string{
	"sunday": "0", "monday": "1", "tuesday": "2", "wednesday": "3",
	"thursday": "4", "friday": "5", "saturday": "6",
}

var (
	reEveryNUnit  = regexp.MustCompile(`^every\s+(\d+)\s+(second|minute|hour)s?$`)
	reEveryUnit   = regexp.MustCompile(`^every\s+(second|minute|hour|day)$`)
	reDailyAt     = regexp.MustCompile(`^every\s+day\s+at\s+(\d{1,2}):(\d{2})$`)
	reWeekdayAt   = regexp.MustCompile(`^every\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\s+at\s+(\d{1,2}):(\d{2})$`)
)

// TranslateEnglish converts a handful of common English schedule phrases
// into a 6-field (seconds-first) CRON expression robfig/cron/v3 accepts.
// This is a small, explicit phrase set rather than a general NLP
// translator — grounded on the scope of the teacher's own config parsing
// (small, regexp-driven phrase recognizers, not a grammar), generalized
// from "glob filter patterns" to "schedule phrases".
func TranslateEnglish(phrase string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(phrase))

	if m := reEveryNUnit.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "second":
			return fmt.Sprintf("*/%d * * * * *", n), nil
		case "minute":
			return fmt.Sprintf("0 */%d * * * *", n), nil
		case "hour":
			return fmt.Sprintf("0 0 */%d * * *", n), nil
		}
	}

	if m := reEveryUnit.FindStringSubmatch(p); m != nil {
		switch m[1] {
		case "second":
			return "* * * * * *", nil
		case "minute":
			return "0 * * * * *", nil
		case "hour":
			return "0 0 * * * *", nil
		case "day":
			return "0 0 0 * * *", nil
		}
	}

	if m := reDailyAt.FindStringSubmatch(p); m != nil {
		hour, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("0 %d %d * * *", min, hour), nil
	}

	if m := reWeekdayAt.FindStringSubmatch(p); m != nil {
		dow := weekdayNames[m[1]]
		hour, _ := strconv.Atoi(m[2])
		min, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("0 %d %d * * %s", min, hour, dow), nil
	}

	switch p {
	case "hourly":
		return "0 0 * * * *", nil
	case "daily":
		return "0 0 0 * * *", nil
	case "weekly":
		return "0 0 0 * * 0", nil
	case "monthly":
		return "0 0 0 1 * *", nil
	}

	return "", fmt.Errorf("unrecognized schedule phrase: %q", phrase)
}

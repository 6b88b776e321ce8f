package availability

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// MarshalJSON encodes the schedule keyed by lowercase weekday name, which is
// what the jsonb columns and the policy cache store.
func (ws WeekSchedule) MarshalJSON() ([]byte, error) {
	out := make(map[string]DayWindow, len(ws))
	for wd, dw := range ws {
		out[strings.ToLower(wd.String())] = dw
	}
	return json.Marshal(out)
}

func (ws *WeekSchedule) UnmarshalJSON(data []byte) error {
	var raw map[string]DayWindow
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed := make(WeekSchedule, len(raw))
	for name, dw := range raw {
		wd, ok := weekdayByName[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		parsed[wd] = dw
	}
	*ws = parsed
	return nil
}

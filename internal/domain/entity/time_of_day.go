package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay - время суток без даты (колонка TIME в PostgreSQL)
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// DefaultReminderTime - время напоминаний по умолчанию (18:00)
var DefaultReminderTime = TimeOfDay{Hour: 18}

// ParseTimeOfDay разбирает строку в формате "HH:MM" или "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	// Postgres может вернуть дробные секунды: "09:30:00.000000"
	if idx := strings.IndexByte(s, '.'); idx > 0 {
		s = s[:idx]
	}

	var layout string
	switch len(s) {
	case 5:
		layout = "15:04"
	case 8:
		layout = "15:04:05"
	default:
		return TimeOfDay{}, fmt.Errorf("invalid time format %q: use HH:MM or HH:MM:SS", s)
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time format %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

// TimeOfDayFrom возвращает время суток момента t
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// MinuteOfDay возвращает количество минут с начала суток
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// On возвращает момент времени в указанный день
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, loc)
}

// String форматирует время как "HH:MM:SS"
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// HHMM форматирует время как "HH:MM"
func (t TimeOfDay) HHMM() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Scan реализует sql.Scanner. Драйверы возвращают TIME как строку, []byte или time.Time.
func (t *TimeOfDay) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = TimeOfDay{}
		return nil
	case time.Time:
		*t = TimeOfDayFrom(v)
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("failed to scan TimeOfDay from %T", value)
	}
}

// Value реализует driver.Valuer
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// MarshalJSON сериализует время как "HH:MM"
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.HHMM())
}

// UnmarshalJSON принимает "HH:MM" или "HH:MM:SS"
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

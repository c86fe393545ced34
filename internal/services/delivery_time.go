package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDeliveryTime reports a scheduled time that is malformed or outside
// business hours.
var ErrInvalidDeliveryTime = errors.New("delivery time: invalid")

// FormatTime12h converts a 24-hour "HH:MM" string to "h:mm AM/PM". Midnight hours
// render as 12 AM and noon hours as 12 PM. Unparseable input is returned unchanged.
func FormatTime12h(value string) string {
	minutes, err := parseClock(value)
	if err != nil {
		return value
	}
	hour, minute := minutes/60, minutes%60
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minute, period)
}

// BusinessHours bounds the times a delivery may be scheduled for.
type BusinessHours struct {
	Opening  string
	Closing  string
	Interval time.Duration
	Default  string
}

// DefaultBusinessHours is 10:00 to 22:00 in quarter-hour slots, defaulting to noon.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{Opening: "10:00", Closing: "22:00", Interval: 15 * time.Minute, Default: "12:00"}
}

// Slots lists every selectable time, opening and closing included.
func (h BusinessHours) Slots() []string {
	open, err := parseClock(h.Opening)
	if err != nil {
		return nil
	}
	closing, err := parseClock(h.Closing)
	if err != nil {
		return nil
	}
	step := h.step()
	slots := make([]string, 0, (closing-open)/step+1)
	for m := open; m <= closing; m += step {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

// Validate normalises value to "HH:MM" and checks it falls on a slot within hours.
func (h BusinessHours) Validate(value string) (string, error) {
	minutes, err := parseClock(value)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not HH:MM", ErrInvalidDeliveryTime, value)
	}
	open, err := parseClock(h.Opening)
	if err != nil {
		return "", fmt.Errorf("%w: opening time %q", ErrInvalidDeliveryTime, h.Opening)
	}
	closing, err := parseClock(h.Closing)
	if err != nil {
		return "", fmt.Errorf("%w: closing time %q", ErrInvalidDeliveryTime, h.Closing)
	}
	if minutes < open || minutes > closing {
		return "", fmt.Errorf("%w: %s is outside %s-%s", ErrInvalidDeliveryTime, value, h.Opening, h.Closing)
	}
	if (minutes-open)%h.step() != 0 {
		return "", fmt.Errorf("%w: %s is not on a %s slot", ErrInvalidDeliveryTime, value, h.Interval)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

func (h BusinessHours) step() int {
	step := int(h.Interval / time.Minute)
	if step <= 0 {
		step = 15
	}
	return step
}

// parseClock accepts "H:MM" or "HH:MM" in 24-hour time.
func parseClock(value string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q", value)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour %q", value)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute %q", value)
	}
	return h*60 + m, nil
}

package models

import (
	"database/sql/driver"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidStatus is returned when a status tag outside the closed set is decoded.
var ErrInvalidStatus = errors.New("models: invalid word status")

// Status is the coarse learning stage of a word.
type Status int

const (
	StatusNew Status = iota + 1 // Never rated.
	StatusLearning
	StatusKnown
	StatusMastered
)

var (
	statusNames = [...]string{
		StatusNew:      "new",
		StatusLearning: "learning",
		StatusKnown:    "known",
		StatusMastered: "mastered",
	}
	statusByName = map[string]Status{
		"new":      StatusNew,
		"learning": StatusLearning,
		"known":    StatusKnown,
		"mastered": StatusMastered,
	}
)

var (
	_ fmt.Stringer             = Status(0)
	_ json.Marshaler           = Status(0)
	_ json.Unmarshaler         = (*Status)(nil)
	_ encoding.TextMarshaler   = Status(0)
	_ encoding.TextUnmarshaler = (*Status)(nil)
	_ driver.Valuer            = Status(0)
)

// IsValid reports whether s is one of the four known statuses.
func (s Status) IsValid() bool {
	return s >= StatusNew && s <= StatusMastered
}

// IsEstablished reports whether the learner has rated the word at least once.
func (s Status) IsEstablished() bool {
	return s == StatusLearning || s == StatusKnown || s == StatusMastered
}

func (s Status) String() string {
	if s.IsValid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus maps a storage tag back to a Status.
func ParseStatus(tag string) (Status, error) {
	s, ok := statusByName[tag]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, tag)
	}
	return s, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. Status serializes as a JSON string.
func (s Status) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, data)
	}
	return s.UnmarshalText([]byte(str))
}

// Value implements driver.Valuer so statuses are stored as their tag.
func (s Status) Value() (driver.Value, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

// Scan implements sql.Scanner and rejects unknown tags read from storage.
func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidStatus, src)
	}
}

package enemy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownID is returned by ParseID for names outside the roster.
var ErrUnknownID = errors.New("unknown enemy id")

// ID identifies an opposing unit by its robot number.
type ID int

const (
	Invalid ID = iota
	Hero1
	Engineer2
	Infantry3
	Infantry4
	Sentry7
	Outpost8
)

var idNames = map[ID]string{
	Hero1:     "Hero1",
	Engineer2: "Engineer2",
	Infantry3: "Infantry3",
	Infantry4: "Infantry4",
	Sentry7:   "Sentry7",
	Outpost8:  "Outpost8",
}

// robot numbers as printed on the plates
var idNumbers = map[ID]int{
	Hero1:     1,
	Engineer2: 2,
	Infantry3: 3,
	Infantry4: 4,
	Sentry7:   7,
	Outpost8:  8,
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "Invalid"
}

// Valid reports whether id is part of the roster.
func (id ID) Valid() bool {
	_, ok := idNames[id]
	return ok
}

// Number returns the robot number shown on the unit's plates, or 0.
func (id ID) Number() int { return idNumbers[id] }

// Roster returns every valid identity in robot-number order.
func Roster() []ID {
	return []ID{Hero1, Engineer2, Infantry3, Infantry4, Sentry7, Outpost8}
}

// ParseID accepts a roster name ("Infantry3", case-insensitive) or a robot
// number ("3").
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	for _, id := range Roster() {
		if strings.EqualFold(s, idNames[id]) || s == fmt.Sprint(idNumbers[id]) {
			return id, nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknownID, s)
}

// ArmorSize is the physical plate class, which downstream detection and
// fire control care about.
type ArmorSize int

const (
	Small ArmorSize = iota
	Large
)

func (a ArmorSize) String() string {
	if a == Large {
		return "large"
	}
	return "small"
}

// ArmorSizeOf returns the plate class carried by id.
func ArmorSizeOf(id ID) ArmorSize {
	if id == Hero1 {
		return Large
	}
	return Small
}

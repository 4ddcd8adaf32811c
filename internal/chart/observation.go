package chart

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoDictionary = errors.New("concept dictionary is not available")

// MissingConceptError reports a concept the dictionary has no name for.
type MissingConceptError struct {
	ConceptUUID string
	Locale      string
}

func (e *MissingConceptError) Error() string {
	if e.Locale == "" {
		return fmt.Sprintf("no name for concept %s", e.ConceptUUID)
	}
	return fmt.Sprintf("no name for concept %s in locale %s", e.ConceptUUID, e.Locale)
}

// Observation is one localized chart entry. Rows of a chart layout without
// recorded values carry only the concept fields.
type Observation struct {
	PatientUUID    string
	EncounterUUID  string
	EncounterTime  time.Time
	ConceptUUID    string
	ConceptName    string
	GroupUUID      string
	GroupName      string
	Value          string
	LocalizedValue string
}

// Dictionary resolves localized concept names.
type Dictionary interface {
	Locale() string
	Name(conceptUUID string) (string, bool)
}

// MapDictionary is a Dictionary over an in-memory map.
type MapDictionary struct {
	locale string
	names  map[string]string
}

func NewMapDictionary(locale string, names map[string]string) *MapDictionary {
	cp := make(map[string]string, len(names))
	for k, v := range names {
		cp[k] = v
	}
	return &MapDictionary{locale: locale, names: cp}
}

func (d *MapDictionary) Locale() string { return d.locale }

func (d *MapDictionary) Name(conceptUUID string) (string, bool) {
	name, ok := d.names[conceptUUID]
	return name, ok && name != ""
}

// Len returns the number of named concepts.
func (d *MapDictionary) Len() int { return len(d.names) }

func lookup(dict Dictionary, conceptUUID string) (string, error) {
	if name, ok := dict.Name(conceptUUID); ok {
		return name, nil
	}
	return "", &MissingConceptError{ConceptUUID: conceptUUID, Locale: dict.Locale()}
}

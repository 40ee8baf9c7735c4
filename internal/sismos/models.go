package sismos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// RawCollectionType is the discriminator carried by the provider's own feed shape.
	RawCollectionType = "FeatureCollection"

	// CollectionType tags a normalized collection.
	CollectionType = "sismos"

	// EventType tags a normalized feature.
	EventType = "Sismo"
)

// Geometry is the point of an event: [longitude, latitude] plus the marker
// kind the provider uses to pick a map icon.
type Geometry struct {
	Type        string    `json:"type" validate:"required"`
	Coordinates []float64 `json:"coordinates" validate:"required"`
	Marker      *string   `json:"marcador"`
}

// Properties holds the normalized, textual attributes of an event.
// Numeric fields stay strings as published; parse them with the helpers in query.go.
type Properties struct {
	Depth            string `json:"depth"`
	Value            string `json:"value"`
	AddressFormatted string `json:"addressFormatted"`
	Time             string `json:"time"`
	Country          string `json:"country"`
	Date             string `json:"date"`
	Lat              string `json:"lat"`
	Long             string `json:"long"`
}

// Event is one normalized earthquake record.
type Event struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// propertyKeys are the normalized property names. All must be present for a
// document to decode as an Event.
var propertyKeys = [...]string{"depth", "value", "addressFormatted", "time", "country", "date", "lat", "long"}

// UnmarshalJSON rejects features whose properties lack any normalized key or
// set one to null, so documents in other shapes never decode as blank events.
func (e *Event) UnmarshalJSON(data []byte) error {
	var shape struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	for _, k := range propertyKeys {
		v, ok := shape.Properties[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("event property %q missing", k)
		}
	}

	type plain Event
	return json.Unmarshal(data, (*plain)(e))
}

// Collection is the normalized snapshot. Feature order is source order.
type Collection struct {
	Type     string  `json:"type" validate:"required,ne=FeatureCollection"`
	Features []Event `json:"features" validate:"required,dive"`
}

// FlexString decodes a JSON string, number, or null into text.
// The provider is inconsistent about quoting numeric properties.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// RawProperties is the provider's property set. The names do not describe
// their contents; see Transform for the mapping.
type RawProperties struct {
	PhoneFormatted FlexString `json:"phoneFormatted"`
	Phone          FlexString `json:"phone"`
	Address        FlexString `json:"address"`
	City           FlexString `json:"city"`
	Country        FlexString `json:"country"`
	PostalCode     FlexString `json:"postalCode"`
	State          FlexString `json:"state"`
	Lat            FlexString `json:"lat"`
	Long           FlexString `json:"long"`
}

// RawGeometry is the provider's geometry.
type RawGeometry struct {
	Type        string     `json:"type" validate:"required"`
	Coordinates []float64  `json:"coordinates" validate:"required"`
	Marker      FlexString `json:"marcador"`
}

// RawFeature is one provider feature.
type RawFeature struct {
	Type       string        `json:"type"`
	Geometry   RawGeometry   `json:"geometry"`
	Properties RawProperties `json:"properties"`
}

// RawCollection is the provider feed as published. It is only ever a
// transformation input and is never handed to readers.
type RawCollection struct {
	Type     string       `json:"type" validate:"required,eq=FeatureCollection"`
	Features []RawFeature `json:"features" validate:"required,dive"`
}

// Stats are derived on demand from a Collection.
type Stats struct {
	Total        int       `json:"total_sismos"`
	MinMagnitude float64   `json:"magnitud_minima"`
	MaxMagnitude float64   `json:"magnitud_maxima"`
	AvgMagnitude float64   `json:"magnitud_promedio"`
	Latest       *Event    `json:"ultimo_sismo"`
	GeneratedAt  time.Time `json:"ultima_actualizacion"`
}

// Coordinate is the map projection of an event.
type Coordinate struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Magnitude float64 `json:"magnitude"`
	Location  string  `json:"location"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Depth     string  `json:"depth"`
}

// Magnitude returns the parsed magnitude and whether it parsed.
func (e Event) Magnitude() (float64, bool) {
	return parseFloat(e.Properties.Value)
}

// OccurredAt returns the event's date-time, or the zero time when the
// date or time field is malformed.
func (e Event) OccurredAt() time.Time {
	return ParseDateTime(e.Properties.Date, e.Properties.Time)
}

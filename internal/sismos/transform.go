package sismos

// Transform maps the provider feed onto the normalized schema, one event per
// feature, preserving order.
//
// The correspondence is positional and fixed by the upstream feed, not by
// property names:
//
//	depth            <- phoneFormatted (state when empty)
//	value            <- phone
//	addressFormatted <- address
//	time             <- city
//	country          <- country
//	date             <- postalCode
//	lat, long        <- lat, long
//
// Geometry type, coordinates, and marker pass through unchanged.
func Transform(raw RawCollection) Collection {
	events := make([]Event, 0, len(raw.Features))
	for _, f := range raw.Features {
		events = append(events, transformFeature(f))
	}
	return Collection{Type: CollectionType, Features: events}
}

func transformFeature(f RawFeature) Event {
	p := f.Properties

	depth := string(p.PhoneFormatted)
	if depth == "" {
		depth = string(p.State)
	}

	marker := string(f.Geometry.Marker)
	coords := make([]float64, len(f.Geometry.Coordinates))
	copy(coords, f.Geometry.Coordinates)

	return Event{
		Type: EventType,
		Geometry: Geometry{
			Type:        f.Geometry.Type,
			Coordinates: coords,
			Marker:      &marker,
		},
		Properties: Properties{
			Depth:            depth,
			Value:            string(p.Phone),
			AddressFormatted: string(p.Address),
			Time:             string(p.City),
			Country:          string(p.Country),
			Date:             string(p.PostalCode),
			Lat:              string(p.Lat),
			Long:             string(p.Long),
		},
	}
}

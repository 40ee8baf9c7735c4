// Package sismos models Venezuelan earthquake reports published by FUNVISIS
// (Fundación Venezolana de Investigaciones Sismológicas).
//
// # Data Source
//
// The provider publishes a GeoJSON-like feature collection at
// http://www.funvisis.gob.ve/maravilla.json. The feed rejects requests that
// do not look like a browser and does not reliably declare a JSON content type.
//
// # Provider Conventions
//
// The feed reuses property names from an address-book schema. Contents do not
// match the names:
//
//	phoneFormatted  depth, e.g. "10.3 km" (state is used when empty)
//	phone           magnitude, e.g. "3.1"
//	address         formatted location, e.g. "25 Km al sur de Carúpano"
//	city            local time HH:MM
//	postalCode      local date DD-MM-YYYY
//	lat, long       decimal degrees as strings
//
// Numeric properties are usually quoted but not always; [FlexString] accepts both.
//
// # Snapshot Shapes
//
// A snapshot file holds either a normalized [Collection] (type "sismos") or,
// when seeded by hand or by older tooling, the raw provider shape (type
// "FeatureCollection"). Readers only ever see the normalized form.
//
// # Derived Values
//
// Magnitudes and coordinates that do not parse as finite floats are excluded
// from aggregates, filters, and map projections, but remain in the collection.
// Malformed dates sort as the oldest possible instant.
package sismos

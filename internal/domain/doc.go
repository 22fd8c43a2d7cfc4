// Package domain models citizen-science night-sky submissions and the
// filtering and aggregation applied to them.
//
// # Record Sources
//
// Submissions come from one of two stores and are normalized into the
// canonical [Submission] shape by [Normalize]:
//
//	local file:   {"id", "photo_url", "latitude", "longitude", "timestamp",
//	               "brightness_rating", "constellation_name", "constellation_names"}
//	remote table: id, created_at, photo_url, brightness_level, lat, long
//
// Remote rows never carry constellations. Numeric fields may arrive as JSON
// numbers, database numerics, or numeric strings.
//
// Time format:
//
//	Any ISO-8601-like string: "2024-01-01T05:00:00+05:00", "2024-01-01 00:00:00",
//	"2024-01-01T00:00:00Z", "2024-01-01". Strings without a zone are UTC.
//	Every timestamp is stored as a UTC instant, so the naive
//	"2024-01-01T00:00:00" and "2024-01-01T05:00:00+05:00" are equal.
//
// Malformed records:
//
//	A record with an unparseable coordinate, rating, or timestamp fails the
//	whole load with a [MalformedRecordError] naming the record index and field.
//
// # Filtering
//
// The filter stages narrow a table without reordering it:
//
//	brightness floor → constellation substring → date range → radius
//
// Date bounds are whole UTC days, both inclusive. The radius stage uses
// [HaversineKm] on a sphere of radius [EarthRadiusKm]; radii given in miles
// are converted with [MilesToKm].
//
// # Aggregation
//
// [Timeseries] groups a table into day, week (Monday-anchored), or month
// buckets and yields the mean brightness per non-empty bucket.
package domain

package repository

import (
	"testing"

	"parkwatch/pkg/geo"
	"parkwatch/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

func floatPtr(v float64) *float64 { return &v }

func TestBuildSearchFilter_AmenitiesMatchAny(t *testing.T) {
	r := &mongoParkingLotRepository{}

	query := r.buildSearchFilter(&model.SearchFilter{
		Amenities: []string{"covered", "valet"},
	})

	clause, ok := query["amenities"].(bson.M)
	if !ok {
		t.Fatalf("expected amenities clause, got %v", query["amenities"])
	}
	tags, ok := clause["$in"].([]string)
	if !ok {
		t.Fatalf("a lot must match on any requested tag, got clause %v", clause)
	}
	if len(tags) != 2 || tags[0] != "covered" || tags[1] != "valet" {
		t.Errorf("expected requested tags, got %v", tags)
	}
}

func TestBuildSearchFilter_CityIsSubstringMatch(t *testing.T) {
	r := &mongoParkingLotRepository{}

	query := r.buildSearchFilter(&model.SearchFilter{City: "Spring"})

	clause, ok := query["address.city"].(bson.M)
	if !ok {
		t.Fatalf("expected city clause, got %v", query["address.city"])
	}
	if clause["$regex"] != "Spring" {
		t.Errorf(`"Spring" must match "Springfield", got regex %q`, clause["$regex"])
	}
	if clause["$options"] != "i" {
		t.Errorf("city match must be case-insensitive, got options %q", clause["$options"])
	}
}

func TestBuildSearchFilter_EscapesRegexInput(t *testing.T) {
	r := &mongoParkingLotRepository{}

	query := r.buildSearchFilter(&model.SearchFilter{State: "(a+)+"})

	clause := query["address.state"].(bson.M)
	if clause["$regex"] != `\(a\+\)\+` {
		t.Errorf("metacharacters must be escaped, got %q", clause["$regex"])
	}
}

func TestBuildSearchFilter_AvailableShortcutAndRates(t *testing.T) {
	r := &mongoParkingLotRepository{}

	query := r.buildSearchFilter(&model.SearchFilter{
		MinRate:       floatPtr(2),
		MaxRate:       floatPtr(5),
		AvailableOnly: true,
	})

	if query["is_active"] != true {
		t.Error("every search must be scoped to active lots")
	}
	if query["is_open"] != true {
		t.Error("available shortcut must require the lot to be open")
	}
	spots := query["available_spots"].(bson.M)
	if spots["$gt"] != 0 {
		t.Errorf("available shortcut must require spots > 0, got %v", spots)
	}
	rate := query["hourly_rate"].(bson.M)
	if rate["$gte"] != 2.0 || rate["$lte"] != 5.0 {
		t.Errorf("rate bounds must be inclusive on hourly_rate, got %v", rate)
	}
}

func TestNearbyPipeline_RadiusPassedUnmodified(t *testing.T) {
	center := geo.Point{Lat: 39.78, Lon: -89.65}

	pipeline := nearbyPipeline(center, 7.5, 100)

	stage, ok := pipeline[0][0].Value.(bson.M)
	if !ok || pipeline[0][0].Key != "$geoNear" {
		t.Fatalf("expected $geoNear as the first stage, got %v", pipeline[0])
	}

	// The inclusive boundary is delegated to maxDistance; the radius must
	// arrive as an exact meter conversion with no epsilon adjustment.
	if stage["maxDistance"] != geo.KmToMeters(7.5) {
		t.Errorf("expected maxDistance %v, got %v", geo.KmToMeters(7.5), stage["maxDistance"])
	}
	if stage["spherical"] != true {
		t.Error("radius query must use spherical distance")
	}

	coords := stage["near"].(bson.M)["coordinates"].([]float64)
	if coords[0] != center.Lon || coords[1] != center.Lat {
		t.Errorf("GeoJSON order is [lon, lat], got %v", coords)
	}
}

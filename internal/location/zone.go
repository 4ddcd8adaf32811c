package location

// Depths of the facility hierarchy.
const (
	DepthFacility = 0
	DepthZone     = 1
	DepthTent     = 2
	DepthBed      = 3
)

// Well-known zone location UUIDs.
const (
	TriageZoneUUID     = "3f75ca61-ec1a-4739-af09-25a84e3dd237"
	SuspectZoneUUID    = "2f1e2418-ede6-481a-ad80-b9939a7fde8e"
	ProbableZoneUUID   = "3b11e7c8-a68a-4a5f-afb3-a4a053592d0e"
	ConfirmedZoneUUID  = "b9038895-9c9d-4908-9e0d-51fd535ddd3c"
	MorgueZoneUUID     = "4ef642b9-9843-4d0d-9b2b-84fe1984801f"
	OutsideZoneUUID    = "00eee068-4d2a-4b41-bfe1-41e3066ab213"
	DischargedZoneUUID = "d7ca63c3-6ea0-4357-82fd-0910cc17a2cb"
)

// DefaultLocationUUID is where patients without an assigned location are placed.
const DefaultLocationUUID = TriageZoneUUID

// zoneOrder is the fixed display and risk order of the zones.
var zoneOrder = []string{
	TriageZoneUUID,
	SuspectZoneUUID,
	ProbableZoneUUID,
	ConfirmedZoneUUID,
	MorgueZoneUUID,
	OutsideZoneUUID,
	DischargedZoneUUID,
}

// ZoneRank returns the position of uuid in the canonical zone order.
func ZoneRank(uuid string) (int, bool) {
	for i, z := range zoneOrder {
		if z == uuid {
			return i, true
		}
	}
	return -1, false
}

// IsZone reports whether uuid is one of the well-known zones.
func IsZone(uuid string) bool {
	_, ok := ZoneRank(uuid)
	return ok
}

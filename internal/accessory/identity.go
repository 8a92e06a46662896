package accessory

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// namespace scopes accessory UUIDs to this bridge.
var namespace = uuid.MustParse("6f1d3c2a-6b0e-5a7e-9d4f-3c8b2e1a0d57")

// StableID derives an accessory UUID from the configured device id. The
// same id always yields the same UUID, across restarts and hosts.
func StableID(deviceID string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(deviceID))
}

// AccessoryID is the numeric accessory id used by HomeKit: the first eight
// bytes of StableID. Ids 0 and 1 are reserved for the bridge itself.
func AccessoryID(deviceID string) uint64 {
	u := StableID(deviceID)
	id := binary.BigEndian.Uint64(u[:8])
	if id <= 1 {
		id += 2
	}
	return id
}

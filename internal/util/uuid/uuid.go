package uuid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownVersion is returned when an unsupported UUID version is requested.
var ErrUnknownVersion = errors.New("unknown UUID version")

const (
	UUIDSize = 16
)

// UUID represents a 128-bit universally unique identifier as specified in RFC 4122.
type UUID struct {
	bytes [UUIDSize]byte
}

// UUIDVersion represents the version number of a UUID.
type UUIDVersion int

const (
	// UUIDv7 represents UUID version 7, a time-ordered UUID composed of a
	// millisecond timestamp and random data. Time ordering keeps generated
	// object keys roughly sortable by creation time.
	UUIDv7 UUIDVersion = 7
)

// New generates a new UUID of the specified version.
// Returns an error if an unsupported version is specified.
func New(version UUIDVersion) (UUID, error) {
	var uuid UUID

	switch version {
	case UUIDv7:
		generateUUIDv7(&uuid)
	default:
		return UUID{}, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}

	return uuid, nil
}

func generateUUIDv7(uuid *UUID) {
	// 48-bit Unix millisecond timestamp, big-endian
	now := time.Now().UnixMilli()

	uuid.bytes[0] = byte(now >> 40)
	uuid.bytes[1] = byte(now >> 32)
	uuid.bytes[2] = byte(now >> 24)
	uuid.bytes[3] = byte(now >> 16)
	uuid.bytes[4] = byte(now >> 8)
	uuid.bytes[5] = byte(now)

	// 10 bytes of cryptographic randomness
	_, err := rand.Read(uuid.bytes[6:])
	if err != nil {
		panic("failed to generate UUIDv7: " + err.Error())
	}

	// Version nibble (7)
	uuid.bytes[6] = (uuid.bytes[6] & 0x0F) | 0x70

	// RFC 4122 variant bits "10"
	uuid.bytes[8] = (uuid.bytes[8] & 0x3F) | 0x80
}

// String returns the canonical string representation of the UUID,
// formatted according to RFC 4122 with hyphens (8-4-4-4-12 format).
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		binary.BigEndian.Uint32(u.bytes[0:4]),
		binary.BigEndian.Uint16(u.bytes[4:6]),
		binary.BigEndian.Uint16(u.bytes[6:8]),
		binary.BigEndian.Uint16(u.bytes[8:10]),
		u.bytes[10:16])
}

// Bytes returns the raw bytes of the UUID.
func (u UUID) Bytes() []byte {
	return u.bytes[:]
}

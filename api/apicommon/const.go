// Package apicommon provides common types, constants, and helper functions for the API.
package apicommon

// MetadataKey is a type to define the key for the metadata stored in the
// context.
type MetadataKey string

// CallerMetadataKey is the key used to store the authenticated caller in the
// context.
const CallerMetadataKey MetadataKey = "caller"

// Roles carried in the JWT role claim. Tokens without a role are treated as
// RoleAuthenticated.
const (
	RoleServiceRole   = "service_role"
	RoleAdmin         = "admin"
	RoleAuthenticated = "authenticated"
)

const (
	// DefaultListLimit is the page size used when a request does not set one.
	DefaultListLimit = 50
	// MaxListLimit caps the page size of list requests.
	MaxListLimit = 500
)

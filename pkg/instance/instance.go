package instance

import "github.com/angelmondragon/storefront-backend/pkg/env"

// GetID identifies this process in logs and lock owner diagnostics.
// STOREFRONT_INSTANCE_ID wins, then the platform dyno name, then the container hostname.
func GetID() string {
	return env.First("local", "STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME")
}

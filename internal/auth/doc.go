// Package auth mints the device token presented to the coordinator.
//
// Each connection attempt carries a fresh HS256 JWT in the Authorization
// header: sub is the site id, tid the transport id, jti a random UUID and
// exp a short TTL. The coordinator (or a test peer) validates it with
// ParseToken and the shared secret.
package auth

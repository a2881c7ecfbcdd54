// Package delivery defines the inbound transports of the service.
package delivery

import "context"

// Delivery is a long-running inbound transport. Implementations block in
// Serve until the transport stops.
type Delivery interface {
	Serve(ctx context.Context) error
}

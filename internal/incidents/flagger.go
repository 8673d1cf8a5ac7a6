package incidents

import (
	"context"
	"errors"
	"fmt"

	"controlroom.busops.org/internal/store"
)

var ErrUnknownVehicle = errors.New("no live record for vehicle")

// StoreFlagger patches the emergency field of live-telemetry/{vehicleId} directly. It is
// used when no simulator owns the records. Vehicles without a live record are refused so
// that a partial record is never created.
type StoreFlagger struct {
	Store store.Store
}

func (f StoreFlagger) SetEmergency(ctx context.Context, vehicleID string, emergency bool) error {
	p := store.Join(store.LiveTelemetry, vehicleID)
	snap, err := f.Store.Get(ctx, p)
	if err != nil {
		return err
	}
	if !snap.Exists {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	return f.Store.Update(ctx, p, map[string]any{"emergency": emergency})
}

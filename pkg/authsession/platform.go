package authsession

import (
	"context"
	"errors"
	"runtime"

	"github.com/google/uuid"
)

// Platform exposes device/runtime identity. Refresh requests carry it so the
// backend can bind sessions to installations.
type Platform interface {
	// DeviceID returns a stable per-installation identifier
	DeviceID(ctx context.Context) (string, error)

	// DeviceName describes the runtime, e.g. "linux go1.24.4"
	DeviceName() string

	// OS returns the operating system name sent on social-auth requests
	OS() string
}

// HostPlatform derives identity from the local runtime. The installation id
// is generated once and persisted through Storage so it survives restarts.
type HostPlatform struct {
	storage Storage
}

// NewHostPlatform creates a Platform backed by the given storage.
func NewHostPlatform(storage Storage) *HostPlatform {
	return &HostPlatform{storage: storage}
}

// DeviceID returns the persisted installation id, minting one on first use.
func (p *HostPlatform) DeviceID(ctx context.Context) (string, error) {
	id, err := p.storage.Get(ctx, keyInstallationID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if err := p.storage.Set(ctx, keyInstallationID, id); err != nil {
		return "", err
	}
	return id, nil
}

// DeviceName describes the local runtime.
func (p *HostPlatform) DeviceName() string {
	return runtime.GOOS + " " + runtime.Version()
}

// OS returns the local operating system name.
func (p *HostPlatform) OS() string {
	return runtime.GOOS
}

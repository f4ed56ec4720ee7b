package domain

import "errors"

var (
	ErrSnapshotNotFound = errors.New("identity snapshot not found")
	ErrSnapshotCorrupt  = errors.New("identity snapshot corrupt")
	ErrEngineStopped    = errors.New("relay engine stopped")
)

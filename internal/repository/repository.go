// Package repository persists parsed profiles through GORM.
package repository

import (
	"context"
	"errors"

	"github.com/callgrind-analysis/pkg/model"
)

// ErrProfileNotFound is returned when no profile has the requested UUID.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileMeta identifies a profile being saved.
type ProfileMeta struct {
	UUID        string
	Source      string
	Diagnostics int
}

// ProfileRepository defines the profile storage operations.
type ProfileRepository interface {
	// SaveProfile stores the summary with its functions and call edges in
	// one transaction.
	SaveProfile(ctx context.Context, meta ProfileMeta, summary *model.ProfileSummary) (*ProfileRecord, error)

	// GetProfile retrieves a profile row by UUID.
	GetProfile(ctx context.Context, uuid string) (*ProfileRecord, error)

	// ListProfiles returns the most recent profiles first.
	ListProfiles(ctx context.Context, limit int) ([]*ProfileRecord, error)

	// TopFunctions returns the functions with the highest self cost of the
	// first event.
	TopFunctions(ctx context.Context, profileID uint64, limit int) ([]*FunctionRecord, error)

	// LoadSummary rebuilds the stored summary.
	LoadSummary(ctx context.Context, uuid string) (*model.ProfileSummary, error)

	// DeleteProfile removes a profile and its rows.
	DeleteProfile(ctx context.Context, uuid string) error
}

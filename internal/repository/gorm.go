package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/callgrind-analysis/pkg/model"
	"gorm.io/gorm"
)

const defaultBatchSize = 200

// GormProfileRepository implements ProfileRepository using GORM.
type GormProfileRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewGormProfileRepository creates a new GormProfileRepository. A
// non-positive batchSize uses the default.
func NewGormProfileRepository(db *gorm.DB, batchSize int) *GormProfileRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &GormProfileRepository{db: db, batchSize: batchSize}
}

// SaveProfile stores the summary with its functions and call edges.
func (r *GormProfileRepository) SaveProfile(ctx context.Context, meta ProfileMeta, summary *model.ProfileSummary) (*ProfileRecord, error) {
	if summary == nil {
		return nil, fmt.Errorf("summary is nil")
	}
	header := summary.Header()

	profile := &ProfileRecord{
		UUID:        meta.UUID,
		Source:      meta.Source,
		Command:     header.Command,
		Creator:     header.Creator,
		Functions:   summary.Len(),
		Diagnostics: meta.Diagnostics,
	}
	var err error
	if profile.Events, err = mustJSON(summary.Events()); err != nil {
		return nil, fmt.Errorf("failed to marshal events: %w", err)
	}
	if profile.Header, err = mustJSON(header); err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if profile.Totals, err = mustJSON(summary.Totals()); err != nil {
		return nil, fmt.Errorf("failed to marshal totals: %w", err)
	}
	if declared := summary.DeclaredTotals(); declared != nil {
		if profile.Declared, err = mustJSON(declared); err != nil {
			return nil, fmt.Errorf("failed to marshal declared totals: %w", err)
		}
	}

	nodes := summary.Nodes()
	functions := make([]*FunctionRecord, len(nodes))
	for i, node := range nodes {
		inclusive := node.Inclusive()
		fn := &FunctionRecord{
			Ordinal:          i,
			Object:           node.ID.Object,
			File:             node.ID.File,
			Name:             node.ID.Name,
			PrimarySelf:      primary(node.Self),
			PrimaryInclusive: primary(inclusive),
		}
		if fn.Self, err = mustJSON(node.Self); err != nil {
			return nil, fmt.Errorf("failed to marshal self cost: %w", err)
		}
		if fn.Inclusive, err = mustJSON(inclusive); err != nil {
			return nil, fmt.Errorf("failed to marshal inclusive cost: %w", err)
		}
		functions[i] = fn
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		if len(functions) == 0 {
			return nil
		}

		for _, fn := range functions {
			fn.ProfileID = profile.ID
		}
		if err := tx.CreateInBatches(functions, r.batchSize).Error; err != nil {
			return fmt.Errorf("failed to save functions: %w", err)
		}

		var edges []*CallEdgeRecord
		for i, node := range nodes {
			for j, call := range node.Calls {
				cost, err := mustJSON(call.Cost)
				if err != nil {
					return fmt.Errorf("failed to marshal call cost: %w", err)
				}
				edges = append(edges, &CallEdgeRecord{
					ProfileID:    profile.ID,
					CallerID:     functions[i].ID,
					Ordinal:      j,
					CalleeObject: call.Callee.Object,
					CalleeFile:   call.Callee.File,
					CalleeName:   call.Callee.Name,
					Calls:        clampInt64(call.Calls),
					Cost:         cost,
				})
			}
		}
		if len(edges) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(edges, r.batchSize).Error; err != nil {
			return fmt.Errorf("failed to save call edges: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetProfile retrieves a profile row by UUID.
func (r *GormProfileRepository) GetProfile(ctx context.Context, uuid string) (*ProfileRecord, error) {
	var profile ProfileRecord
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, uuid)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// ListProfiles returns the most recent profiles first.
func (r *GormProfileRepository) ListProfiles(ctx context.Context, limit int) ([]*ProfileRecord, error) {
	var profiles []*ProfileRecord
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// TopFunctions returns the functions with the highest primary self cost.
// Ties keep the profile's node order.
func (r *GormProfileRepository) TopFunctions(ctx context.Context, profileID uint64, limit int) ([]*FunctionRecord, error) {
	var functions []*FunctionRecord
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("primary_self DESC").
		Order("ordinal ASC").
		Limit(limit).
		Find(&functions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query functions: %w", err)
	}
	return functions, nil
}

// LoadSummary rebuilds the stored summary in its original node order.
func (r *GormProfileRepository) LoadSummary(ctx context.Context, uuid string) (*model.ProfileSummary, error) {
	profile, err := r.GetProfile(ctx, uuid)
	if err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	var functions []*FunctionRecord
	if err := db.Where("profile_id = ?", profile.ID).Order("ordinal ASC").Find(&functions).Error; err != nil {
		return nil, fmt.Errorf("failed to load functions: %w", err)
	}
	var edges []*CallEdgeRecord
	if err := db.Where("profile_id = ?", profile.ID).Order("caller_id ASC").Order("ordinal ASC").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to load call edges: %w", err)
	}

	var (
		header   model.ProfileHeader
		events   []string
		totals   model.CostVector
		declared model.CostVector
	)
	for _, field := range []struct {
		data JSONField
		dst  interface{}
	}{
		{profile.Header, &header},
		{profile.Events, &events},
		{profile.Totals, &totals},
		{profile.Declared, &declared},
	} {
		if err := field.data.Decode(field.dst); err != nil {
			return nil, fmt.Errorf("failed to decode profile %s: %w", uuid, err)
		}
	}

	nodes := make([]model.CostNode, len(functions))
	index := make(map[uint64]int, len(functions))
	for i, fn := range functions {
		index[fn.ID] = i
		nodes[i].ID = fn.FunctionID()
		if err := fn.Self.Decode(&nodes[i].Self); err != nil {
			return nil, fmt.Errorf("failed to decode self cost of %s: %w", nodes[i].ID, err)
		}
	}
	for _, edge := range edges {
		i, ok := index[edge.CallerID]
		if !ok {
			return nil, fmt.Errorf("call edge %d references unknown function %d", edge.ID, edge.CallerID)
		}
		call := model.CallEdge{
			Callee: model.FunctionID{Object: edge.CalleeObject, File: edge.CalleeFile, Name: edge.CalleeName},
			Calls:  uint64(edge.Calls),
		}
		if err := edge.Cost.Decode(&call.Cost); err != nil {
			return nil, fmt.Errorf("failed to decode call cost: %w", err)
		}
		nodes[i].Calls = append(nodes[i].Calls, call)
	}

	return model.NewProfileSummary(header, events, nodes, totals, declared), nil
}

// DeleteProfile removes a profile and its rows.
func (r *GormProfileRepository) DeleteProfile(ctx context.Context, uuid string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile ProfileRecord
		if err := tx.Where("uuid = ?", uuid).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrProfileNotFound, uuid)
			}
			return fmt.Errorf("failed to get profile: %w", err)
		}
		if err := tx.Where("profile_id = ?", profile.ID).Delete(&CallEdgeRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete call edges: %w", err)
		}
		if err := tx.Where("profile_id = ?", profile.ID).Delete(&FunctionRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete functions: %w", err)
		}
		if err := tx.Delete(&profile).Error; err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		return nil
	})
}

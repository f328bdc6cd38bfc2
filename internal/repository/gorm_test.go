package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/callgrind-analysis/internal/parser/callgrind"
	"github.com/callgrind-analysis/internal/testutil"
	"github.com/callgrind-analysis/pkg/model"
)

func setupRepositories(t *testing.T) *Repositories {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"), 4)
	require.NoError(t, err)

	// A small batch size makes CreateInBatches split the sample profile.
	repos := NewRepositories(db, 2)
	require.NoError(t, repos.Migrate(context.Background()))
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

func parseSample(t *testing.T) *model.ProfileSummary {
	t.Helper()
	result, err := callgrind.NewParser(nil).Parse(context.Background(), testutil.Reader(testutil.SampleProfile))
	require.NoError(t, err)
	return result.Summary
}

func TestGormProfileRepository_SaveAndLoad(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	summary := parseSample(t)

	record, err := repos.Profiles.SaveProfile(ctx, ProfileMeta{UUID: "p-1", Source: "sample.callgrind", Diagnostics: 0}, summary)
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, "./app --fast", record.Command)
	assert.Equal(t, 4, record.Functions)

	var edgeCount int64
	require.NoError(t, repos.GormDB().Model(&CallEdgeRecord{}).Where("profile_id = ?", record.ID).Count(&edgeCount).Error)
	assert.Equal(t, int64(3), edgeCount)

	loaded, err := repos.Profiles.LoadSummary(ctx, "p-1")
	require.NoError(t, err)

	assert.Equal(t, summary.Events(), loaded.Events())
	assert.Equal(t, summary.Nodes(), loaded.Nodes())
	assert.Equal(t, summary.Totals(), loaded.Totals())
	assert.Equal(t, summary.DeclaredTotals(), loaded.DeclaredTotals())
	assert.Equal(t, summary.Command(), loaded.Command())
	assert.Equal(t, summary.Targets(), loaded.Targets())
}

func TestGormProfileRepository_TopFunctions(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	record, err := repos.Profiles.SaveProfile(ctx, ProfileMeta{UUID: "p-top"}, parseSample(t))
	require.NoError(t, err)

	functions, err := repos.Profiles.TopFunctions(ctx, record.ID, 3)
	require.NoError(t, err)
	require.Len(t, functions, 3)

	assert.Equal(t, "compute", functions[0].Name)
	assert.Equal(t, int64(1050), functions[0].PrimarySelf)
	assert.Equal(t, int64(1200), functions[0].PrimaryInclusive)
	// main and helper tie on self cost; node order breaks the tie.
	assert.Equal(t, "main", functions[1].Name)
	assert.Equal(t, int64(1370), functions[1].PrimaryInclusive)
	assert.Equal(t, "helper", functions[2].Name)
	assert.Equal(t, model.FunctionID{Object: testutil.SampleObject, File: testutil.SampleMainSrc, Name: "helper"}, functions[2].FunctionID())
}

func TestGormProfileRepository_NotFound(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	_, err := repos.Profiles.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = repos.Profiles.LoadSummary(ctx, "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	assert.ErrorIs(t, repos.Profiles.DeleteProfile(ctx, "missing"), ErrProfileNotFound)
}

func TestGormProfileRepository_DuplicateUUID(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	summary := parseSample(t)

	_, err := repos.Profiles.SaveProfile(ctx, ProfileMeta{UUID: "dup"}, summary)
	require.NoError(t, err)

	_, err = repos.Profiles.SaveProfile(ctx, ProfileMeta{UUID: "dup"}, summary)
	require.Error(t, err)

	var count int64
	require.NoError(t, repos.GormDB().Model(&FunctionRecord{}).Count(&count).Error)
	assert.Equal(t, int64(4), count, "failed save must roll back")
}

func TestGormProfileRepository_ListAndDelete(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	summary := parseSample(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := repos.Profiles.SaveProfile(ctx, ProfileMeta{UUID: id}, summary)
		require.NoError(t, err)
	}

	profiles, err := repos.Profiles.ListProfiles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "c", profiles[0].UUID)
	assert.Equal(t, "b", profiles[1].UUID)

	require.NoError(t, repos.Profiles.DeleteProfile(ctx, "b"))

	var functions, edges int64
	require.NoError(t, repos.GormDB().Model(&FunctionRecord{}).Count(&functions).Error)
	require.NoError(t, repos.GormDB().Model(&CallEdgeRecord{}).Count(&edges).Error)
	assert.Equal(t, int64(8), functions)
	assert.Equal(t, int64(6), edges)

	_, err = repos.Profiles.GetProfile(ctx, "b")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestGormProfileRepository_EmptySummary(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()

	empty := model.NewProfileSummary(model.ProfileHeader{}, []string{"Ir"}, nil, model.CostVector{0}, nil)
	_, err := repos.Profiles.SaveProfile(ctx, ProfileMeta{UUID: "empty"}, empty)
	require.NoError(t, err)

	loaded, err := repos.Profiles.LoadSummary(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())
	assert.Nil(t, loaded.DeclaredTotals())

	_, err = repos.Profiles.SaveProfile(ctx, ProfileMeta{UUID: "nil"}, nil)
	assert.Error(t, err)
}

func TestJSONField(t *testing.T) {
	var f JSONField
	require.NoError(t, f.Scan([]byte(`[1,2]`)))
	var v []int
	require.NoError(t, f.Decode(&v))
	assert.Equal(t, []int{1, 2}, v)

	require.NoError(t, f.Scan(`"x"`))
	assert.Equal(t, JSONField(`"x"`), f)

	require.NoError(t, f.Scan(nil))
	assert.Nil(t, f)
	value, err := f.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	assert.Error(t, f.Scan(42))
}

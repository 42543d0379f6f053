package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentbuilders.dev/internal/database"
	"agentbuilders.dev/internal/encoding"
)

type fakeStore struct {
	categories []*database.Category
	frameworks []*database.Framework
	snapshots  []*database.Snapshot
	resources  []*database.Resource
	nextID     int64
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) CountFrameworks(context.Context) (int64, error) {
	return int64(len(s.frameworks)), nil
}

func (s *fakeStore) GetCategoryByName(_ context.Context, name string) (*database.Category, error) {
	for _, c := range s.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertCategory(_ context.Context, name string, description *string) (int64, error) {
	c := &database.Category{ID: s.id(), Name: name, Description: description}
	s.categories = append(s.categories, c)
	return c.ID, nil
}

func (s *fakeStore) GetFrameworkByRepoPath(_ context.Context, repoPath string) (*database.Framework, error) {
	for _, f := range s.frameworks {
		if f.RepoPath == repoPath {
			return f, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertFramework(_ context.Context, args *database.InsertFrameworkArgs) (int64, error) {
	f := &database.Framework{
		ID:         s.id(),
		Name:       args.Name,
		RepoPath:   args.RepoPath,
		CategoryID: args.CategoryID,
		Tags:       args.Tags,
	}
	s.frameworks = append(s.frameworks, f)
	return f.ID, nil
}

func (s *fakeStore) UpsertDailySnapshot(_ context.Context, frameworkID, capturedAt int64, patch database.SnapshotPatch) (*database.Snapshot, error) {
	snap := &database.Snapshot{
		ID:          s.id(),
		FrameworkID: frameworkID,
		CapturedAt:  capturedAt,
		GitHubStars: patch.GitHubStars,
	}
	s.snapshots = append(s.snapshots, snap)
	return snap, nil
}

func (s *fakeStore) InsertResource(_ context.Context, args *database.InsertResourceArgs) (int64, error) {
	r := &database.Resource{ID: s.id(), FrameworkID: args.FrameworkID, Title: args.Title, URL: args.URL, Type: args.Type}
	s.resources = append(s.resources, r)
	return r.ID, nil
}

func newSeeder(store *fakeStore) *Seeder {
	return NewSeeder(store, WithClock(func() time.Time {
		return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	}))
}

func TestSeed(t *testing.T) {
	store := &fakeStore{}
	summary, err := newSeeder(store).Seed(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, summary.Skipped)
	assert.Equal(t, 4, summary.Categories)
	assert.Equal(t, 7, summary.Frameworks)
	assert.Equal(t, 3, summary.Resources)
	assert.Len(t, store.categories, 4)
	assert.Len(t, store.frameworks, 7)
	assert.Len(t, store.resources, 3)

	// Zapier AI has no fetched metrics, so it gets no snapshot.
	assert.Len(t, store.snapshots, 6)
}

func TestSeedSkipsPopulatedCatalog(t *testing.T) {
	store := &fakeStore{frameworks: []*database.Framework{{ID: 1, Name: "Existing"}}}
	summary, err := newSeeder(store).Seed(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Len(t, store.frameworks, 1)

	summary, err = newSeeder(store).Seed(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 7, summary.Frameworks)
}

func TestImportCatalog(t *testing.T) {
	store := &fakeStore{}
	catalog := &encoding.Catalog{
		Categories: []*encoding.Category{
			{
				Name: "Orchestration",
				Entries: []*encoding.Entry{
					{Name: "LangGraph", RepoPath: "langchain-ai/langgraph", Tags: []string{"python"}},
					{Name: "CrewAI", RepoPath: "crewAIInc/crewAI"},
				},
			},
		},
	}

	summary, err := newSeeder(store).ImportCatalog(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Categories)
	assert.Equal(t, 2, summary.Frameworks)

	// Re-running skips frameworks whose repo path already exists and does
	// not duplicate the category.
	summary, err = newSeeder(store).ImportCatalog(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Frameworks)
	assert.Len(t, store.categories, 1)
	assert.Len(t, store.frameworks, 2)
}

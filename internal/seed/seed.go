// Package seed populates an empty catalog with the launch categories,
// a starter framework set and sample resources, and imports curated
// markdown catalogs. Both operations are idempotent unless forced.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/utils/ptr"

	"agentbuilders.dev/internal/database"
	"agentbuilders.dev/internal/encoding"
)

// Store is the persistence surface seeding writes through.
type Store interface {
	CountFrameworks(ctx context.Context) (int64, error)
	GetCategoryByName(ctx context.Context, name string) (*database.Category, error)
	InsertCategory(ctx context.Context, name string, description *string) (int64, error)
	GetFrameworkByRepoPath(ctx context.Context, repoPath string) (*database.Framework, error)
	InsertFramework(ctx context.Context, args *database.InsertFrameworkArgs) (int64, error)
	UpsertDailySnapshot(ctx context.Context, frameworkID, capturedAt int64, patch database.SnapshotPatch) (*database.Snapshot, error)
	InsertResource(ctx context.Context, args *database.InsertResourceArgs) (int64, error)
}

type Seeder struct {
	store Store
	now   func() time.Time
}

type Option func(*Seeder)

// WithClock overrides the reference clock.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

func NewSeeder(store Store, opts ...Option) *Seeder {
	s := &Seeder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary reports what a seed or import run created.
type Summary struct {
	Categories int
	Frameworks int
	Resources  int
	Skipped    bool
}

var launchCategories = []struct {
	name        string
	description string
}{
	{"Full-code", "Frameworks that provide libraries and components for building AI agents through programming"},
	{"Low-code", "Frameworks that provide visual interfaces and abstractions but still require some coding"},
	{"No-code", "Platforms that allow building AI agents entirely through graphical interfaces"},
	{"Automation Platform", "End-to-end platforms focused on workflow automation with AI capabilities"},
}

type starterFramework struct {
	name          string
	description   string
	websiteURL    string
	repoURL       string
	repoPath      string
	category      string
	tags          []string
	stars         *int64
	pypiDownloads *int64
	npmDownloads  *int64
	rank          *int64
	commitAge     time.Duration
}

var starterFrameworks = []starterFramework{
	{
		name:          "LangChain",
		description:   "A framework for developing applications powered by language models through composability",
		websiteURL:    "https://langchain.com",
		repoURL:       "https://github.com/langchain-ai/langchain",
		repoPath:      "langchain-ai/langchain",
		category:      "Full-code",
		tags:          []string{"Python", "JavaScript", "LLM", "RAG"},
		stars:         ptr.To[int64](74500),
		pypiDownloads: ptr.To[int64](8500000),
		commitAge:     24 * time.Hour,
	},
	{
		name:          "AutoGen",
		description:   "A framework for building applications using conversable agents",
		websiteURL:    "https://microsoft.github.io/autogen/",
		repoURL:       "https://github.com/microsoft/autogen",
		repoPath:      "microsoft/autogen",
		category:      "Full-code",
		tags:          []string{"Python", "LLM", "Multi-agent"},
		stars:         ptr.To[int64](18900),
		pypiDownloads: ptr.To[int64](750000),
		commitAge:     48 * time.Hour,
	},
	{
		name:          "LlamaIndex",
		description:   "A data framework for building LLM applications",
		websiteURL:    "https://www.llamaindex.ai/",
		repoURL:       "https://github.com/run-llama/llama_index",
		repoPath:      "run-llama/llama_index",
		category:      "Full-code",
		tags:          []string{"Python", "LLM", "RAG", "Data"},
		stars:         ptr.To[int64](25700),
		pypiDownloads: ptr.To[int64](3500000),
		commitAge:     12 * time.Hour,
	},
	{
		name:          "Langflow",
		description:   "A UI for LangChain, designed to make it easy to prototype and build LLM applications",
		websiteURL:    "https://www.langflow.org/",
		repoURL:       "https://github.com/langflow-ai/langflow",
		repoPath:      "langflow-ai/langflow",
		category:      "Low-code",
		tags:          []string{"Python", "UI", "LangChain"},
		stars:         ptr.To[int64](13200),
		pypiDownloads: ptr.To[int64](120000),
		commitAge:     72 * time.Hour,
	},
	{
		name:         "FlowiseAI",
		description:  "Open source UI visual tool to build your customized LLM flow using LangchainJS",
		websiteURL:   "https://flowiseai.com/",
		repoURL:      "https://github.com/FlowiseAI/Flowise",
		repoPath:     "FlowiseAI/Flowise",
		category:     "Low-code",
		tags:         []string{"JavaScript", "UI", "LangChain"},
		stars:        ptr.To[int64](18500),
		npmDownloads: ptr.To[int64](250000),
		commitAge:    96 * time.Hour,
	},
	{
		name:        "Airbyte Octavia",
		description: "A no-code platform for creating AI assistants",
		websiteURL:  "https://octavia.airbyte.com/",
		repoURL:     "https://github.com/airbytehq/airbyte",
		repoPath:    "airbytehq/airbyte",
		category:    "No-code",
		tags:        []string{"UI", "LLM", "Assistant"},
		stars:       ptr.To[int64](12000),
		commitAge:   24 * time.Hour,
	},
	{
		name:        "Zapier AI",
		description: "Create AI-powered automations and workflows without code",
		websiteURL:  "https://zapier.com/ai",
		category:    "Automation Platform",
		tags:        []string{"Automation", "LLM", "Integration"},
		rank:        ptr.To[int64](1500),
	},
}

var starterResources = []struct {
	framework string
	title     string
	url       string
	typ       string
}{
	{"LangChain", "Getting Started with LangChain", "https://python.langchain.com/docs/get_started/introduction", "Documentation"},
	{"LangChain", "LangChain Cookbook", "https://github.com/langchain-ai/langchain/tree/master/cookbook", "Tutorial"},
	{"AutoGen", "AutoGen Quickstart", "https://microsoft.github.io/autogen/docs/Getting-Started", "Documentation"},
}

// Seed inserts the launch categories, the starter frameworks with an
// initial same-day snapshot each, and the sample resources. A non-empty
// catalog is left untouched unless force is set.
func (s *Seeder) Seed(ctx context.Context, force bool) (*Summary, error) {
	count, err := s.store.CountFrameworks(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 && !force {
		slog.InfoContext(ctx, "catalog already populated, skipping seed", "frameworks", count)
		return &Summary{Skipped: true}, nil
	}

	summary := &Summary{}
	categoryIDs := make(map[string]int64, len(launchCategories))
	for _, c := range launchCategories {
		id, err := s.ensureCategory(ctx, c.name, ptr.To(c.description))
		if err != nil {
			return nil, err
		}
		categoryIDs[c.name] = id
		summary.Categories++
	}

	now := s.now()
	frameworkIDs := make(map[string]int64, len(starterFrameworks))
	for _, f := range starterFrameworks {
		var lastCommit *int64
		if f.commitAge > 0 {
			lastCommit = ptr.To(now.Add(-f.commitAge).Unix())
		}
		id, err := s.store.InsertFramework(ctx, &database.InsertFrameworkArgs{
			Name:                  f.name,
			Description:           f.description,
			WebsiteURL:            f.websiteURL,
			RepoURL:               f.repoURL,
			RepoPath:              f.repoPath,
			CategoryID:            categoryIDs[f.category],
			Tags:                  f.tags,
			LastCommitUnix:        lastCommit,
			CurrentStars:          f.stars,
			CurrentPyPIDownloads:  f.pypiDownloads,
			CurrentNpmDownloads:   f.npmDownloads,
			CurrentSimilarwebRank: f.rank,
		})
		if err != nil {
			return nil, fmt.Errorf("seed framework %s: %w", f.name, err)
		}
		frameworkIDs[f.name] = id
		summary.Frameworks++

		if f.stars != nil || f.pypiDownloads != nil || f.npmDownloads != nil {
			_, err := s.store.UpsertDailySnapshot(ctx, id, now.Unix(), database.SnapshotPatch{
				GitHubStars:    f.stars,
				PyPIDownloads:  f.pypiDownloads,
				NpmDownloads:   f.npmDownloads,
				SimilarwebRank: f.rank,
				LastCommitUnix: lastCommit,
			})
			if err != nil {
				return nil, fmt.Errorf("seed snapshot for %s: %w", f.name, err)
			}
		}
	}

	for _, r := range starterResources {
		_, err := s.store.InsertResource(ctx, &database.InsertResourceArgs{
			FrameworkID: frameworkIDs[r.framework],
			Title:       r.title,
			URL:         r.url,
			Type:        r.typ,
		})
		if err != nil {
			return nil, fmt.Errorf("seed resource %s: %w", r.title, err)
		}
		summary.Resources++
	}

	slog.InfoContext(ctx, "catalog seeded",
		"categories", summary.Categories, "frameworks", summary.Frameworks, "resources", summary.Resources)
	return summary, nil
}

// ImportCatalog inserts the frameworks of a parsed markdown catalog,
// creating categories on demand. Frameworks whose repository path already
// exists are skipped so imports can be re-run.
func (s *Seeder) ImportCatalog(ctx context.Context, catalog *encoding.Catalog) (*Summary, error) {
	summary := &Summary{}
	for _, category := range catalog.Categories {
		categoryID, err := s.ensureCategory(ctx, category.Name, nil)
		if err != nil {
			return nil, err
		}
		summary.Categories++
		for _, entry := range category.Entries {
			if entry.RepoPath != "" {
				existing, err := s.store.GetFrameworkByRepoPath(ctx, entry.RepoPath)
				if err != nil {
					return nil, err
				}
				if existing != nil {
					slog.DebugContext(ctx, "framework already imported, skipping",
						"name", entry.Name, "repo_path", entry.RepoPath)
					continue
				}
			}
			_, err := s.store.InsertFramework(ctx, &database.InsertFrameworkArgs{
				Name:        entry.Name,
				Description: entry.Description,
				WebsiteURL:  entry.WebsiteURL,
				RepoURL:     entry.RepoURL,
				RepoPath:    entry.RepoPath,
				CategoryID:  categoryID,
				Tags:        entry.Tags,
			})
			if err != nil {
				return nil, fmt.Errorf("import framework %s: %w", entry.Name, err)
			}
			summary.Frameworks++
		}
	}
	slog.InfoContext(ctx, "catalog imported",
		"categories", summary.Categories, "frameworks", summary.Frameworks)
	return summary, nil
}

func (s *Seeder) ensureCategory(ctx context.Context, name string, description *string) (int64, error) {
	existing, err := s.store.GetCategoryByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	id, err := s.store.InsertCategory(ctx, name, description)
	if err != nil {
		return 0, fmt.Errorf("create category %s: %w", name, err)
	}
	return id, nil
}

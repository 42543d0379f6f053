package catalog

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"agentbuilders.dev/internal/database"
)

const DefaultRelatedCount = 3

// ResourceListOptions scope the resource listing. The framework filter is
// index-backed; the type filter runs in memory.
type ResourceListOptions struct {
	FrameworkID *int64
	Type        string
	Limit       int
	Skip        int
}

// ResourceItem is one listed resource with its owning framework's name
// joined in for display.
type ResourceItem struct {
	Resource      *database.Resource
	FrameworkName string
}

// ResourcePage is one page of resources.
type ResourcePage struct {
	Resources []*ResourceItem
	Total     int
	HasMore   bool
}

// ListResources returns resources, optionally scoped to one framework and
// type, paginated with the same offset/limit semantics as the framework
// listing.
func (s *Service) ListResources(ctx context.Context, opts ResourceListOptions) (*ResourcePage, error) {
	if opts.Limit < 0 || opts.Skip < 0 {
		return nil, &ValidationError{Field: "pagination", Reason: "limit and skip must be non-negative"}
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Limit > MaxLimit {
		opts.Limit = MaxLimit
	}
	all, err := s.store.ListResources(ctx, opts.FrameworkID)
	if err != nil {
		return nil, err
	}
	if opts.Type != "" {
		filtered := all[:0]
		for _, r := range all {
			if r.Type == opts.Type {
				filtered = append(filtered, r)
			}
		}
		all = filtered
	}
	total := len(all)
	var page []*database.Resource
	if opts.Skip < total {
		end := opts.Skip + opts.Limit
		if end > total {
			end = total
		}
		page = all[opts.Skip:end]
	}
	items := make([]*ResourceItem, 0, len(page))
	names := map[int64]string{}
	for _, r := range page {
		name, ok := names[r.FrameworkID]
		if !ok {
			f, err := s.store.GetFramework(ctx, r.FrameworkID)
			if err != nil {
				return nil, err
			}
			if f != nil {
				name = f.Name
			}
			names[r.FrameworkID] = name
		}
		items = append(items, &ResourceItem{Resource: r, FrameworkName: name})
	}
	return &ResourcePage{
		Resources: items,
		Total:     total,
		HasMore:   opts.Skip+opts.Limit < total,
	}, nil
}

func (s *Service) GetResource(ctx context.Context, id int64) (*database.Resource, error) {
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &NotFoundError{Kind: "resource", ID: id}
	}
	return r, nil
}

// RelatedResources suggests up to count resources related to one resource.
// Resources of the same framework come first; when those do not fill the
// quota, resources of the same type from other frameworks top it up. The
// result never repeats a resource and never includes the subject itself.
func (s *Service) RelatedResources(ctx context.Context, resourceID int64, count int) ([]*database.Resource, error) {
	tracer := otel.Tracer("agentbuilders/catalog")
	ctx, span := tracer.Start(ctx, "Catalog.RelatedResources")
	span.SetAttributes(attribute.Int64("resource_id", resourceID))
	defer span.End()

	if count <= 0 {
		count = DefaultRelatedCount
	}
	subject, err := s.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{subject.ID: true}
	var related []*database.Resource

	siblings, err := s.store.ListResources(ctx, &subject.FrameworkID)
	if err != nil {
		return nil, err
	}
	for _, r := range siblings {
		if len(related) >= count {
			return related, nil
		}
		if !seen[r.ID] {
			seen[r.ID] = true
			related = append(related, r)
		}
	}

	sameType, err := s.store.ListResourcesByType(ctx, subject.Type, subject.ID, subject.FrameworkID, count)
	if err != nil {
		return nil, err
	}
	for _, r := range sameType {
		if len(related) >= count {
			break
		}
		if !seen[r.ID] {
			seen[r.ID] = true
			related = append(related, r)
		}
	}
	return related, nil
}

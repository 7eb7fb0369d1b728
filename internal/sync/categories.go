package sync

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/user/ytcatalog-go/internal/model"
	"github.com/user/ytcatalog-go/internal/store"
	"github.com/user/ytcatalog-go/internal/youtube"
)

// ResolveCategories returns the category rows for the given ids, lazily
// creating any that are not persisted yet from one batched API lookup.
// Creation is idempotent: a concurrent resolver racing on the same id cannot
// produce a duplicate row. An empty input returns an empty result without
// touching the API.
func (s *Syncer) ResolveCategories(ctx context.Context, st store.Store, categoryIDs []int) ([]*model.Category, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	existing, err := st.CategoriesByIDs(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}

	have := make(map[int]struct{}, len(existing))
	for _, c := range existing {
		have[c.ID] = struct{}{}
	}

	missing := make([]int, 0)
	for _, id := range categoryIDs {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return existing, nil
	}

	payloads, err := s.client.VideoCategories(ctx, missing)
	if err != nil {
		return nil, err
	}

	categories := existing
	for _, payload := range payloads {
		id, err := strconv.Atoi(payload.ID)
		if err != nil {
			return nil, &youtube.PayloadError{Field: "videoCategories.id", Reason: payload.ID}
		}

		category := &model.Category{ID: id, Name: payload.Snippet.Title}
		if err := st.EnsureCategory(ctx, category); err != nil {
			return nil, err
		}
		categories = append(categories, category)

		log.Debug().Int("id", id).Str("name", category.Name).Msg("Created category")
	}

	return categories, nil
}

// collectCategoryIDs gathers the distinct category ids referenced by a batch
// of video payloads.
func collectCategoryIDs(payloads []youtube.VideoPayload) ([]int, error) {
	seen := make(map[int]struct{}, len(payloads))
	ids := make([]int, 0, len(payloads))
	for i := range payloads {
		raw := payloads[i].Snippet.CategoryID
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &youtube.PayloadError{Field: "snippet.categoryId", Reason: raw}
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

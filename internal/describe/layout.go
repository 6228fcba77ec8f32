package describe

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// BuildLayoutDetail assembles a display-ready layout from the cached sections
// and items. Sections keep cache order and each section lists its items in
// insertion order. Returns ErrNotFound when the layout has no cached sections.
func (c *Cache) BuildLayoutDetail(ctx context.Context, layoutID string) (*types.LayoutDetail, error) {
	sections, err := c.store.GetRecords(ctx, types.LayoutSectionsTable,
		types.Where(types.Eq("layoutId", layoutID)))
	if err != nil && !errors.Is(err, types.ErrTableNotFound) {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("layout %s: %w", layoutID, types.ErrNotFound)
	}

	sectionIDs := make([]any, len(sections))
	for i, s := range sections {
		sectionIDs[i] = s.Text("sectionId")
	}

	items, err := c.store.GetRecords(ctx, types.LayoutItemsTable,
		types.Where(types.In("sectionId", sectionIDs...)))
	if err != nil && !errors.Is(err, types.ErrTableNotFound) {
		return nil, err
	}

	grouped := make(map[string][]types.FieldDescriptor, len(sections))
	for _, item := range items {
		id := item.Text("sectionId")
		grouped[id] = append(grouped[id], types.FieldDescriptor{
			Name:     item.Text("fieldName"),
			Label:    item.Text("label"),
			Type:     item.Text("type"),
			Required: item.Bool("required"),
		})
	}

	detail := &types.LayoutDetail{
		ID:       layoutID,
		Sections: make([]types.SectionDetail, 0, len(sections)),
	}
	for _, s := range sections {
		id := s.Text("sectionId")
		data := grouped[id]
		if data == nil {
			data = []types.FieldDescriptor{}
		}
		columns, _ := s.Int("columns")
		detail.Sections = append(detail.Sections, types.SectionDetail{
			ID:      id,
			Title:   s.Text("heading"),
			Columns: columns,
			Data:    data,
		})
	}
	return detail, nil
}

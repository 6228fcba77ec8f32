package survey

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mesh-intelligence/fieldsurvey/internal/jsonl"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// Export writes every survey to path as JSON Lines, replacing the file
// atomically. Returns the number of surveys written.
func (s *Service) Export(ctx context.Context, path string) (int, error) {
	rows, err := s.List(ctx, "")
	if err != nil {
		return 0, err
	}
	lines := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encode survey: %w", err)
		}
		lines = append(lines, data)
	}
	if err := jsonl.Write(path, lines); err != nil {
		return 0, err
	}
	s.log.Infow("exported surveys", "path", path, "count", len(lines))
	return len(lines), nil
}

// Import appends the surveys in a JSON Lines file to the local cache. Lines
// that are not JSON objects are skipped. Imported rows get new local ids;
// their other fields, sync status included, are kept.
func (s *Service) Import(ctx context.Context, path string) (int, error) {
	lines, err := jsonl.Read(path)
	if err != nil {
		return 0, err
	}

	var rows []types.Record
	for i, line := range lines {
		var r types.Record
		if err := json.Unmarshal(line, &r); err != nil {
			s.log.Warnw("skipping survey line", "line", i+1, "error", err)
			continue
		}
		r.Delete(types.LocalIDField)
		if r.Len() == 0 {
			continue
		}
		rows = append(rows, r)
	}

	if _, err := s.store.SaveRecords(ctx, types.SurveysTable, rows, ""); err != nil {
		return 0, err
	}
	s.log.Infow("imported surveys", "path", path, "count", len(rows))
	return len(rows), nil
}

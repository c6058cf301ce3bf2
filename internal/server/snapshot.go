package server

import (
	"context"
)

// buildSnapshot assembles the authoritative view the UI boundary
// renders: cells with both counters, round, story, status. This is the
// "refresh from state" path viewers use on (re)connect, independent of
// live messages.
func (s *Server) buildSnapshot(ctx context.Context, gameID string) (map[string]any, error) {
	cells, err := s.topUpCells(ctx, gameID)
	if err != nil {
		return nil, err
	}
	story, err := s.ledger.Story(ctx, gameID)
	if err != nil {
		return nil, err
	}
	round, err := s.ledger.Round(ctx, gameID)
	if err != nil {
		return nil, err
	}
	status, err := s.ledger.Status(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []Cell{}
	}
	return map[string]any{
		"game_id": gameID,
		"cells":   cells,
		"round":   round,
		"story":   story,
		"status":  status,
	}, nil
}

// topUpCells replenishes a board that has run low from the reserve
// word pool, skipping words already active or already in the story.
func (s *Server) topUpCells(ctx context.Context, gameID string) ([]Cell, error) {
	cells, err := s.ledger.ActiveCells(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(cells) >= s.cfg.MinActiveCells {
		return cells, nil
	}
	reserve, err := s.ledger.ReserveWords(ctx, gameID)
	if err != nil || len(reserve) == 0 {
		return cells, err
	}
	story, err := s.ledger.Story(ctx, gameID)
	if err != nil {
		return cells, err
	}

	active := make(map[string]struct{}, len(cells))
	for _, cell := range cells {
		active[cell.Word] = struct{}{}
	}
	need := s.cfg.MinActiveCells - len(cells)
	added := make([]string, 0, need)
	remaining := make([]string, 0, len(reserve))
	for _, word := range filterAgainstStory(reserve, story) {
		if _, taken := active[word]; taken {
			continue
		}
		if len(added) < need {
			added = append(added, word)
			continue
		}
		remaining = append(remaining, word)
	}
	if len(added) == 0 {
		return cells, nil
	}
	if err := s.ledger.AddCells(ctx, gameID, added); err != nil {
		return cells, err
	}
	if err := s.ledger.SetReserveWords(ctx, gameID, remaining); err != nil {
		return cells, err
	}
	for _, word := range added {
		cells = append(cells, Cell{Word: word})
	}
	return cells, nil
}

package mlb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/go-querystring/query"

	"mlbstreamer/cache"
	"mlbstreamer/offset"
)

type airingsParams struct {
	Variables string `url:"variables"`
}

const (
	milestoneBroadcastStart = "BROADCAST_START"
	milestoneInningStart    = "INNING_START"
)

// MediaTimestamps builds the offset map for one feed from the provider's
// airing milestones. S falls back to the scheduled first pitch when the
// airing has no broadcast start time.
func (s *Session) MediaTimestamps(ctx context.Context, gameID int, mediaID string) (*offset.TimestampMap, error) {
	vars, err := json.Marshal(map[string][]string{"partnerProgramIds": {strconv.Itoa(gameID)}})
	if err != nil {
		return nil, err
	}
	v, err := query.Values(airingsParams{Variables: string(vars)})
	if err != nil {
		return nil, err
	}
	body, err := s.fetch(ctx, s.endpoints.Airings+"?"+v.Encode(), cache.Short, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch airings for game %d: %w", gameID, err)
	}

	var resp airingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode airings for game %d: %w", gameID, err)
	}

	var found *airing
	for i := range resp.Data.Airings {
		if resp.Data.Airings[i].MediaID == mediaID {
			found = &resp.Data.Airings[i]
			break
		}
	}
	if found == nil {
		return nil, &StreamUnavailableError{MediaID: mediaID, Reason: "no airing for media"}
	}

	ts := buildTimestamps(found)
	if ts.Start.IsZero() {
		game, err := s.ResolveGame(ctx, Specifier{GameID: gameID})
		if err != nil {
			return nil, err
		}
		ts.Start = game.Date
	}
	return ts, nil
}

func buildTimestamps(a *airing) *offset.TimestampMap {
	ts := &offset.TimestampMap{Offsets: map[string]int{offset.LabelStartOffset: 0}}
	for _, m := range a.Milestones {
		switch m.MilestoneType {
		case milestoneBroadcastStart:
			for _, t := range m.MilestoneTime {
				switch t.Type {
				case "absolute":
					ts.Start = t.StartDatetime
				case "offset":
					ts.Offsets[offset.LabelStartOffset] = int(t.Start)
				}
			}
		case milestoneInningStart:
			inning, ok := m.keyword("inning")
			if !ok {
				continue
			}
			half := "B"
			if top, _ := m.keyword("top"); top == "true" {
				half = "T"
			}
			for _, t := range m.MilestoneTime {
				if t.Type == "offset" {
					ts.Offsets[half+inning] = int(t.Start)
				}
			}
		}
	}
	return ts
}

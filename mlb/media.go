package mlb

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	log "github.com/sirupsen/logrus"

	"mlbstreamer/cache"
	"mlbstreamer/internal/logger"
)

// DefaultMediaTitle is the EPG group carrying the main video broadcasts.
const DefaultMediaTitle = "MLBTV"

// MediaQuery narrows the feeds considered for a game. Empty fields do not
// filter.
type MediaQuery struct {
	// Title selects EPG groups by title. Empty means DefaultMediaTitle; "*"
	// considers every group.
	Title           string
	PreferredStream string
	CallLetters     string
	MediaID         string
}

func (q MediaQuery) title() string {
	if q.Title == "" {
		return DefaultMediaTitle
	}
	return q.Title
}

func (q MediaQuery) matches(m MediaItem) bool {
	if q.PreferredStream != "" && !strings.EqualFold(m.MediaFeedType, q.PreferredStream) {
		return false
	}
	if q.CallLetters != "" && !strings.EqualFold(m.CallLetters, q.CallLetters) {
		return false
	}
	if q.MediaID != "" && m.MediaID != q.MediaID {
		return false
	}
	return true
}

// PreferredStream picks the feed side for a game when none was requested:
// with a team in the specifier, "home" if that team is home and "away"
// otherwise; without one, "home".
func PreferredStream(spec Specifier, game *Game) string {
	if spec.Team != "" && game != nil && !game.Home().Matches(spec.Team) {
		return "away"
	}
	return "home"
}

// Content fetches the game's media listing.
func (s *Session) Content(ctx context.Context, gameID int) (*Content, error) {
	body, err := s.fetch(ctx, s.contentURL(gameID), cache.Short, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch content for game %d: %w", gameID, err)
	}
	var c Content
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("decode content for game %d: %w", gameID, err)
	}
	return &c, nil
}

// groups returns the EPG groups the query considers, in listing order.
func (c *Content) groups(q MediaQuery) []EPG {
	var out []EPG
	for _, g := range c.Media.EPG {
		if q.title() == "*" || g.Title == q.title() {
			out = append(out, g)
		}
	}
	return out
}

// Matching yields every feed in the considered groups that satisfies all of
// the query's filters. The sequence can be ranged over repeatedly.
func (c *Content) Matching(q MediaQuery) iter.Seq[MediaItem] {
	groups := c.groups(q)
	return func(yield func(MediaItem) bool) {
		for _, g := range groups {
			for _, item := range g.Items {
				if q.matches(item) && !yield(item) {
					return
				}
			}
		}
	}
}

// Fallback returns the first feed of the first considered group.
func (c *Content) Fallback(q MediaQuery) (MediaItem, bool) {
	groups := c.groups(q)
	if len(groups) == 0 || len(groups[0].Items) == 0 {
		return MediaItem{}, false
	}
	return groups[0].Items[0], true
}

// MediaItems fetches the game's content and returns the lazy sequence of
// feeds matching q.
func (s *Session) MediaItems(ctx context.Context, gameID int, q MediaQuery) (iter.Seq[MediaItem], error) {
	c, err := s.Content(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return c.Matching(q), nil
}

// SelectMedia returns the first feed matching q. When none matches, the
// first feed of the first considered group is used instead.
func (s *Session) SelectMedia(ctx context.Context, gameID int, q MediaQuery) (MediaItem, error) {
	c, err := s.Content(ctx, gameID)
	if err != nil {
		return MediaItem{}, err
	}

	entry := logger.GetLogger().WithField("game_id", gameID)
	for item := range c.Matching(q) {
		entry.WithFields(log.Fields{"media_id": item.MediaID, "station": item.CallLetters}).Debug("selected media")
		return item, nil
	}

	if item, ok := c.Fallback(q); ok {
		entry.WithField("media_id", item.MediaID).Debug("no feed matched, using first feed")
		return item, nil
	}
	return MediaItem{}, &NoMatchingMediaError{GameID: gameID, Query: q}
}

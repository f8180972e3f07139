package mlb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	log "github.com/sirupsen/logrus"

	"mlbstreamer/cache"
	"mlbstreamer/internal/logger"
)

const (
	sportMLB   = 1
	dateLayout = "2006-01-02"
)

// Specifier names a game either by id or by date, team and game number.
type Specifier struct {
	GameID     int
	Date       time.Time
	Team       string
	GameNumber int
}

func (s Specifier) String() string {
	if s.GameID != 0 {
		return strconv.Itoa(s.GameID)
	}
	n := s.GameNumber
	if n == 0 {
		n = 1
	}
	return fmt.Sprintf("%s/%s/%d", s.Date.Format(dateLayout), s.Team, n)
}

// ParseSpecifier accepts a numeric game id or DATE/TEAM[/N].
func ParseSpecifier(raw string) (Specifier, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.Atoi(raw); err == nil {
		if id <= 0 {
			return Specifier{}, fmt.Errorf("invalid game id %q", raw)
		}
		return Specifier{GameID: id}, nil
	}

	parts := strings.Split(raw, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Specifier{}, fmt.Errorf("invalid game %q: want GAME_ID or DATE/TEAM[/N]", raw)
	}
	date, err := time.Parse(dateLayout, parts[0])
	if err != nil {
		return Specifier{}, fmt.Errorf("invalid game date %q: %w", parts[0], err)
	}
	team := strings.ToLower(strings.TrimSpace(parts[1]))
	if team == "" {
		return Specifier{}, fmt.Errorf("invalid game %q: missing team", raw)
	}
	n := 1
	if len(parts) == 3 {
		if n, err = strconv.Atoi(parts[2]); err != nil || n < 1 {
			return Specifier{}, fmt.Errorf("invalid game number %q", parts[2])
		}
	}
	return Specifier{Date: date, Team: team, GameNumber: n}, nil
}

type teamsParams struct {
	SportID int `url:"sportId"`
}

type scheduleParams struct {
	SportID   int    `url:"sportId,omitempty"`
	GamePK    int    `url:"gamePk,omitempty"`
	StartDate string `url:"startDate,omitempty"`
	EndDate   string `url:"endDate,omitempty"`
	TeamID    int    `url:"teamId,omitempty"`
	GameType  string `url:"gameType,omitempty"`
	Hydrate   string `url:"hydrate,omitempty"`
}

// ScheduleQuery selects games for Schedule.
type ScheduleQuery struct {
	Start    time.Time
	End      time.Time
	Team     string
	GameType string
}

// TeamID maps a team code (file code or abbreviation) to its numeric id.
func (s *Session) TeamID(ctx context.Context, code string) (int, error) {
	v, err := query.Values(teamsParams{SportID: sportMLB})
	if err != nil {
		return 0, err
	}
	body, err := s.fetch(ctx, s.endpoints.Teams+"?"+v.Encode(), cache.Long, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch teams: %w", err)
	}

	var resp teamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode teams: %w", err)
	}
	for _, t := range resp.Teams {
		if t.Matches(code) {
			return t.ID, nil
		}
	}
	return 0, &GameNotFoundError{Specifier: Specifier{Team: code}, Reason: fmt.Sprintf("unknown team %q", code)}
}

func (s *Session) schedule(ctx context.Context, p scheduleParams) (*scheduleResponse, error) {
	v, err := query.Values(p)
	if err != nil {
		return nil, err
	}
	body, err := s.fetch(ctx, s.endpoints.Schedule+"?"+v.Encode(), cache.Short, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	var resp scheduleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &resp, nil
}

// ResolveGame finds the game a specifier names. For DATE/TEAM/N the last
// date bucket is used, since postponed games are listed under a later date.
func (s *Session) ResolveGame(ctx context.Context, spec Specifier) (*Game, error) {
	entry := logger.GetLogger().WithField("game", spec.String())

	if spec.GameID != 0 {
		resp, err := s.schedule(ctx, scheduleParams{GamePK: spec.GameID, Hydrate: "team"})
		if err != nil {
			return nil, err
		}
		for _, d := range resp.Dates {
			for i := range d.Games {
				if d.Games[i].ID == spec.GameID {
					return &d.Games[i], nil
				}
			}
		}
		return nil, &GameNotFoundError{Specifier: spec}
	}

	teamID, err := s.TeamID(ctx, spec.Team)
	if err != nil {
		var nf *GameNotFoundError
		if errors.As(err, &nf) {
			nf.Specifier = spec
		}
		return nil, err
	}

	day := spec.Date.Format(dateLayout)
	resp, err := s.schedule(ctx, scheduleParams{
		SportID:   sportMLB,
		StartDate: day,
		EndDate:   day,
		TeamID:    teamID,
		Hydrate:   "team",
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Dates) == 0 {
		return nil, &GameNotFoundError{Specifier: spec, Reason: "no games scheduled"}
	}

	games := resp.Dates[len(resp.Dates)-1].Games
	n := spec.GameNumber
	if n == 0 {
		n = 1
	}
	if n < 1 || n > len(games) {
		return nil, &GameNotFoundError{
			Specifier: spec,
			Reason:    fmt.Sprintf("only %d game(s) that day", len(games)),
		}
	}

	game := &games[n-1]
	entry.WithFields(log.Fields{"game_id": game.ID, "team_id": teamID}).Debug("resolved game")
	return game, nil
}

// Schedule lists games in a date range, optionally for one team, with line
// scores for games in progress or final.
func (s *Session) Schedule(ctx context.Context, q ScheduleQuery) ([]Game, error) {
	if q.End.IsZero() {
		q.End = q.Start
	}
	p := scheduleParams{
		SportID:   sportMLB,
		StartDate: q.Start.Format(dateLayout),
		EndDate:   q.End.Format(dateLayout),
		GameType:  q.GameType,
		Hydrate:   "linescore,team",
	}
	if q.Team != "" {
		id, err := s.TeamID(ctx, q.Team)
		if err != nil {
			return nil, err
		}
		p.TeamID = id
	}

	resp, err := s.schedule(ctx, p)
	if err != nil {
		return nil, err
	}
	var games []Game
	for _, d := range resp.Dates {
		games = append(games, d.Games...)
	}
	return games, nil
}

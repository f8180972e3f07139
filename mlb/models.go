package mlb

import (
	"fmt"
	"strings"
	"time"
)

// Team is one club as reported by the stats API.
type Team struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	FileCode     string `json:"fileCode"`
}

// Matches reports whether code is the team's file code or abbreviation.
func (t Team) Matches(code string) bool {
	return code != "" && (strings.EqualFold(t.FileCode, code) || strings.EqualFold(t.Abbreviation, code))
}

// Code is the short code used in listings and file names.
func (t Team) Code() string {
	if t.FileCode != "" {
		return t.FileCode
	}
	return strings.ToLower(t.Abbreviation)
}

type gameTeam struct {
	Team         Team `json:"team"`
	Score        *int `json:"score"`
	LeagueRecord struct {
		Wins   int `json:"wins"`
		Losses int `json:"losses"`
	} `json:"leagueRecord"`
}

// GameStatus is the schedule's view of a game's progress.
type GameStatus struct {
	AbstractGameState string `json:"abstractGameState"`
	DetailedState     string `json:"detailedState"`
}

// Linescore is the subset of the hydrated line score shown in listings.
type Linescore struct {
	CurrentInning int    `json:"currentInning"`
	InningState   string `json:"inningState"`
	Teams         struct {
		Away struct {
			Runs int `json:"runs"`
		} `json:"away"`
		Home struct {
			Runs int `json:"runs"`
		} `json:"home"`
	} `json:"teams"`
}

// Game is a resolved schedule entry.
type Game struct {
	ID       int        `json:"gamePk"`
	Date     time.Time  `json:"gameDate"`
	GameType string     `json:"gameType"`
	Status   GameStatus `json:"status"`
	Teams    struct {
		Away gameTeam `json:"away"`
		Home gameTeam `json:"home"`
	} `json:"teams"`
	Linescore *Linescore `json:"linescore,omitempty"`
}

// Away returns the visiting team.
func (g *Game) Away() Team { return g.Teams.Away.Team }

// Home returns the home team.
func (g *Game) Home() Team { return g.Teams.Home.Team }

// Score renders "away-home" runs, or "" before the game starts.
func (g *Game) Score() string {
	if g.Linescore == nil || g.Status.AbstractGameState == "Preview" {
		return ""
	}
	return fmt.Sprintf("%d-%d", g.Linescore.Teams.Away.Runs, g.Linescore.Teams.Home.Runs)
}

type scheduleResponse struct {
	Dates []struct {
		Date  string `json:"date"`
		Games []Game `json:"games"`
	} `json:"dates"`
}

type teamsResponse struct {
	Teams []Team `json:"teams"`
}

// MediaStateLive marks a feed that is on the air now.
const MediaStateLive = "MEDIA_ON"

// MediaItem is one broadcast feed for a game.
type MediaItem struct {
	MediaID       string `json:"mediaId"`
	MediaState    string `json:"mediaState"`
	CallLetters   string `json:"callLetters"`
	MediaFeedType string `json:"mediaFeedType"`
}

// Live reports whether the feed is currently broadcasting.
func (m MediaItem) Live() bool { return m.MediaState == MediaStateLive }

// EPG is one titled group of feeds.
type EPG struct {
	Title string      `json:"title"`
	Items []MediaItem `json:"items"`
}

// Content is a game's media listing.
type Content struct {
	Media struct {
		EPG []EPG `json:"epg"`
	} `json:"media"`
}

// Stream is a resolved playable stream.
type Stream struct {
	URL string
	Raw []byte
}

type streamResponse struct {
	Stream *struct {
		Complete string `json:"complete"`
	} `json:"stream"`
	Errors []any `json:"errors"`
}

type airingsResponse struct {
	Data struct {
		Airings []airing `json:"Airings"`
	} `json:"data"`
}

type airing struct {
	MediaID    string      `json:"mediaId"`
	Milestones []milestone `json:"milestones"`
}

type milestone struct {
	MilestoneType string `json:"milestoneType"`
	MilestoneTime []struct {
		Type          string    `json:"type"`
		StartDatetime time.Time `json:"startDatetime"`
		Start         float64   `json:"start"`
	} `json:"milestoneTime"`
	Keywords []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"keywords"`
}

func (m milestone) keyword(typ string) (string, bool) {
	for _, k := range m.Keywords {
		if k.Type == typ {
			return k.Value, true
		}
	}
	return "", false
}

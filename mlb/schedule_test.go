package mlb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlbstreamer/mlb/mlbtest"
)

func TestParseSpecifier(t *testing.T) {
	date := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want Specifier
	}{
		{"745001", Specifier{GameID: 745001}},
		{"2024-04-10/nyy", Specifier{Date: date, Team: "nyy", GameNumber: 1}},
		{"2024-04-10/NYY/2", Specifier{Date: date, Team: "nyy", GameNumber: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpecifier(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "0", "nyy", "2024-13-01/nyy", "2024-04-10/", "2024-04-10/nyy/0", "2024-04-10/nyy/x"} {
		_, err := ParseSpecifier(bad)
		assert.Error(t, err, bad)
	}
}

func TestSpecifierString(t *testing.T) {
	assert.Equal(t, "745001", Specifier{GameID: 745001}.String())
	spec := Specifier{Date: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), Team: "nyy"}
	assert.Equal(t, "2024-04-10/nyy/1", spec.String())
}

func doubleheader(p *mlbtest.Provider) {
	p.Schedules["teamId=147&date=2024-04-10"] = mlbtest.Schedule(
		[]string{"2024-04-10",
			mlbtest.Game(745001, "2024-04-10T17:05:00Z", "mia", "nyy"),
			mlbtest.Game(745002, "2024-04-10T23:05:00Z", "mia", "nyy"),
		},
	)
}

func TestTeamID(t *testing.T) {
	p := newProvider(t)
	s, _ := newTestSession(t, p)
	ctx := context.Background()

	id, err := s.TeamID(ctx, "nyy")
	require.NoError(t, err)
	assert.Equal(t, 147, id)

	id, err = s.TeamID(ctx, "BOS")
	require.NoError(t, err)
	assert.Equal(t, 111, id)

	_, err = s.TeamID(ctx, "xyz")
	var nf *GameNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestResolveGame_DoubleheaderIndexing(t *testing.T) {
	p := newProvider(t)
	doubleheader(p)
	s, _ := newTestSession(t, p)
	ctx := context.Background()
	date := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	g1, err := s.ResolveGame(ctx, Specifier{Date: date, Team: "nyy", GameNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 745001, g1.ID)

	g2, err := s.ResolveGame(ctx, Specifier{Date: date, Team: "nyy", GameNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, 745002, g2.ID)
	assert.Equal(t, "nyy", g2.Home().Code())
	assert.Equal(t, "mia", g2.Away().Code())
}

func TestResolveGame_OutOfRange(t *testing.T) {
	p := newProvider(t)
	doubleheader(p)
	s, _ := newTestSession(t, p)

	spec := Specifier{Date: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), Team: "nyy", GameNumber: 3}
	_, err := s.ResolveGame(context.Background(), spec)
	var nf *GameNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, spec, nf.Specifier)
	assert.Contains(t, err.Error(), "2024-04-10/nyy/3")
}

func TestResolveGame_UsesLastDateBucket(t *testing.T) {
	p := newProvider(t)
	p.Schedules["teamId=147&date=2024-04-10"] = mlbtest.Schedule(
		[]string{"2024-04-10", mlbtest.Game(1, "2024-04-10T17:05:00Z", "bos", "nyy")},
		[]string{"2024-04-11", mlbtest.Game(2, "2024-04-11T17:05:00Z", "bos", "nyy")},
	)
	s, _ := newTestSession(t, p)

	g, err := s.ResolveGame(context.Background(), Specifier{
		Date: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), Team: "nyy", GameNumber: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, g.ID)
}

func TestResolveGame_NoGames(t *testing.T) {
	p := newProvider(t)
	s, _ := newTestSession(t, p)

	_, err := s.ResolveGame(context.Background(), Specifier{
		Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Team: "nyy", GameNumber: 1,
	})
	var nf *GameNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestResolveGame_ByID(t *testing.T) {
	p := newProvider(t)
	p.Schedules["gamePk=745001"] = mlbtest.Schedule(
		[]string{"2024-04-10", mlbtest.Game(745001, "2024-04-10T17:05:00Z", "mia", "nyy")},
	)
	s, _ := newTestSession(t, p)

	g, err := s.ResolveGame(context.Background(), Specifier{GameID: 745001})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 17, 5, 0, 0, time.UTC), g.Date.UTC())
	assert.Zero(t, p.Hits("/api/v1/teams"))

	_, err = s.ResolveGame(context.Background(), Specifier{GameID: 1})
	var nf *GameNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestResolveGame_TeamsServedFromCache(t *testing.T) {
	p := newProvider(t)
	doubleheader(p)
	s, clock := newTestSession(t, p, withCache)
	ctx := context.Background()
	spec := Specifier{Date: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), Team: "nyy", GameNumber: 1}

	_, err := s.ResolveGame(ctx, spec)
	require.NoError(t, err)
	_, err = s.ResolveGame(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Hits("/api/v1/teams"))
	assert.Equal(t, 1, p.Hits("/api/v1/schedule"))

	clock.Advance(2 * time.Minute)
	_, err = s.ResolveGame(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Hits("/api/v1/teams"), "teams use the long tier")
	assert.Equal(t, 2, p.Hits("/api/v1/schedule"), "schedule uses the short tier")
}

func TestSchedule_Listing(t *testing.T) {
	p := newProvider(t)
	p.Schedules["*"] = mlbtest.Schedule(
		[]string{"2024-04-10",
			mlbtest.Game(1, "2024-04-10T17:05:00Z", "bos", "nyy"),
			mlbtest.Game(2, "2024-04-10T23:05:00Z", "mia", "bos"),
		},
		[]string{"2024-04-11", mlbtest.Game(3, "2024-04-11T17:05:00Z", "nyy", "mia")},
	)
	s, _ := newTestSession(t, p)

	games, err := s.Schedule(context.Background(), ScheduleQuery{
		Start: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, "3-5", games[0].Score())
	assert.Equal(t, 3, games[2].ID)
}

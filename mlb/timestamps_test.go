package mlb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlbstreamer/mlb/mlbtest"
	"mlbstreamer/offset"
)

const airingsFixture = `{"data":{"Airings":[
 {"mediaId":"other","milestones":[]},
 {"mediaId":"m-home","milestones":[
  {"milestoneType":"BROADCAST_START","milestoneTime":[
    {"type":"offset","start":5},
    {"type":"absolute","startDatetime":"2024-04-10T17:00:00Z"}]},
  {"milestoneType":"INNING_START","milestoneTime":[{"type":"offset","start":95.6}],
   "keywords":[{"type":"inning","value":"1"},{"type":"top","value":"true"}]},
  {"milestoneType":"INNING_START","milestoneTime":[{"type":"offset","start":1200}],
   "keywords":[{"type":"inning","value":"1"},{"type":"top","value":"false"}]}
 ]}
]}}`

func TestMediaTimestamps(t *testing.T) {
	p := newProvider(t)
	p.Airings = airingsFixture
	s, _ := newTestSession(t, p)

	ts, err := s.MediaTimestamps(context.Background(), gameID, "m-home")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 17, 0, 0, 0, time.UTC), ts.Start.UTC())
	assert.Equal(t, map[string]int{"SO": 5, "T1": 95, "B1": 1200}, ts.Offsets)

	res, err := offset.Calculate(offset.Label("T1"), false, ts, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, res.Offset())
}

func TestMediaTimestamps_StartFallsBackToSchedule(t *testing.T) {
	p := newProvider(t)
	p.Airings = `{"data":{"Airings":[{"mediaId":"m-home","milestones":[]}]}}`
	p.Schedules["gamePk=745001"] = mlbtest.Schedule(
		[]string{"2024-04-10", mlbtest.Game(745001, "2024-04-10T17:05:00Z", "mia", "nyy")},
	)
	s, _ := newTestSession(t, p)

	ts, err := s.MediaTimestamps(context.Background(), gameID, "m-home")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 17, 5, 0, 0, time.UTC), ts.Start.UTC())
	assert.Equal(t, 0, ts.Offsets["SO"])
}

func TestMediaTimestamps_NoAiring(t *testing.T) {
	p := newProvider(t)
	p.Airings = airingsFixture
	s, _ := newTestSession(t, p)

	_, err := s.MediaTimestamps(context.Background(), gameID, "missing")
	var su *StreamUnavailableError
	assert.ErrorAs(t, err, &su)
}

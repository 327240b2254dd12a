package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deskDay = time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)

func TestEventAdd(t *testing.T) {
	testEnv(t)
	eventTitle, eventCategory, eventDesc, eventDate = "Tree Planting", "Parks", "Bring gloves", "2025-06-07"
	t.Cleanup(func() { eventTitle, eventCategory, eventDesc, eventDate = "", "", "", "" })

	require.NoError(t, eventAddRun())

	s := reload(t)
	evs := s.events.GetEventsByCategory("parks")
	require.Len(t, evs, 1)
	assert.Equal(t, "Tree Planting", evs[0].Title)
	assert.Equal(t, "2025-06-07", evs[0].Date.Format(dateLayout))

	eventDate = "June 7"
	assert.Error(t, eventAddRun())
}

func TestEventSeedUpcomingAndRecommend(t *testing.T) {
	testEnv(t)
	pinClock(t, deskDay)

	require.NoError(t, eventSeedRun())
	s := reload(t)
	assert.Equal(t, 6, s.events.Len())

	require.NoError(t, eventUpcomingRun())
	require.NoError(t, eventRecommendRun())
	assert.Contains(t, stdout(), "No recommendations yet")

	require.NoError(t, eventSearchRun("roads"))

	s = reload(t)
	assert.Equal(t, []string{"roads"}, s.events.RecentSearches(), "search history is saved")
	recs := s.events.GetRecommendedEvents(deskDay)
	require.NotEmpty(t, recs)
	assert.Equal(t, "Roads", recs[0].Category)

	require.NoError(t, eventRecommendRun())
	assert.Contains(t, stdout(), "Based on your interest in Roads")
}

func TestEventSearch_ByDate(t *testing.T) {
	testEnv(t)
	pinClock(t, deskDay)
	require.NoError(t, eventSeedRun())

	eventDate = deskDay.AddDate(0, 0, 1).Format(dateLayout)
	t.Cleanup(func() { eventDate = "" })
	require.NoError(t, eventSearchRun(""))
	assert.Contains(t, stdout(), "Community Clean-Up Drive")
	assert.Empty(t, reload(t).events.RecentSearches(), "date-only searches are not remembered")

	eventDate = "tomorrow"
	assert.Error(t, eventSearchRun(""))
}

func TestEventList(t *testing.T) {
	testEnv(t)
	pinClock(t, deskDay)

	require.NoError(t, eventListRun(""))
	assert.Contains(t, stdout(), "No events found.")

	require.NoError(t, eventSeedRun())
	require.NoError(t, eventListRun("Nope"))
	assert.Contains(t, stdout(), "Categories:")
	require.NoError(t, eventListRun("sanitation"))
}

func TestEventSeed_DryRun(t *testing.T) {
	testEnv(t)
	dryRun = true
	t.Cleanup(func() { dryRun = false })

	require.NoError(t, eventSeedRun())
	assert.Zero(t, reload(t).events.Len())
}

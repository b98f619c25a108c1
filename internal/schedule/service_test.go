package schedule

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raceday/raceday-go/internal/conf"
	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/errors"
	"github.com/raceday/raceday-go/internal/jolpica"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Ignore lumberjack logger goroutines
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
		// Ignore the database/sql connection pool opener
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

// fakeClient satisfies APIClient with canned responses.
type fakeClient struct {
	races []jolpica.Race
	err   error
	calls int
}

func (f *fakeClient) FetchSeason(_ context.Context, _ string) ([]jolpica.Race, error) {
	f.calls++
	return f.races, f.err
}

func (f *fakeClient) FetchCurrentSeason(_ context.Context) ([]jolpica.Race, error) {
	f.calls++
	return f.races, f.err
}

func (f *fakeClient) FetchNextRace(_ context.Context) (*jolpica.Race, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.races) == 0 {
		return nil, nil
	}
	return &f.races[0], nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Store.SQLite.Enabled = true
	settings.Store.SQLite.Path = filepath.Join(t.TempDir(), "schedule.db")
	settings.Schedule.Season = "2024"
	settings.Realtime.MinRefreshInterval = 5
	return settings
}

func newTestService(t *testing.T, client APIClient) (*Service, datastore.Interface) {
	t.Helper()

	settings := testSettings(t)
	ds := datastore.New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return NewService(settings, client, ds, nil), ds
}

func wireRaces() []jolpica.Race {
	return []jolpica.Race{
		{
			Season:   "2024",
			Round:    "1",
			RaceName: "Bahrain Grand Prix",
			Circuit: jolpica.Circuit{
				CircuitID:   "bahrain",
				CircuitName: "Bahrain International Circuit",
				Location:    jolpica.Location{Locality: "Sakhir", Country: "Bahrain"},
			},
			Date: "2024-03-02",
			Time: "15:00:00Z",
		},
		{
			Season:   "2024",
			Round:    "2",
			RaceName: "Saudi Arabian Grand Prix",
			Circuit: jolpica.Circuit{
				CircuitID:   "jeddah",
				CircuitName: "Jeddah Corniche Circuit",
				Location:    jolpica.Location{Locality: "Jeddah", Country: "Saudi Arabia"},
			},
			Date: "2024-03-09",
			Time: "17:00:00Z",
		},
	}
}

func TestFetchAndCacheRaces_PersistsAndPublishes(t *testing.T) {
	client := &fakeClient{races: wireRaces()}
	service, ds := newTestService(t, client)

	races, err := service.FetchAndCacheRaces(context.Background(), "2024")
	require.NoError(t, err)
	require.Len(t, races, 2)
	assert.Equal(t, "2024-1", races[0].ID)
	assert.False(t, service.LastSyncAt().IsZero())
	assert.NoError(t, service.LastError())

	// Rows landed in the store with circuits resolved
	stored, err := ds.GetRaces("2024")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].Circuit)
	assert.Equal(t, "Sakhir", stored[0].Circuit.Locality)

	// Successful sync stamps the preferences row
	prefs, err := ds.GetPreferences()
	require.NoError(t, err)
	require.NotNil(t, prefs.LastRefreshAt)
	assert.WithinDuration(t, time.Now(), *prefs.LastRefreshAt, 5*time.Second)
}

func TestFetchAndCacheRaces_NetworkFailureKeepsCache(t *testing.T) {
	client := &fakeClient{races: wireRaces()}
	service, _ := newTestService(t, client)

	_, err := service.FetchAndCacheRaces(context.Background(), "2024")
	require.NoError(t, err)

	client.err = errors.Newf("dial tcp: connection refused").
		Component("jolpica").
		Category(errors.CategoryNetwork).
		Build()

	_, err = service.FetchAndCacheRaces(context.Background(), "2024")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetworkUnavailable))
	assert.Error(t, service.LastError())

	// Cache is untouched by the failed refresh
	cached, err := service.GetCachedRaces("2024")
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestFetchAndCacheRaces_NonNetworkFailureIsSyncError(t *testing.T) {
	client := &fakeClient{
		err: errors.Newf("unexpected end of JSON input").
			Component("jolpica").
			Category(errors.CategoryDecoding).
			Build(),
	}
	service, _ := newTestService(t, client)

	_, err := service.FetchAndCacheRaces(context.Background(), "2024")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNetworkUnavailable))

	var syncErr *SyncError
	assert.True(t, errors.As(err, &syncErr))
}

func TestFetchAndCacheRaces_TimeoutIsNetworkUnavailable(t *testing.T) {
	client := &fakeClient{
		err: errors.Newf("context deadline exceeded").
			Component("jolpica").
			Category(errors.CategoryTimeout).
			Build(),
	}
	service, _ := newTestService(t, client)

	_, err := service.FetchAndCacheRaces(context.Background(), "2024")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetworkUnavailable))
}

func TestGetCachedRace(t *testing.T) {
	client := &fakeClient{races: wireRaces()}
	service, _ := newTestService(t, client)

	_, err := service.FetchAndCacheRaces(context.Background(), "2024")
	require.NoError(t, err)

	race, err := service.GetCachedRace("2024-2")
	require.NoError(t, err)
	require.NotNil(t, race)
	assert.Equal(t, "Saudi Arabian Grand Prix", race.Name)

	missing, err := service.GetCachedRace("1999-99")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRefreshIfNeeded_SkipsRecentSync(t *testing.T) {
	client := &fakeClient{races: wireRaces()}
	service, _ := newTestService(t, client)

	require.NoError(t, service.RefreshIfNeeded(context.Background()))
	assert.Equal(t, 1, client.calls)

	// Within the minimum interval the second call is a no-op
	require.NoError(t, service.RefreshIfNeeded(context.Background()))
	assert.Equal(t, 1, client.calls)
}

func TestClearCache(t *testing.T) {
	client := &fakeClient{races: wireRaces()}
	service, ds := newTestService(t, client)

	_, err := service.FetchAndCacheRaces(context.Background(), "2024")
	require.NoError(t, err)

	require.NoError(t, service.ClearCache())
	assert.True(t, service.LastSyncAt().IsZero())

	stored, err := ds.GetRaces("")
	require.NoError(t, err)
	assert.Empty(t, stored)

	cached, err := service.GetCachedRaces("")
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestUpcomingCompletedAndNext(t *testing.T) {
	client := &fakeClient{races: wireRaces()}
	service, _ := newTestService(t, client)

	_, err := service.FetchAndCacheRaces(context.Background(), "2024")
	require.NoError(t, err)

	// Between round 1 and round 2
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	upcoming := service.UpcomingRaces(now)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "2024-2", upcoming[0].ID)

	completed := service.CompletedRaces(now)
	require.Len(t, completed, 1)
	assert.Equal(t, "2024-1", completed[0].ID)

	next := service.NextRace(now)
	require.NotNil(t, next)
	assert.Equal(t, "2024-2", next.ID)

	// After the season
	after := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, service.NextRace(after))
	assert.Len(t, service.CompletedRaces(after), 2)
}

func TestStartPolling_StopsOnSignal(t *testing.T) {
	client := &fakeClient{races: wireRaces()}
	service, _ := newTestService(t, client)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		service.StartPolling(stop)
		close(done)
	}()

	close(stop)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling loop did not stop")
	}

	// The initial cold-start refresh ran before the loop settled
	assert.GreaterOrEqual(t, client.calls, 1)
}

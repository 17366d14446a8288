package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// newTestStore starts a disposable Postgres container, opens a Store
// against it (Open runs the embedded migrations itself), and tears the
// container down when the test completes.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("staticforge_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	st, err := Open(ctx, Config{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Database:        "staticforge_test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st
}

func newTestSite(t *testing.T, st *Store) *Site {
	t.Helper()
	site := &Site{
		ID:            uuid.NewString(),
		Name:          "example-blog",
		SourceURL:     "https://example.com",
		WebhookSecret: "whsec_" + uuid.NewString(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, st.CreateSite(context.Background(), site))
	return site
}

func TestCreateAndGetSite(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)

	got, err := st.GetSite(context.Background(), site.ID)
	require.NoError(t, err)
	require.Equal(t, site.Name, got.Name)
	require.Equal(t, site.SourceURL, got.SourceURL)
}

func TestGetSiteNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetSite(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestAcquireSlotRejectsSecondConcurrentBuild(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	first := &Build{
		ID: uuid.NewString(), SiteID: site.ID,
		Scope: ScopeFull, TriggeredBy: TriggeredByUser,
		Status: BuildQueued, CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateBuild(ctx, first))

	second := &Build{
		ID: uuid.NewString(), SiteID: site.ID,
		Scope: ScopeFull, TriggeredBy: TriggeredByUser,
		Status: BuildQueued, CreatedAt: time.Now(),
	}
	err := st.CreateBuild(ctx, second)
	require.Error(t, err)
	require.Equal(t, xerrors.ConcurrencyConflict, xerrors.KindOf(err))
}

func TestAcquireSlotAllowsNewBuildAfterPriorCompletes(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	first := &Build{
		ID: uuid.NewString(), SiteID: site.ID,
		Scope: ScopeFull, TriggeredBy: TriggeredByUser,
		Status: BuildQueued, CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateBuild(ctx, first))
	require.NoError(t, st.TransitionBuild(ctx, first.ID, BuildCrawling, nil, nil, nil))
	now := time.Now()
	require.NoError(t, st.TransitionBuild(ctx, first.ID, BuildOptimizing, nil, nil, nil))
	require.NoError(t, st.TransitionBuild(ctx, first.ID, BuildDeploying, nil, nil, nil))
	require.NoError(t, st.TransitionBuild(ctx, first.ID, BuildSuccess, nil, &now, nil))

	second := &Build{
		ID: uuid.NewString(), SiteID: site.ID,
		Scope: ScopeFull, TriggeredBy: TriggeredByUser,
		Status: BuildQueued, CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateBuild(ctx, second))
}

func TestTransitionBuildPersistsStatus(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	b := &Build{
		ID: uuid.NewString(), SiteID: site.ID,
		Scope: ScopeFull, TriggeredBy: TriggeredByUser,
		Status: BuildQueued, CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateBuild(ctx, b))
	require.NoError(t, st.TransitionBuild(ctx, b.ID, BuildCrawling, nil, nil, nil))

	got, err := st.GetBuild(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, BuildCrawling, got.Status)
}

func TestEnqueueJobAndReserveJob(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	b := &Build{
		ID: uuid.NewString(), SiteID: site.ID,
		Scope: ScopeFull, TriggeredBy: TriggeredByUser,
		Status: BuildQueued, CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateBuild(ctx, b))
	require.NoError(t, st.EnqueueJob(ctx, &Job{ID: b.ID, Kind: JobBuild, SiteID: site.ID, MaxAttempts: 5}))

	job, err := st.ReserveJob(ctx, "worker-1", 30*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, b.ID, job.ID)

	// A second reservation attempt must not see the same leased row.
	_, err = st.ReserveJob(ctx, "worker-2", 30*time.Minute)
	require.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestRequeueJobMakesAnExhaustedJobReservableAgain(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	b := &Build{
		ID: uuid.NewString(), SiteID: site.ID,
		Scope: ScopeFull, TriggeredBy: TriggeredByUser,
		Status: BuildFailed, CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateBuild(ctx, b))
	require.NoError(t, st.EnqueueJob(ctx, &Job{ID: b.ID, Kind: JobBuild, SiteID: site.ID, MaxAttempts: 1}))

	job, err := st.ReserveJob(ctx, "worker-1", 30*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, st.AckJobFailure(ctx, job.ID, "boom", 0, true))

	require.NoError(t, st.RequeueJob(ctx, b.ID, 1))

	retried, err := st.ReserveJob(ctx, "worker-2", 30*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, retried)
	require.Equal(t, b.ID, retried.ID)
}

func TestRecordWebhookNonceRejectsReplay(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	require.NoError(t, st.RecordWebhookNonce(ctx, site.ID, "nonce-1"))
	require.Error(t, st.RecordWebhookNonce(ctx, site.ID, "nonce-1"))
}

func TestAssetOverrideCRUD(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	override := &AssetOverride{
		ID:       uuid.NewString(),
		SiteID:   site.ID,
		Pattern:  "*.png",
		Settings: []byte(`{"images":{"quality":80}}`),
	}
	require.NoError(t, st.UpsertAssetOverride(ctx, override))

	list, err := st.ListAssetOverrides(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "*.png", list[0].Pattern)

	require.NoError(t, st.DeleteAssetOverride(ctx, site.ID, override.ID))
	list, err = st.ListAssetOverrides(ctx, site.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSettingsHistoryAppendAndList(t *testing.T) {
	st := newTestStore(t)
	site := newTestSite(t, st)
	ctx := context.Background()

	entry := &SettingsHistory{
		ID:       uuid.NewString(),
		SiteID:   site.ID,
		Actor:    "api",
		Settings: []byte(`{"crawl":{"maxPages":100}}`),
	}
	require.NoError(t, st.AppendSettingsHistory(ctx, entry))

	list, err := st.ListSettingsHistory(ctx, site.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "api", list[0].Actor)
}

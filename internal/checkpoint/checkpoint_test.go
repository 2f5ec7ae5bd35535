package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"covidlens/internal/config"
	"covidlens/internal/manifest"
	"covidlens/internal/model"
	"covidlens/internal/restore"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.StateBackend = backend
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestOpen_Backends(t *testing.T) {
	for _, backend := range []string{"filesystem", "memory", "pebble", "badger"} {
		t.Run(backend, func(t *testing.T) {
			s, err := Open(testConfig(t, backend))
			require.NoError(t, err)
			defer s.Close()

			ds := model.Dataset{Records: []model.EnrichedRecord{{Country: "US"}}}
			require.NoError(t, s.Snapshots.WriteSnapshot("s1", ds))
			require.NoError(t, s.Publisher.PublishLatest(manifest.Manifest{SnapshotID: "s1", Records: 1}))

			got, m, err := restore.NewRestorer(s.Snapshots, s.Reader, nil).RestoreLatest()
			require.NoError(t, err)
			require.Equal(t, "s1", m.SnapshotID)
			require.Equal(t, "US", got.Records[0].Country)
			require.NotNil(t, s.Changelog)
		})
	}
}

func TestOpen_NoChangelog(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.ChangelogSink = "none"
	s, err := Open(cfg)
	require.NoError(t, err)
	require.Nil(t, s.Changelog)
	require.NoError(t, s.Close())
}

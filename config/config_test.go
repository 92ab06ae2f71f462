package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/match"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MATCHBATCH_HIKE_MIN", "10")
	t.Setenv("MATCHBATCH_HIKE_MAX", "90")

	cfg, err := Load()
	require.NoError(t, err)
	band, err := cfg.Match.Band()
	require.NoError(t, err)
	assert.Equal(t, "[10%, 90%]", band.String())
	assert.True(t, cfg.Match.RequireActive)
	assert.Equal(t, 30, cfg.Match.ChunkSize)
	assert.Equal(t, "last", cfg.Match.ResendKeep)
	assert.Equal(t, 90, cfg.Reconcile.SuppressWindowDays)
	assert.Equal(t, []string{match.StatusNotInterested, match.StatusDrop}, cfg.Reconcile.SuppressedStatuses)
	assert.Equal(t, "xlsx", cfg.Reconcile.RosterBackend)
	assert.Equal(t, matchbatch.DefaultJobPoolSize, cfg.Batch.MaxRunningJobs)
	assert.Equal(t, "", cfg.Database.DSN())

	now := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	opts := cfg.Reconcile.Options(func() time.Time { return now })
	assert.Equal(t, match.EmptyPhoneDrop, opts.EmptyPhone)
	assert.Equal(t, now, opts.Now())
}

func TestLoadRequiresHikeBand(t *testing.T) {
	t.Setenv("MATCHBATCH_HIKE_MIN", "10")
	_, err := Load()
	require.Error(t, err)
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeConfig))

	t.Setenv("MATCHBATCH_HIKE_MAX", "5")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestLoadValidatesSections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad policy", map[string]string{"MATCHBATCH_EMPTY_PHONE_POLICY": "keep"}},
		{"bad backend", map[string]string{"MATCHBATCH_ROSTER_BACKEND": "csv"}},
		{"ftp without host", map[string]string{"FTP_ENABLED": "true"}},
		{"mysql without host", map[string]string{"DB_DRIVER": "mysql"}},
		{"bad driver", map[string]string{"DB_DRIVER": "oracle"}},
		{"bad timezone", map[string]string{"MATCHBATCH_TIMEZONE": "Mars/Olympus"}},
		{"zero chunk", map[string]string{"MATCHBATCH_CHUNK_SIZE": "0"}},
		{"bad resend keep", map[string]string{"MATCHBATCH_RESEND_KEEP": "middle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MATCHBATCH_HIKE_MIN", "10")
			t.Setenv("MATCHBATCH_HIKE_MAX", "90")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeConfig), "err: %v", err)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("MATCHBATCH_HIKE_MIN", "10")
	t.Setenv("MATCHBATCH_HIKE_MAX", "90")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "finploy")
	t.Setenv("DB_USER", "batch")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	dsn := cfg.Database.DSN()
	assert.Contains(t, dsn, "batch:secret@tcp(db.internal:3306)/finploy")
	assert.Contains(t, dsn, "parseTime=true")

	cfg.Database = DatabaseConfig{Driver: "sqlite", Path: "/tmp/matchbatch.db"}
	assert.Equal(t, "/tmp/matchbatch.db", cfg.Database.DSN())
}

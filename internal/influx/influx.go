// Package influx records per-track statistics in InfluxDB. When the
// server cannot be reached the points go to a gzipped line-protocol file
// that can be imported later with `influx write`.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// TrackBucket receives one point per displayed track.
const TrackBucket = "evd_tracks"

// ErrDisabled is returned by Connect when influx.enabled is off.
var ErrDisabled = errors.New("influx output is disabled")

// Settings is the influx config section.
type Settings struct {
	URL           string
	Token         string
	Org           string
	RetentionDays int
}

// SettingsFromConfig reads the influx.* keys.
func SettingsFromConfig() Settings {
	return Settings{
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:         viper.GetString("influx.token"),
		Org:           viper.GetString("influx.org"),
		RetentionDays: viper.GetInt("influx.retentionDays"),
	}
}

// Manager owns the InfluxDB client and one WriteAPI per bucket, or the
// backup file when the server is unreachable.
type Manager struct {
	Client      influxdb2.Client
	Writers     map[string]influxdb2_api.WriteAPI
	IsValid     bool
	BucketNames []string
	Logger      zerolog.Logger
	BackupPath  string

	mu         sync.Mutex
	backup     *gzip.Writer
	backupFile *os.File
}

// NewManager creates a manager for the track bucket. backupPath is used
// only if Connect cannot reach the server.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: []string{TrackBucket},
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// Connect pings the configured server. On success it makes sure the org
// and buckets exist and opens the writers; otherwise it opens the backup
// file and returns nil.
func (m *Manager) Connect(ctx context.Context) error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}
	s := SettingsFromConfig()

	m.Client = influxdb2.NewClientWithOptions(s.URL, s.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	if ok, err := m.Client.Ping(ctx); err != nil || !ok {
		m.Logger.Warn().Err(err).Str("url", s.URL).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing track points to backup file")
		m.Client.Close()
		m.Client = nil
		return m.openBackup()
	}

	if err := m.ensureBuckets(ctx, s); err != nil {
		return err
	}
	m.CreateWriters(s.Org)
	m.IsValid = true
	m.Logger.Info().Str("url", s.URL).Str("org", s.Org).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup != nil {
		return nil
	}

	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

// ensureBuckets creates the org and any missing bucket.
func (m *Manager) ensureBuckets(ctx context.Context, s Settings) error {
	orgs := m.Client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, s.Org)
	if err != nil {
		m.Logger.Info().Str("org", s.Org).Msg("Organization not found, creating")
		if org, err = orgs.CreateOrganizationWithName(ctx, s.Org); err != nil {
			return fmt.Errorf("creating organization %s: %w", s.Org, err)
		}
	}

	rule := domain.RetentionRule{EverySeconds: int64(s.RetentionDays) * 24 * 60 * 60}
	if s.RetentionDays > 0 {
		expire := domain.RetentionRuleTypeExpire
		rule.Type = &expire
	}

	buckets := m.Client.BucketsAPI()
	for _, name := range m.BucketNames {
		if _, err := buckets.FindBucketByName(ctx, name); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", name).Int("retentionDays", s.RetentionDays).Msg("Bucket not found, creating")
		if _, err := buckets.CreateBucketWithName(ctx, org, name, rule); err != nil {
			return fmt.Errorf("creating bucket %s: %w", name, err)
		}
	}
	return nil
}

// CreateWriters opens a non-blocking WriteAPI per bucket. Asynchronous
// write failures are logged.
func (m *Manager) CreateWriters(org string) {
	for _, bucket := range m.BucketNames {
		w := m.Client.WriteAPI(org, bucket)
		m.Writers[bucket] = w

		go func(bucket string, errs <-chan error) {
			for err := range errs {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error sending data to InfluxDB")
			}
		}(bucket, w.Errors())
	}
	m.Logger.Debug().Strs("buckets", m.BucketNames).Msg("InfluxDB writers initialized")
}

// WritePoint queues point for bucket, or appends it to the backup file.
func (m *Manager) WritePoint(_ context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Flush sends buffered points to the server, or flushes the backup file.
func (m *Manager) Flush() error {
	if m.IsValid {
		for _, w := range m.Writers {
			w.Flush()
		}
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup != nil {
		return m.backup.Flush()
	}
	return nil
}

// Close flushes and releases the client or the backup file.
func (m *Manager) Close() error {
	if m.Client != nil {
		// Close flushes pending writes of every WriteAPI.
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return nil
	}
	err := errors.Join(m.backup.Close(), m.backupFile.Close())
	m.backup = nil
	m.backupFile = nil
	return err
}

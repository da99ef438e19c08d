// Package archive persists discovery snapshots to an S3-compatible object
// store. Archival is strictly best-effort: a failure to archive never fails
// the discovery that produced the snapshot.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/config"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
)

// record is the archived document: the snapshot plus the degradation account
// that came with it, so a reader can judge how trustworthy the snapshot is.
type record struct {
	Database   string              `json:"database"`
	ArchivedAt time.Time           `json:"archived_at"`
	Snapshot   *discovery.Snapshot `json:"snapshot"`
	Report     []string            `json:"report"`
}

// Store writes snapshot records into one bucket.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	client *miniogo.Client
	bucket string
	log    *logger.Logger
	now    func() time.Time
}

// New connects to the object store and verifies the bucket exists.
func New(ctx context.Context, cfg *config.ArchiveConfig, log *logger.Logger) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create object store client", err)
	}

	ok, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to reach object store", err)
	}
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("archive bucket %q does not exist", cfg.Bucket))
	}

	return &Store{client: client, bucket: cfg.Bucket, log: log, now: time.Now}, nil
}

// SaveSnapshot archives one discovery result under
// schema/<database>/<timestamp>.json. Errors are logged and swallowed.
func (s *Store) SaveSnapshot(ctx context.Context, database string, res *discovery.Result) {
	key := fmt.Sprintf("schema/%s/%s.json", database, s.now().UTC().Format("20060102T150405Z"))

	doc := record{
		Database:   database,
		ArchivedAt: s.now().UTC(),
		Snapshot:   res.Snapshot,
		Report:     res.Report.Lines,
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.log.With().Err(err).Logger().Warn("archive: failed to encode snapshot")
		return
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		miniogo.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		s.log.With().Str("key", key).Err(err).Logger().Warn("archive: failed to store snapshot")
		return
	}

	s.log.With().Str("key", key).Int("bytes", len(body)).Logger().
		Debug("archive: snapshot stored")
}

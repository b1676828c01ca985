package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold is the payload size above which archives are uploaded
// in parts.
const multipartThreshold = 16 * 1024 * 1024

// ExecutionSource is the slice of the execution store the archiver needs.
type ExecutionSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ObjectChecker confirms an upload landed before source rows are deleted.
type ObjectChecker interface {
	Exists(ctx context.Context, path string) (bool, int64, error)
}

// Archiver implements domain.Archiver. It moves finalized execution records
// older than a cutoff from the database into a JSONL object, verifies the
// object, then deletes the rows.
type Archiver struct {
	writer  domain.BlobWriter
	checker ObjectChecker
	execs   ExecutionSource
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver. checker and audit may be nil; without a
// checker the upload result alone gates deletion.
func NewArchiver(
	writer domain.BlobWriter,
	checker ObjectChecker,
	execs ExecutionSource,
	audit domain.AuditStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:  writer,
		checker: checker,
		execs:   execs,
		audit:   audit,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveExecutions archives every record executed before the cutoff and
// returns how many rows were archived.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.execs.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions marshal: %w", err)
	}

	path := archivePath("executions", before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions upload: %w", err)
	}

	if a.checker != nil {
		ok, size, err := a.checker.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive executions verify: %w", err)
		}
		if !ok || size != int64(len(buf)) {
			return 0, fmt.Errorf("s3blob: archive executions verify %s: got size %d, want %d", path, size, len(buf))
		}
	}

	deleted, err := a.execs.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions delete: %w", err)
	}

	count := int64(len(recs))
	a.logger.InfoContext(ctx, "archived executions",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Int64("deleted", deleted),
	)

	if a.audit != nil {
		if err := a.audit.Log(ctx, domain.AuditHistoryArchived, map[string]any{
			"path":    path,
			"count":   count,
			"deleted": deleted,
			"before":  before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive executions audit log: %w", err)
		}
	}
	return count, nil
}

// archivePath builds the object key for an archive, partitioned by the
// cutoff's month and named after the cutoff instant so repeated runs in one
// month never overwrite each other.
//
//	archive/executions/2026-01/20260115T030000Z.jsonl
func archivePath(kind string, before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01"), before.Format("20060102T150405Z"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)

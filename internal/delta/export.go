package delta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ttd-workflows/pkg/enums"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const defaultPublishTimeout = 30 * time.Second

// Exporter ships a committed sync pass to a downstream system. Exports run
// before the checkpoint moves, so a failed export repeats on the next pass.
type Exporter interface {
	Export(ctx context.Context, result SyncResult) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubExporter publishes one message per change, ordered per entity.
type PubSubExporter struct {
	pub  publisher
	logg *logger.Logger
}

func NewPubSubExporter(p *gcppubsub.Publisher, logg *logger.Logger) (*PubSubExporter, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newPubSubExporter(&gcpPublisher{Publisher: p}, logg), nil
}

func newPubSubExporter(pub publisher, logg *logger.Logger) *PubSubExporter {
	if logg == nil {
		logg = logger.Nop()
	}
	return &PubSubExporter{pub: pub, logg: logg}
}

func (e *PubSubExporter) Export(ctx context.Context, result SyncResult) error {
	if len(result.Changes) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	type pending struct {
		key string
		res publishResult
	}
	results := make([]pending, 0, len(result.Changes))
	for _, change := range result.Changes {
		data, err := json.Marshal(change)
		if err != nil {
			return fmt.Errorf("encode %s change %s: %w", change.Kind, change.EntityID, err)
		}
		key := orderingKey(change)
		res := e.pub.Publish(ctx, &gcppubsub.Message{
			Data:        data,
			OrderingKey: key,
			Attributes: map[string]string{
				"kind":             string(change.Kind),
				"entity_id":        change.EntityID,
				"scope":            result.Scope,
				"tracking_version": strconv.FormatInt(result.NextVersion, 10),
			},
		})
		if res == nil {
			return fmt.Errorf("publisher returned nil for %s change %s", change.Kind, change.EntityID)
		}
		results = append(results, pending{key: key, res: res})
	}

	var errs error
	for _, p := range results {
		if _, err := p.res.Get(ctx); err != nil {
			errs = multierr.Append(errs, err)
			// a failed key stays paused until resumed; the retried pass republishes it
			e.pub.ResumePublish(p.key)
		}
	}
	if errs != nil {
		return fmt.Errorf("publish %s changes: %w", result.Kind, errs)
	}
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"kind":      result.Kind,
		"published": len(results),
	}), "delta changes published")
	return nil
}

func orderingKey(c Change) string {
	return string(c.Kind) + ":" + c.EntityID
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryExporter streams changes into a warehouse table. Each row carries
// an insert id of kind, entity and version so a replayed pass is deduplicated
// by the streaming API on a best-effort basis.
type BigQueryExporter struct {
	client tableInserter
	table  string
	logg   *logger.Logger
	now    func() time.Time
}

// changeRow is the warehouse row for one change.
type changeRow struct {
	Kind            string    `bigquery:"kind"`
	Scope           string    `bigquery:"scope"`
	EntityID        string    `bigquery:"entity_id"`
	ParentID        string    `bigquery:"parent_id"`
	Name            string    `bigquery:"name"`
	IsArchived      bool      `bigquery:"is_archived"`
	TrackingVersion int64     `bigquery:"tracking_version"`
	Payload         string    `bigquery:"payload"`
	SyncedAt        time.Time `bigquery:"synced_at"`
}

func NewBigQueryExporter(client tableInserter, table string, logg *logger.Logger) (*BigQueryExporter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("bigquery table name required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &BigQueryExporter{client: client, table: strings.TrimSpace(table), logg: logg, now: time.Now}, nil
}

func (e *BigQueryExporter) Export(ctx context.Context, result SyncResult) error {
	if len(result.Changes) == 0 {
		return nil
	}
	syncedAt := e.now().UTC()
	rows := make([]any, 0, len(result.Changes))
	for _, change := range result.Changes {
		rows = append(rows, &bigquery.StructSaver{
			InsertID: insertID(change.Kind, change.EntityID, result.NextVersion),
			Struct: &changeRow{
				Kind:            string(change.Kind),
				Scope:           result.Scope,
				EntityID:        change.EntityID,
				ParentID:        change.ParentID,
				Name:            change.Name,
				IsArchived:      change.IsArchived,
				TrackingVersion: result.NextVersion,
				Payload:         string(change.Payload),
				SyncedAt:        syncedAt,
			},
		})
	}
	if err := e.client.InsertRows(ctx, e.table, rows); err != nil {
		return fmt.Errorf("insert %s changes into %s: %w", result.Kind, e.table, err)
	}
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"kind":     result.Kind,
		"table":    e.table,
		"inserted": len(rows),
	}), "delta changes streamed")
	return nil
}

func insertID(kind enums.DeltaKind, entityID string, version int64) string {
	return fmt.Sprintf("%s:%s:%d", kind, entityID, version)
}

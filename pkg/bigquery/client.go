package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/ttd-workflows/pkg/config"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
)

const (
	metadataCheckTimeout = 10 * time.Second
	partitionField       = "synced_at"
)

// ChangeSchema is the layout of the delta changes table. Column names match
// the bigquery tags of the rows the delta exporter streams.
var ChangeSchema = bigquery.Schema{
	{Name: "kind", Type: bigquery.StringFieldType, Required: true},
	{Name: "scope", Type: bigquery.StringFieldType},
	{Name: "entity_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "parent_id", Type: bigquery.StringFieldType},
	{Name: "name", Type: bigquery.StringFieldType},
	{Name: "is_archived", Type: bigquery.BooleanFieldType},
	{Name: "tracking_version", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "payload", Type: bigquery.StringFieldType, Description: "raw entity JSON"},
	{Name: partitionField, Type: bigquery.TimestampFieldType, Required: true},
}

type Client struct {
	client      *bigquery.Client
	dataset     *bigquery.Dataset
	projectID   string
	table       string
	createTable bool
}

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// NewClient creates a BigQuery client and verifies the dataset and changes
// table exist. With CreateTable set a missing table is created from
// ChangeSchema.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}

	table := strings.TrimSpace(cfg.ChangesTable)
	if table == "" {
		return nil, errTableNameRequired
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	client := &Client{
		client:      bqClient,
		dataset:     bqClient.Dataset(datasetID),
		projectID:   projectID,
		table:       table,
		createTable: cfg.CreateTable,
	}

	if err := client.ensureDatasetAndTable(ctx, client.createTable); err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "table": table}), "bigquery client initialized")
	}

	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

// changesTableMetadata partitions by sync day and clusters by entity so
// per-entity history scans stay cheap.
func changesTableMetadata() *bigquery.TableMetadata {
	return &bigquery.TableMetadata{
		Description: "Entity changes recorded by delta sync",
		Schema:      ChangeSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: partitionField,
		},
		Clustering: &bigquery.Clustering{Fields: []string{"kind", "entity_id"}},
	}
}

func (c *Client) ensureDatasetAndTable(ctx context.Context, create bool) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	ref := c.dataset.Table(c.table)
	_, err := ref.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case isNotFound(err) && create:
		if err := ref.Create(ctx, changesTableMetadata()); err != nil && !isConflict(err) {
			return fmt.Errorf("creating table %q: %w", c.table, err)
		}
		return nil
	case isNotFound(err):
		return fmt.Errorf("table %q does not exist", c.table)
	default:
		return fmt.Errorf("checking table %q: %w", c.table, err)
	}
}

// Ping verifies the dataset and table are accessible. It never creates.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errClientNotInitialized
	}
	return c.ensureDatasetAndTable(ctx, false)
}

// Table returns the configured changes table name.
func (c *Client) Table() string {
	if c == nil {
		return ""
	}
	return c.table
}

// InsertRows streams rows into table in the configured dataset. Rows may be
// ValueSavers carrying an insert id for best-effort dedupe.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if strings.TrimSpace(table) == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}

	inserter := c.dataset.Table(strings.TrimSpace(table)).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			return fmt.Errorf("%d of %d rows rejected: %w", len(multi), len(rows), err)
		}
		return err
	}
	return nil
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// isConflict covers another replica creating the table first.
func isConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code == code
	}
	return false
}

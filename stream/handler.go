// Package stream provides a DynamoDB Streams handler that audits soft delete
// index consistency whenever an entity's deleted flag changes.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/tombstone/internal/keyspace"
	"github.com/jacentio/tombstone/softdelete"
)

// Config describes the attribute table the stream is attached to.
type Config struct {
	// KeyAttr is the partition key attribute holding the attributes key.
	// Default: "pk"
	KeyAttr string

	// FlagField is the attribute carrying the Marker.
	// Default: "deleted"
	FlagField string

	// Separator and HashTag must match the controllers' key layout.
	Separator string
	HashTag   bool
}

func (c *Config) validate() {
	if c.KeyAttr == "" {
		c.KeyAttr = "pk"
	}
	if c.FlagField == "" {
		c.FlagField = "deleted"
	}
	if c.Separator == "" {
		c.Separator = keyspace.DefaultSeparator
	}
}

// Handler processes attribute table stream events.
type Handler struct {
	registry *softdelete.Registry
	config   Config
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(registry *softdelete.Registry, config Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = softdelete.NewRegistry()
	}
	config.validate()
	return &Handler{
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// HandleFlagChanges audits every entity whose deleted flag changed in the batch.
// This function is designed to be used as an AWS Lambda handler. Violations
// are logged and counted, not returned; only read failures fail the batch.
func (h *Handler) HandleFlagChanges(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord audits a single stream record if it flipped the flag.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Removing the whole namespace is a hard delete, outside soft delete's reach.
	if record.EventName != "INSERT" && record.EventName != "MODIFY" {
		return nil
	}

	oldFlag := getFlag(record.Change.OldImage, h.config.FlagField)
	newFlag := getFlag(record.Change.NewImage, h.config.FlagField)
	if oldFlag == newFlag {
		return nil
	}

	key := getStringAttr(record.Change.Keys, h.config.KeyAttr)
	entityType, id, ok := keyspace.Parse(key, h.config.Separator, h.config.HashTag)
	if !ok {
		h.logger.Warn("unrecognised attributes key", "key", key)
		return nil
	}

	c, err := h.registry.Lookup(entityType)
	if err != nil {
		h.logger.Warn("no controller for entity type",
			"entityType", entityType,
			"id", id,
		)
		return nil
	}

	report, err := c.Audit(ctx, id)
	if err != nil {
		return fmt.Errorf("audit %s %q: %w", entityType, id, err)
	}

	h.logger.Info("audited flag change",
		"entityType", entityType,
		"id", id,
		"from", oldFlag.String(),
		"to", newFlag.String(),
		"violation", report.Violation.String(),
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getFlag decodes the deleted flag from a DynamoDB stream image.
func getFlag(image map[string]events.DynamoDBAttributeValue, field string) softdelete.Flag {
	v, ok := image[field]
	if !ok || v.IsNull() {
		return softdelete.Flag{}
	}
	if v.DataType() != events.DataTypeString {
		return softdelete.ParseFlag("", true)
	}
	return softdelete.ParseFlag(v.String(), true)
}

package thumbnails

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/storage/blob"
)

const (
	objectFinalizeEvent  = "OBJECT_FINALIZE"
	payloadFormatJSONAPI = "JSON_API_V1"
)

type objectStore interface {
	Download(ctx context.Context, blobName string) ([]byte, string, error)
	Upload(ctx context.Context, blobName string, data []byte, metadata map[string]string, contentType string) (string, error)
}

// Consumer watches new-object storage notifications and derives a thumbnail
// for every image that lands in the container.
type Consumer struct {
	store        objectStore
	resizer      *Resizer
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer constructs a consumer bound to the provided subscription.
func NewConsumer(store objectStore, resizer *Resizer, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if resizer == nil {
		return nil, errors.New("resizer is required")
	}
	if subscription == nil {
		return nil, errors.New("subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		store:        store,
		resizer:      resizer,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	attrs := parseAttributes(msg.Attributes)
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": attrs.EventType,
	})

	if attrs.EventType != objectFinalizeEvent {
		c.logg.Info(logCtx, "skipping non-finalize event")
		return processResult{ack: true}
	}
	if attrs.PayloadFormat != payloadFormatJSONAPI {
		c.logg.Warn(logCtx, "unsupported payload format")
		return processResult{ack: true}
	}

	payload, err := decodePayload(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	var event objectEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logg.Error(logCtx, "failed to unmarshal payload", err)
		return processResult{ack: true}
	}
	if strings.TrimSpace(event.Name) == "" {
		c.logg.Error(logCtx, "payload missing object name", fmt.Errorf("empty name"))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithBlob(logCtx, event.Name)
	if err := c.Derive(logCtx, event.Name); err != nil {
		if isTransient(err) {
			c.logg.Error(logCtx, "thumbnail derivation failed, retrying", err)
			return processResult{nack: true}
		}
		c.logg.Error(logCtx, "thumbnail derivation skipped", err)
		return processResult{ack: true}
	}
	return processResult{ack: true}
}

// Derive downloads objectName, produces its padded thumbnail and writes it
// back under the derived name, overwriting any previous thumbnail and keeping
// the source content type. Thumbnails themselves are skipped so the worker
// never feeds on its own output.
func (c *Consumer) Derive(ctx context.Context, objectName string) error {
	if IsThumb(objectName) {
		c.logg.Info(ctx, "object is already a thumbnail")
		return nil
	}

	payload, _, err := c.store.Download(ctx, objectName)
	if err != nil {
		return fmt.Errorf("download source object: %w", err)
	}

	thumb, contentType, err := c.resizer.Thumbnail(payload)
	if err != nil {
		return fmt.Errorf("derive thumbnail: %w", err)
	}

	thumbName := ThumbName(objectName)
	if _, err := c.store.Upload(ctx, thumbName, thumb, nil, contentType); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}

	c.logg.Info(ctx, "thumbnail written as "+thumbName)
	return nil
}

type objectAttributes struct {
	EventType     string
	ObjectID      string
	PayloadFormat string
}

type objectEvent struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

func parseAttributes(attrs map[string]string) objectAttributes {
	return objectAttributes{
		EventType:     attrs["eventType"],
		ObjectID:      attrs["objectId"],
		PayloadFormat: attrs["payloadFormat"],
	}
}

func decodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		return decoded, nil
	}
	return data, nil
}

// isTransient separates retryable backend failures from payloads that will
// never decode no matter how often they are redelivered.
func isTransient(err error) bool {
	if errors.Is(err, blob.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "download source object") || strings.Contains(msg, "write thumbnail")
}

package riders

import (
	"io"
	"time"
)

type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ObjectInfo struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Object is a downloaded object. The caller must close Body.
type Object struct {
	Info ObjectInfo
	Body io.ReadCloser
}

type PutObject struct {
	Bucket      string
	Key         string
	ContentType string
	Size        int64
	ACL         string
}

type ListObjectsQuery struct {
	Bucket string
	Prefix string
}

// EventType identifies a storage mutation announced on the queue.
type EventType string

const (
	EventObjectCreated EventType = "object.created"
	EventObjectDeleted EventType = "object.deleted"
)

// StorageEvent is published after a successful upload or delete.
type StorageEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
}

package contracts

import (
	"context"
	"time"
)

type RedisRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, exp time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ClinicalEvent is the payload published on clinical-data writes for the
// notification pipeline.
type ClinicalEvent struct {
	EventID      string    `json:"event_id"`
	RegistryCode string    `json:"registry_code"`
	OwnerKind    string    `json:"owner_kind"`
	OwnerID      int64     `json:"owner_id"`
	ContextID    int64     `json:"context_id"`
	FormName     string    `json:"form_name,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event ClinicalEvent) error
}

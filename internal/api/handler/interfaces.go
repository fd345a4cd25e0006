package handler

import (
	"context"

	"github.com/sanosuguru/campus-events/internal/application"
	"github.com/sanosuguru/campus-events/internal/domain/event"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, filter event.Filter) ([]*event.Event, error)
	UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	GetEventImage(ctx context.Context, id string) (*event.Image, error)
}

// AuthServiceInterface は認証サービスのインターフェース
type AuthServiceInterface interface {
	Authenticate(ctx context.Context, input application.LoginInput) (string, error)
}

package ports

import (
	"context"
	"errors"
)

// ErrLinkAuth is wrapped by link adapters when the radio rejects the credentials.
var ErrLinkAuth = errors.New("link: authentication rejected")

// Link is the wireless radio collaborator.
type Link interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected(ctx context.Context) bool
	Name() string
}

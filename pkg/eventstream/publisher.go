package eventstream

import "context"

// Publisher publishes repository status events to an event stream backend.
type Publisher interface {
	PublishStatus(ctx context.Context, event *RepositoryStatusEvent) error
	Close() error
}

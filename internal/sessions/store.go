package sessions

import (
	"context"

	"github.com/vtcode-ai/vtcode/pkg/models"
)

// Store is the interface for session persistence.
type Store interface {
	// Session CRUD
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error

	// Session lookup
	GetByKey(ctx context.Context, key string) (*models.Session, error)
	GetOrCreate(ctx context.Context, workspaceRoot string) (*models.Session, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Session, error)

	// Message history
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// SessionKey builds a unique session key from the workspace root a session
// is scoped to.
func SessionKey(workspaceRoot string) string {
	return workspaceRoot
}

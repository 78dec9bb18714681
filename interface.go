package brunt

import "context"

// BruntClient defines the synchronous Brunt API operations.
// Client implements this interface, enabling mocking for tests and for
// consumers such as the MQTT bridge.
type BruntClient interface {
	// ============================================================================
	// Session Operations
	// ============================================================================

	Login(ctx context.Context, username, password string) error
	State() State
	Session() *Session

	// ============================================================================
	// Thing Operations
	// ============================================================================

	ListDevices(ctx context.Context) ([]Thing, error)
	Things(ctx context.Context, force bool) ([]Thing, error)
	Thing(uri string) (Thing, bool)
	GetState(ctx context.Context, sel Selector) (Thing, error)
	ChangeKey(ctx context.Context, key, value string, sel Selector) error
	ChangeRequestPosition(ctx context.Context, position int, sel Selector) error

	// ============================================================================
	// Batch Operations
	// ============================================================================

	ChangeRequestPositionBatch(ctx context.Context, position int, sels []Selector, cfg *BatchConfig) []BatchResult
	GetStateBatch(ctx context.Context, sels []Selector, cfg *BatchConfig) []BatchResult

	// ============================================================================
	// Position Tracking
	// ============================================================================

	Position(uri string) (int, bool)
	Positions() map[string]int

	Close() error
}

// Ensure Client implements BruntClient at compile time.
var _ BruntClient = (*Client)(nil)

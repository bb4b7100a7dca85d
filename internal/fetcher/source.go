// Package fetcher retrieves role records from the source feed. Two
// transports exist: HTTPSource against the live browse API and FTPSource
// against the nightly JSON dump.
package fetcher

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rolescout/internal/model"
)

// ErrDetailUnsupported is returned by sources that cannot fetch a single
// role on demand. The pipeline treats it as "no detail available" rather
// than a failure.
var ErrDetailUnsupported = eris.New("fetcher: detail fetch not supported by this source")

// Source defines the interface for pulling role records.
type Source interface {
	// FetchRoles returns every role currently visible in the feed.
	FetchRoles(ctx context.Context) ([]model.Payload, error)

	// FetchRoleDetail returns the expanded record for one role, including
	// the free-text fields the browse listing omits.
	FetchRoleDetail(ctx context.Context, externalID string) (*model.Payload, error)
}

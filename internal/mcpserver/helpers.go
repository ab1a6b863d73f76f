package mcpserver

import (
	"fmt"

	"github.com/libranswer/libranswer/internal/convo"
	liberrors "github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/profile"
)

// errInvalidParams matches the teacher's NewInvalidParamsError shape
// (a validation failure the client can fix by resubmitting), expressed
// through this module's own error taxonomy instead of a teacher-specific
// JSON-RPC code table.
func errInvalidParams(msg string) error {
	return liberrors.ValidationErr(msg, nil)
}

// activeOrNamed resolves slug to a profile's metadata, or the active
// profile when slug is empty, mirroring cmd/libranswer's
// activeProfileOrErr without importing the cmd package (mcpserver sits
// below cmd/libranswer in the dependency graph, never above it).
func activeOrNamed(mgr *profile.Manager, slug string) (*profile.Metadata, error) {
	if slug == "" {
		return mgr.Active()
	}
	profiles, err := mgr.List()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.Metadata.Slug == slug {
			meta := p.Metadata
			return &meta, nil
		}
	}
	return nil, liberrors.ValidationErr(fmt.Sprintf("unknown profile %q", slug), nil)
}

// newConvoStore opens the C7 session store for meta's profile.
func newConvoStore(mgr *profile.Manager, meta *profile.Metadata) (*convo.Store, error) {
	return convo.NewStore(mgr.SessionsDir(meta.Slug))
}

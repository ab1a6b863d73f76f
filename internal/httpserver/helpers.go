package httpserver

import (
	"fmt"

	"github.com/libranswer/libranswer/internal/convo"
	liberrors "github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/profile"
)

// activeOrNamed resolves slug to a profile's metadata, or the active
// profile when slug is empty, mirroring internal/mcpserver's own
// activeOrNamed (duplicated rather than imported: mcpserver's is
// unexported and httpserver sits beside it, not above it).
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

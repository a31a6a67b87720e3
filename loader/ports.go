package loader

import (
	"context"

	"github.com/veilbrowser/extension-host/registry"
)

// IntegrityVerifier validates package integrity before any parsing happens.
// Signature/checksum validation is supplied externally; the Loader aborts
// install and update on failure without ever constructing a Manifest.
//
// Verification is the one designated suspension point in this subsystem, so
// it takes a context.
type IntegrityVerifier interface {
	Verify(ctx context.Context, pkg []byte) error
}

// ContextInvalidator tears down live sandbox contexts for an extension.
// The Loader invalidates contexts before removing a registry entry and
// after swapping a grant, never the other way around.
type ContextInvalidator interface {
	Invalidate(id registry.InstallID)
}

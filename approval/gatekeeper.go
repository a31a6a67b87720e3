package approval

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/veilbrowser/extension-host/loader"
	"github.com/veilbrowser/extension-host/registry"
)

// SecurityLevel controls the gatekeeper's approval behavior.
type SecurityLevel string

const (
	// SecurityStrict refuses broad host escalations outright and prompts
	// for everything else.
	SecurityStrict SecurityLevel = "strict"
	// SecurityStandard prompts for escalations not already remembered.
	SecurityStandard SecurityLevel = "standard"
	// SecurityPermissive approves every escalation without prompting.
	SecurityPermissive SecurityLevel = "permissive"
)

var (
	// ErrDenied is returned when the user or policy refuses an escalation.
	ErrDenied = errors.New("escalation denied")

	// ErrNonInteractive is returned when a prompt would be required but no
	// interactive terminal is available.
	ErrNonInteractive = errors.New("escalation requires interactive approval")
)

// Gatekeeper reviews update escalations: loads remembered approvals, diffs
// against the requested grant, prompts for the rest, persists decisions,
// and issues the approval token the Loader consumes.
type Gatekeeper struct {
	store         Store
	prompter      Prompter
	securityLevel SecurityLevel
	logger        *slog.Logger
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithStore sets the approval store.
func WithStore(s Store) Option {
	return func(g *Gatekeeper) { g.store = s }
}

// WithPrompter sets the prompter.
func WithPrompter(p Prompter) Option {
	return func(g *Gatekeeper) { g.prompter = p }
}

// WithSecurityLevel sets the approval policy level.
func WithSecurityLevel(level SecurityLevel) Option {
	return func(g *Gatekeeper) { g.securityLevel = level }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gatekeeper) { g.logger = l }
}

// NewGatekeeper creates an escalation gatekeeper with pluggable store and
// prompter.
func NewGatekeeper(opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		securityLevel: SecurityStandard,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = NewFileStore()
	}
	if g.prompter == nil {
		g.prompter = NewTerminalPrompter()
	}
	return g
}

// Review decides whether the escalation may proceed and, if so, returns the
// approval token for re-invoking the update.
func (g *Gatekeeper) Review(esc *loader.Escalation) (loader.ApprovalToken, error) {
	if esc == nil {
		return loader.ApprovalToken{}, fmt.Errorf("no escalation to review")
	}

	if esc.Broad() && g.securityLevel == SecurityStrict {
		g.logger.Error("broad escalation denied by security policy",
			"level", string(SecurityStrict),
			"install_id", esc.InstallID,
			"name", esc.Name)
		return loader.ApprovalToken{}, fmt.Errorf("%w: broad host access refused by strict security policy", ErrDenied)
	}

	if g.securityLevel == SecurityPermissive {
		g.logger.Warn("auto-approving escalation (permissive mode)",
			"install_id", esc.InstallID, "name", esc.Name)
		return loader.NewApprovalToken(esc.InstallID, esc.Fingerprint), nil
	}

	return g.reviewInteractive(esc)
}

func (g *Gatekeeper) reviewInteractive(esc *loader.Escalation) (loader.ApprovalToken, error) {
	stored, err := g.store.Load()
	if err != nil {
		stored = nil
	}
	if stored != nil && stored[esc.InstallID] == esc.Fingerprint {
		g.logger.Info("escalation approved from remembered decision",
			"install_id", esc.InstallID, "name", esc.Name)
		return loader.NewApprovalToken(esc.InstallID, esc.Fingerprint), nil
	}

	if !g.prompter.IsInteractive() {
		return loader.ApprovalToken{}, fmt.Errorf(
			"%w: %s requests capabilities beyond its approved grant", ErrNonInteractive, esc.Name)
	}

	approved, remember, err := g.prompter.Confirm(esc)
	if err != nil {
		return loader.ApprovalToken{}, err
	}
	if !approved {
		return loader.ApprovalToken{}, fmt.Errorf("%w: user refused escalation for %s", ErrDenied, esc.Name)
	}

	if remember {
		if stored == nil {
			stored = map[registry.InstallID]string{}
		}
		stored[esc.InstallID] = esc.Fingerprint
		if err := g.store.Save(stored); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save approvals: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Approval saved to %s\n", g.store.Path())
		}
	}

	return loader.NewApprovalToken(esc.InstallID, esc.Fingerprint), nil
}

package approval

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/veilbrowser/extension-host/loader"
)

// Prompter asks a human whether an escalation may proceed.
type Prompter interface {
	IsInteractive() bool
	Confirm(esc *loader.Escalation) (approved bool, remember bool, err error)
}

// TerminalPrompter prompts on the controlling terminal.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a new TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Confirm asks whether the escalated update may apply, and whether to
// remember the decision for this exact grant.
func (p *TerminalPrompter) Confirm(esc *loader.Escalation) (bool, bool, error) {
	if esc.Broad() {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "\033[1;33mSecurity Warning: Broad Host Access Requested\033[0m\n\n")
		fmt.Fprintf(os.Stderr, "  %s requests access to every host.\n", esc.Name)
		fmt.Fprintf(os.Stderr, "  Recommendation: review whether this broad access is necessary.\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	var approved bool
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Allow %q to expand its permissions?", esc.Name)).
		Description(describeEscalation(esc)).
		Affirmative("Allow").
		Negative("Deny").
		Value(&approved)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, false, fmt.Errorf("prompt failed: %w", err)
	}
	if !approved {
		return false, false, nil
	}

	var remember bool
	always := huh.NewConfirm().
		Title("Remember this approval?").
		Description("The same update will apply without prompting next time.").
		Affirmative("Always").
		Negative("Just once").
		Value(&remember)

	if err := huh.NewForm(huh.NewGroup(always)).Run(); err != nil {
		return false, false, fmt.Errorf("prompt failed: %w", err)
	}
	return true, remember, nil
}

func describeEscalation(esc *loader.Escalation) string {
	var b strings.Builder
	b.WriteString("Requested capabilities: ")
	caps := esc.Requested.Capabilities()
	for i, c := range caps {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(c))
	}
	b.WriteString("\nRequested host scope: ")
	for i, pat := range esc.Requested.HostScope() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pat.String())
	}
	return b.String()
}

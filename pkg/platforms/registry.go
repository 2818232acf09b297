// Package platforms holds the static registry of supported agent platforms
// and merges user-edited platform lists against it.
package platforms

import (
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Well-known platform identifiers
const (
	Amp         catalog.AgentID = "amp"
	Antigravity catalog.AgentID = "antigravity"
	ClaudeCode  catalog.AgentID = "claude-code"
	Clawdbot    catalog.AgentID = "clawdbot"
	Cline       catalog.AgentID = "cline"
	Codex       catalog.AgentID = "codex"
	CommandCode catalog.AgentID = "command-code"
	Copilot     catalog.AgentID = "copilot"
	Cursor      catalog.AgentID = "cursor"
	Droid       catalog.AgentID = "droid"
	GeminiCLI   catalog.AgentID = "gemini-cli"
	Goose       catalog.AgentID = "goose"
	KiloCode    catalog.AgentID = "kilo-code"
	KiroCLI     catalog.AgentID = "kiro-cli"
	MCPJam      catalog.AgentID = "mcpjam"
	OpenCode    catalog.AgentID = "opencode"
	OpenHands   catalog.AgentID = "openhands"
	Pi          catalog.AgentID = "pi"
	Qoder       catalog.AgentID = "qoder"
	QwenCode    catalog.AgentID = "qwen-code"
	RooCode     catalog.AgentID = "roo-code"
	Trae        catalog.AgentID = "trae"
	Windsurf    catalog.AgentID = "windsurf"
	Zencoder    catalog.AgentID = "zencoder"
	Neovate     catalog.AgentID = "neovate"
)

// ErrUnknownPlatform is returned when an id is not in the registry
var ErrUnknownPlatform = errors.New("unknown platform")

func entry(id catalog.AgentID, name, path, project string, enabled bool) catalog.Platform {
	return catalog.Platform{
		ID:             id,
		Name:           name,
		DefaultPath:    path,
		CurrentPath:    path,
		Enabled:        enabled,
		SuggestedPaths: []string{project, path},
	}
}

var registry = []catalog.Platform{
	entry(Amp, "Amp", "~/.config/agents/skills/", ".agents/skills/", false),
	entry(Antigravity, "Antigravity", "~/.gemini/antigravity/skills/", ".agent/skills/", false),
	entry(ClaudeCode, "Claude Code", "~/.claude/skills/", ".claude/skills/", true),
	entry(Clawdbot, "Clawdbot", "~/.clawdbot/skills/", "skills/", false),
	entry(Cline, "Cline", "~/.cline/skills/", ".cline/skills/", false),
	entry(Codex, "Codex", "~/.codex/skills/", ".codex/skills/", true),
	entry(CommandCode, "Command Code", "~/.commandcode/skills/", ".commandcode/skills/", false),
	entry(Copilot, "GitHub Copilot", "~/.copilot/skills/", ".github/skills/", false),
	entry(Cursor, "Cursor", "~/.cursor/skills/", ".cursor/skills/", false),
	entry(Droid, "Droid", "~/.factory/skills/", ".factory/skills/", false),
	entry(GeminiCLI, "Gemini CLI", "~/.gemini/skills/", ".gemini/skills/", false),
	entry(Goose, "Goose", "~/.config/goose/skills/", ".goose/skills/", false),
	entry(KiloCode, "Kilo Code", "~/.kilocode/skills/", ".kilocode/skills/", false),
	entry(KiroCLI, "Kiro CLI", "~/.kiro/skills/", ".kiro/skills/", false),
	entry(MCPJam, "MCPJam", "~/.mcpjam/skills/", ".mcpjam/skills/", false),
	entry(OpenCode, "OpenCode", "~/.config/opencode/skills/", ".opencode/skills/", false),
	entry(OpenHands, "OpenHands", "~/.openhands/skills/", ".openhands/skills/", false),
	entry(Pi, "Pi", "~/.pi/agent/skills/", ".pi/skills/", false),
	entry(Qoder, "Qoder", "~/.qoder/skills/", ".qoder/skills/", false),
	entry(QwenCode, "Qwen Code", "~/.qwen/skills/", ".qwen/skills/", false),
	entry(RooCode, "Roo Code", "~/.roo/skills/", ".roo/skills/", false),
	entry(Trae, "Trae", "~/.trae/skills/", ".trae/skills/", false),
	entry(Windsurf, "Windsurf", "~/.codeium/windsurf/skills/", ".windsurf/skills/", false),
	entry(Zencoder, "Zencoder", "~/.zencoder/skills/", ".zencoder/skills/", false),
	entry(Neovate, "Neovate", "~/.neovate/skills/", ".neovate/skills/", false),
}

// Defaults returns a copy of the registry in display order
func Defaults() []catalog.Platform {
	out := make([]catalog.Platform, len(registry))
	for i, p := range registry {
		out[i] = clonePlatform(p)
	}
	return out
}

// Lookup returns the registry entry for id
func Lookup(id catalog.AgentID) (catalog.Platform, error) {
	for _, p := range registry {
		if p.ID == id {
			return clonePlatform(p), nil
		}
	}
	return catalog.Platform{}, errors.Wrapf(ErrUnknownPlatform, "platform %q", id)
}

// IsKnown reports whether id is in the registry
func IsKnown(id catalog.AgentID) bool {
	_, err := Lookup(id)
	return err == nil
}

func clonePlatform(p catalog.Platform) catalog.Platform {
	out := p
	out.SuggestedPaths = append([]string(nil), p.SuggestedPaths...)
	return out
}

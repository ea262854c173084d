package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// actionBlockRe matches fenced code blocks tagged "hexstrike"; the body is
// expected to be a JSON action object.
var actionBlockRe = regexp.MustCompile("(?s)```hexstrike\\s*\\n(.*?)\\n```")

// Action is one directive the model embedded in its reply
type Action struct {
	Agent  string `json:"agent"`
	Target string `json:"target"`
	Action string `json:"action"`
}

// ToolAPI is the slice of the automation server the dispatcher needs.
// Implemented by hexstrike.Client.
type ToolAPI interface {
	SelectTools(ctx context.Context, target string) ([]string, error)
	AnalyzeTarget(ctx context.Context, target, analysisType string) ([]string, error)
}

// Dispatcher extracts hexstrike action blocks from model output and executes
// them against the automation server.
type Dispatcher struct {
	api    ToolAPI
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher backed by the given tool API
func NewDispatcher(api ToolAPI, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{api: api, logger: logger}
}

// Process scans the reply for action blocks and appends their execution
// results under a single Execution section. A reply without action blocks is
// returned unchanged. The original model text is never mutated.
func (d *Dispatcher) Process(ctx context.Context, response string) string {
	matches := actionBlockRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return response
	}

	results := "\n\n---\n**🔧 HexStrike Execution:**\n"

	for _, match := range matches {
		var action Action
		if err := json.Unmarshal([]byte(match[1]), &action); err != nil {
			d.logger.Warn("malformed action block", zap.Error(err))
			results += "\n⚠️ Invalid action format\n"
			continue
		}
		results += "\n" + d.execute(ctx, action) + "\n"
	}

	return response + results
}

// execute runs a single well-formed action and renders its result
func (d *Dispatcher) execute(ctx context.Context, action Action) string {
	if action.Target == "" {
		return "⚠️ No target specified"
	}

	actionType := action.Action
	if actionType == "" {
		actionType = "analyze"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Target: **%s**\n", action.Target)
	fmt.Fprintf(&b, "🤖 Agent: **%s**\n", action.Agent)
	fmt.Fprintf(&b, "⚡ Action: **%s**\n\n", actionType)

	switch actionType {
	case "analyze", "full_recon":
		tools, err := d.api.SelectTools(ctx, action.Target)
		if err != nil {
			d.logger.Warn("tool selection failed", zap.String("target", action.Target), zap.Error(err))
		}
		b.WriteString("**Tools Selected:**\n")
		for _, tool := range tools {
			fmt.Fprintf(&b, "- `%s`\n", tool)
		}

		plan, err := d.api.AnalyzeTarget(ctx, action.Target, "recon")
		if err != nil {
			d.logger.Warn("target analysis failed", zap.String("target", action.Target), zap.Error(err))
		}
		b.WriteString("\n**Execution Plan:**\n")
		for _, step := range plan {
			fmt.Fprintf(&b, "- %s\n", step)
		}

	case "scan":
		tools, err := d.api.SelectTools(ctx, action.Target)
		if err != nil {
			d.logger.Warn("tool selection failed", zap.String("target", action.Target), zap.Error(err))
		}
		if len(tools) > 3 {
			tools = tools[:3]
		}
		b.WriteString("**Scanning with:**\n")
		for _, tool := range tools {
			fmt.Fprintf(&b, "- `%s`\n", tool)
		}
		b.WriteString("\n🔄 Scan in progress... (check Telemetry for real-time status)")

	default:
		fmt.Fprintf(&b, "⚠️ Unknown action type: %s", actionType)
	}

	return b.String()
}

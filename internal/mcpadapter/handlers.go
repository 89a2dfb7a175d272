package mcpadapter

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// GuardPromptInput is the MCP tool input schema (matches HTTP API field names).
type GuardPromptInput struct {
	EventID string `json:"event_id,omitempty" jsonschema:"optional event identifier, used as request id"`
	Prompt  string `json:"prompt" jsonschema:"user prompt to guard and send to the LLM"`
}

// CheckTextInput is the MCP tool input schema for stage-only checks.
type CheckTextInput struct {
	Text string `json:"text" jsonschema:"text to run through the rails"`
}

// CheckRailInput is the MCP tool input schema for single rail checks.
type CheckRailInput struct {
	RailName string `json:"rail_name" jsonschema:"rail name as defined in rails.yaml"`
	Text     string `json:"text" jsonschema:"text to evaluate"`
}

// Register adds the guardrail tools to server.
func Register(server *mcp.Server, guard guardrail.Guard) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "guard_prompt",
		Description: "Run a prompt through input rails, the LLM and output rails, returning the guarded completion and every rail verdict",
	}, NewGuardPromptHandler(guard))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_input",
		Description: "Run text through the input rails only. The LLM is not called.",
	}, NewCheckInputHandler(guard))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_output",
		Description: "Run text through the output rails only. The LLM is not called.",
	}, NewCheckOutputHandler(guard))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_rail",
		Description: "Evaluate text with a single configured rail",
	}, NewCheckRailHandler(guard))
}

// NewGuardPromptHandler returns a tool handler that uses the given guard.
// Pass the returned function to mcp.AddTool.
func NewGuardPromptHandler(guard guardrail.Guard) func(context.Context, *mcp.CallToolRequest, GuardPromptInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GuardPromptInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
		if input.Prompt == "" {
			return nil, models.GuardrailResult{}, fmt.Errorf("prompt is required")
		}
		result, err := guard.ProcessRequest(ctx, models.GuardRequest{EventID: input.EventID, Prompt: input.Prompt})
		return nil, result, err
	}
}

func NewCheckInputHandler(guard guardrail.Guard) func(context.Context, *mcp.CallToolRequest, CheckTextInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CheckTextInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
		result, err := guard.CheckInput(ctx, input.Text)
		return nil, result, err
	}
}

func NewCheckOutputHandler(guard guardrail.Guard) func(context.Context, *mcp.CallToolRequest, CheckTextInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CheckTextInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
		result, err := guard.CheckOutput(ctx, input.Text)
		return nil, result, err
	}
}

func NewCheckRailHandler(guard guardrail.Guard) func(context.Context, *mcp.CallToolRequest, CheckRailInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CheckRailInput) (*mcp.CallToolResult, models.GuardrailResult, error) {
		result, err := guard.CheckRail(ctx, input.RailName, input.Text)
		return nil, result, err
	}
}

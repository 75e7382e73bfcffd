package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentplane/core/internal/policy"
	"github.com/agentplane/core/pkg/models"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// MCPClient forwards a validated call to the MCP server that owns a
// pinned tool.
type MCPClient interface {
	Call(ctx context.Context, server, tool string, args json.RawMessage) (any, error)
}

// UseMCPToolArgs is the payload the agent sends to the use_mcp_tool
// meta-tool.
type UseMCPToolArgs struct {
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// NewUseMCPToolHandler builds the handler for the use_mcp_tool meta-tool:
// it re-checks policy, validates arguments against the MCP tool's JSON
// Schema, then forwards the call to the managing MCP client.
func NewUseMCPToolHandler(registry *Registry, resolver *policy.Resolver, eff *policy.Effective, client MCPClient) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args UseMCPToolArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrToolValidation, err)
		}

		entry, ok := registry.Get(args.ToolName)
		if !ok || entry.Source != models.SourceMCP {
			return nil, fmt.Errorf("%w: %q is not an MCP tool", models.ErrToolNotFound, args.ToolName)
		}

		name := args.ToolName
		if resolver != nil {
			name = resolver.CanonicalName(name)
		}
		if eff != nil && !eff.IsAllowed(name) {
			return nil, fmt.Errorf("%w: %q denied by policy", models.ErrToolValidation, args.ToolName)
		}

		if len(entry.Definition.InputSchema) > 0 {
			if err := ValidateAgainstSchema(entry.Definition.InputSchema, args.Arguments); err != nil {
				return nil, err
			}
		}

		if client == nil {
			return nil, fmt.Errorf("%w: no MCP client bound for %q", models.ErrSandbox, entry.MCPServer)
		}
		return client.Call(ctx, entry.MCPServer, args.ToolName, args.Arguments)
	}
}

// ValidateAgainstSchema compiles schema (a JSON Schema document) and
// validates payload against it, returning an error whose message
// includes the violated property path and a one-line hint.
func ValidateAgainstSchema(schema map[string]any, payload json.RawMessage) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("%w: invalid schema: %v", models.ErrToolValidation, err)
	}

	compiler := jsonschema.NewCompiler()
	const resource = "inline://schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrToolValidation, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrToolValidation, err)
	}

	var doc any
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON arguments: %v", models.ErrToolValidation, err)
	}

	// ValidationError's Error() already includes the violated property
	// path (instance location) and a one-line hint.
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", models.ErrToolValidation, err)
	}
	return nil
}

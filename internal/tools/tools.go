package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/mistakeknot/haconverse/internal/config"
	"github.com/mistakeknot/haconverse/internal/homeassistant"
)

// ConversationToolName is the only tool this server advertises.
const ConversationToolName = "ha_conversation"

const missingConfigMessage = "Home Assistant configuration not provided. Please set " +
	config.EnvURL + " and " + config.EnvToken + " environment variables."

// RegisterAll registers all MCP tools. cfg may be nil; the tool is still
// listed and reports the missing configuration when called.
func RegisterAll(s *server.MCPServer, cfg *config.Config, log zerolog.Logger) {
	s.AddTools(
		conversationTool(cfg, log),
	)
}

// ConversationTool returns the static descriptor for ha_conversation.
func ConversationTool() mcp.Tool {
	return mcp.NewTool(ConversationToolName,
		mcp.WithDescription("Send conversation request to Home Assistant conversation agent"),
		mcp.WithString("text",
			mcp.Description("The conversation text to send to Home Assistant"),
			mcp.Required(),
		),
	)
}

func conversationTool(cfg *config.Config, log zerolog.Logger) server.ServerTool {
	var client *homeassistant.Client
	if cfg != nil {
		client = homeassistant.NewClient(cfg)
	}

	return server.ServerTool{
		Tool: ConversationTool(),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, errText := requiredString(req.GetArguments(), "text")
			if errText != "" {
				return mcp.NewToolResultError(errText), nil
			}

			callLog := log.With().Str("call_id", uuid.NewString()).Logger()
			if client == nil {
				callLog.Warn().Msg("conversation requested without configuration")
				return mcp.NewToolResultError(missingConfigMessage), nil
			}

			start := time.Now()
			raw, err := client.Converse(ctx, text)
			if err != nil {
				callLog.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("conversation failed")
				return mcp.NewToolResultError(fmt.Sprintf("Home Assistant API error: %v", err)), nil
			}
			callLog.Debug().Dur("elapsed", time.Since(start)).Int("bytes", len(raw)).Msg("conversation processed")

			return indentedResult(raw)
		},
	}
}

// requiredString only checks the type: an empty string is forwarded as is.
func requiredString(args map[string]any, key string) (string, string) {
	value, ok := args[key].(string)
	if !ok {
		return "", fmt.Sprintf("invalid arguments: %s is required and must be a string", key)
	}
	return value, ""
}

func indentedResult(raw json.RawMessage) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("format tool response: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// Package config loads Home Assistant connection settings from the process
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Environment variable names.
const (
	EnvURL            = "HOME_ASSISTANT_URL"
	EnvToken          = "HOME_ASSISTANT_TOKEN"
	EnvAgentID        = "HOME_ASSISTANT_AGENT_ID"
	EnvLanguage       = "HOME_ASSISTANT_LANGUAGE"
	EnvConversationID = "HOME_ASSISTANT_CONVERSATION_ID"
	EnvInsecure       = "HOME_ASSISTANT_INSECURE"
	EnvDotenvPath     = "DOTENV_PATH"
)

const conversationPath = "/api/conversation/process"

// Config holds the hub connection parameters. A *Config is only ever
// constructed with a non-empty URL and Token and is not mutated afterwards.
type Config struct {
	URL            string
	Token          string
	AgentID        string
	Language       string
	ConversationID string
	Insecure       bool
}

// Endpoint returns the conversation endpoint with at most one trailing
// slash removed from the base URL.
func (c *Config) Endpoint() string {
	return strings.TrimSuffix(c.URL, "/") + conversationPath
}

// Load reads the HOME_ASSISTANT_* variables. It returns nil when the URL or
// token is missing; callers report that lazily so the server still starts.
func Load(log zerolog.Logger) *Config {
	url := os.Getenv(EnvURL)
	token := os.Getenv(EnvToken)
	agentID := os.Getenv(EnvAgentID)
	language := os.Getenv(EnvLanguage)
	conversationID := os.Getenv(EnvConversationID)
	insecure := parseInsecure(os.Getenv(EnvInsecure))

	log.Info().
		Str(EnvURL, setOrNot(url)).
		Str(EnvToken, setOrNot(token)).
		Str(EnvAgentID, setOrNot(agentID)).
		Str(EnvLanguage, setOrNot(language)).
		Str(EnvConversationID, setOrNot(conversationID)).
		Bool(EnvInsecure, insecure).
		Msg("environment variables check")

	if url == "" || token == "" {
		log.Warn().Msgf("environment not configured: %s and %s are required", EnvURL, EnvToken)
		return nil
	}

	cfg := &Config{
		URL:            url,
		Token:          token,
		AgentID:        agentID,
		Language:       language,
		ConversationID: conversationID,
		Insecure:       insecure,
	}
	ev := log.Info().Str("url", cfg.URL).Str("endpoint", cfg.Endpoint())
	if cfg.AgentID != "" {
		ev = ev.Str("agent_id", cfg.AgentID)
	}
	if cfg.Language != "" {
		ev = ev.Str("language", cfg.Language)
	}
	if cfg.ConversationID != "" {
		ev = ev.Str("conversation_id", cfg.ConversationID)
	}
	ev.Msg("Home Assistant configuration loaded from environment")
	return cfg
}

// parseInsecure recognizes only the literal strings "1" and "true".
func parseInsecure(v string) bool {
	return v == "1" || v == "true"
}

func setOrNot(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}

// LoadDotenv loads the first .env file found among DOTENV_PATH, the working
// directory, and the directories around the executable. Variables already
// present in the environment are not overridden. It returns the loaded path,
// or "" when only the default lookup ran.
func LoadDotenv(log zerolog.Logger) string {
	for _, p := range dotenvCandidates() {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("load .env")
			continue
		}
		log.Info().Str("path", p).Msg("loaded environment variables")
		return p
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("load default .env")
	}
	return ""
}

func dotenvCandidates() []string {
	var paths []string
	if p := os.Getenv(EnvDotenvPath); p != "" {
		paths = append(paths, p)
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, ".env"))
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(dir, ".env"),
			filepath.Join(dir, "..", ".env"),
		)
	}
	return paths
}

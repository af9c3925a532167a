package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing-config.yaml"))
	t.Setenv("DOTENV_PATH", filepath.Join(dir, "missing.env"))
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg := LoadConfig()

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"slavelabour", "forhire", "hiring", "freelance"}, cfg.TaskSubreddits)
	assert.Equal(t, "week", cfg.ScanTimeFilter)
	assert.Equal(t, 50, cfg.ScanLimit)
	assert.Equal(t, 30, cfg.ScanIntervalMinutes)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, 5, cfg.LLMMaxAnalyze)
	assert.Equal(t, 20, cfg.LLMRequestsPerMinute)
	assert.Equal(t, 30, cfg.ExternalHTTPTimeoutSeconds)
	require.NotNil(t, cfg.TaskTagBonus)
	assert.Equal(t, 1, *cfg.TaskTagBonus)
	assert.False(t, cfg.AutoScanOnStart)
	assert.False(t, cfg.LLMConfigured())
	assert.False(t, cfg.AnyChannelConfigured())
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9000"
llm_provider: "anthropic"
anthropic_api_key: "yaml-anthropic"
task_subreddits: ["forhire"]
task_tag_bonus: 0
scan_interval_minutes: 15
scan_schedule: "0 */2 * * *"
telegram_bot_token: "tg"
telegram_chat_id: "42"
llm_skill_profile:
  - "Go services"
external_http_timeout_seconds: 75
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("TASK_SUBREDDITS", "slavelabour, hiring ,")
	t.Setenv("AUTO_SCAN_ON_START", "true")
	t.Setenv("LLM_SKILL_PROFILE", "Scraping (Python, Playwright);Chrome extensions")
	t.Setenv("EXTERNAL_HTTP_TIMEOUT_SECONDS", "120")

	cfg := LoadConfig()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.True(t, cfg.LLMConfigured())
	assert.Equal(t, []string{"slavelabour", "hiring"}, cfg.TaskSubreddits)
	assert.Equal(t, 0, *cfg.TaskTagBonus)
	assert.Equal(t, 15, cfg.ScanIntervalMinutes)
	assert.Equal(t, "0 */2 * * *", cfg.ScanSchedule)
	assert.True(t, cfg.AutoScanOnStart)
	assert.True(t, cfg.TelegramConfigured())
	assert.False(t, cfg.SlackConfigured())
	assert.Equal(t, []string{"Scraping (Python, Playwright)", "Chrome extensions"}, cfg.LLMSkillProfile)
	assert.Equal(t, 120, cfg.ExternalHTTPTimeoutSeconds)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	isolate(t)
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PUSHPLUS_TOKEN=from-dotenv\n"), 0o644))
	t.Setenv("DOTENV_PATH", envPath)
	// Registered so t.Setenv restores the unset state after godotenv sets it.
	t.Setenv("PUSHPLUS_TOKEN", "")
	require.NoError(t, os.Unsetenv("PUSHPLUS_TOKEN"))

	cfg := LoadConfig()
	assert.Equal(t, "from-dotenv", cfg.PushPlusToken)
	assert.True(t, cfg.PushPlusConfigured())
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("TR_TEST_STR", "value")
	envOverride(&s, "TR_TEST_STR")
	assert.Equal(t, "value", s)

	i := 1
	t.Setenv("TR_TEST_INT", "42")
	envOverrideInt(&i, "TR_TEST_INT")
	assert.Equal(t, 42, i)

	b := false
	t.Setenv("TR_TEST_BOOL", "1")
	envOverrideBool(&b, "TR_TEST_BOOL")
	assert.True(t, b)

	e := "x"
	t.Setenv("TR_TEST_EMPTY", "")
	envOverrideAllowEmpty(&e, "TR_TEST_EMPTY")
	assert.Empty(t, e)

	list := []string{"keep"}
	envOverrideList(&list, "TR_TEST_UNSET_LIST", ",")
	assert.Equal(t, []string{"keep"}, list)
}

func runFatalSubprocess(t *testing.T, name, flag string) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run="+name)
	cmd.Env = append(os.Environ(), flag+"=1")
	err := cmd.Run()
	require.Error(t, err, "expected subprocess to exit with failure")
	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr), "expected ExitError, got: %v", err)
}

func TestLoadConfigInvalidScheduleFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_SCHEDULE_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("SCAN_SCHEDULE", "every now and then")
		LoadConfig()
		return
	}
	runFatalSubprocess(t, "TestLoadConfigInvalidScheduleFatal", "TEST_INVALID_SCHEDULE_FATAL")
}

func TestLoadConfigInvalidProviderFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_PROVIDER_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("LLM_PROVIDER", "bard")
		LoadConfig()
		return
	}
	runFatalSubprocess(t, "TestLoadConfigInvalidProviderFatal", "TEST_INVALID_PROVIDER_FATAL")
}

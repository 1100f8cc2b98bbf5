package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"neurotome/controlplane"
	"neurotome/core"
	"neurotome/factories"
	"neurotome/runner"
)

const version = "1.0.0"

func main() {
	var connectURL, settingsPath string
	flag.StringVar(&connectURL, "connect", "", "WebSocket URL of UI control plane (e.g. ws://ui:8888/ws/agent)")
	flag.StringVar(&settingsPath, "settings", "", "path to settings.json (overrides SETTINGS_PATH)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Debug("No .env.local file found or failed to load")
	}

	settings := loadSettingsFromEnv(settingsPath)
	core.SetLogger(*core.NewConsoleLogger(color.Output, settings.LogLevel))
	logger := core.GetLogger()

	if connectURL == "" {
		connectURL = getEnv("NEUROTOME_CONTROL_PLANE_URL", settings.ControlPlane.URL)
	}

	sessionCfg, err := settings.ResolveSession(ctx)
	if err != nil {
		logger.With(map[string]any{"error": err}).Warn("failed to resolve session config, using defaults")
		sessionCfg = factories.DefaultSessionConfig()
	}

	sessionID := uuid.NewString()
	var client *controlplane.Client
	var logWriter *controlplane.WSLogWriter
	if connectURL != "" {
		client = newControlPlaneClient(connectURL, sessionID, settings.ControlPlane, logger)
		logWriter = controlplane.NewWSLogWriter(client)
		logger = core.NewTeeLogger(logger, logWriter)
	}

	completer, err := factories.BuildCompleter(settings.Completer, logger)
	if err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to build completer")
		os.Exit(1)
	}
	speech := factories.BuildSpeechEngines(settings.Speech, color.Output, logger)

	opts := []runner.Option{runner.WithLogger(logger), runner.WithSessionID(sessionID)}
	if client != nil {
		opts = append(opts, runner.WithPublisher(client), runner.WithEventSink(client))
	}
	r := runner.NewRunner(sessionCfg.RunnerConfig(), speech.Engines(), completer, opts...)

	if client != nil {
		bindIntents(client, r, cancel)
		if err := client.Connect(ctx); err != nil {
			logger.With(map[string]any{"error": err}).Error("failed to connect to control plane")
			os.Exit(1)
		}
		// The agent lives as long as its UI connection.
		go func() {
			client.Wait()
			logger.Info("control plane connection closed, shutting down")
			cancel()
		}()
	}

	if err := r.Start(ctx); err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to start runner")
		os.Exit(1)
	}

	printBanner(r.Voice().IsSupported())
	go readConsole(ctx, cancel, r, speech, logger)

	<-ctx.Done()
	logger.Info("Shutting down...")
	r.Stop()
	if client != nil {
		logWriter.Close()
		time.Sleep(500 * time.Millisecond)
		client.Close()
	}
}

func newControlPlaneClient(connectURL, sessionID string, cfg factories.ControlPlaneConfig, logger *core.Logger) *controlplane.Client {
	agentID := getEnv("AGENT_ID", cfg.AgentID)
	if agentID == "" {
		if hostname, err := os.Hostname(); err == nil {
			agentID = hostname
		} else {
			agentID = "agent-" + uuid.NewString()[:8]
		}
	}
	hostname, _ := os.Hostname()
	return controlplane.NewClient(controlplane.ClientConfig{
		ConnectURL:        connectURL,
		AgentID:           agentID,
		SessionID:         sessionID,
		Version:           version,
		Capabilities:      []string{"voice", "chat", "mood_check_in"},
		Metadata:          map[string]string{"hostname": hostname},
		HeartbeatInterval: cfg.HeartbeatInterval,
		Logger:            logger,
	})
}

func bindIntents(client *controlplane.Client, r *runner.Runner, cancel context.CancelFunc) {
	client.OnPushToTalk = r.PushToTalk
	client.OnStopSpeaking = r.StopSpeaking
	client.OnSelectMood = r.SelectMood
	client.OnSendText = r.SendText
	client.OnClearMessages = r.ClearMessages
	client.OnShutdown = func(reason string) { cancel() }
	client.StatusFunc = r.Status
}

// loadSettingsFromEnv loads SettingsConfig from SETTINGS_JSON_B64 or a file,
// then applies environment overrides.
func loadSettingsFromEnv(path string) factories.SettingsConfig {
	logger := core.GetLogger()
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			logger.With(map[string]any{"error": decErr}).Error("failed to decode SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else {
			settings, err = factories.SettingsConfigFromJSON(data)
			if err != nil {
				logger.With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
			} else {
				logger.Info("loaded settings from SETTINGS_JSON_B64")
			}
		}
	} else {
		if path == "" {
			path = getEnv("SETTINGS_PATH", "./settings.json")
		}
		settings, err = factories.SettingsConfigFromFile(path)
		if err != nil {
			logger.With(map[string]any{"path": path, "error": err}).Warn("failed to load settings, using defaults")
		}
	}

	if endpoint := os.Getenv("NEUROTOME_API_ENDPOINT"); endpoint != "" {
		settings.Completer.SetEndpoint(endpoint)
	}
	settings.Completer.InjectAPIKeys(factories.APIKeys{
		OpenAI:     getEnv("OPENAI_API_KEY", ""),
		Together:   getEnv("TOGETHER_API_KEY", ""),
		Groq:       getEnv("GROQ_API_KEY", ""),
		DeepSeek:   getEnv("DEEPSEEK_API_KEY", ""),
		OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		Mistral:    getEnv("MISTRAL_API_KEY", ""),
	})
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		settings.LogLevel = level
	}
	return settings
}

func printBanner(voiceSupported bool) {
	title := color.New(color.FgGreen, color.Bold)
	hint := color.New(color.FgHiBlack)
	title.Println("Neurotome, your mental wellness companion")
	if voiceSupported {
		hint.Println("Type to speak. Commands: /talk /mood <great|good|okay|low|struggling> /welcome /stop /clear /quit")
	} else {
		hint.Println("Voice is unavailable; typed messages are sent directly. Commands: /mood <m> /clear /quit")
	}
}

// readConsole turns stdin lines into intents. Plain lines are spoken into
// the recognizer, opening a capture session first when none is open.
func readConsole(ctx context.Context, cancel context.CancelFunc, r *runner.Runner, speech *factories.SpeechEngines, logger *core.Logger) {
	warn := color.New(color.FgYellow)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			cmd, arg, _ := strings.Cut(line, " ")
			switch cmd {
			case "/talk":
				r.PushToTalk()
			case "/mood":
				mood, err := core.ParseMood(arg)
				if err != nil {
					warn.Printf("Pick one of: %s\n", moodNames())
					continue
				}
				r.SelectMood(mood)
			case "/welcome":
				r.Welcome()
			case "/stop":
				r.StopSpeaking()
			case "/clear":
				r.ClearMessages()
			case "/quit", "/exit":
				cancel()
				return
			default:
				warn.Printf("Unknown command %s\n", cmd)
			}
			continue
		}

		if speech.Recognizer == nil {
			r.SendText(line)
			continue
		}
		if !speech.Recognizer.Listening() {
			r.PushToTalk()
			if !waitListening(ctx, speech) {
				warn.Println("Still thinking, try again in a moment.")
				continue
			}
		}
		speech.Recognizer.Feed(line)
	}
	if err := scanner.Err(); err != nil {
		logger.With(map[string]any{"error": err}).Warn("console input closed")
	}
}

func waitListening(ctx context.Context, speech *factories.SpeechEngines) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if speech.Recognizer.Listening() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
	return false
}

func moodNames() string {
	names := make([]string, len(core.Moods))
	for i, m := range core.Moods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

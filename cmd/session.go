package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mendtool/mend/pkg/changetracker"
	"github.com/mendtool/mend/pkg/config"
	"github.com/mendtool/mend/pkg/correction"
	"github.com/mendtool/mend/pkg/diagnostics"
	"github.com/mendtool/mend/pkg/events"
	"github.com/mendtool/mend/pkg/llm"
	"github.com/mendtool/mend/pkg/plan"
	"github.com/mendtool/mend/pkg/prompts"
	"github.com/mendtool/mend/pkg/utils"
	"github.com/mendtool/mend/pkg/webui"
	"github.com/mendtool/mend/pkg/workspace"
)

// session wires everything one generation command needs: config, model
// client, workspace IO, the diagnostics bridge, the change log, and the
// correction engine itself.
type session struct {
	cfg     *config.Config
	logger  *utils.Logger
	bus     *events.EventBus
	files   *workspace.Workspace
	bridge  *diagnostics.FileBridge
	tracker *changetracker.Tracker
	engine  *correction.Engine
	ui      *webui.Server
}

func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadOrInit(skipPrompt)
	if err != nil {
		return nil, err
	}
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	cfg.SkipPrompt = skipPrompt
	cfg.UIEnabled = uiEnabled

	logger := utils.GetLogger(cfg.SkipPrompt)

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if checker, ok := client.(llm.ConnectionChecker); ok {
		if err := checker.CheckConnection(ctx); err != nil {
			return nil, err
		}
	}

	bridge, err := diagnostics.NewFileBridge(cfg.DiagnosticsFile)
	if err != nil {
		return nil, err
	}

	ws := workspace.New(".")
	tracker := changetracker.NewTracker(cfg.ChangeLogFile)
	bus := events.NewEventBus()

	executor := plan.NewExecutor(plan.ExecutorOptions{
		Root:      ws.Root(),
		Files:     ws,
		Generator: &correction.ModelGenerator{Client: client, Logger: logger, Bus: bus},
		Runner:    workspace.NewRunner(cfg.CommandTimeout()),
		Changes:   tracker,
		Bus:       bus,
		Logger:    logger,
	})

	s := &session{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		files:   ws,
		bridge:  bridge,
		tracker: tracker,
		engine: correction.NewEngine(correction.Options{
			Config:    cfg,
			Root:      ws.Root(),
			Client:    client,
			Files:     ws,
			Validator: diagnostics.NewMonitor(bridge),
			Executor:  executor,
			Changes:   tracker,
			Bus:       bus,
			Logger:    logger,
		}),
	}

	if cfg.UIEnabled {
		s.ui = webui.NewServer(bus, cfg.UIListenAddr, logger)
		if err := s.ui.Start(ctx); err != nil {
			bridge.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *session) close() {
	if s.ui != nil && s.ui.IsRunning() {
		s.ui.Shutdown()
	}
	s.bridge.Close()
}

// loadBufferFromStdin registers stdin as the target's unsaved editor content,
// so reads see what the editor shows rather than what is on disk.
func (s *session) loadBufferFromStdin(target string) error {
	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading the editor buffer from stdin: %w", err)
	}
	s.files.SetBuffer(target, string(content))
	return nil
}

// printResult prints the parts of a finished request the progress log did
// not already show: remaining issues, fix suggestions, and timing.
func printResult(result *correction.Result) {
	if len(result.Issues) > 0 {
		validation := diagnostics.NewValidationResult(result.Content, result.Issues, result.Suggestions)
		fmt.Println("\nRemaining issues:")
		for _, issue := range result.Issues {
			fmt.Printf("  %s\n", issue.String())
		}
		if validation.Valid {
			fmt.Println("  (none are errors)")
		} else {
			fmt.Printf("  (%d of them are errors)\n", validation.ErrorCount())
		}
	}
	if len(result.Suggestions) > 0 {
		fmt.Println("\nSuggestions:")
		for _, suggestion := range result.Suggestions {
			fmt.Printf("  - %s\n", suggestion)
		}
	}
	fmt.Print(prompts.RequestFinished(result.Duration))
}

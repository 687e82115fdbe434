// Command mentor-voice is a terminal voice client: it syncs a local code
// file to the mentor backend and holds a duplex voice conversation about
// it through the default microphone and speaker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voicecode-ai/mentor/sdk"
)

func readCode(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func run() error {
	baseURL := flag.String("url", "http://localhost:8080", "mentor backend base URL")
	stateDir := flag.String("state-dir", defaultStateDir(), "directory for persisted session state")
	codeFile := flag.String("code", "", "path to the code file to sync")
	problemID := flag.String("problem", "", "problem identifier")
	language := flag.String("language", "", "programming language of the code file")
	hintLevel := flag.Int("hints", 0, "hint directness, 0 (questions only) to 3")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client, err := sdk.New(
		sdk.WithBaseURL(*baseURL),
		sdk.WithStateDir(*stateDir),
		sdk.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	getState := func() sdk.EditorState {
		return sdk.EditorState{
			Code:      readCode(*codeFile),
			ProblemID: *problemID,
			Language:  *language,
			HintLevel: *hintLevel,
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Push the initial state so the voice agent starts with context.
	syncer := sdk.NewContextSync(client, 5*time.Second)
	if *codeFile != "" || *problemID != "" {
		if !syncer.ForceSync(ctx, getState()) {
			fmt.Fprintln(os.Stderr, "warning: initial context sync failed, continuing without context")
		}
	}
	syncer.Start(getState)
	defer syncer.Stop()

	session := sdk.NewDuplexSession(client, sdk.DuplexConfig{
		OnStatus: func(status sdk.SessionStatus, detail string) {
			if detail != "" {
				fmt.Printf("[%s] %s\n", status, detail)
				return
			}
			fmt.Printf("[%s]\n", status)
		},
		OnMessage: func(msg sdk.VoiceMessage) {
			text := strings.TrimSpace(msg.Text)
			if text == "" {
				return
			}
			switch msg.Kind {
			case sdk.KindUserTranscript:
				fmt.Printf("you: %s\n", text)
			case sdk.KindAgentResponse:
				fmt.Printf("mentor: %s\n", text)
			}
		},
		Logger: logger,
	})

	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer session.Disconnect()

	fmt.Println("connected, start talking (ctrl-c to hang up)")
	<-ctx.Done()
	fmt.Println("\nhanging up")
	return nil
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + "/mentor-voice"
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mentor-voice: %v\n", err)
		os.Exit(1)
	}
}

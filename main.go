package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	voxcli "github.com/voxlate/voxlate/client"
	"github.com/voxlate/voxlate/config"
	voxserv "github.com/voxlate/voxlate/server"
)

func main() {
	serve := flag.Bool("serve", false, "Run the dev translation backend")
	configPath := flag.String("config", "", "Path to backend YAML config")
	serverURL := flag.String("server", "ws://localhost:8080", "Backend WebSocket base URL")
	apiURL := flag.String("api", "http://localhost:8080", "Backend REST base URL")
	roomID := flag.String("room", "", "Room identifier")
	listen := flag.Bool("listen", false, "Join as a listener instead of a speaker")
	sourceLang := flag.String("source", "en-US", "Source language code")
	targetLang := flag.String("target", "hi-IN", "Target language code (listener)")
	playFile := flag.String("file", "", "Broadcast a WAV file instead of the microphone")
	spoolDir := flag.String("spool", "", "Watch a directory and broadcast each WAV dropped into it")
	deviceID := flag.Int("device", 0, "Audio input device ID to use")
	listDevices := flag.Bool("list-devices", false, "List available audio input devices")
	insecureMode := flag.Bool("insecure", false, "Skip TLS certificate verification")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *listDevices {
		devices, err := voxcli.ListAudioDevices()
		if err != nil {
			slog.Error("Failed to list audio devices", "error", err)
			os.Exit(1)
		}
		fmt.Println("Available audio input devices:")
		for i, device := range devices {
			fmt.Printf("[%d] %s\n", i, device.Name)
			fmt.Printf("    Max Input Channels: %d\n", device.MaxInputChannels)
			fmt.Printf("    Default Sample Rate: %f\n", device.DefaultSampleRate)
			fmt.Println()
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	if *serve {
		cfg, err := config.Load(*configPath)
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
		srv, err := voxserv.New(ctx, cfg)
		if err != nil {
			slog.Error("Failed to initialize backend", "error", err)
			os.Exit(1)
		}
		if err := srv.Start(ctx); err != nil {
			slog.Error("Backend failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if *roomID == "" {
		slog.Error("A room ID is required (use -room)")
		flag.Usage()
		os.Exit(1)
	}

	params := voxcli.Params{
		ServerURL:   *serverURL,
		APIURL:      *apiURL,
		RoomID:      *roomID,
		SourceLang:  *sourceLang,
		TargetLang:  *targetLang,
		InsecureTLS: *insecureMode,
	}

	if *listen {
		runListener(ctx, params)
	} else {
		runSpeaker(ctx, params, *playFile, *spoolDir, *deviceID)
	}

	slog.Debug("Program exiting")
}

func runListener(ctx context.Context, params voxcli.Params) {
	player, err := voxcli.NewPortAudioPlayer()
	if err != nil {
		slog.Error("Failed to initialize audio output", "error", err)
		os.Exit(1)
	}
	defer player.Close()

	session := voxcli.NewListenerSession(params, player)
	session.Router().SetCallbacks(voxcli.RouterOptions{
		OnText: func() {
			fmt.Printf("\r%s", session.Translation())
		},
		OnError: func(msg string) {
			fmt.Fprintf(os.Stderr, "\nbackend error: %s\n", msg)
		},
	})

	if err := session.Resolve(ctx); err != nil {
		slog.Error("Failed to resolve room config", "error", err, "roomId", params.RoomID)
		os.Exit(1)
	}
	if err := session.Connect(ctx); err != nil {
		slog.Error("Failed to connect", "error", err)
		os.Exit(1)
	}

	slog.Info("Listening", "roomId", params.RoomID, "target", params.TargetLang)
	<-ctx.Done()

	session.Close()
	// Let already-received audio finish before exiting
	session.Scheduler().WaitIdle()
	fmt.Println()
}

func runSpeaker(ctx context.Context, params voxcli.Params, playFile, spoolDir string, deviceID int) {
	session := voxcli.NewSpeakerSession(params)
	session.Router().SetCallbacks(voxcli.RouterOptions{
		OnText: func() {
			fmt.Printf("\r%s", session.Transcript())
		},
		OnError: func(msg string) {
			fmt.Fprintf(os.Stderr, "\nbackend error: %s\n", msg)
		},
	})

	if err := session.Connect(ctx); err != nil {
		slog.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	switch {
	case spoolDir != "":
		spool := voxcli.NewSpool(spoolDir, func(path string) error {
			return session.RunFile(ctx, path)
		})
		if err := spool.Watch(ctx); err != nil {
			slog.Error("Spool watcher failed", "error", err)
			os.Exit(1)
		}

	case playFile != "":
		if err := session.StreamFile(ctx, playFile); err != nil {
			slog.Error("Failed to stream file", "error", err)
			os.Exit(1)
		}
		slog.Info("Broadcasting file", "file", playFile, "roomId", params.RoomID)
		<-ctx.Done()

	default:
		if err := session.StartMic(ctx, deviceID); err != nil {
			slog.Error("Failed to start microphone", "error", err)
			os.Exit(1)
		}
		slog.Info("Broadcasting live", "roomId", params.RoomID, "source", params.SourceLang)
		<-ctx.Done()
	}

	session.StopCapture()
	fmt.Println()
}

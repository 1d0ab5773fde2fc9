package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	buspkg "github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/buslog"
	"github.com/kigurumiguy/friendforge/config"
	"github.com/kigurumiguy/friendforge/configs"
	"github.com/kigurumiguy/friendforge/conversation"
	"github.com/kigurumiguy/friendforge/event"
	"github.com/kigurumiguy/friendforge/fetcher"
	"github.com/kigurumiguy/friendforge/generator"
	"github.com/kigurumiguy/friendforge/message"
	"github.com/kigurumiguy/friendforge/persona"
	"github.com/kigurumiguy/friendforge/renderer"
	"github.com/kigurumiguy/friendforge/scene"
	"github.com/kigurumiguy/friendforge/session"
	"github.com/kigurumiguy/friendforge/supervisor"
	"github.com/kigurumiguy/friendforge/topic"
	"github.com/kigurumiguy/friendforge/turn"
)

func main() {
	// --- コマンドライン引数のパース ---
	var (
		mode       = flag.String("mode", "local", "Response generation mode: local or api")
		backend    = flag.String("backend", "", "Remote backend: gemini or openai (with --mode api)")
		groupChat  = flag.Bool("group-chat", true, "Allow spontaneous banter between personas")
		sceneID    = flag.String("scene", "", "Scene to start immediately")
		personaDir = flag.String("personas", "", "Directory of persona JSON files (default: embedded)")
		sceneDir   = flag.String("scenes", "", "Directory of scene JSON files (default: embedded)")
		configPath = flag.String("config", "", "Path to YAML config file")
		host       = flag.String("host", "", "Persona ID of the host")
		seed       = flag.Int64("seed", 0, "Random seed for deterministic runs")
		turns      = flag.Int("turns", 0, "Maximum spoken turns before shutdown (0 = unlimited)")
		topicsFeed = flag.String("topics-feed", "", "RSS/Atom feed URL for conversation topics")
		outDir     = flag.String("out", "./transcripts", "Directory for markdown transcripts")
	)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C シグナルで cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// フラグは設定ファイルより優先する
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "seed":
			cfg.Seed = *seed
		case "turns":
			cfg.Turns = *turns
		case "topics-feed":
			cfg.TopicsFeed = *topicsFeed
		case "backend":
			cfg.Generator.Backend = *backend
		}
	})

	// --- ペルソナとシーンを読み込む（指定がなければ埋め込みリソース） ---
	var personas []*persona.Persona
	if *personaDir != "" {
		personas, err = persona.LoadDir(*personaDir)
	} else {
		personas, err = persona.LoadFS(configs.Defaults, "personas")
	}
	if err != nil {
		log.Fatalf("failed to load personas: %v", err)
	}

	registry, err := persona.NewRegistry(personas, cfg.Spontaneity)
	if err != nil {
		log.Fatalf("failed to build persona registry: %v", err)
	}

	var scenes []*scene.Scene
	if *sceneDir != "" {
		scenes, err = scene.LoadDir(*sceneDir)
	} else {
		scenes, err = scene.LoadFS(configs.Defaults, "scenes")
	}
	if err != nil {
		log.Fatalf("failed to load scenes: %v", err)
	}
	library := scene.NewLibrary(scenes)

	if cfg.Host == "" {
		cfg.Host = personas[0].ID
	}
	// シード未指定の通常運用では毎回違う会話になる
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	bus := buspkg.NewMemoryBus()

	// エンジンの警告はバスにも流し、レンダラー経由で読めるようにする
	slog.SetDefault(slog.New(buslog.NewBusHandler(
		bus,
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.LevelWarn,
	)))

	// --- 応答生成器を初期化 ---
	gen, err := buildGenerator(ctx, *mode, cfg)
	if err != nil {
		log.Fatalf("failed to initialize generator: %v", err)
	}

	// --- 話題をフィードから取得（失敗しても会話は始める） ---
	var topics []*topic.Topic
	if cfg.TopicsFeed != "" {
		topics, err = fetcher.NewRSSFetcher(cfg.TopicsFeed, cfg.TopicsLimit).Fetch(ctx)
		if err != nil {
			slog.Warn("Failed to fetch topics feed", "url", cfg.TopicsFeed, "error", err)
		}
	}

	// --- Supervisorを初期化して起動 ---
	sup := supervisor.NewSupervisor(cfg.Turns, bus, cancel)
	sup.Start()

	sched, err := turn.NewScheduler(
		turn.Config{
			HostID:     cfg.Host,
			Cooldown:   cfg.Cooldown(),
			BanterMax:  cfg.BanterMax,
			Window:     cfg.Window,
			GenTimeout: cfg.GenTimeout(),
			MaxChars:   cfg.MaxChars,
			Seed:       cfg.Seed,
		},
		registry,
		gen,
		scene.NewPlayer(library, cfg.MaxBeatsPerPass),
		bus,
		sup,
		topics,
	)
	if err != nil {
		log.Fatalf("failed to initialize scheduler: %v", err)
	}

	initialMode := conversation.ModeIdle
	if *groupChat {
		initialMode = conversation.ModeGroupChat
	}
	state := conversation.NewState(initialMode)

	loop := session.NewLoop(state, sched, bus, turn.NewMutexManager(), cfg.TickInterval())

	// --- レンダラーを初期化 ---
	var wg sync.WaitGroup
	console := renderer.NewConsole(os.Stdout)
	if err := console.Render(bus, &wg); err != nil {
		log.Fatalf("failed to initialize console renderer: %v", err)
	}
	markdown := renderer.NewMarkdown(*outDir, loop.ID())
	if err := markdown.Render(bus, &wg); err != nil {
		log.Fatalf("failed to initialize markdown renderer: %v", err)
	}

	// 参加者の紹介
	var personaNames []string
	for _, p := range registry.All() {
		personaNames = append(personaNames, p.DisplayName)
	}
	hostPersona, err := registry.Get(cfg.Host)
	if err != nil {
		log.Fatalf("host persona: %v", err)
	}
	if err := bus.Broadcast(&message.Message{
		SpeakerID: "engine",
		Text:      fmt.Sprintf("%d friends are here: %s. %s is hosting.", registry.Len(), strings.Join(personaNames, ", "), hostPersona.DisplayName),
		At:        time.Now(),
		Kind:      message.KindSystem,
	}); err != nil {
		log.Fatalf("failed to broadcast initial message: %v", err)
	}

	if *sceneID != "" {
		loop.Post(event.SceneCommand{SceneID: *sceneID, At: time.Now()})
	}

	// 標準入力はフロントエンドとして別ゴルーチンで読む
	go func() {
		term := session.NewTerminal(loop, os.Stdin)
		if err := term.Run(ctx); err != nil {
			slog.Warn("Terminal input closed with error", "error", err)
		}
		cancel()
	}()

	if err := loop.Run(ctx); err != nil {
		slog.Warn("Session loop finished with error", "error", err)
	}

	time.Sleep(500 * time.Millisecond) // 残りの出力を拾う余裕
	bus.Close()
	wg.Wait()

	if err := markdown.Finalize(); err != nil {
		log.Printf("failed to write transcript: %v", err)
	}
	fmt.Println("")
	fmt.Println("Shutting down...")
}

// buildGenerator は、モードと設定から応答生成器を組み立てます。
// リモートバックエンドはリトライ付きでラップします。
func buildGenerator(ctx context.Context, mode string, cfg config.Config) (generator.Generator, error) {
	switch mode {
	case "local":
		return generator.NewLocal(cfg.Seed), nil

	case "api":
		var inner generator.Generator
		switch cfg.Generator.Backend {
		case "gemini":
			project := cfg.Generator.Project
			if project == "" {
				project = os.Getenv("PROJECT_ID")
			}
			location := cfg.Generator.Location
			if location == "" {
				location = os.Getenv("LOCATION")
			}
			if project == "" || location == "" {
				return nil, fmt.Errorf("gemini backend requires PROJECT_ID and LOCATION")
			}
			g, err := generator.NewGemini(ctx, project, location, cfg.Generator.Model)
			if err != nil {
				return nil, err
			}
			inner = g

		case "openai":
			apiKey := os.Getenv("FRIENDFORGE_OPENAI_API_KEY")
			if apiKey == "" {
				return nil, fmt.Errorf("openai backend requires FRIENDFORGE_OPENAI_API_KEY")
			}
			baseURL := cfg.Generator.BaseURL
			if baseURL == "" {
				baseURL = os.Getenv("FRIENDFORGE_OPENAI_BASE_URL")
			}
			o, err := generator.NewOpenAI(cfg.Generator.Model, apiKey, baseURL)
			if err != nil {
				return nil, err
			}
			inner = o

		default:
			return nil, fmt.Errorf("unknown backend %q", cfg.Generator.Backend)
		}
		return generator.NewResilient(inner, 3, 500*time.Millisecond), nil

	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

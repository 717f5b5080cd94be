// Package main runs the bubblefish plugin host: it discovers script
// plugins on disk, wires them to the core event bus and bunny services,
// and hot-reloads them when their files change.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yyuchenn/bubblefish-sub001/internal/builtin"
	"github.com/yyuchenn/bubblefish-sub001/internal/bunny"
	"github.com/yyuchenn/bubblefish-sub001/internal/config"
	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin"
	"github.com/yyuchenn/bubblefish-sub001/internal/service"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		pluginPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&pluginPath, "plugins", "", "Plugin directory (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("pluginhost %s\n", version)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if pluginPath != "" {
		cfg.PluginPaths = []string{pluginPath}
	}

	level, _ := cfg.Level()
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	log := logging.New(logCfg)

	store := service.NewStore()

	manager := plugin.NewManager(store.Proxy(),
		plugin.WithLogger(log),
		plugin.WithAutoActivate(cfg.AutoActivate),
	)

	executor := bunny.NewExecutor(manager.Bunnies(), manager,
		bunny.WithWorkers(cfg.Bunny.Workers),
		bunny.WithCache(bunny.NewCache(cfg.Bunny.CacheSize)),
		bunny.WithTaskRegistry(manager.Tasks()),
		bunny.WithLogger(log),
	)
	defer executor.Close()

	registerBuiltins(manager, cfg, log)

	loader := plugin.NewLoader(cfg.PluginPaths, log)
	loadAll(manager, loader, log, false)

	if cfg.Watch {
		watcher, err := plugin.NewWatcher(cfg.PluginPaths, func(dir string) {
			log.Info("reloading plugins after change in %s", dir)
			loadAll(manager, loader, log, true)
		}, log)
		if err != nil {
			log.Warn("hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	manager.Ready()
	log.Info("plugin host ready: %d plugin(s) loaded", manager.Count())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	log.Info("shutting down")
	manager.Shutdown()
	return 0
}

// registerBuiltins loads the plugins compiled into the host. The LLM
// translator only loads when an API key is available.
func registerBuiltins(manager *plugin.Manager, cfg config.Config, log *logging.Logger) {
	if _, err := manager.Register(builtin.NewMarkerLogger()); err != nil {
		log.Warn("marker logger: %v", err)
	}
	ocr := builtin.NewDummyOCR()
	ocr.Poll = cfg.Bunny.PollInterval
	if _, err := manager.Register(ocr); err != nil {
		log.Warn("dummy ocr: %v", err)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p, err := builtin.NewLLMTranslate(builtin.LLMOptions{
			APIKey:  key,
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("BUBBLEFISH_LLM_MODEL"),
		})
		if err == nil {
			_, err = manager.Register(p)
		}
		if err != nil {
			log.Warn("llm translate: %v", err)
		}
	}
}

// loadAll registers every discovered script plugin. On reload, plugins
// already registered are torn down and re-registered from their current
// on-disk state.
func loadAll(manager *plugin.Manager, loader *plugin.Loader, log *logging.Logger, reload bool) {
	var (
		infos []*plugin.Info
		err   error
	)
	if reload {
		infos, err = loader.Refresh()
	} else {
		infos, err = loader.Discover()
	}
	if err != nil {
		log.Error("plugin discovery failed: %v", err)
		return
	}

	for _, info := range infos {
		id := info.Manifest.ID
		if _, ok := manager.Get(id); ok {
			if !reload {
				continue
			}
			if err := manager.Unregister(id); err != nil {
				log.Warn("unregister %s: %v", id, err)
				continue
			}
		}
		if _, err := manager.Register(plugin.NewScriptPlugin(info.Manifest)); err != nil {
			log.Error("load plugin %s: %v", id, err)
		}
	}
}

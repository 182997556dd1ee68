package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geoffdutton/cfedge/internal/assoc"
	"github.com/geoffdutton/cfedge/internal/cloud"
	"github.com/geoffdutton/cfedge/internal/logging"
	"github.com/geoffdutton/cfedge/internal/model"
	"github.com/geoffdutton/cfedge/internal/reconcile"
	"github.com/geoffdutton/cfedge/internal/watch"
	"github.com/geoffdutton/cfedge/templates"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "reconcile":
		runReconcile(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "init":
		runInit(os.Args[2:])
	case "version":
		fmt.Printf("cfedge %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: cfedge <command> [options]

commands:
  validate    check the declared Lambda@Edge associations without touching AWS
  reconcile   converge the distributions to the declared associations
  watch       reconcile continuously whenever the service file changes
  init        write a starter cfedge.yaml into the current directory
  version     print the cfedge version

options:
  -config path   cfedge configuration file (default "cfedge.yaml")`)
}

func loadConfig(args []string, cmd string) model.Config {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	path := fs.String("config", "cfedge.yaml", "path to the cfedge configuration file")
	fs.Parse(args)

	cfg, err := model.LoadConfig(*path)
	if err != nil {
		fatal("%v", err)
	}
	return cfg
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

func runValidate(args []string) {
	cfg := loadConfig(args, "validate")
	log := logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level))

	svc, err := assoc.LoadService(cfg.Project.ServiceFile)
	if err != nil {
		fatal("%v", err)
	}
	pending, err := assoc.Validate(svc, log)
	if err != nil {
		fatal("%v", err)
	}

	if len(pending) == 0 {
		fmt.Println("no Lambda@Edge associations declared")
		return
	}
	for _, p := range pending {
		ref := p.Distribution.Name
		if p.Distribution.Kind == model.RefByID {
			ref = fmt.Sprintf("%s (%s)", p.Distribution.Name, p.Distribution.ID)
		}
		fmt.Printf("%-24s %-16s %s\n", p.FunctionName, p.EventType, ref)
	}
}

func runReconcile(args []string) {
	cfg := loadConfig(args, "reconcile")
	log := logging.New(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	ctx := signalContext()

	clients, err := cloud.New(ctx, cfg.Stack)
	if err != nil {
		fatal("%v", err)
	}

	r := reconcile.NewReconciler(clients, cfg, log)
	if err := r.Reconcile(ctx); err != nil {
		fatal("reconcile: %v", err)
	}
}

func runWatch(args []string) {
	cfg := loadConfig(args, "watch")
	log := logging.New(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	ctx := signalContext()

	clients, err := cloud.New(ctx, cfg.Stack)
	if err != nil {
		fatal("%v", err)
	}

	r := reconcile.NewReconciler(clients, cfg, log)
	w := watch.New(
		cfg.Project.ServiceFile,
		time.Duration(cfg.Watcher.DebounceSec*float64(time.Second)),
		r.Reconcile,
		log,
	)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal("watch: %v", err)
	}
}

func runInit(args []string) {
	const path = "cfedge.yaml"
	if _, err := os.Stat(path); err == nil {
		fatal("%s already exists", path)
	}

	data, err := templates.FS.ReadFile("cfedge.yaml")
	if err != nil {
		fatal("read embedded template: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fatal("write %s: %v", path, err)
	}
	fmt.Printf("wrote %s\n", path)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

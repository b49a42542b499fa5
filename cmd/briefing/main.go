package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"

	"github.com/c0ld-w4ter/you-fm/internal/app"
	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/config"
	"github.com/c0ld-w4ter/you-fm/internal/observability"
	"github.com/c0ld-w4ter/you-fm/internal/pipeline"
)

type options struct {
	profile     string
	minutes     int
	tone        string
	name        string
	destination string
	jsonOut     bool
	logLevel    string
}

func parseFlags(args []string) (*pflag.FlagSet, *options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("briefing", pflag.ContinueOnError)
	fs.StringVar(&opts.profile, "profile", "", "YAML profile with the briefing defaults")
	fs.IntVar(&opts.minutes, "minutes", 0, "Target briefing length in minutes (1-30)")
	fs.StringVar(&opts.tone, "tone", "", "Tone: professional, casual or energetic")
	fs.StringVar(&opts.name, "name", "", "Listener name used in the greeting")
	fs.StringVar(&opts.destination, "destination", "", "Delivery destination: local or object_store")
	fs.BoolVar(&opts.jsonOut, "json", false, "Print the pipeline result as JSON")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return fs, opts, nil
}

// apply overlays the flags that were set on the profile defaults
func (o *options) apply(fs *pflag.FlagSet, cfg *briefing.Config) {
	if fs.Changed("minutes") {
		cfg.DurationMinutes = o.minutes
	}
	if fs.Changed("tone") {
		cfg.Tone = briefing.Tone(strings.ToLower(o.tone))
	}
	if fs.Changed("name") {
		cfg.ListenerName = o.name
	}
	if fs.Changed("destination") {
		cfg.Destination = briefing.Destination(o.destination)
	}
}

func main() {
	fs, opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if opts.profile != "" {
		cfg.ProfilePath = opts.profile
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	// Pretty console logs would interleave with the progress output
	observability.InitLogger(cfg.LogLevel, false)
	logger := observability.GetLogger()

	a, err := app.Build(cfg, logger)
	if err != nil {
		pterm.Error.Printf("Failed to build pipeline: %v\n", err)
		os.Exit(1)
	}

	runCfg := a.Defaults
	opts.apply(fs, &runCfg)
	if err := runCfg.Validate(); err != nil {
		pterm.Error.Printf("Invalid briefing: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.RunTimeout))
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var observe pipeline.Observer
	if !opts.jsonOut {
		printHeader(runCfg, a.Sources)
		observe = printEvent
	}

	result, err := a.Orchestrator.RunObserved(ctx, runCfg, observe)
	if err != nil {
		pterm.Error.Printf("Run rejected: %v\n", err)
		os.Exit(2)
	}

	if opts.jsonOut {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			pterm.Error.Printf("Failed to encode result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	} else {
		printResult(result)
	}

	if result.Status == briefing.RunFailed {
		os.Exit(1)
	}
}

func printHeader(cfg briefing.Config, sources []string) {
	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgMagenta)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("You FM - Daily Briefing")
	pterm.Println()

	pterm.DefaultSection.Println("Briefing")
	info := fmt.Sprintf("Listener: %s\n", pterm.Cyan(cfg.ListenerName))
	info += fmt.Sprintf("Length: %d min\n", cfg.DurationMinutes)
	info += fmt.Sprintf("Tone: %s\n", pterm.Yellow(string(cfg.Tone)))
	info += fmt.Sprintf("Voice: %s (x%.2f)\n", cfg.Voice, cfg.VoiceSpeed)
	info += fmt.Sprintf("Destination: %s\n", cfg.Destination)
	info += fmt.Sprintf("Sources: %s", strings.Join(sources, ", "))
	pterm.DefaultBox.
		WithTitle("Run Configuration").
		WithTitleTopCenter().
		WithLeftPadding(4).
		WithRightPadding(4).
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan)).
		Println(info)
	pterm.Println()
}

func printEvent(ev pipeline.StageEvent) {
	if ev.Stage == "" {
		return
	}
	if ev.Status == "" {
		pterm.Info.Printf("%s started\n", ev.Stage)
		return
	}
	line := fmt.Sprintf("%s %s in %s", ev.Stage, ev.Status, ev.Elapsed.Round(time.Millisecond))
	if ev.Detail != "" {
		line += " (" + ev.Detail + ")"
	}
	switch ev.Status {
	case briefing.StatusOK:
		pterm.Success.Println(line)
	case briefing.StatusDegraded:
		pterm.Warning.Println(line)
	default:
		pterm.Error.Println(line)
	}
}

func colorStatus(s string) string {
	switch s {
	case string(briefing.StatusOK), string(briefing.RunSuccess):
		return pterm.Green(s)
	case string(briefing.StatusDegraded), string(briefing.RunPartial):
		return pterm.Yellow(s)
	case string(briefing.StatusSkipped):
		return pterm.Gray(s)
	default:
		return pterm.Red(s)
	}
}

func printResult(result *briefing.PipelineResult) {
	pterm.Println()
	pterm.DefaultSection.Println("Stages")

	table := pterm.TableData{{"Stage", "Status", "Time"}}
	for _, stage := range briefing.Stages {
		table = append(table, []string{
			string(stage),
			colorStatus(string(result.StageStatus[stage])),
			result.Timings[stage].Round(time.Millisecond).String(),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(table).Render()

	if len(result.Errors) > 0 {
		pterm.Println()
		pterm.DefaultSection.WithLevel(2).Println("Errors")
		errs := pterm.TableData{{"Stage", "Kind", "Source", "Message"}}
		for _, rec := range result.Errors {
			errs = append(errs, []string{string(rec.Stage), string(rec.Kind), rec.Source, rec.Message})
		}
		pterm.DefaultTable.WithHasHeader().WithData(errs).Render()
	}

	style := pterm.FgGreen
	switch result.Status {
	case briefing.RunPartial:
		style = pterm.FgYellow
	case briefing.RunFailed:
		style = pterm.FgRed
	}

	summary := fmt.Sprintf("Run: %s\n", result.RunID)
	summary += fmt.Sprintf("Status: %s\n", colorStatus(string(result.Status)))
	if result.Script != nil {
		summary += fmt.Sprintf("Script: %d words, %s, ~%.0fs\n",
			result.Script.Words, result.Script.Origin, result.Script.EstimatedSpokenSeconds)
	}
	if result.Audio != nil {
		summary += fmt.Sprintf("Audio: %.1fs\n", result.Audio.DurationSeconds)
	}
	if ref := result.AudioReference; ref != nil {
		summary += fmt.Sprintf("Delivered: %s", pterm.Cyan(ref.Location))
	} else {
		summary += "Delivered: " + pterm.Red("nothing")
	}

	pterm.Println()
	pterm.DefaultBox.
		WithTitle("Briefing").
		WithTitleTopCenter().
		WithLeftPadding(4).
		WithRightPadding(4).
		WithBoxStyle(pterm.NewStyle(style)).
		Println(summary)
}

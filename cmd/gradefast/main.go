package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jhartz/gradefast/internal/channel"
	"github.com/jhartz/gradefast/internal/config"
	"github.com/jhartz/gradefast/internal/events"
	"github.com/jhartz/gradefast/internal/grader"
	"github.com/jhartz/gradefast/internal/host"
	"github.com/jhartz/gradefast/internal/store"
	"github.com/jhartz/gradefast/internal/submissions"
	"github.com/jhartz/gradefast/internal/web"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gradefast <config.yaml> [host [port]]",
		Short: "Semi-automated grading workstation",
		Args:  cobra.RangeArgs(1, 3),
		RunE:  run,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := rootCmd.Flags()
	f.String("host", "", "gradebook listen address (default from config, else 127.0.0.1)")
	f.Int("port", 0, fmt.Sprintf("gradebook listen port (default from config, else %d)", config.DefaultPort))
	f.String("save-file", "", "sqlite save file for resume")
	f.String("log-file", "", "mirror all terminal output to this file")
	f.Bool("log-html", false, "write the log file as HTML instead of plain text")
	f.Bool("no-color", false, "disable ANSI colors")
	f.Bool("no-readline", false, "disable readline input")

	// Viper keys use underscores so they match the env var suffix after
	// stripping the GRADEFAST_ prefix.
	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("host", "host")
	bindFlag("port", "port")
	bindFlag("save_file", "save-file")
	bindFlag("log_file", "log-file")
	bindFlag("log_html", "log-html")
	bindFlag("no_color", "no-color")
	bindFlag("no_readline", "no-readline")

	viper.SetEnvPrefix("GRADEFAST")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gradefast:", err)
		var usage *config.UsageError
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Positional host and port beat flags and environment.
	if len(args) >= 2 {
		viper.Set("host", args[1])
	}
	if len(args) >= 3 {
		port, err := strconv.Atoi(args[2])
		if err != nil || port < 1 || port > 65535 {
			return &config.UsageError{Msg: fmt.Sprintf("invalid port %q", args[2])}
		}
		viper.Set("port", port)
	}

	settings, err := config.Load(args[0])
	if err != nil {
		return err
	}

	ch := channel.NewConsole(channel.Options{
		UseReadline: settings.UseReadline,
		UseColor:    settings.UseColor,
	})
	defer ch.Close() //nolint:errcheck

	if settings.LogFile != "" {
		fl, err := channel.NewFileLog(settings.LogFile, settings.LogAsHTML)
		if err != nil {
			return &config.UsageError{Msg: err.Error()}
		}
		ch.AddDelegate(fl)
		defer fl.Close() //nolint:errcheck
	}

	h := host.NewLocal(ch, host.Options{
		Shell:                settings.ShellCommand,
		ShellArgs:            settings.ShellArgs,
		Terminal:             settings.TerminalCommand,
		TerminalArgs:         settings.TerminalArgs,
		PreferCLIFileChooser: settings.PreferCLIFileChooser,
		BaseEnv:              settings.BaseEnv,
	})

	bus := events.NewBus()
	subs := submissions.NewManager(bus)

	var saveFile *store.Store
	if settings.SaveFile != "" {
		saveFile, err = store.Open(settings.SaveFile)
		if err != nil {
			return fmt.Errorf("open save file: %w", err)
		}
		defer saveFile.Close() //nolint:errcheck

		restored, err := saveFile.LoadSubmissions(subs, settings.GradeStructure)
		if err != nil {
			return fmt.Errorf("load save file: %w", err)
		}
		if restored > 0 {
			ch.Output(channel.NewMsg().Status(
				fmt.Sprintf("Restored %d submissions from %s", restored, settings.SaveFile)))
		}

		// Checkpoint after every graded submission and at the end of the
		// run, so a crash loses at most the submission in progress.
		bus.Register(events.HandlerFunc{
			AcceptFn: func(e events.Event) bool {
				switch e.(type) {
				case events.SubmissionFinished, events.EndOfSubmissions:
					return true
				}
				return false
			},
			HandleFn: func(e events.Event) {
				var err error
				switch evt := e.(type) {
				case events.SubmissionFinished:
					if sub := subs.Get(evt.SubmissionID); sub != nil {
						err = saveFile.SaveSubmission(sub)
					}
				case events.EndOfSubmissions:
					err = saveFile.SaveAll(subs)
				}
				if err != nil {
					log.Printf("save file: %v", err)
				}
			},
		})
	}

	server := web.New(settings, bus, subs)
	go func() {
		if err := server.Start(); err != nil {
			log.Printf("gradebook server error: %v", err)
		}
	}()

	ch.Output(channel.NewMsg().Bright(fmt.Sprintf("GradeFast %s: %s", config.Version, settings.ProjectName)))
	ch.Output(channel.NewMsg().Print(fmt.Sprintf("Gradebook: %s", server.URL())))
	ch.Output(channel.NewMsg())

	g := grader.New(ch, h, bus, subs, settings)
	g.HandleAuthRequests()

	if g.PromptForSubmissions() {
		g.RunCommands()
	} else {
		ch.Output(channel.NewMsg().Error("Nothing to grade"))
	}

	ch.Output(channel.NewMsg())
	ch.Output(channel.NewMsg().Print(fmt.Sprintf("Scores: %s/gradefast/grades.csv and /gradefast/grades.json",
		strings.TrimSuffix(server.URL(), "/gradefast/gradebook.HTM"))))
	ch.Output(channel.NewMsg().Print("Press Enter when done with the gradebook."))
	_, _ = ch.Input("", nil)

	if saveFile != nil {
		if err := saveFile.SaveAll(subs); err != nil {
			log.Printf("save file: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("gradebook shutdown: %v", err)
	}
	return nil
}

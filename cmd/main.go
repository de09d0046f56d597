package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nestnarrator/internal/cli/scheme/colours"
	"nestnarrator/internal/config"
	"nestnarrator/internal/story/nest"
)

var cfgFile string

func main() {
	var app *nest.Narrator

	rootCmd := &cobra.Command{
		Use:   "nestnarrator",
		Short: "🌙 Bedtime stories read aloud",
		Long: `
┌─────────────────────────────────────┐
│  🌙 Welcome to NestNarrator! 📖     │
│  Bedtime stories, read aloud        │
│  with every word lit up ✨          │
└─────────────────────────────────────┘

NestNarrator narrates stories with a friendly AI voice, highlights each
word as it is spoken and keeps narration cached for offline bedtimes. 🌙
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(cfgFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.SetupLogging(cfg.Log); err != nil {
				return err
			}

			app, err = nest.NewNarrator(cfg)
			if err != nil {
				return err
			}

			// Setup signal handling for graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				app.Cancel()
				app.Stop()
				fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! Sweet dreams! 🌙"))
				os.Exit(0)
			}()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Stop()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.nestnarrator/nestnarrator.yaml)")

	// app only exists once PersistentPreRunE has loaded the config
	run := func(fn func(*nest.Narrator, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return fn(app, cmd, args)
		}
	}

	narrateCmd := &cobra.Command{
		Use:   "narrate [text]",
		Short: "🎧 Read text aloud",
		Long:  "Narrate the given text, or a text file, with word highlighting",
		RunE:  run((*nest.Narrator).Narrate),
	}

	readCmd := &cobra.Command{
		Use:   "read [story-id|file]",
		Short: "📖 Read a story part by part",
		Long:  "Read a story from the shelf (newest by default) or a story JSON file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run((*nest.Narrator).ReadStory),
	}

	preloadCmd := &cobra.Command{
		Use:   "preload [story-id|file]",
		Short: "💾 Prepare narration for offline listening",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run((*nest.Narrator).Preload),
	}

	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "📚 Manage the story shelf",
		RunE:  run((*nest.Narrator).ListLibrary),
	}
	libraryCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "📋 List saved stories, newest first",
			RunE:  run((*nest.Narrator).ListLibrary),
		},
		&cobra.Command{
			Use:   "add [file]",
			Short: "➕ Save a story JSON file to the shelf",
			Args:  cobra.ExactArgs(1),
			RunE:  run((*nest.Narrator).AddToLibrary),
		},
		&cobra.Command{
			Use:   "remove [story-id]",
			Short: "🗑️ Remove a story from the shelf",
			Args:  cobra.ExactArgs(1),
			RunE:  run((*nest.Narrator).RemoveFromLibrary),
		},
		&cobra.Command{
			Use:   "rate [story-id] [1-5] [note...]",
			Short: "⭐ Rate a story",
			Args:  cobra.MinimumNArgs(2),
			RunE:  run((*nest.Narrator).RateStory),
		},
	)

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "🗄️ Inspect the narration cache",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "📊 Show cache status",
			RunE:  run((*nest.Narrator).ShowCacheStatus),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "🧹 Remove all cached narration",
			RunE:  run((*nest.Narrator).ClearCache),
		},
	)

	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List narrator voices",
		RunE:  run((*nest.Narrator).ListVoices),
	}

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show narration settings",
		Long:  "Show voice, speed, volume and storage settings",
		RunE:  run((*nest.Narrator).ShowSettings),
	}

	// Add flags
	narrateCmd.Flags().StringP("file", "f", "", "Read the text from a file")
	for _, cmd := range []*cobra.Command{narrateCmd, readCmd, preloadCmd} {
		cmd.Flags().StringP("voice", "v", "", "Narrator voice to use. See 'nestnarrator voices' for options")
	}
	readCmd.Flags().BoolP("sleep", "s", false, "Sleep mode: continue to the next part automatically")

	rootCmd.AddCommand(narrateCmd, readCmd, preloadCmd, libraryCmd, cacheCmd, voicesCmd, settingsCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Debug("Command failed")
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

/*
Package log provides structured logging built on zerolog: a global logger
configured once at process start via Init, and component-tagged child
loggers for everything that logs afterward.

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	logger := log.WithComponent("stack")
	logger.Info().Str("project", project).Msg("starting stack")
	logger.Error().Err(err).Msg("stack failed to start")

Every invocation of this CLI runs Init exactly once, in cobra's
OnInitialize hook, before any subcommand body executes.
*/
package log

// Package logging builds the structured zap logger every other package
// receives by dependency injection, so lifecycle events (match formed,
// move applied, game ended, rematch outcome, shutdown) are leveled and
// queryable instead of bare fmt.Println noise mixed into the game's own
// console output.
package logging

import "go.uber.org/zap"

// New returns a production logger unless dev requests the more verbose,
// human-friendly development config (Debug level, console rather than JSON
// output) with stack traces turned off — handy when running a peer
// interactively in a terminal next to its own game prompts.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		return cfg.Build()
	}
	return zap.NewProduction()
}

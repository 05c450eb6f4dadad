// Command policygen drafts HR policies from official sources: it searches
// for regulations in a jurisdiction, extracts their text with a headless
// browser and asks a language model for a ready-to-review document.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/policygen/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps run failures to the process status: 2 when the run found
// nothing to work with, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pipeline.ErrEmptyResult):
		return 2
	default:
		return 1
	}
}

// reportError prints the user-facing message for err. Stage failures carry
// their own wording; the underlying cause is only logged at debug level.
func reportError(w io.Writer, err error) {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		fmt.Fprintln(w, "Error: "+se.Message)
		if se.Err != nil {
			log.Debug().Err(se.Err).Str("stage", string(se.Stage)).Msg("cause")
		}
		return
	}
	fmt.Fprintln(w, "Error: "+err.Error())
}

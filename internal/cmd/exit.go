package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Swapped in tests.
var (
	exitProcess           = os.Exit
	exitStderr  io.Writer = os.Stderr
)

// ExitWithCode logs msg and err with the foundry exit-code metadata and
// terminates the process. A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		writeFatal(exitStderr, msg, err)
		_, _ = fmt.Fprintf(exitStderr, "Exit Code: %d\n", exitCode)
		exitProcess(int(exitCode))
		return
	}

	if logger == nil {
		writeFatal(exitStderr, msg, err)
		_, _ = fmt.Fprintf(exitStderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	} else {
		fields := append(exitFields(err),
			zap.Int("exit_code", info.Code),
			zap.String("exit_name", info.Name),
			zap.String("exit_category", info.Category),
		)
		logger.Error(msg, fields...)
	}
	exitProcess(info.Code)
}

// ExitWithCodeStderr is ExitWithCode for failures before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

// exitFields flattens an error envelope into log fields, logging the
// wrapped cause in place of the envelope.
func exitFields(err error) []zap.Field {
	var fields []zap.Field
	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

func writeFatal(w io.Writer, msg string, err error) {
	envelope, isEnvelope := err.(*errors.ErrorEnvelope)
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(w, "FATAL: %s\n", msg)
	case isEnvelope:
		_, _ = fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, envelope.Code, envelope.Message, envelope.CorrelationID)
		if original, ok := envelope.Original.(error); ok {
			_, _ = fmt.Fprintf(w, "Underlying error: %v\n", original)
		}
	default:
		_, _ = fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}
}

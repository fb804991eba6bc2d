// Package shutdown implements the graceful-teardown coordinator (spec
// §4.H): on INT/TERM, stop accepting new operation-surface requests,
// close every managed node's channel (best effort), end every cached
// SSH client, then exit 0. Grounded on the teacher's
// thin-main/heavy-internal-core wiring style, combined with
// purpleidea-mgmt's error-aggregation idiom (there via pkg/errors.Wrapf
// chains; here via hashicorp/go-multierror, since this build has no
// equivalent teacher dependency to reuse for it).
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/f9-o/beamfleet/internal/core"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/internal/metrics"
)

// HTTPServer is the subset of *api.Server shutdown needs. Declared
// here (rather than importing internal/api) to avoid a cycle — api
// depends on core, and core's shutdown coordinator must not depend
// back on api.
type HTTPServer interface {
	Stop(ctx context.Context) error
}

// GracePeriod bounds how long teardown is allowed to take before the
// process exits anyway.
const GracePeriod = 10 * time.Second

// Wait blocks until SIGINT or SIGTERM, then tears the process down:
// the operation-surface HTTP server, then node channels and SSH clients
// via c.Shutdown(), then the metrics HTTP server. No attempt is made to cleanly stop the remote BEAMs via
// RPC — closing the streamed channel is the desired semantics for a
// control-plane restart (spec §4.H).
func Wait(c *core.Core, m *metrics.Metrics, log *logger.Logger, srv HTTPServer) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs

	log.Info("shutdown signal received", "signal", sig.String())

	done := make(chan error, 1)
	go func() {
		done <- teardown(c, m, srv)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("shutdown completed with errors", "err", err)
		} else {
			log.Info("shutdown complete")
		}
	case <-time.After(GracePeriod):
		log.Warn("shutdown grace period exceeded, exiting anyway")
	}
}

// teardown runs the best-effort close sequence and aggregates any
// errors instead of discarding them silently.
func teardown(c *core.Core, m *metrics.Metrics, srv HTTPServer) error {
	var result *multierror.Error

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Stop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result = multierror.Append(result, recoverToError(r))
			}
		}()
		c.Shutdown()
	}()

	if err := m.Stop(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errAny{r}
}

type errAny struct{ v any }

func (e errAny) Error() string { return fmt.Sprintf("panic during shutdown: %v", e.v) }

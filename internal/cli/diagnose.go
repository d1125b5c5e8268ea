package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/centraunit/dikernel/diagnostics"
)

var diagnoseAddr string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Serve the component diagnostics endpoint for the sample graph",
	Long: `Build a kernel with the sample component graph and serve its diagnostics:

  GET /components         every registered component
  GET /components/{name}  a single component`,
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)

	diagnoseCmd.Flags().StringVar(&diagnoseAddr, "addr", ":8080", "address to listen on")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	k := newKernel()
	defer k.Dispose()
	if _, err := registerSample(k); err != nil {
		return fmt.Errorf("registering sample components: %w", err)
	}

	srv := &http.Server{
		Addr:              diagnoseAddr,
		Handler:           diagnostics.NewHandler(k),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	k.Logger().Info("Diagnostics listening", "addr", diagnoseAddr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

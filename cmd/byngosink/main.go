// byngosink is the bingo server: it loads the goal catalogs and serves the
// room protocol over websockets.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/byngosink/byngosink/internal/generators"
	"github.com/byngosink/byngosink/internal/profilers"
	"github.com/byngosink/byngosink/internal/rooms"
	"github.com/byngosink/byngosink/internal/server"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagListen   = flag.String("listen", "localhost:555", "Address to listen on.")
	flagCatalogs = flag.String("catalogs", "catalogs", "Directory with the per-game goal catalog JSON documents.")
	flagTLSCert  = flag.String("tls_cert", "", "TLS certificate file. Set together with -tls_key to serve wss.")
	flagTLSKey   = flag.String("tls_key", "", "TLS key file. Set together with -tls_cert to serve wss.")

	flagReapInterval = flag.Duration("reap_interval", 10*time.Minute, "How often to scan for idle empty rooms.")
	flagReapIdle     = flag.Duration("reap_idle", time.Hour, "How long an empty room may idle before it is removed.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if (*flagTLSCert == "") != (*flagTLSKey == "") {
		exceptions.Panicf("-tls_cert and -tls_key must be set together (got cert=%q, key=%q)",
			*flagTLSCert, *flagTLSKey)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	profilers.Setup(ctx)
	defer profilers.OnQuit()

	lib := must.M1(generators.LoadDir(*flagCatalogs))
	if len(lib.Games()) == 0 {
		exceptions.Panicf("no catalogs found in %q", *flagCatalogs)
	}
	registry := rooms.NewRegistry()
	srv := server.New(server.Config{
		Addr:     *flagListen,
		CertFile: *flagTLSCert,
		KeyFile:  *flagTLSKey,
	}, lib, registry)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx) })
	g.Go(func() error { return registry.Reap(ctx, *flagReapInterval, *flagReapIdle) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		klog.Exitf("byngosink: %+v", err)
	}
	klog.Info("Bye.")
}

// Command periphery is the Periphery agent (C1's remote half): a thin
// HTTP/WS server exposing the envelope-based /execute contract plus the
// terminal/exec websocket endpoints, backed by internal/dockerexec
// against the local Docker daemon. Grounded on the teacher's
// cmd/sentinel runAgent shape — open the local backing client, start a
// small HTTP server, block on graceful shutdown — generalized from
// Sentinel's gRPC-based agent-to-server push model to Komodore's
// pull-based envelope/execute model (spec §4.1, §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/komodore/core/internal/dockerexec"
)

type agent struct {
	docker  *dockerexec.Client
	passkey string
	shell   string
	tokens  *tokenStore
}

func main() {
	addr := flag.String("addr", envOr("KOMODORE_PERIPHERY_ADDR", ":8120"), "address to listen on")
	passkey := flag.String("passkey", os.Getenv("KOMODORE_PERIPHERY_PASSKEY"), "shared secret Core must present as the authorization header")
	dockerHost := flag.String("docker-host", os.Getenv("KOMODORE_DOCKER_HOST"), "docker daemon socket or tcp address")
	shell := flag.String("shell", envOr("KOMODORE_PERIPHERY_SHELL", "/bin/sh"), "shell binary for terminal sessions")
	flag.Parse()

	if *passkey == "" {
		fmt.Fprintln(os.Stderr, "periphery: -passkey (or KOMODORE_PERIPHERY_PASSKEY) is required")
		os.Exit(1)
	}

	docker, err := dockerexec.New(*dockerHost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "periphery: connect docker: %v\n", err)
		os.Exit(1)
	}
	defer docker.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := docker.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "periphery: docker unreachable: %v\n", err)
		os.Exit(1)
	}

	a := &agent{docker: docker, passkey: *passkey, shell: *shell, tokens: newTokenStore()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		executeVariants.serve(a, w, r)
	})
	mux.HandleFunc("GET /terminal/{name}", func(w http.ResponseWriter, r *http.Request) {
		handleTerminal(a, w, r)
	})
	mux.HandleFunc("GET /exec/{container}", func(w http.ResponseWriter, r *http.Request) {
		handleContainerExec(a, w, r, r.PathValue("container"), strings.TrimSpace(r.URL.Query().Get("shell")))
	})

	server := &http.Server{Addr: *addr, Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 0}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("komodore periphery listening on %s\n", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "periphery: server exited: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

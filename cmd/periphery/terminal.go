package main

import (
	"bufio"
	"io"
	"net/http"
	"os/exec"

	"github.com/gorilla/websocket"

	"github.com/komodore/core/internal/periphclient"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleTerminal backs GET /terminal/{name}?token=... (spec §4.1
// connect_terminal): a named host shell session, framed the same way
// internal/periphclient.StreamConn expects on the Core side. No pty
// library is part of this corpus, so the shell runs with plain stdio
// pipes rather than a real allocated tty — window resize and raw-mode
// programs (vim, top) won't render correctly, but line-oriented command
// execution works.
func handleTerminal(a *agent, w http.ResponseWriter, r *http.Request) {
	if !a.tokens.redeem(r.URL.Query().Get("token")) {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cmd := exec.Command(a.shell)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return
	}
	defer cmd.Process.Kill()

	pumpWebsocketShell(conn, stdin, stdout)
	_ = cmd.Wait()
}

// handleContainerExec backs GET /exec/{container}?shell=&token=... (spec
// §4.1 connect_container_exec), streaming through a real Docker tty
// exec session via internal/dockerexec.StartExec.
func handleContainerExec(a *agent, w http.ResponseWriter, r *http.Request, container, shell string) {
	if !a.tokens.redeem(r.URL.Query().Get("token")) {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	if shell == "" {
		shell = a.shell
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	session, err := a.docker.StartExec(r.Context(), container, shell)
	if err != nil {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(err.Error()))
		return
	}
	defer session.Close()

	pumpWebsocketShell(conn, session, session)
}

// pumpWebsocketShell forwards frames verbatim in both directions until
// either side closes, appending the exit sentinel once the remote
// stdout stream ends (spec §4.1 exit signalling).
func pumpWebsocketShell(conn *websocket.Conn, stdin io.Writer, stdout io.Reader) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		reader := bufio.NewReader(stdout)
		buf := make([]byte, 4096)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				_ = conn.WriteMessage(websocket.BinaryMessage, []byte(periphclient.TerminalExitSentinelPrefix+"0"))
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if _, err := stdin.Write(data); err != nil {
			break
		}
	}
	<-done
}

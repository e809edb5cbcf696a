package webtransport

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/komodore/core/internal/model"
)

// upgrader accepts any origin — Komodore is typically deployed behind a
// reverse proxy terminating TLS and same-origin policy, the same
// posture the teacher's internal/web/sse.go takes for its own streaming
// endpoints.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type createTerminalTokenParams struct {
	Target model.ResourceTarget `json:"target"`
}

type createTerminalTokenResponse struct {
	ServerId string `json:"server_id"`
	Token    string `json:"token"`
}

// terminalVariants backs /terminal: the single envelope variant clients
// call before opening /ws/terminal/{server}/{name}, separating
// long-lived JWT auth from the one-shot token the agent itself checks
// (spec §6, §9).
var terminalVariants = variantTable{
	"CreateTerminalAuthToken": func(s *Server, w *webReq) (any, error) {
		var p createTerminalTokenParams
		if err := w.decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		res, err := s.requireExecute(w, p.Target, model.SpecificTerminal)
		if err != nil {
			return nil, err
		}
		serverId := res.Id
		if res.Kind != model.KindServer {
			serverId, err = serverIdFor(res)
			if err != nil {
				return nil, err
			}
		}
		client, err := s.deps.Clients(serverId)
		if err != nil {
			return nil, err
		}
		token, err := client.CreateTerminalAuthToken(w.r.Context())
		if err != nil {
			return nil, err
		}
		return createTerminalTokenResponse{ServerId: serverId, Token: token}, nil
	},
}

// handleWsTerminal proxies /ws/terminal/{server}/{name}: it dials the
// named Periphery terminal and forwards binary frames unaltered in both
// directions, propagating either side's close (spec §4.1, §9).
func (s *Server) handleWsTerminal(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	serverId := r.PathValue("server")
	name := r.PathValue("name")
	if _, err := s.requireExecute(&webReq{r: r, user: user}, model.ResourceTarget{Kind: model.KindServer, Id: serverId}, model.SpecificTerminal); err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}

	client, err := s.deps.Clients(serverId)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	token, err := client.CreateTerminalAuthToken(r.Context())
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	remote, err := client.ConnectTerminal(r.Context(), name, token)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	defer remote.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pumpTerminal(conn, remote)
}

// handleWsExec proxies /ws/exec/{server}/{container}, opening a shell
// inside a running container rather than a named terminal session.
func (s *Server) handleWsExec(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	serverId := r.PathValue("server")
	container := r.PathValue("container")
	shell := r.URL.Query().Get("shell")
	if shell == "" {
		shell = "/bin/sh"
	}
	if _, err := s.requireExecute(&webReq{r: r, user: user}, model.ResourceTarget{Kind: model.KindServer, Id: serverId}, model.SpecificTerminal); err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}

	client, err := s.deps.Clients(serverId)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	token, err := client.CreateTerminalAuthToken(r.Context())
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	remote, err := client.ConnectContainerExec(r.Context(), container, shell, token)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	defer remote.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pumpTerminal(conn, remote)
}

// streamConn is the slice of periphclient.StreamConn pumpTerminal needs.
type streamConn interface {
	ReadFrame() (data []byte, isExit bool, exitCode string, err error)
	WriteFrame(data []byte) error
}

// pumpTerminal forwards frames between the user-facing websocket and the
// agent stream in both directions until either side closes (spec §4.1
// "the websocket multiplexer must forward binary frames unaltered in
// both directions and propagate either side's close").
func pumpTerminal(user *websocket.Conn, remote streamConn) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			data, isExit, exitCode, err := remote.ReadFrame()
			if err != nil {
				return
			}
			if err := user.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
			if isExit {
				_ = exitCode
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		_, data, err := user.ReadMessage()
		if err != nil {
			return
		}
		if err := remote.WriteFrame(data); err != nil {
			return
		}
	}
}

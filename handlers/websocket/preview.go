package websocket

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"mug-studio/session"

	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// SessionLookup resolves the session a viewer asks to watch.
type SessionLookup interface {
	Get(id string) (*session.Session, error)
}

var (
	activeViewers = make(map[string]int)
	viewersMutex  sync.RWMutex
)

// GetActiveViewers returns the number of connected viewers per session.
func GetActiveViewers() map[string]int {
	viewersMutex.RLock()
	defer viewersMutex.RUnlock()

	viewers := make(map[string]int, len(activeViewers))
	for k, v := range activeViewers {
		viewers[k] = v
	}
	return viewers
}

func setViewers(sessionID string, n int) {
	viewersMutex.Lock()
	defer viewersMutex.Unlock()
	if n <= 0 {
		delete(activeViewers, sessionID)
		return
	}
	activeViewers[sessionID] = n
}

func allowedOrigins() []any {
	origins := []any{
		regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`),
	}
	for _, o := range strings.Split(os.Getenv("MUG_BACKEND_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SetupSocketIO serves the live preview channel. A viewer joins a session
// room with "join-session" and then receives "texture-updated" whenever a
// new bitmap lands on the mug, and "session-closed" when the session ends.
func SetupSocketIO(sessions SessionLookup) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      allowedOrigins(),
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := socket.Id()
		utils.Log().Printf("viewer %v connected\n", me)

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("join-session", func(datas ...any) {
			ack, args := extractAck(datas)
			sessionID := ""
			if len(args) > 0 {
				sessionID, _ = args[0].(string)
			}
			if sessionID == "" {
				respondWithAck(socket, ack, "join-session-ack", errorPayload(fmt.Errorf("session id is required")))
				return
			}
			s, err := sessions.Get(sessionID)
			if err != nil {
				respondWithAck(socket, ack, "join-session-ack", errorPayload(err))
				return
			}

			room := socketio.Room(sessionID)
			socket.Join(room)
			utils.Log().Printf("viewer %v has joined %v\n", me, room)

			srv.In(room).FetchSockets()(func(viewers []*socketio.RemoteSocket, fetchErr error) {
				if fetchErr != nil {
					respondWithAck(socket, ack, "join-session-ack", errorPayload(fetchErr))
					return
				}
				setViewers(sessionID, len(viewers))

				var revision uint64
				if tex := s.Mapper().Current(); tex != nil {
					revision = tex.Revision
				}
				respondWithAck(socket, ack, "join-session-ack", map[string]any{
					"status":   "ok",
					"version":  s.Layers().Version(),
					"revision": revision,
					"viewers":  len(viewers),
				})

				// A late joiner gets the texture that is already on the mug.
				if revision > 0 {
					_ = socket.Emit(string(session.EventTextureUpdated), eventPayload(session.Event{
						SessionID: sessionID,
						Version:   s.Layers().Version(),
						Revision:  revision,
					}))
				}
			})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("leave-session", func(datas ...any) {
			ack, args := extractAck(datas)
			sessionID := ""
			if len(args) > 0 {
				sessionID, _ = args[0].(string)
			}
			if sessionID == "" {
				respondWithAck(socket, ack, "leave-session-ack", errorPayload(fmt.Errorf("session id is required")))
				return
			}
			room := socketio.Room(sessionID)
			socket.Leave(room)
			srv.In(room).FetchSockets()(func(viewers []*socketio.RemoteSocket, _ error) {
				setViewers(sessionID, len(viewers))
				respondWithAck(socket, ack, "leave-session-ack", map[string]any{
					"status":  "ok",
					"viewers": len(viewers),
				})
			})
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				if currentRoom == socketio.Room(me) {
					continue
				}
				sessionID := string(currentRoom)
				srv.In(currentRoom).FetchSockets()(func(viewers []*socketio.RemoteSocket, _ error) {
					remaining := 0
					for _, v := range viewers {
						if v.Id() != me {
							remaining++
						}
					}
					setViewers(sessionID, remaining)
					utils.Log().Printf("viewer %v left %v, %d remaining\n", me, currentRoom, remaining)
				})
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

// Notify returns a session listener that pushes each event to the viewers
// of its session.
func Notify(srv *socketio.Server) func(session.Event) {
	return func(e session.Event) {
		room := socketio.Room(e.SessionID)
		if err := srv.To(room).Emit(string(e.Kind), eventPayload(e)); err != nil {
			utils.Log().Printf("emit %v to %v failed: %v\n", e.Kind, room, err)
		}
		if e.Kind == session.EventClosed {
			srv.In(room).SocketsLeave(room)
			setViewers(e.SessionID, 0)
		}
	}
}

func eventPayload(e session.Event) map[string]any {
	return map[string]any{
		"sessionId": e.SessionID,
		"version":   e.Version,
		"revision":  e.Revision,
	}
}

func errorPayload(err error) map[string]any {
	return map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
}

// extractAck splits a trailing acknowledgement callback off the event args.
func extractAck(datas []any) (socketio.Ack, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	if ack, ok := datas[len(datas)-1].(socketio.Ack); ok && ack != nil {
		return ack, datas[:len(datas)-1]
	}
	return nil, datas
}

// respondWithAck answers through the callback when the client asked for
// one, and emits event otherwise.
func respondWithAck(socket *socketio.Socket, ack socketio.Ack, event string, payload map[string]any) {
	if ack != nil {
		ack([]any{payload}, nil)
		return
	}
	_ = socket.Emit(event, payload)
}

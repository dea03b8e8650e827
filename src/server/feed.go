package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"forwardtester/src/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const feedBuffer = 100

// ExecutionFeed broadcasts persisted execution records to websocket
// subscribers. It implements the audit notifier; a slow subscriber
// drops records rather than blocking the pipeline.
type ExecutionFeed struct {
	mu      sync.Mutex
	clients map[chan *model.ExecutionRecord]struct{}
}

func NewExecutionFeed() *ExecutionFeed {
	return &ExecutionFeed{clients: make(map[chan *model.ExecutionRecord]struct{})}
}

// Notify fans the record out to every subscriber.
func (f *ExecutionFeed) Notify(record *model.ExecutionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.clients {
		select {
		case ch <- record:
		default:
		}
	}
}

func (f *ExecutionFeed) subscribe() (chan *model.ExecutionRecord, func()) {
	ch := make(chan *model.ExecutionRecord, feedBuffer)

	f.mu.Lock()
	f.clients[ch] = struct{}{}
	f.mu.Unlock()

	unsub := func() {
		f.mu.Lock()
		delete(f.clients, ch)
		f.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// handler upgrades the connection and streams records until the client
// goes away.
func (f *ExecutionFeed) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Error("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	stream, unsub := f.subscribe()
	defer unsub()

	logger.WithField("remote", r.RemoteAddr).Info("Execution feed subscriber connected")

	// Clients never send data; reading is how the close frame gets
	// noticed between broadcasts.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case record, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(record); err != nil {
				logger.WithField("remote", r.RemoteAddr).WithError(err).Debug("Execution feed subscriber gone")
				return
			}
		case <-closed:
			logger.WithField("remote", r.RemoteAddr).Info("Execution feed subscriber disconnected")
			return
		}
	}
}

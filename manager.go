package ftpclientcore

import (
	"sync"
	"time"

	golog "github.com/fclairamb/ftpclientcore/log"
	"github.com/fclairamb/ftpclientcore/openedfiles"
)

// Manager is the process-wide object spec.md §9's "global mutable state"
// discussion asks to make explicit: it owns the shared openedfiles.Registry
// (spec.md §4.4, "process-wide, not per-session") and the ServerTypeCache
// (SPEC_FULL.md §3's supplemented server-type-caching feature), and hands
// out Sessions built against them. One Manager per running process,
// constructed once at startup, the way the teacher's FtpServer is
// constructed once and owns every client's shared state.
type Manager struct {
	Logger golog.Logger

	OpenedFiles *openedfiles.Registry
	ServerTypes *ServerTypeCache

	Settings Settings

	mu       sync.Mutex
	sessions map[identityKey]*Session
}

// NewManager builds a Manager with freshly constructed shared state.
func NewManager(settings Settings, logger golog.Logger) *Manager {
	return &Manager{
		Logger:      logger,
		OpenedFiles: openedfiles.New(),
		ServerTypes: NewServerTypeCache(),
		Settings:    settings,
		sessions:    make(map[identityKey]*Session),
	}
}

// GetOrDialSession returns the live session already open for id, if any,
// otherwise dials a new one and registers it. This is the mechanism
// spec.md §3 describes: "a session is keyed by (user, host, port)" and a
// second request against the same profile reuses the existing connection
// rather than opening a duplicate one.
func (m *Manager) GetOrDialSession(id Identity, password string, dialTimeout time.Duration) (*Session, error) {
	key := id.key()

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := DialSession(id, password, m.Logger, dialTimeout)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()

	return s, nil
}

// Forget drops id's session from the registry (used once a session's
// control connection has been closed, whether deliberately or because it
// proved unrecoverable) without touching the shared ServerTypeCache entry,
// which is allowed to outlive any one connection per spec.md §3/SPEC_FULL.md §3.
func (m *Manager) Forget(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id.key())
}

// CloseAll closes every open session, best-effort, used at process
// shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[identityKey]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}

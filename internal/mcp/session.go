package mcp

import (
	"sync"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

// session holds the mutable per-server state: which endpoint is connected and
// the latest database-wide discovery result. Tool handlers may run
// concurrently, so all access goes through the mutex.
type session struct {
	mu sync.Mutex

	server   string
	database string
	db       warehouse.DB

	result *discovery.Result // latest database-wide discovery, nil until run
}

// configure swaps the active connection. A reconfigure invalidates the
// snapshot: it described the previous database.
func (s *session) configure(server, database string, db warehouse.DB) {
	s.mu.Lock()
	old := s.db
	s.server = server
	s.database = database
	s.db = db
	s.result = nil
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// handle returns the active connection, or a NotFound error telling the
// caller how to establish one.
func (s *session) handle() (warehouse.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errs.New(errs.ErrKindNotFound,
			"no database configured; call configure_database first")
	}
	return s.db, nil
}

func (s *session) identity() (server, database string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server, s.database, s.db != nil
}

func (s *session) setResult(res *discovery.Result) {
	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
}

func (s *session) discovery() *discovery.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *session) close() {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.result = nil
	s.mu.Unlock()

	if db != nil {
		db.Close()
	}
}

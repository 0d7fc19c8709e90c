package api

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/securityvision/analyzer/internal/jobs"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/store"
)

const tailsqlSource = "sqlite://" + store.DefaultFileName

// adminDB points the tailsql console at the database of the most recently
// completed job, reopening it when a newer job completes.
type adminDB struct {
	jobs *jobs.Registry
	tsql *tailsql.Server

	mu    sync.Mutex
	path  string
	store *store.Store
}

func (a *adminDB) attach(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	a.tsql = tsql

	sqlMux := tsql.NewMux()
	debug.Handle("tailsql/", "SQL console on the latest completed run", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.refresh(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		sqlMux.ServeHTTP(w, r)
	}))
	return nil
}

// refresh switches the console to the latest completed job's database.
func (a *adminDB) refresh() error {
	latest, ok := a.jobs.LatestCompleted()
	if !ok || latest.Result == nil || latest.Result.Files == nil {
		return fmt.Errorf("no completed analysis yet")
	}
	path := latest.Result.Files.Database

	a.mu.Lock()
	defer a.mu.Unlock()
	if path == a.path {
		return nil
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	a.tsql.SetDB(tailsqlSource, st.DB(), &tailsql.DBOptions{
		Label: "Run " + latest.ID,
	})
	if a.store != nil {
		a.store.Close()
	}
	a.path, a.store = path, st
	monitoring.Logf("[API] SQL console now on %s", path)
	return nil
}

func (a *adminDB) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.path, a.store = "", nil
	return err
}

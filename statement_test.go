package goember

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emberdb/goember/internal/query"
)

type recordedQueries struct {
	mu   sync.Mutex
	reqs []*queryRequest
}

func (r *recordedQueries) add(req *queryRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
}

func (r *recordedQueries) all() []*queryRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*queryRequest(nil), r.reqs...)
}

func textResponse(payload string) *queryResponse {
	return &queryResponse{Body: io.NopCloser(strings.NewReader(payload))}
}

// newTestConnection connects without credentials and replaces the
// transport with exec.
func newTestConnection(t *testing.T, exec func(ctx context.Context, req *queryRequest) (*queryResponse, error)) (*Connection, *recordedQueries, *[]string) {
	t.Helper()
	cfg := &Config{
		Host:           "localhost",
		Database:       "db",
		Engine:         "eng",
		LabelGenerator: NewSequenceLabelGenerator("q"),
	}
	conn, err := Connect(context.Background(), cfg)
	assertNilF(t, err)
	rec := &recordedQueries{}
	var (
		abortMu sync.Mutex
		aborted []string
	)
	conn.rest.FuncExecuteQuery = func(ctx context.Context, _ *emberRestful, req *queryRequest) (*queryResponse, error) {
		rec.add(req)
		return exec(ctx, req)
	}
	conn.rest.FuncAbortQuery = func(_ context.Context, _ *emberRestful, label string) (bool, error) {
		abortMu.Lock()
		defer abortMu.Unlock()
		aborted = append(aborted, label)
		return true, nil
	}
	t.Cleanup(func() { conn.Close() })
	return conn, rec, &aborted
}

func commandOK(context.Context, *queryRequest) (*queryResponse, error) {
	return textResponse(""), nil
}

func TestExecuteSubstitutesMarkers(t *testing.T) {
	conn, rec, _ := newTestConnection(t, commandOK)
	stmt, err := conn.NewStatement()
	assertNilF(t, err)
	chain, err := stmt.Execute(context.Background(),
		"INSERT INTO t(a,b) VALUES (?,?); INSERT INTO t(a,b) VALUES (?,?)",
		map[int]string{1: "1", 2: "'x'", 3: "2", 4: "'y'"})
	assertNilF(t, err)
	assertEqualE(t, chain.Len(), 2)
	reqs := rec.all()
	assertEqualF(t, len(reqs), 2)
	assertEqualE(t, reqs[0].SQL, "INSERT INTO t(a,b) VALUES (1,'x');")
	assertEqualE(t, reqs[1].SQL, "INSERT INTO t(a,b) VALUES (2,'y')")
	assertEqualE(t, reqs[0].Label, "q-1")
	assertEqualE(t, reqs[1].Label, "q-2")
	assertEqualE(t, reqs[0].Params.Get(paramDatabase), "db")
	assertEqualE(t, reqs[0].Params.Get(paramEngine), "eng")
	for _, n := range chain.Nodes() {
		assertNilE(t, n.Cursor)
		assertEqualE(t, n.Statement.Kind, StatementNonQuery)
	}
	assertEqualE(t, stmt.State(), PhaseCompleted)
}

func TestExecuteMissingParameter(t *testing.T) {
	conn, rec, _ := newTestConnection(t, commandOK)
	stmt, _ := conn.NewStatement()
	_, err := stmt.Execute(context.Background(), "SELECT ?, ?", map[int]string{1: "1"})
	assertErrIsE(t, err, &EmberError{Number: ErrCodeMissingParameterValue})
	assertEqualE(t, KindOf(err), ParameterError)
	assertEqualE(t, len(rec.all()), 0, "nothing is sent")
	assertEqualE(t, stmt.State(), PhaseIdle)
}

func TestExecuteValues(t *testing.T) {
	conn, rec, _ := newTestConnection(t, commandOK)
	stmt, _ := conn.NewStatement()
	_, err := stmt.ExecuteValues(context.Background(), "INSERT INTO t VALUES (?, ?, ?)", 3, "it's", nil)
	assertNilF(t, err)
	assertEqualE(t, rec.all()[0].SQL, "INSERT INTO t VALUES (3, 'it''s', NULL)")
}

func TestQueryReturnsFirstCursor(t *testing.T) {
	conn, _, _ := newTestConnection(t, func(_ context.Context, req *queryRequest) (*queryResponse, error) {
		if strings.HasPrefix(req.SQL, "SELECT") {
			return textResponse("id\tname\nint\ttext\n1\tAlice\n"), nil
		}
		return textResponse(""), nil
	})
	stmt, _ := conn.NewStatement()
	cur, err := stmt.Query(context.Background(), "CREATE TABLE t(id int); SELECT id, name FROM t", nil)
	assertNilF(t, err)
	assertTrueF(t, cur.Next())
	id, _ := cur.GetInt32(1)
	assertEqualE(t, id, int32(1))
	name, _ := cur.GetString(2)
	assertEqualE(t, name, "Alice")

	_, err = stmt.Query(context.Background(), "DROP TABLE t", nil)
	assertErrIsE(t, err, ErrNoResultSet)
	assertTrueE(t, cur.IsClosed(), "a new batch closes the previous results")
}

func TestSetStatementUpdatesSession(t *testing.T) {
	conn, rec, _ := newTestConnection(t, func(_ context.Context, req *queryRequest) (*queryResponse, error) {
		return textResponse("x\nint\n1\n"), nil
	})
	stmt, _ := conn.NewStatement()
	chain, err := stmt.Execute(context.Background(), "SET use_standard_sql = 0; SET engine = 'other'; SELECT 1", nil)
	assertNilF(t, err)
	assertEqualE(t, chain.Len(), 3)
	nodes := chain.Nodes()
	assertEqualE(t, nodes[0].Statement.Kind, StatementParamSetting)
	assertEqualE(t, nodes[0].Statement.Key, "use_standard_sql")
	assertEqualE(t, nodes[0].Statement.Value, "0")
	assertNilE(t, nodes[0].Cursor)
	assertNotNilE(t, nodes[2].Cursor)

	reqs := rec.all()
	assertEqualF(t, len(reqs), 1, "SET statements are not sent")
	assertEqualE(t, reqs[0].Params.Get("use_standard_sql"), "0")
	assertEqualE(t, reqs[0].Params.Get(paramEngine), "other")
	assertEqualE(t, conn.Engine(), "other")
	assertEqualE(t, conn.SessionProperties()["use_standard_sql"], "0")

	assertNilF(t, conn.ResetSessionProperties())
	_, ok := conn.SessionProperties()["use_standard_sql"]
	assertFalseE(t, ok)
}

func TestSetStatementWithMarker(t *testing.T) {
	conn, _, _ := newTestConnection(t, commandOK)
	stmt, _ := conn.NewStatement()
	_, err := stmt.Execute(context.Background(), "SET time_zone = ?", map[int]string{1: "'Europe/Berlin'"})
	assertNilF(t, err)
	assertEqualE(t, conn.SessionProperties()["time_zone"], "Europe/Berlin")
}

func TestUpdateParametersFromServer(t *testing.T) {
	conn, _, _ := newTestConnection(t, func(context.Context, *queryRequest) (*queryResponse, error) {
		resp := textResponse("")
		resp.UpdateParameters = map[string]string{"database": "next", "max_threads": "4"}
		return resp, nil
	})
	stmt, _ := conn.NewStatement()
	_, err := stmt.Execute(context.Background(), "USE DATABASE next", nil)
	assertNilF(t, err)
	assertEqualE(t, conn.Database(), "next")
	assertEqualE(t, conn.SessionProperties()["max_threads"], "4")
}

func TestExecuteStopsOnFailure(t *testing.T) {
	serverErr := &EmberError{Number: ErrCodeQueryFailed, SQLState: "42P01", Message: "table not found"}
	conn, rec, _ := newTestConnection(t, func(_ context.Context, req *queryRequest) (*queryResponse, error) {
		if req.Label == "q-2" {
			return nil, serverErr
		}
		return textResponse("n\nint\n1\n"), nil
	})
	stmt, _ := conn.NewStatement()
	chain, err := stmt.Execute(context.Background(), "SELECT 1; SELECT * FROM missing; SELECT 3", nil)
	assertErrIsE(t, err, serverErr)
	assertNotNilF(t, chain)
	assertEqualE(t, chain.Len(), 1, "the first result is kept")
	cur := chain.Head().Cursor
	assertTrueE(t, cur.Next())
	assertEqualE(t, len(rec.all()), 2, "the third statement is not sent")
	assertEqualE(t, stmt.State(), PhaseFailed)
}

func TestCancelSkipsRemainingStatements(t *testing.T) {
	started := make(chan string, 3)
	release := make(chan struct{})
	conn, rec, aborted := newTestConnection(t, func(_ context.Context, req *queryRequest) (*queryResponse, error) {
		started <- req.Label
		if req.Label == "q-1" {
			<-release
		}
		return textResponse("n\nint\n1\n"), nil
	})
	stmt, _ := conn.NewStatement()

	type result struct {
		chain *ResultChain
		err   error
	}
	done := make(chan result, 1)
	go func() {
		chain, err := stmt.Execute(context.Background(), "SELECT 1; SELECT 2; SELECT 3", nil)
		done <- result{chain, err}
	}()
	assertEqualF(t, <-started, "q-1")
	assertEqualE(t, stmt.State(), PhaseRunning)
	assertNilF(t, stmt.Cancel(context.Background()))
	close(release)

	r := <-done
	assertNilF(t, r.err, "the running statement completed")
	assertEqualE(t, r.chain.Len(), 1)
	assertEqualE(t, r.chain.Head().Statement.Label, "q-1")
	assertNotNilE(t, r.chain.Head().Cursor)
	assertEqualE(t, len(rec.all()), 1)
	assertDeepEqualE(t, *aborted, []string{"q-1"})
	assertEqualE(t, stmt.State(), PhaseCancelled)
}

func TestCancelledStatementFailure(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	conn, rec, aborted := newTestConnection(t, func(context.Context, *queryRequest) (*queryResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return nil, &EmberError{Number: ErrCodeQueryFailed, Message: "query was aborted"}
	})
	stmt, _ := conn.NewStatement()
	type result struct {
		chain *ResultChain
		err   error
	}
	done := make(chan result, 1)
	go func() {
		chain, err := stmt.Execute(context.Background(), "SELECT sleep(100); SELECT 2", nil)
		done <- result{chain, err}
	}()
	<-started
	assertNilF(t, stmt.Cancel(context.Background()))
	close(release)

	r := <-done
	assertTrueE(t, IsCancellation(r.err))
	var ee *EmberError
	assertErrorsAsF(t, r.err, &ee)
	assertEqualE(t, ee.QueryLabel, "q-1")
	assertEqualE(t, ee.SQLState, SQLStateQueryCanceled)
	assertNotNilF(t, r.chain)
	assertEqualE(t, r.chain.Len(), 0, "no results after the cancelled statement")
	assertEqualE(t, len(rec.all()), 1, "the second statement was never sent")
	assertDeepEqualE(t, *aborted, []string{"q-1"})
	assertEqualE(t, stmt.State(), PhaseCancelled)
}

func TestContextCancellationAbortsQuery(t *testing.T) {
	started := make(chan struct{})
	conn, _, aborted := newTestConnection(t, func(ctx context.Context, _ *queryRequest) (*queryResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, newRequestError(ctx.Err())
	})
	stmt, _ := conn.NewStatement()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := stmt.Execute(ctx, "SELECT sleep(100)", nil)
	assertTrueE(t, IsCancellation(err))
	assertErrIsE(t, err, ErrQueryCancelled)
	assertDeepEqualE(t, *aborted, []string{"q-1"})
	assertEqualE(t, stmt.State(), PhaseCancelled)
}

func TestCancelIdleStatement(t *testing.T) {
	conn, _, aborted := newTestConnection(t, commandOK)
	stmt, _ := conn.NewStatement()
	assertNilE(t, stmt.Cancel(context.Background()))
	assertEqualE(t, len(*aborted), 0)
}

func TestExecuteWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	conn, _, _ := newTestConnection(t, func(context.Context, *queryRequest) (*queryResponse, error) {
		close(started)
		<-release
		return textResponse(""), nil
	})
	stmt, _ := conn.NewStatement()
	errc := make(chan error, 1)
	go func() {
		_, err := stmt.Execute(context.Background(), "INSERT INTO t VALUES (1)", nil)
		errc <- err
	}()
	<-started
	_, err := stmt.Execute(context.Background(), "INSERT INTO t VALUES (2)", nil)
	assertErrIsE(t, err, ErrStatementBusy)
	close(release)
	assertNilE(t, <-errc)
}

func TestStatementClose(t *testing.T) {
	conn, _, _ := newTestConnection(t, func(context.Context, *queryRequest) (*queryResponse, error) {
		return textResponse("n\nint\n1\n"), nil
	})
	stmt, _ := conn.NewStatement()
	chain, err := stmt.Execute(context.Background(), "SELECT 1; SELECT 2", nil)
	assertNilF(t, err)
	assertNilF(t, stmt.Close())
	assertNilF(t, stmt.Close())
	assertTrueE(t, chain.IsClosed())
	for _, n := range chain.Nodes() {
		assertTrueE(t, n.Cursor.IsClosed())
	}
	_, err = stmt.Execute(context.Background(), "SELECT 1", nil)
	assertErrIsE(t, err, ErrStatementClosed)
	assertErrIsE(t, stmt.Cancel(context.Background()), ErrStatementClosed)
}

func TestConnectionCloseClosesStatements(t *testing.T) {
	conn, _, _ := newTestConnection(t, commandOK)
	stmt, _ := conn.NewStatement()
	assertNilF(t, conn.Close())
	assertEqualE(t, stmt.State(), PhaseClosed)
	_, err := conn.NewStatement()
	assertErrIsE(t, err, ErrConnectionClosed)
	_, err = stmt.Execute(context.Background(), "SELECT 1", nil)
	assertErrIsE(t, err, ErrConnectionClosed)
}

func TestExecuteAsync(t *testing.T) {
	conn, rec, aborted := newTestConnection(t, func(_ context.Context, req *queryRequest) (*queryResponse, error) {
		return textResponse(`{"query_label":"` + req.Label + `","status":"RUNNING"}`), nil
	})
	stmt, _ := conn.NewStatement()
	label, err := stmt.ExecuteAsync(context.Background(), "SET max_threads = 2; INSERT INTO t SELECT * FROM big", nil)
	assertNilF(t, err)
	assertEqualE(t, label, "q-2")
	reqs := rec.all()
	assertEqualF(t, len(reqs), 1)
	assertTrueE(t, reqs[0].Async)
	assertEqualE(t, reqs[0].Params.Get("max_threads"), "2")
	assertEqualE(t, stmt.State(), PhaseCompleted)

	assertNilF(t, stmt.Cancel(context.Background()))
	assertDeepEqualE(t, *aborted, []string{"q-2"})

	_, err = stmt.ExecuteAsync(context.Background(), "SELECT 1; SELECT 2", nil)
	assertErrIsE(t, err, &EmberError{Number: ErrCodeAsyncMultiStatement})
}

func TestQueryStatusAndAbort(t *testing.T) {
	conn, _, aborted := newTestConnection(t, commandOK)
	var polls int
	conn.rest.FuncQueryStatus = func(_ context.Context, _ *emberRestful, label string) (*query.StatusResponse, error) {
		polls++
		if polls < 3 {
			return &query.StatusResponse{QueryLabel: label, Status: query.StatusRunning}, nil
		}
		return &query.StatusResponse{QueryLabel: label, Status: query.StatusEnded, RowsRead: 10}, nil
	}
	running, err := conn.IsRunning(context.Background(), "q-9")
	assertNilF(t, err)
	assertTrueE(t, running)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	qs, err := conn.WaitForQuery(ctx, "q-9")
	assertNilF(t, err)
	assertTrueE(t, qs.Succeeded())
	assertTrueE(t, qs.IsDone())
	assertEqualE(t, qs.RowsRead, int64(10))

	ok, err := conn.Abort(context.Background(), "q-9")
	assertNilF(t, err)
	assertTrueE(t, ok)
	assertDeepEqualE(t, *aborted, []string{"q-9"})
}

func TestAbortOnClosedConnection(t *testing.T) {
	conn, _, _ := newTestConnection(t, commandOK)
	assertNilF(t, conn.Close())
	_, err := conn.Abort(context.Background(), "q-1")
	assertTrueE(t, errors.Is(err, ErrConnectionClosed))
}

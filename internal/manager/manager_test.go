package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo"

	"github.com/bluedotiya/web-crawler/internal/probe"
	"github.com/bluedotiya/web-crawler/internal/store/memory"
)

// fakeResolver always resolves with a fixed answer, so Manager tests don't
// depend on a live DNS server.
type fakeResolver struct{}

func (fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return []string{"93.184.216.34"}, nil
}

// newTestHandler wires a Handler with a real fetcher and an in-memory store,
// matching the teacher's NewTestServer helper. The seed argument is not used:
// the handler fetches whatever URL the request body names.
func newTestHandler(seed *httptest.Server) (*echo.Echo, *Handler) {
	h := &Handler{
		Store:    memory.New(),
		Fetcher:  probe.NewFetcher(),
		Resolver: fakeResolver{},
	}
	e := echo.New()
	e.Logger.SetOutput(ioutil.Discard)
	e.POST("/", h.CreateJobHandler)
	return e, h
}

func postJob(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	return resp
}

// test that a well-formed request against a reachable seed plants a ROOT
// and returns "Job started" (spec §6, §8 scenario 1)
func TestCreateJobHandlerSuccess(t *testing.T) {
	t.Parallel()

	seed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="https://foo.bar">foo</a>`))
	}))
	defer seed.Close()

	e, _ := newTestHandler(seed)
	body := `{"url":"` + seed.URL + `","depth":1,"mode":"normal"}`
	resp := postJob(e, body)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["Success"] != "Job started" {
		t.Fatalf("unexpected response: %v", out)
	}
}

// test that a duplicate submission is idempotent (spec §8 scenario 5)
func TestCreateJobHandlerDuplicate(t *testing.T) {
	t.Parallel()

	seed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`no links here`))
	}))
	defer seed.Close()

	e, _ := newTestHandler(seed)
	body := `{"url":"` + seed.URL + `","depth":1,"mode":"normal"}`

	first := postJob(e, body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 on first submit, got %d", first.Code)
	}

	second := postJob(e, body)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate submit, got %d", second.Code)
	}

	var out map[string]string
	json.Unmarshal(second.Body.Bytes(), &out)
	if out["Info"] != "requested url was already searched" {
		t.Fatalf("expected idempotent Info response, got %v", out)
	}
}

// test that an unreachable seed returns 404 with no ROOT planted (spec §8
// scenario 4)
func TestCreateJobHandlerUnreachable(t *testing.T) {
	t.Parallel()

	e, h := newTestHandler(nil)
	body := `{"url":"http://127.0.0.1:1","depth":1,"mode":"normal"}`
	resp := postJob(e, body)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.Code, resp.Body.String())
	}
	if n := len(h.Store.(*memory.Store).Nodes()); n != 0 {
		t.Fatalf("expected no ROOT planted, got %d nodes", n)
	}
}

// test that malformed JSON is rejected with 400
func TestCreateJobHandlerBadJSON(t *testing.T) {
	t.Parallel()

	e, _ := newTestHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"url":`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

// test that an unsupported mode is rejected with 400
func TestCreateJobHandlerBadMode(t *testing.T) {
	t.Parallel()

	e, _ := newTestHandler(nil)
	body := `{"url":"http://example.com","depth":1,"mode":"bogus"}`
	resp := postJob(e, body)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

// test non-JSON content type is rejected with 400
func TestCreateJobHandlerNonJSON(t *testing.T) {
	t.Parallel()

	e, _ := newTestHandler(nil)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`url=http://example.com`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

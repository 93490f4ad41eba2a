// Package ttdtest fakes the platform APIs for workflow tests.
package ttdtest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/ttd-workflows/pkg/config"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

const (
	RESTBase    = "http://rest.test/v3"
	GraphQLURL  = "http://gql.test/graphql"
	FilesPrefix = "http://files.test/"
)

// Call is one request observed by the fake.
type Call struct {
	Method    string
	Path      string
	URL       string
	Header    http.Header
	Body      []byte
	Query     string
	Variables map[string]any
}

// JSONBody decodes the REST body of the call.
func (c Call) JSONBody() map[string]any {
	var out map[string]any
	_ = json.Unmarshal(c.Body, &out)
	return out
}

// Handler produces the status and body for a call.
type Handler func(Call) (int, string)

type graphQLRoute struct {
	match   string
	handler Handler
}

// Fake routes REST calls by "METHOD path", GraphQL calls by a substring of
// the query, and everything else to the file handler.
type Fake struct {
	t testing.TB

	mu      sync.Mutex
	rest    map[string]Handler
	graphql []graphQLRoute
	files   Handler
	calls   []Call
}

func New(t testing.TB) *Fake {
	return &Fake{t: t, rest: map[string]Handler{}}
}

func (f *Fake) OnREST(method, path string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rest[method+" "+strings.TrimLeft(path, "/")] = h
	return f
}

// OnGraphQL registers h for queries containing match. Routes are tried in
// registration order.
func (f *Fake) OnGraphQL(match string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphql = append(f.graphql, graphQLRoute{match: match, handler: h})
	return f
}

func (f *Fake) OnFiles(h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = h
	return f
}

// Client returns a platform client wired to the fake.
func (f *Fake) Client(opts ...ttd.Option) *ttd.Client {
	f.t.Helper()
	opts = append([]ttd.Option{
		ttd.WithHTTPClient(&http.Client{Transport: f, Timeout: 5 * time.Second}),
		ttd.WithRESTURL(RESTBase),
		ttd.WithGraphQLURL(GraphQLURL),
	}, opts...)
	client, err := ttd.NewClient(config.PlatformConfig{Token: "test-token"}, opts...)
	if err != nil {
		f.t.Fatalf("new ttd client: %v", err)
	}
	return client
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns GraphQL calls whose query contains match, or REST calls
// whose "METHOD path" equals match.
func (f *Fake) CallsTo(match string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Query != "" && strings.Contains(c.Query, match) {
			out = append(out, c)
			continue
		}
		if c.Method+" "+c.Path == match {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	call := Call{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	}

	var handler Handler
	switch {
	case strings.HasPrefix(call.URL, RESTBase+"/"):
		call.Path = strings.TrimPrefix(call.URL, RESTBase+"/")
		f.mu.Lock()
		handler = f.rest[call.Method+" "+call.Path]
		f.mu.Unlock()
	case call.URL == GraphQLURL:
		var gql ttd.Request
		_ = json.Unmarshal(body, &gql)
		call.Query = gql.Query
		call.Variables = gql.Variables
		f.mu.Lock()
		for _, route := range f.graphql {
			if strings.Contains(gql.Query, route.match) {
				handler = route.handler
				break
			}
		}
		f.mu.Unlock()
	default:
		call.Path = strings.TrimPrefix(call.URL, FilesPrefix)
		f.mu.Lock()
		handler = f.files
		f.mu.Unlock()
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if handler == nil {
		f.t.Errorf("ttdtest: unexpected %s %s %s", call.Method, call.URL, firstLine(call.Query))
		return response(http.StatusNotImplemented, `{"Message":"no fake route"}`), nil
	}
	status, respBody := handler(call)
	return response(status, respBody), nil
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// JSON always answers status with v encoded.
func JSON(status int, v any) Handler {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return func(Call) (int, string) { return status, string(raw) }
}

// Data answers 200 with {"data": v}.
func Data(v any) Handler {
	return JSON(http.StatusOK, map[string]any{"data": v})
}

// Errors answers 200 with a GraphQL errors list.
func Errors(messages ...string) Handler {
	list := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		list = append(list, map[string]any{"message": m})
	}
	return JSON(http.StatusOK, map[string]any{"data": nil, "errors": list})
}

// Sequence answers with each handler in turn and repeats the last one.
func Sequence(handlers ...Handler) Handler {
	var mu sync.Mutex
	i := 0
	return func(c Call) (int, string) {
		mu.Lock()
		h := handlers[i]
		if i < len(handlers)-1 {
			i++
		}
		mu.Unlock()
		return h(c)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

package ttd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/metrics"
)

// Request is the GraphQL POST body.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GraphQLError is one entry of the top-level errors list.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// GraphQL executes query with variables and decodes data into out. A
// non-2xx status or a non-empty errors list yields an error and leaves out
// untouched.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "ttd client not configured")
	}
	if variables == nil {
		variables = map[string]any{}
	}

	payload, err := json.Marshal(Request{Query: query, Variables: variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build graphql request")
	}
	req.Header.Set(authHeader, c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Observe(metrics.APIGraphQL, metrics.OutcomeTransport, time.Since(start))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute graphql request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.Observe(metrics.APIGraphQL, metrics.OutcomeTransport, time.Since(start))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read graphql response")
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode/100 == 2 {
			c.metrics.Observe(metrics.APIGraphQL, metrics.OutcomeGraphQL, time.Since(start))
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode graphql response")
		}
	}

	if resp.StatusCode/100 != 2 {
		c.metrics.Observe(metrics.APIGraphQL, metrics.OutcomeHTTP, time.Since(start))
		details := map[string]any{"status": resp.StatusCode}
		if len(env.Errors) > 0 {
			details["errors"] = env.Errors
		} else if len(raw) > 0 {
			details["body"] = truncate(string(raw), errorBodyReadLimit)
		}
		return pkgerrors.New(pkgerrors.FromHTTPStatus(resp.StatusCode), fmt.Sprintf("graphql request failed with status %d", resp.StatusCode)).
			WithDetails(details)
	}

	if len(env.Errors) > 0 {
		c.metrics.Observe(metrics.APIGraphQL, metrics.OutcomeGraphQL, time.Since(start))
		return pkgerrors.New(pkgerrors.CodeGraphQL, env.Errors[0].Message).WithDetails(env.Errors)
	}
	c.metrics.Observe(metrics.APIGraphQL, metrics.OutcomeOK, time.Since(start))

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode graphql data")
	}
	return nil
}

// FieldPath is the userErrors field locator; the API sends either a single
// name or a path list.
type FieldPath []string

func (f *FieldPath) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = nil
		return nil
	}
	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*f = FieldPath{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return err
	}
	*f = many
	return nil
}

func (f FieldPath) String() string {
	return strings.Join(f, ".")
}

// UserError is a validation problem reported inside a mutation payload.
type UserError struct {
	Field   FieldPath `json:"field"`
	Message string    `json:"message"`
}

func (u UserError) String() string {
	if len(u.Field) == 0 {
		return u.Message
	}
	return u.Field.String() + ": " + u.Message
}

// CheckUserErrors turns a non-empty userErrors list into a USER_ERROR.
func CheckUserErrors(operation string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.String())
	}
	return pkgerrors.New(pkgerrors.CodeUserError, fmt.Sprintf("%s: %s", operation, strings.Join(messages, "; "))).
		WithDetails(errs)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

package dynamo

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"
)

// apiCall is one JSON request received by fakeDynamo.
type apiCall struct {
	Op   string
	Body map[string]any
}

// reply is what fakeDynamo answers; Status 0 means 200.
type reply struct {
	Status int
	Body   any
}

// fakeDynamo speaks just enough of the DynamoDB JSON protocol for repo tests:
// it records every call and lets the test choose the answer per operation.
type fakeDynamo struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []apiCall
	respond func(op string, body map[string]any) reply
}

func (f *fakeDynamo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.Header.Get("X-Amz-Target"), "DynamoDB_20120810.")
	raw, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(f.t, json.Unmarshal(raw, &body))
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Op: op, Body: body})
	f.mu.Unlock()

	rep := reply{Body: map[string]any{}}
	if f.respond != nil {
		rep = f.respond(op, body)
	}
	if rep.Status == 0 {
		rep.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.WriteHeader(rep.Status)
	require.NoError(f.t, json.NewEncoder(w).Encode(rep.Body))
}

func (f *fakeDynamo) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fakeDynamo) Ops() []string {
	calls := f.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

// newFakeDynamo starts a fake endpoint and returns a client pointed at it.
func newFakeDynamo(t *testing.T, respond func(op string, body map[string]any) reply) (*fakeDynamo, *dynamodb.Client) {
	t.Helper()
	f := &fakeDynamo{t: t, respond: respond}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, newTestClient(srv.URL)
}

func newTestClient(endpoint string) *dynamodb.Client {
	return dynamodb.New(dynamodb.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
		Retryer:      aws.NopRetryer{},
	})
}

// deadClient points at a server that has already shut down.
func deadClient(t *testing.T) *dynamodb.Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return newTestClient(url)
}

func conditionFailed(item map[string]any) reply {
	body := map[string]any{
		"__type":  "com.amazonaws.dynamodb.v20120810#ConditionalCheckFailedException",
		"message": "The conditional request failed",
	}
	if item != nil {
		body["Item"] = item
	}
	return reply{Status: http.StatusBadRequest, Body: body}
}

func resourceInUse() reply {
	return reply{Status: http.StatusBadRequest, Body: map[string]any{
		"__type":  "com.amazonaws.dynamodb.v20120810#ResourceInUseException",
		"message": "Table already exists",
	}}
}

// str digs a string out of a decoded request body by key path.
func str(body map[string]any, path ...string) string {
	var cur any = body
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[p]
	}
	s, _ := cur.(string)
	return s
}

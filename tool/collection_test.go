package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTool struct {
	name      string
	params    json.RawMessage
	execute   func(ctx context.Context, args json.RawMessage) (*Result, error)
	cleanups  int
	cleanupOK bool
}

func (s *stubTool) Name() string                { return s.name }
func (s *stubTool) Description() string         { return "stub tool " + s.name }
func (s *stubTool) Parameters() json.RawMessage { return s.params }

func (s *stubTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	if s.execute != nil {
		return s.execute(ctx, args)
	}
	return &Result{Output: s.name + " ran"}, nil
}

func (s *stubTool) Cleanup(context.Context) error {
	s.cleanups++
	if !s.cleanupOK {
		return errors.New("cleanup exploded")
	}
	return nil
}

func TestCollection_RegisterValidation(t *testing.T) {
	c, err := NewCollection(zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Register(&stubTool{name: "a", params: json.RawMessage(`{}`)}))

	err = c.Register(&stubTool{name: "a", params: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "already registered")

	err = c.Register(&stubTool{name: "", params: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "empty name")

	err = c.Register(&stubTool{name: "bad", params: json.RawMessage(`{not json`)})
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestCollection_SchemasInRegistrationOrder(t *testing.T) {
	c, err := NewCollection(zap.NewNop(),
		&stubTool{name: "first", params: json.RawMessage(`{}`)},
		&stubTool{name: "second", params: json.RawMessage(`{}`)},
		&stubTool{name: "third", params: json.RawMessage(`{}`)},
	)
	require.NoError(t, err)

	schemas := c.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "first", schemas[0].Name)
	assert.Equal(t, "second", schemas[1].Name)
	assert.Equal(t, "third", schemas[2].Name)
}

func TestCollection_Execute_UnknownTool(t *testing.T) {
	c, err := NewCollection(zap.NewNop())
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), "nope", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCollection_Execute_Dispatches(t *testing.T) {
	echo := &stubTool{
		name:   "echo",
		params: json.RawMessage(`{}`),
		execute: func(_ context.Context, args json.RawMessage) (*Result, error) {
			var p struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, err
			}
			return &Result{Output: p.Text}, nil
		},
	}
	c, err := NewCollection(zap.NewNop(), echo)
	require.NoError(t, err)

	res, err := c.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Output)
}

func TestCollection_CleanupAll_ContinuesPastFailures(t *testing.T) {
	failing := &stubTool{name: "failing", params: json.RawMessage(`{}`)}
	healthy := &stubTool{name: "healthy", params: json.RawMessage(`{}`), cleanupOK: true}

	c, err := NewCollection(zap.NewNop(), failing, healthy)
	require.NoError(t, err)

	c.CleanupAll(context.Background())
	assert.Equal(t, 1, failing.cleanups)
	assert.Equal(t, 1, healthy.cleanups)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "ok", (&Result{Output: "ok"}).String())
	assert.Equal(t, "Error: boom", (&Result{Output: "ignored", Error: "boom"}).String())
	assert.Equal(t, "", (*Result)(nil).String())
}

func TestTerminate_Execute(t *testing.T) {
	term := NewTerminate()

	res, err := term.Execute(context.Background(), json.RawMessage(`{"status":"success"}`))
	require.NoError(t, err)
	assert.Contains(t, res.Output, "success")

	_, err = term.Execute(context.Background(), json.RawMessage(`{"status":"maybe"}`))
	assert.ErrorContains(t, err, "invalid terminate status")

	_, err = term.Execute(context.Background(), json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestShell_Execute(t *testing.T) {
	sh := NewShell(zap.NewNop())

	res, err := sh.Execute(context.Background(), json.RawMessage(`{"command":"echo hello"}`))
	require.NoError(t, err)
	assert.Contains(t, res.Output, "hello")

	res, err = sh.Execute(context.Background(), json.RawMessage(`{"command":"exit 3"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)

	_, err = sh.Execute(context.Background(), json.RawMessage(`{"command":""}`))
	assert.Error(t, err)
}

func TestShell_PersistentWorkdir(t *testing.T) {
	sh := NewShell(zap.NewNop())
	dir := t.TempDir()

	res, err := sh.Execute(context.Background(), json.RawMessage(
		fmt.Sprintf(`{"command":"cd %s"}`, dir)))
	require.NoError(t, err)
	assert.Empty(t, res.Error)

	res, err = sh.Execute(context.Background(), json.RawMessage(`{"command":"pwd"}`))
	require.NoError(t, err)
	assert.Contains(t, res.Output, dir)
}

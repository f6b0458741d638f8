package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datar/core"
	"datar/model"
)

// erroringModel fails every generation with a fixed error.
type erroringModel struct{ err error }

func (m *erroringModel) Generate(_ context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- m.err
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *erroringModel) Info() model.Info { return model.Info{Name: "erroring", Provider: "mock"} }

func drain(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	t.Helper()
	var out []core.Event
	var runErr error
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			out = append(out, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			runErr = err
		}
	}
	return out, runErr
}

func TestNewContext_RequiresModel(t *testing.T) {
	c := New("DATAR", nil)

	_, err := c.NewContext(context.Background(), "default_user")
	require.Error(t, err)
}

func TestNewContext_AllocatesDistinctHandles(t *testing.T) {
	c := New("DATAR", model.NewMockModel("mock"))
	ctx := context.Background()

	h1, err := c.NewContext(ctx, "default_user")
	require.NoError(t, err)
	h2, err := c.NewContext(ctx, "default_user")
	require.NoError(t, err)

	assert.NotEqual(t, h1.ID(), h2.ID())
	assert.Equal(t, "default_user", h1.UserID())
}

func TestExecute_ForwardsModelOutputAndRecordsHistory(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.AddResponse("hola", "¡Hola desde los cerros!")

	c := New("DATAR", llm)
	ctx := context.Background()

	h, err := c.NewContext(ctx, "default_user")
	require.NoError(t, err)

	events, errs, err := c.Execute(ctx, h, core.NewUserText("hola"))
	require.NoError(t, err)

	got, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, got, 1)
	assert.Equal(t, "DATAR", got[0].Author)
	assert.Equal(t, "¡Hola desde los cerros!", got[0].Text())
	assert.False(t, got[0].Partial)

	history, err := c.History(ctx, h)
	require.NoError(t, err)
	require.Len(t, history, 2, "one user turn plus one assistant turn")
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "hola", history[0].Text())
	assert.Equal(t, "DATAR", history[1].Author)
}

func TestExecute_StreamingEmitsPartialsButRecordsOnlyFinals(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.AddResponse("hey", "ok")

	c := New("DATAR", llm, func(o *Options) { o.Streaming = true })
	ctx := context.Background()

	h, err := c.NewContext(ctx, "default_user")
	require.NoError(t, err)

	events, errs, err := c.Execute(ctx, h, core.NewUserText("hey"))
	require.NoError(t, err)

	got, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	var partials, finals int
	for _, ev := range got {
		if ev.Partial {
			partials++
		} else {
			finals++
		}
	}
	assert.Equal(t, 2, partials, "one partial per rune of the completion")
	assert.Equal(t, 1, finals)

	history, err := c.History(ctx, h)
	require.NoError(t, err)
	assert.Len(t, history, 2, "partials must not enter the recorded history")
}

func TestExecute_RejectsForeignHandle(t *testing.T) {
	c := New("DATAR", model.NewMockModel("mock"))

	_, _, err := c.Execute(context.Background(), &foreignHandle{}, core.NewUserText("hola"))
	require.Error(t, err)

	_, err = c.History(context.Background(), &foreignHandle{})
	require.Error(t, err)
}

func TestExecute_ModelFailureSurfacesOnErrorChannel(t *testing.T) {
	c := New("DATAR", &erroringModel{err: errors.New("quota exceeded")})
	ctx := context.Background()

	h, err := c.NewContext(ctx, "default_user")
	require.NoError(t, err)

	events, errs, err := c.Execute(ctx, h, core.NewUserText("hola"))
	require.NoError(t, err)

	got, runErr := drain(t, events, errs)
	assert.Empty(t, got)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "quota exceeded")
}

func TestHistory_IsolatedPerHandle(t *testing.T) {
	c := New("DATAR", model.NewMockModel("mock"))
	ctx := context.Background()

	h1, err := c.NewContext(ctx, "default_user")
	require.NoError(t, err)
	h2, err := c.NewContext(ctx, "default_user")
	require.NoError(t, err)

	events, errs, err := c.Execute(ctx, h1, core.NewUserText("solo para h1"))
	require.NoError(t, err)
	_, runErr := drain(t, events, errs)
	require.NoError(t, runErr)

	hist1, err := c.History(ctx, h1)
	require.NoError(t, err)
	hist2, err := c.History(ctx, h2)
	require.NoError(t, err)

	assert.NotEmpty(t, hist1)
	assert.Empty(t, hist2, "sibling contexts must not share history")
}

type foreignHandle struct{}

func (foreignHandle) ID() string     { return "foreign" }
func (foreignHandle) UserID() string { return "foreign" }

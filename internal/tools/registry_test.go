package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClients struct {
	createRes model.ClientResult
	findRes   model.ClientResult
	list      []model.Client
	updateRes model.ClientResult
	err       error

	lastQuery string
	lastInput model.ClientInput
}

func (f *fakeClients) CreateClient(_ context.Context, _ string, in model.ClientInput) (model.ClientResult, error) {
	f.lastInput = in
	return f.createRes, f.err
}

func (f *fakeClients) FindClient(_ context.Context, _ string, query string) (model.ClientResult, error) {
	f.lastQuery = query
	return f.findRes, f.err
}

func (f *fakeClients) ListClients(_ context.Context, _ string, filter string) ([]model.Client, error) {
	f.lastQuery = filter
	return f.list, f.err
}

func (f *fakeClients) UpdateClient(_ context.Context, _ string, query string, in model.ClientInput) (model.ClientResult, error) {
	f.lastQuery = query
	f.lastInput = in
	return f.updateRes, f.err
}

func newBuiltinRegistry(t *testing.T, clients ClientOperations) *Registry {
	t.Helper()
	r := NewRegistry(zap.NewNop())
	require.NoError(t, RegisterBuiltinTools(r, clients, zap.NewNop()))
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.Register(&Tool{Name: "client.list"}))
	assert.Error(t, r.Register(&Tool{Name: "client.list"}), "duplicate")
	assert.Error(t, r.Register(&Tool{}), "empty name")
	assert.Error(t, r.Register(&Tool{
		Name:       "client.create",
		Parameters: ParameterSchema{Required: []string{"email"}},
	}), "required field without property")

	_, err := r.Get("missing.tool")
	assert.Error(t, err)
	assert.Equal(t, 1, r.Count())
}

func TestRegisterBuiltinTools_Schemas(t *testing.T) {
	r := newBuiltinRegistry(t, &fakeClients{})

	assert.Equal(t, []string{"first_name", "last_name", "email"}, r.Required("client.create"))
	assert.Equal(t, []string{"name"}, r.Required("client.read"))
	assert.Empty(t, r.Required("client.list"))
	assert.Equal(t, []string{"name"}, r.Required("project.create"))
	assert.Equal(t, []string{"title"}, r.Required("task.create"))
	assert.Nil(t, r.Required("unknown.create"))

	defs := r.GetFunctionDefs()
	assert.Len(t, defs, r.Count())
	assert.Equal(t, "client.create", defs[0]["name"])

	_, err := r.Execute(context.Background(), "project.create", Request{Params: map[string]string{"name": "Website"}})
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestClientHandlers(t *testing.T) {
	ctx := context.Background()
	jane := &model.Client{FirstName: "Jane", LastName: "Smith", Email: "jane@example.com", Phone: "555-9876"}

	t.Run("create success names the client", func(t *testing.T) {
		fc := &fakeClients{createRes: model.ClientResult{Outcome: model.OutcomeOK, Client: jane}}
		r := newBuiltinRegistry(t, fc)

		res, err := r.Execute(ctx, "client.create", Request{UserID: "u1", Params: map[string]string{
			"first_name": " Jane ", "last_name": "Smith", "email": "jane@example.com",
		}})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "Jane Smith")
		assert.Contains(t, res.Message, "created")
		assert.Equal(t, "Jane", fc.lastInput.FirstName)
	})

	t.Run("create validation failure is a result", func(t *testing.T) {
		fc := &fakeClients{createRes: model.ClientResult{Outcome: model.OutcomeInvalid, Field: "email", Reason: "a client with email jane@example.com already exists"}}
		r := newBuiltinRegistry(t, fc)

		res, err := r.Execute(ctx, "client.create", Request{Params: map[string]string{}})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "already exists")
	})

	t.Run("read prefers email", func(t *testing.T) {
		fc := &fakeClients{findRes: model.ClientResult{Outcome: model.OutcomeNotFound}}
		r := newBuiltinRegistry(t, fc)

		res, err := r.Execute(ctx, "client.read", Request{Params: map[string]string{
			"name": "Jane", "email": "jane@example.com",
		}})
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", fc.lastQuery)
		assert.Contains(t, res.Message, "not found")
	})

	t.Run("read found lists details", func(t *testing.T) {
		fc := &fakeClients{findRes: model.ClientResult{Outcome: model.OutcomeOK, Client: jane, Matches: 2}}
		r := newBuiltinRegistry(t, fc)

		res, err := r.Execute(ctx, "client.read", Request{Params: map[string]string{"name": "Jane"}})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "555-9876")
		assert.Contains(t, res.Message, "1 other clients")
	})

	t.Run("list enumerates names", func(t *testing.T) {
		fc := &fakeClients{list: []model.Client{
			{FirstName: "John", LastName: "Doe"},
			{FirstName: "Jane", LastName: "Smith"},
		}}
		r := newBuiltinRegistry(t, fc)

		res, err := r.Execute(ctx, "client.list", Request{Params: map[string]string{}})
		require.NoError(t, err)
		assert.Equal(t, "Found 2 clients: John Doe, Jane Smith.", res.Message)
	})

	t.Run("list empty", func(t *testing.T) {
		r := newBuiltinRegistry(t, &fakeClients{})

		res, err := r.Execute(ctx, "client.list", Request{Params: map[string]string{}})
		require.NoError(t, err)
		assert.Equal(t, "Found 0 clients.", res.Message)
	})

	t.Run("update by email does not change email", func(t *testing.T) {
		fc := &fakeClients{updateRes: model.ClientResult{Outcome: model.OutcomeOK, Client: jane}}
		r := newBuiltinRegistry(t, fc)

		res, err := r.Execute(ctx, "client.update", Request{Params: map[string]string{
			"name": "jane@example.com", "email": "jane@example.com", "phone": "555-0000",
		}})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "jane@example.com", fc.lastQuery)
		assert.Empty(t, fc.lastInput.Email)
		assert.Equal(t, "555-0000", fc.lastInput.Phone)
		assert.Contains(t, res.Message, "phone")
	})

	t.Run("update without changes asks what to change", func(t *testing.T) {
		r := newBuiltinRegistry(t, &fakeClients{})

		res, err := r.Execute(ctx, "client.update", Request{Params: map[string]string{"name": "Jane Smith"}})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "What would you like to change")
	})

	t.Run("unexpected error propagates", func(t *testing.T) {
		r := newBuiltinRegistry(t, &fakeClients{err: errors.New("disk full")})

		_, err := r.Execute(ctx, "client.list", Request{})
		assert.Error(t, err)
	})
}

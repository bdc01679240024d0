package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMemoryStoreRoundTripAndIsolation(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	st := NewConversationState("call-1", testNow)
	if err := st.SetEntity(Entity{Kind: EntityDate, Value: "2026-03-03", Source: SourceFastPath}); err != nil {
		t.Fatalf("set entity: %v", err)
	}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Mutating the original after save must not leak into the store.
	st.Entities[EntityDate] = Entity{Kind: EntityDate, Value: "mutated"}

	loaded, err := store.Load(ctx, "call-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := loaded.EntityValue(EntityDate); got != "2026-03-03" {
		t.Fatalf("store must hold a deep copy, got %s", got)
	}

	// And mutating the loaded copy must not change the stored one.
	loaded.TurnCount = 99
	again, err := store.Load(ctx, "call-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if again.TurnCount != 0 {
		t.Fatalf("loaded copies must be isolated, got turn count %d", again.TurnCount)
	}

	if err := store.Delete(ctx, "call-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Load(ctx, "call-1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
}

func TestMemoryStoreRejectsBadInput(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "  "); !errors.Is(err, ErrInvalidCallID) {
		t.Fatalf("expected ErrInvalidCallID, got %v", err)
	}
	if err := store.Save(ctx, nil); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
}

func TestUpstashRedisStoreSaveUsesPrefixedKeyAndTTL(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	st := NewConversationState("call-1", testNow)
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(gotCommand) < 5 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" {
		t.Fatalf("command[0] = %v, want SET", gotCommand[0])
	}
	if gotCommand[1] != defaultStoreKeyPrefix+"call-1" {
		t.Fatalf("command[1] = %v, want %s", gotCommand[1], defaultStoreKeyPrefix+"call-1")
	}
	if gotCommand[3] != "EX" {
		t.Fatalf("command[3] = %v, want EX", gotCommand[3])
	}
}

func TestUpstashRedisStoreLoadDecodesState(t *testing.T) {
	t.Parallel()

	st := NewConversationState("call-1", testNow)
	st.TurnCount = 3
	payload, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CallID != "call-1" || loaded.TurnCount != 3 {
		t.Fatalf("unexpected state %+v", loaded)
	}
}

func TestUpstashRedisStoreLoadMissingKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
}

package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestGetMissingKey(t *testing.T) {
	st := openTestStore(t)

	_, ok, err := st.Get(KeyRequestQueue)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatal("Get() reported a value for a missing key")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	st := openTestStore(t)

	want := []byte(`[{"fn":"SessionBegin","state_seq":1}]`)
	if err := st.Put(KeyRequestQueue, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := st.Get(KeyRequestQueue)
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Get() = %q, want %q", got, want)
	}
}

func TestPutOverwrites(t *testing.T) {
	st := openTestStore(t)

	if err := st.Put(KeySavedSession, []byte("one")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Put(KeySavedSession, []byte("two")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _, err := st.Get(KeySavedSession)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "two" {
		t.Fatalf("Get() = %q, want two", got)
	}
}

func TestDelete(t *testing.T) {
	st := openTestStore(t)

	if err := st.Put(KeyAnonymousUser, []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Delete(KeyAnonymousUser); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, ok, err := st.Get(KeyAnonymousUser)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatal("key survived Delete()")
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := st.Put(KeyAnonymousUser, []byte("persisted")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer st.Close()
	got, ok, err := st.Get(KeyAnonymousUser)
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = ok %v, err %v", ok, err)
	}
	if string(got) != "persisted" {
		t.Fatalf("Get() = %q, want persisted", got)
	}
}

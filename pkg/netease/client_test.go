package netease

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/get/web", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"songs":[
			{"id":7,"name":"Other Song","artists":[{"name":"Test Artist"}]},
			{"id":123,"name":"Test Song","artists":[{"name":"Someone"},{"name":"Test Artist"}]}
		]}}`))
	})
	mux.HandleFunc("/api/song/lyric", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "123" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"lrc":{"lyric":"[00:10.00]Test lyrics"}}`))
	})
	return httptest.NewServer(mux)
}

func TestSearchAndLyrics(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ctx := context.Background()

	songID, err := client.SearchSong(ctx, "Test Song", "Test Artist")
	if err != nil {
		t.Fatalf("SearchSong: %v", err)
	}
	if songID != "123" {
		t.Fatalf("expected song id 123, got %q", songID)
	}

	lrc, err := client.GetLyrics(ctx, songID)
	if err != nil {
		t.Fatalf("GetLyrics: %v", err)
	}
	if lrc != "[00:10.00]Test lyrics" {
		t.Errorf("unexpected lyrics %q", lrc)
	}
}

func TestSearchNoMatch(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	songID, err := NewClient(server.URL, time.Second).SearchSong(context.Background(), "Missing", "Nobody")
	if err != nil {
		t.Fatalf("SearchSong: %v", err)
	}
	if songID != "" {
		t.Errorf("expected no match, got %q", songID)
	}
}

func TestStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, time.Second).SearchSong(context.Background(), "a", "b"); err == nil {
		t.Error("expected error for 500 response")
	}
}

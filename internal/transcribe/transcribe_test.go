package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"subtitle-pipeline/internal/blob"
)

func TestMockClientFailsThenSucceeds(t *testing.T) {
	m := NewMockClient()
	m.SetFailures("a.mp3", 2)
	m.SetResponse("a.mp3", []Segment{{Text: "hi", StartMS: 0, EndMS: 1000}})

	ctx := context.Background()
	if _, err := m.Transcribe(ctx, "a.mp3"); err == nil {
		t.Fatal("attempt 1: want error")
	}
	if _, err := m.Transcribe(ctx, "a.mp3"); err == nil {
		t.Fatal("attempt 2: want error")
	}
	segs, err := m.Transcribe(ctx, "a.mp3")
	if err != nil {
		t.Fatalf("attempt 3: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "hi" {
		t.Fatalf("segs = %+v; want one segment {hi,0,1000}", segs)
	}
}

func TestMockClientTracksMaxInFlight(t *testing.T) {
	m := NewMockClient()
	m.SetResponse("a.mp3", []Segment{{Text: "x"}})

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			m.Transcribe(context.Background(), "a.mp3")
		}()
	}
	close(start)
	wg.Wait()

	if m.MaxObservedInFlight() < 1 {
		t.Fatalf("MaxObservedInFlight = %d; want >= 1", m.MaxObservedInFlight())
	}
}

func TestAssemblyAIClientHappyPath(t *testing.T) {
	var pollCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/transcript":
			json.NewEncoder(w).Encode(submitResponse{ID: "job-1"})
		case r.Method == http.MethodGet:
			pollCount++
			if pollCount < 2 {
				json.NewEncoder(w).Encode(pollResponse{Status: "processing"})
				return
			}
			json.NewEncoder(w).Encode(pollResponse{
				Status: "completed",
				Utterances: []utterance{
					{Text: "hello", Start: 0, End: 500},
					{Text: "world", Start: 500, End: 1000},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fileStore := blob.NewFileStore()
	fileStore.Seed("a.mp3", []byte("audio"))

	c := NewAssemblyAIClient(server.Client(), fileStore, "key", 60*time.Second, time.Millisecond, 0)
	c.baseURL = server.URL

	segs, err := c.Transcribe(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "hello" || segs[1].Text != "world" {
		t.Fatalf("segs = %+v; want hello/world utterances", segs)
	}
}

func TestAssemblyAIClientNoUtterancesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(submitResponse{ID: "job-1"})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(pollResponse{Status: "completed", Text: "whole thing", AudioDuration: 4200})
		}
	}))
	defer server.Close()

	fileStore := blob.NewFileStore()
	fileStore.Seed("a.mp3", []byte("audio"))
	c := NewAssemblyAIClient(server.Client(), fileStore, "key", 60*time.Second, time.Millisecond, 0)
	c.baseURL = server.URL

	segs, err := c.Transcribe(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0].StartMS != 0 || segs[0].EndMS != 4200 {
		t.Fatalf("segs = %+v; want single [0,4200] segment", segs)
	}
}

func TestAssemblyAIClientNoUtterancesEmptyTextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(submitResponse{ID: "job-1"})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(pollResponse{Status: "completed", Text: "", AudioDuration: 1500})
		}
	}))
	defer server.Close()

	fileStore := blob.NewFileStore()
	fileStore.Seed("a.mp3", []byte("audio"))
	c := NewAssemblyAIClient(server.Client(), fileStore, "key", 60*time.Second, time.Millisecond, 0)
	c.baseURL = server.URL

	segs, err := c.Transcribe(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0].StartMS != 0 || segs[0].EndMS != 1500 {
		t.Fatalf("segs = %+v; want single [0,1500] fallback segment even with empty text", segs)
	}
}

func TestAssemblyAIClientTerminalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(submitResponse{ID: "job-1"})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(pollResponse{Status: "error", Error: "corrupt audio"})
		}
	}))
	defer server.Close()

	fileStore := blob.NewFileStore()
	fileStore.Seed("a.mp3", []byte("audio"))
	c := NewAssemblyAIClient(server.Client(), fileStore, "key", 60*time.Second, time.Millisecond, 0)
	c.baseURL = server.URL

	if _, err := c.Transcribe(context.Background(), "a.mp3"); err == nil {
		t.Fatal("Transcribe: want error for terminal provider error")
	}
}

/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeRunner struct {
	mu      sync.Mutex
	busy    bool
	ran     chan []string
	lastErr error
}

func (f *fakeRunner) TryRun(_ context.Context, names []string) error {
	f.ran <- names
	return f.lastErr
}

func (f *fakeRunner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func TestHealthz(t *testing.T) {
	runner := &fakeRunner{ran: make(chan []string, 1)}
	router := NewRouter(zerolog.Nop(), runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSyncNowQueuesARun(t *testing.T) {
	runner := &fakeRunner{ran: make(chan []string, 1)}
	router := NewRouter(zerolog.Nop(), runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync?target=work&target=personal", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}

	names := <-runner.ran
	if len(names) != 2 || names[0] != "work" || names[1] != "personal" {
		t.Fatalf("names = %v", names)
	}
}

func TestSyncNowRejectsWhenBusy(t *testing.T) {
	runner := &fakeRunner{ran: make(chan []string, 1), busy: true}
	router := NewRouter(zerolog.Nop(), runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case <-runner.ran:
		t.Fatalf("a busy service must not be asked to run")
	default:
	}
}

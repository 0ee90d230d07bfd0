package main

import (
	"bufio"
	"strings"
	"testing"
	"time"
)

func TestReadLinesStopsWhenQuit(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("1\nn\ns\n"))
	lines := make(chan string)
	quit := make(chan struct{})
	go readLines(in, lines, quit)

	if got := <-lines; got != "1\n" {
		t.Fatalf("expected first line, got %q", got)
	}
	close(quit)

	// the reader may still hold one line; it must drop it and close out
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("reader goroutine did not exit")
		}
	}
}

func TestReadLinesClosesOnEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("q"))
	lines := make(chan string)
	go readLines(in, lines, make(chan struct{}))

	if got := <-lines; got != "q" {
		t.Fatalf("expected trailing line without newline, got %q", got)
	}
	select {
	case _, ok := <-lines:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed at EOF")
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{-5, "00:00"},
		{65, "01:05"},
		{600, "10:00"},
	}
	for _, tt := range tests {
		if got := clock(tt.seconds); got != tt.want {
			t.Errorf("clock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

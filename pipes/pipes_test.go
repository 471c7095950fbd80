package pipes

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/mwantia/feather"
	"github.com/mwantia/feather/data"
	"github.com/zeebo/blake3"
)

func runPipe(t *testing.T, tap feather.Tap, sink feather.Sink, filters ...feather.Filter) error {
	t.Helper()

	pipe, err := feather.TapPipe(tap).Attach(feather.FilterPipe(filters...))
	if err != nil {
		t.Fatalf("Attach filters failed: %v", err)
	}
	pipe, err = pipe.Attach(feather.SinkPipe(sink))
	if err != nil {
		t.Fatalf("Attach sink failed: %v", err)
	}

	done, err := pipe.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, err = done.Await(t.Context())
	return err
}

func TestStringTap_Aggregator(t *testing.T) {
	sink := NewAggregatorSink()
	if err := runPipe(t, NewStringTap("hello feather").WithChunkSize(3), sink); err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}

	got, complete := sink.Get(".")
	if !complete || string(got) != "hello feather" {
		t.Errorf("Expected finalized %q, got %q (complete=%v)", "hello feather", got, complete)
	}
}

func TestBytesTap_Entries(t *testing.T) {
	entries := map[string][]byte{
		"a":     []byte("first"),
		"dir/b": bytes.Repeat([]byte{0xab}, 100),
		"empty": {},
	}

	sink := NewAggregatorSink()
	if err := runPipe(t, NewBytesTap(entries).WithChunkSize(7), sink); err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}

	keys := sink.Keys()
	if strings.Join(keys, ",") != "a,dir/b,empty" {
		t.Errorf("Expected keys a,dir/b,empty, got %v", keys)
	}
	for key, expected := range entries {
		got, complete := sink.Get(key)
		if !complete || !bytes.Equal(got, expected) {
			t.Errorf("Entry %s: expected %d bytes, got %d (complete=%v)", key, len(expected), len(got), complete)
		}
	}
}

func TestBytesTap_InvalidEntry(t *testing.T) {
	tap := NewBytesTap(map[string][]byte{"/absolute": nil})
	pipe, err := feather.TapPipe(tap).Attach(feather.SinkPipe(NewDiscardSink()))
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	done, err := pipe.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := done.Await(t.Context()); !errors.Is(err, data.ErrInvalidPath) {
		t.Errorf("Expected ErrInvalidPath, got %v", err)
	}
}

func TestHexDumpSink(t *testing.T) {
	var buf bytes.Buffer
	if err := runPipe(t, NewStringTap("AB"), NewHexDumpSink(&buf)); err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "== . ==") {
		t.Errorf("Expected resource header, got %q", out)
	}
	if !strings.Contains(out, "41 42") {
		t.Errorf("Expected hex bytes, got %q", out)
	}
}

func TestChecksum(t *testing.T) {
	content := bytes.Repeat([]byte("checksum"), 5000)
	expected := blake3.Sum256(content)

	checksum := NewChecksum()
	if err := runPipe(t, NewBytesTap(map[string][]byte{"file": content}).WithChunkSize(1000), NewDiscardSink(), checksum); err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}

	sum, ok := checksum.Sum("file")
	if !ok {
		t.Fatalf("Expected a digest for 'file'")
	}
	if !bytes.Equal(sum, expected[:]) {
		t.Errorf("Digest mismatch: %x != %x", sum, expected)
	}
	if checksum.Sums()["file"] != hex.EncodeToString(expected[:]) {
		t.Errorf("Hex digest mismatch")
	}
	if checksum.Random() {
		t.Errorf("Checksum must not accept out of order slices")
	}
}

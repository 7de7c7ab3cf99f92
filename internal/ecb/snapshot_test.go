package ecb

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSnapshotReadMissing(t *testing.T) {
	snap := NewSnapshot(filepath.Join(t.TempDir(), "nope.xml"))
	if _, err := snap.Read(); err == nil {
		t.Fatal("expected error reading a missing snapshot")
	}
}

func TestSnapshotWriteRead(t *testing.T) {
	snap := NewSnapshot(filepath.Join(t.TempDir(), "eurofxref-hist.xml"))

	want := twoDayFeed()
	if err := snap.Write(want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := snap.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("stored bytes differ from written bytes")
	}

	// Overwrite replaces the previous snapshot wholesale.
	next := feedXML(fixtureDay{"2024-01-03", []fixtureQuote{{"USD", "1.08"}}})
	if err := snap.Write(next); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	got, err = snap.Read()
	if err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if !bytes.Equal(got, next) {
		t.Error("overwrite did not replace stored bytes")
	}
}

func TestSnapshotCreatesParentDir(t *testing.T) {
	snap := NewSnapshot(filepath.Join(t.TempDir(), "data", "nested", "feed.xml"))
	if err := snap.Write(twoDayFeed()); err != nil {
		t.Fatalf("Write into missing dir failed: %v", err)
	}
	if _, err := snap.Read(); err != nil {
		t.Fatalf("Read back failed: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	// Parsing stored bytes reproduces the dataset parsed from the wire.
	wire := twoDayFeed()
	fromWire, err := Parse(wire)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	snap := NewSnapshot(filepath.Join(t.TempDir(), "feed.xml"))
	if err := snap.Write(wire); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	stored, err := snap.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	fromSnapshot, err := Parse(stored)
	if err != nil {
		t.Fatalf("Parse of stored bytes failed: %v", err)
	}

	assertSameDataset(t, fromWire, fromSnapshot)
}

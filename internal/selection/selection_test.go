package selection

import (
	"reflect"
	"testing"
)

func TestToggleAppendsAndRemoves(t *testing.T) {
	s := New()
	item := URLItem("http://example.com/a.jpg")

	s.Toggle("111", item)
	if !s.IsSelected("111", item) {
		t.Fatalf("item should be selected after first toggle")
	}

	s.Toggle("111", item)
	if s.IsSelected("111", item) {
		t.Fatalf("item should be removed after second toggle")
	}
	if got := s.Count("111"); got != 0 {
		t.Errorf("Expected empty selection, got %d items", got)
	}
}

func TestToggleIdempotencePerProduct(t *testing.T) {
	s := New()
	s.Seed("111", []string{"u1", "u2", "u3"})
	s.Seed("222", []string{"u1"})

	before111 := s.Items("111")
	before222 := s.Items("222")

	item := URLItem("u2")
	s.Toggle("111", item)
	s.Toggle("111", item)

	if !reflect.DeepEqual(s.Items("111"), before111) {
		t.Errorf("double toggle changed product 111 selection: %v", s.Items("111"))
	}
	if !reflect.DeepEqual(s.Items("222"), before222) {
		t.Errorf("toggle on 111 leaked into product 222: %v", s.Items("222"))
	}
}

func TestVariantsNeverEqual(t *testing.T) {
	s := New()
	s.Toggle("111", URLItem("payload"))
	s.Toggle("111", UploadItem("payload"))

	if got := s.Count("111"); got != 2 {
		t.Fatalf("Expected 2 items (url and upload variants are distinct), got %d", got)
	}
	if !s.IsSelected("111", URLItem("payload")) || !s.IsSelected("111", UploadItem("payload")) {
		t.Errorf("both variants should be selected independently")
	}
}

func TestAddUploadThenToggleRemovesIt(t *testing.T) {
	s := New()
	s.Seed("111", []string{"u1", "u2"})
	before := s.Count("111")

	s.AddUpload("111", "data:image/jpeg;base64,abc")
	if got := s.Count("111"); got != before+1 {
		t.Fatalf("Expected %d items after upload, got %d", before+1, got)
	}

	s.Toggle("111", UploadItem("data:image/jpeg;base64,abc"))
	if got := s.Count("111"); got != before {
		t.Errorf("Expected selection size back to %d after toggle, got %d", before, got)
	}
	if s.IsSelected("111", UploadItem("data:image/jpeg;base64,abc")) {
		t.Errorf("upload should no longer be selected")
	}
}

func TestAddUploadAllowsDuplicatePayloads(t *testing.T) {
	s := New()
	s.AddUpload("111", "same-bytes")
	s.AddUpload("111", "same-bytes")

	if got := s.Count("111"); got != 2 {
		t.Errorf("Expected 2 entries for repeated upload, got %d", got)
	}

	// A single toggle removes exactly one of them.
	s.Toggle("111", UploadItem("same-bytes"))
	if got := s.Count("111"); got != 1 {
		t.Errorf("Expected 1 entry after one toggle, got %d", got)
	}
}

func TestOrderPreserved(t *testing.T) {
	s := New()
	s.Toggle("111", URLItem("first"))
	s.AddUpload("111", "second")
	s.Toggle("111", URLItem("third"))

	// Removing the middle item keeps the relative order of the rest.
	s.Toggle("111", UploadItem("second"))

	got := s.Items("111")
	want := []Item{URLItem("first"), URLItem("third")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSplit(t *testing.T) {
	s := New()
	s.Toggle("111", URLItem("u1"))
	s.AddUpload("111", "d1")
	s.Toggle("111", URLItem("u2"))
	s.AddUpload("111", "d2")

	urls, uploads := s.Split("111")
	if !reflect.DeepEqual(urls, []string{"u1", "u2"}) {
		t.Errorf("Expected urls [u1 u2], got %v", urls)
	}
	if !reflect.DeepEqual(uploads, []string{"d1", "d2"}) {
		t.Errorf("Expected uploads [d1 d2], got %v", uploads)
	}
}

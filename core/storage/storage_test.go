package storage

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gaurav-prasanna/policypipe/core"
)

func newStore(t *testing.T) *PolicyStore {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	s := NewPolicyStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func createPolicy(t *testing.T, s *PolicyStore) *core.PolicyDocument {
	t.Helper()
	p := &core.PolicyDocument{
		Title:   "8.01.01 Reporting Standards",
		Section: "Electronic Supervision",
		Number:  "8.01.01",
		Subject: "Reporting Standards",
	}
	if err := s.CreatePolicy(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func insertVersion(t *testing.T, s *PolicyStore, policyID string) *core.PolicyVersion {
	t.Helper()
	v := &core.PolicyVersion{
		PolicyID:      policyID,
		RenditionRef:  "policies/" + policyID + "/1_r.pdf",
		FileName:      "r.pdf",
		FileSizeBytes: 10,
	}
	if err := s.InsertVersion(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestPolicyStore_CreateAndGet(t *testing.T) {
	s := newStore(t)
	p := createPolicy(t, s)
	if p.ID == "" {
		t.Fatal("no id assigned")
	}

	got, err := s.GetPolicy(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != "8.01.01" || got.Status != core.StatusDraft || got.CurrentVersionID != "" {
		t.Errorf("policy = %+v", got)
	}

	if _, err := s.GetPolicy(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing policy err = %v", err)
	}
}

func TestPolicyStore_VersionNumbersNeverReused(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := createPolicy(t, s)

	var versions []*core.PolicyVersion
	for i := 0; i < 3; i++ {
		versions = append(versions, insertVersion(t, s, p.ID))
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Fatalf("version %d numbered %d", i, v.VersionNumber)
		}
	}

	next, err := s.NextVersionNumber(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if next != 4 {
		t.Errorf("next = %d, want 4", next)
	}

	// Rows removed behind the store's back, latest first, then the rest.
	for _, v := range []*core.PolicyVersion{versions[2], versions[0], versions[1]} {
		if _, err := s.db.Exec(`DELETE FROM policy_versions WHERE id = ?`, v.ID); err != nil {
			t.Fatal(err)
		}
		next, err := s.NextVersionNumber(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if next != 4 {
			t.Errorf("after deleting v%d next = %d, want 4", v.VersionNumber, next)
		}
	}

	v := insertVersion(t, s, p.ID)
	if v.VersionNumber != 4 {
		t.Errorf("inserted number = %d, want 4", v.VersionNumber)
	}
}

func TestPolicyStore_CurrentVersion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := createPolicy(t, s)
	other := createPolicy(t, s)
	v := insertVersion(t, s, p.ID)

	if err := s.SetCurrentVersion(ctx, p.ID, v.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetPolicy(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentVersionID != v.ID {
		t.Errorf("current = %q, want %q", got.CurrentVersionID, v.ID)
	}

	if err := s.SetCurrentVersion(ctx, other.ID, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign version err = %v", err)
	}
}

func TestPolicyStore_Versions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := createPolicy(t, s)
	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	v1 := insertVersion(t, s, p.ID)
	v2 := &core.PolicyVersion{
		PolicyID:      p.ID,
		RenditionRef:  "policies/" + p.ID + "/2_r.pdf",
		FileName:      "r.pdf",
		FileSizeBytes: 20,
		ChangeSummary: "clarified reporting window",
		PublishedAt:   &published,
	}
	if err := s.InsertVersion(ctx, v2); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListVersions(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != v1.ID || list[1].ID != v2.ID {
		t.Fatalf("list = %+v", list)
	}

	got, err := s.GetVersion(ctx, v2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.VersionNumber != 2 || got.ChangeSummary != "clarified reporting window" || got.FileSizeBytes != 20 {
		t.Errorf("version = %+v", got)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(published) {
		t.Errorf("published = %v", got.PublishedAt)
	}
	if list[0].PublishedAt != nil {
		t.Errorf("unpublished version has published_at %v", list[0].PublishedAt)
	}

	if _, err := s.GetVersion(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing version err = %v", err)
	}
}

func TestPolicyStore_StatusTransitions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p := createPolicy(t, s)

	if err := s.SetStatus(ctx, p.ID, core.StatusPublished); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("skip to Published err = %v", err)
	}
	for _, next := range []core.Status{core.StatusReview, core.StatusPublished, core.StatusArchived} {
		if err := s.SetStatus(ctx, p.ID, next); err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
	}
	if err := s.SetStatus(ctx, p.ID, core.StatusDraft); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cycle back err = %v", err)
	}
	got, err := s.GetPolicy(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.StatusArchived {
		t.Errorf("status = %s", got.Status)
	}
}

func newBlobStore(t *testing.T) *FSBlobStore {
	t.Helper()
	s, err := NewFSBlobStore(t.TempDir(), "http://localhost:8080/", []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFSBlobStore_UploadDownload(t *testing.T) {
	s := newBlobStore(t)
	ctx := context.Background()
	p := "policies/abc/1_r.pdf"

	if err := s.Upload(ctx, p, []byte("%PDF"), "application/pdf"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Download(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "%PDF" {
		t.Errorf("download = %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.root, "policies", "abc", "1_r.pdf.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	if _, err := s.Download(ctx, "policies/abc/none.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing blob err = %v", err)
	}
	for _, bad := range []string{"", "../escape.pdf", "/abs.pdf", "a/../../b.pdf"} {
		if err := s.Upload(ctx, bad, nil, ""); !errors.Is(err, ErrBadPath) {
			t.Errorf("Upload(%q) err = %v", bad, err)
		}
	}
}

func TestFSBlobStore_SignedURL(t *testing.T) {
	s := newBlobStore(t)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	p := "policies/abc/1_r.pdf"

	raw, err := s.SignedURL(context.Background(), p, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(raw, "http://localhost:8080/blobs/"+p+"?") {
		t.Fatalf("url = %s", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if err := s.Verify(p, q.Get("expires"), q.Get("sig")); err != nil {
		t.Errorf("Verify = %v", err)
	}
	if err := s.Verify("policies/abc/other.pdf", q.Get("expires"), q.Get("sig")); !errors.Is(err, ErrBadSignature) {
		t.Errorf("other path err = %v", err)
	}
	if err := s.Verify(p, "1800000000", q.Get("sig")); !errors.Is(err, ErrBadSignature) {
		t.Errorf("extended expiry err = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := s.Verify(p, q.Get("expires"), q.Get("sig")); !errors.Is(err, ErrExpired) {
		t.Errorf("expired err = %v", err)
	}

	if _, err := s.SignedURL(context.Background(), p, 0); err == nil {
		t.Error("zero ttl accepted")
	}
}

func TestBlobPath(t *testing.T) {
	at := time.Unix(0, 1234)
	if got := BlobPath("pid", "80101_Reporting Standards.PDF", at); got != "policies/pid/1234_80101_Reporting_Standards.pdf" {
		t.Errorf("BlobPath = %q", got)
	}
	if got := BlobPath("pid", "***.pdf", at); got != "policies/pid/1234_rendition.pdf" {
		t.Errorf("BlobPath = %q", got)
	}
}

func TestNewFSBlobStore_RequiresSecret(t *testing.T) {
	if _, err := NewFSBlobStore(t.TempDir(), "", nil); err == nil {
		t.Error("empty secret accepted")
	}
}

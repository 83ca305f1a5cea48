// Package storage is the boundary to the object store and the relational
// store. Blobs are addressed by path and never listed or deleted; the
// relational side only inserts versions and moves the current-version and
// status pointers of a policy.
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gaurav-prasanna/policypipe/core/output"
)

var (
	// ErrNotFound is returned for a missing blob or row.
	ErrNotFound = errors.New("not found")

	// ErrBadPath rejects blob paths that are absolute or escape the root.
	ErrBadPath = errors.New("invalid blob path")

	// ErrExpired is returned for a signed URL past its expiry.
	ErrExpired = errors.New("signed url expired")

	// ErrBadSignature is returned for a signed URL whose signature does not match.
	ErrBadSignature = errors.New("signed url signature mismatch")
)

// BlobStore is the object storage interface.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	PublicURL(path string) string
}

// BlobPath namespaces a rendition under its policy and a timestamp.
func BlobPath(policyID, fileName string, now time.Time) string {
	name := output.Sanitize(strings.TrimSuffix(fileName, path.Ext(fileName)))
	if name == "" {
		name = "rendition"
	}
	return fmt.Sprintf("policies/%s/%d_%s%s", policyID, now.UnixNano(), name, strings.ToLower(path.Ext(fileName)))
}

// FSBlobStore keeps blobs on local disk and issues HMAC-signed URLs served
// by the HTTP adapter under /blobs/.
type FSBlobStore struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewFSBlobStore creates the store rooted at root. baseURL is the public
// origin of the HTTP adapter.
func NewFSBlobStore(root, baseURL string, secret []byte) (*FSBlobStore, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("blob store: signing secret is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &FSBlobStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

func (s *FSBlobStore) resolve(p string) (string, error) {
	clean := path.Clean("/" + p)[1:]
	if p == "" || clean == "" || clean != p || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrBadPath, p)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Upload writes data at path. contentType is implied by the extension.
func (s *FSBlobStore) Upload(ctx context.Context, p string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("uploading %s: %w", p, err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("uploading %s: %w", p, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("uploading %s: %w", p, err)
	}
	return nil
}

// Download reads the blob at path.
func (s *FSBlobStore) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", p, err)
	}
	return data, nil
}

// SignedURL returns a URL for path valid for ttl.
func (s *FSBlobStore) SignedURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.resolve(p); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("signed url: ttl must be positive")
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", s.sign(p, expires))
	return s.PublicURL(p) + "?" + q.Encode(), nil
}

// PublicURL is the unsigned address of path.
func (s *FSBlobStore) PublicURL(p string) string {
	return s.baseURL + "/blobs/" + p
}

// Verify checks a signed URL's expires and sig parameters for path.
func (s *FSBlobStore) Verify(p, expires, sig string) error {
	want, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(want, s.mac(p, expires)) {
		return ErrBadSignature
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

func (s *FSBlobStore) mac(p, expires string) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(p))
	m.Write([]byte{'\n'})
	m.Write([]byte(expires))
	return m.Sum(nil)
}

func (s *FSBlobStore) sign(p, expires string) string {
	return hex.EncodeToString(s.mac(p, expires))
}

// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/vkpl/internal/models"
)

// FakeCaller is a test double for [services.Caller].
//
// Each method answers from its queue of replies; the last reply repeats once the queue is drained.
type FakeCaller struct {
	mu      sync.Mutex
	replies map[string][]Reply
	calls   []Call
}

// Reply is one canned answer for a [FakeCaller] method.
type Reply struct {
	Body string
	Err  error
}

// Call records one request seen by a [FakeCaller].
type Call struct {
	Method string
	Params url.Values
	Token  string
}

func NewFakeCaller() *FakeCaller {
	return &FakeCaller{replies: make(map[string][]Reply)}
}

// On queues replies for method and returns the caller for chaining.
func (f *FakeCaller) On(method string, replies ...Reply) *FakeCaller {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[method] = append(f.replies[method], replies...)
	return f
}

func (f *FakeCaller) Call(_ context.Context, method string, params url.Values, token string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Method: method, Params: params, Token: token})
	queue := f.replies[method]
	if len(queue) == 0 {
		return nil, fmt.Errorf("fake caller: no reply for %s", method)
	}
	reply := queue[0]
	if len(queue) > 1 {
		f.replies[method] = queue[1:]
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return json.RawMessage(reply.Body), nil
}

// Calls returns a copy of every recorded request.
func (f *FakeCaller) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// FakeCatalog is a test double for [services.Catalog].
type FakeCatalog struct {
	Track       *models.TrackInfo
	TrackErr    error
	Playlists   []models.PlaylistEntry
	PlaylistErr error
	Owners      map[int64]models.OwnerInfo
	OwnerErrs   map[int64]error

	mu           sync.Mutex
	searches     []string
	playlistRefs []models.TrackRef
	ownerLookups []int64
	tokens       []string
}

func (f *FakeCatalog) SearchTrack(_ context.Context, query, token string) (*models.TrackInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	f.tokens = append(f.tokens, token)
	if f.TrackErr != nil {
		return nil, f.TrackErr
	}
	if f.Track == nil {
		return nil, errors.New("fake catalog: no track configured")
	}
	track := *f.Track
	return &track, nil
}

func (f *FakeCatalog) PlaylistsByTrack(_ context.Context, ref models.TrackRef, token string) ([]models.PlaylistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlistRefs = append(f.playlistRefs, ref)
	f.tokens = append(f.tokens, token)
	if f.PlaylistErr != nil {
		return nil, f.PlaylistErr
	}
	return append([]models.PlaylistEntry(nil), f.Playlists...), nil
}

func (f *FakeCatalog) ResolveOwner(_ context.Context, ownerID int64, token string) (*models.OwnerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownerLookups = append(f.ownerLookups, ownerID)
	f.tokens = append(f.tokens, token)
	if err, ok := f.OwnerErrs[ownerID]; ok {
		return nil, err
	}
	if owner, ok := f.Owners[ownerID]; ok {
		return &owner, nil
	}
	return &models.OwnerInfo{ID: ownerID, Name: fmt.Sprintf("owner %d", ownerID)}, nil
}

// Searches returns the queries passed to SearchTrack.
func (f *FakeCatalog) Searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

// PlaylistRefs returns the refs passed to PlaylistsByTrack.
func (f *FakeCatalog) PlaylistRefs() []models.TrackRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TrackRef(nil), f.playlistRefs...)
}

// OwnerLookups returns the owner ids passed to ResolveOwner, in call order.
func (f *FakeCatalog) OwnerLookups() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.ownerLookups...)
}

// Tokens returns every token the catalog was called with.
func (f *FakeCatalog) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

// RecordingSleeper records requested pauses without sleeping.
type RecordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *RecordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

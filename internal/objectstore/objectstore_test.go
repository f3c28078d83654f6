package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "company-7/review-1/proof/a.png", want: "company-7/review-1/proof/a.png"},
		{in: "/company-7//review-1/", want: "company-7/review-1"},
		{in: `company-7\review-1`, want: "company-7/review-1"},
		{in: "../etc/passwd", want: "etc/passwd"},
		{in: "", wantErr: true},
		{in: "/", wantErr: true},
	}

	for _, tt := range tests {
		got, err := CleanPath(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPath, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Upload(ctx, "company-7/review-1/proof/a.png", "image/png", strings.NewReader("a")))
	require.NoError(t, store.Upload(ctx, "company-7/review-3/report-proof/b.png", "image/png", strings.NewReader("b")))
	require.NoError(t, store.Upload(ctx, "company-8/review-1/proof/c.png", "image/png", strings.NewReader("c")))

	assert.ErrorIs(t, store.Upload(ctx, "company-7/review-1/proof/a.png", "image/png", strings.NewReader("again")), ErrObjectExists)

	folders, err := store.ListFolders(ctx, "company-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"review-1", "review-3"}, folders)

	folders, err = store.ListFolders(ctx, "company-99")
	require.NoError(t, err)
	assert.Empty(t, folders)

	data, ct, ok := store.Get("company-7/review-1/proof/a.png")
	require.True(t, ok)
	assert.Equal(t, "a", string(data))
	assert.Equal(t, "image/png", ct)

	require.NoError(t, store.Delete(ctx, "company-7/review-1/proof/a.png", "missing/file"))
	_, _, ok = store.Get("company-7/review-1/proof/a.png")
	assert.False(t, ok)

	store.FailUploads(func(p string) error {
		if strings.HasSuffix(p, "bad.png") {
			return errors.New("disk full")
		}
		return nil
	})
	assert.EqualError(t, store.Upload(ctx, "x/bad.png", "", strings.NewReader("")), "disk full")
	assert.NoError(t, store.Upload(ctx, "x/good.png", "", strings.NewReader("")))
}

func TestSupabaseStoreUpload(t *testing.T) {
	var tokenCalls int32
	tokens := TokenFunc(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&tokenCalls, 1)
		return "service-key", nil
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/reviews/company-7/review-1/proof/my%20file.png", r.URL.EscapedPath())
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		assert.Equal(t, "false", r.Header.Get("x-upsert"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "png-bytes", string(body))
		w.Write([]byte(`{"Key":"reviews/company-7/review-1/proof/my file.png"}`))
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL+"/", "reviews", tokens)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "company-7/review-1/proof/my file.png", "image/png", strings.NewReader("png-bytes")))
	require.NoError(t, store.Upload(ctx, "company-7/review-1/proof/my file.png", "image/png", strings.NewReader("png-bytes")))
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls), "each request obtains a fresh token")
}

func TestSupabaseStoreListFolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/list/reviews", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "company-7", body["prefix"])

		w.Write([]byte(`[
			{"name":"review-1","id":null},
			{"name":"review-3","id":null},
			{"name":".emptyFolderPlaceholder","id":"0b6c"}
		]`))
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "reviews", StaticToken("k"))
	folders, err := store.ListFolders(context.Background(), "company-7/")
	require.NoError(t, err)
	assert.Equal(t, []string{"review-1", "review-3"}, folders)
}

func TestSupabaseStoreDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/reviews", r.URL.Path)

		var body map[string][]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a/b.png", "a/c.png"}, body["prefixes"])
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "reviews", StaticToken("k"))
	require.NoError(t, store.Delete(context.Background(), "a/b.png", "/a/c.png"))
	require.NoError(t, store.Delete(context.Background()))
}

func TestSupabaseStoreErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`))
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "reviews", StaticToken("k"))
	err := store.Upload(context.Background(), "a/b.png", "", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The resource already exists")

	empty := NewSupabaseStore(srv.URL, "reviews", StaticToken(""))
	err = empty.Upload(context.Background(), "a/b.png", "", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage token")
}

func TestParentDirs(t *testing.T) {
	assert.Equal(t, []string{"root", "root/company-7", "root/company-7/review-1"}, parentDirs("root/company-7/review-1/a.png"))
	assert.Empty(t, parentDirs("a.png"))
}

// fakeFTP answers like a server that keeps files and directories in maps
type fakeFTP struct {
	files    map[string]string
	dirs     map[string]bool
	mkdirErr error
	quit     bool
}

func newFakeFTP() *fakeFTP {
	return &fakeFTP{files: map[string]string{}, dirs: map[string]bool{}}
}

func (f *fakeFTP) MakeDir(p string) error {
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	if f.dirs[p] {
		return &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "Directory already exists"}
	}
	f.dirs[p] = true
	return nil
}

func (f *fakeFTP) FileSize(p string) (int64, error) {
	data, ok := f.files[p]
	if !ok {
		return 0, &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "Could not get file size."}
	}
	return int64(len(data)), nil
}

func (f *fakeFTP) Stor(p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.files[p] = string(data)
	return nil
}

func (f *fakeFTP) List(p string) ([]*ftp.Entry, error) { return nil, nil }
func (f *fakeFTP) Delete(p string) error              { delete(f.files, p); return nil }
func (f *fakeFTP) NoOp() error                        { return nil }
func (f *fakeFTP) Quit() error                        { f.quit = true; return nil }

func TestFTPStoreUpload(t *testing.T) {
	ctx := context.Background()
	fake := newFakeFTP()
	store := NewFTPStore("ftp.invalid:21", "user", "secret", "/uploads")
	store.conn = fake

	require.NoError(t, store.Upload(ctx, "company-7/review-1/proof/a.png", "image/png", strings.NewReader("first")))
	require.NoError(t, store.Upload(ctx, "company-7/review-1/proof/b.png", "image/png", strings.NewReader("second")))

	assert.Equal(t, "first", fake.files["/uploads/company-7/review-1/proof/a.png"])
	assert.True(t, fake.dirs["/uploads/company-7/review-1/proof"])

	err := store.Upload(ctx, "company-7/review-1/proof/a.png", "image/png", strings.NewReader("replacement"))
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.Equal(t, "first", fake.files["/uploads/company-7/review-1/proof/a.png"])
}

func TestFTPStoreUploadMakeDirFailure(t *testing.T) {
	fake := newFakeFTP()
	fake.mkdirErr = &textproto.Error{Code: 553, Msg: "Permission denied"}
	store := NewFTPStore("ftp.invalid:21", "user", "secret", "")
	store.conn = fake

	err := store.Upload(context.Background(), "company-7/review-1/proof/a.png", "", strings.NewReader("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create directory company-7")
	assert.Empty(t, fake.files)
}

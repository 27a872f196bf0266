package cloud

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestDisabledBackendFailsEverythingExceptCheckConnection(t *testing.T) {
	var b Backend = Disabled{}

	ctx := context.Background()

	_, err := b.Login(ctx, "a@b.com", "pw")
	assert.ErrorIs(t, err, ErrDisabled)

	assert.False(t, b.CheckConnection(ctx))
}

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, classifyStatus(http.StatusOK))
	assert.ErrorIs(t, classifyStatus(http.StatusUnauthorized), ErrUnauthorized)
	assert.ErrorIs(t, classifyStatus(http.StatusInternalServerError), ErrNetworkError)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func TestListVersionsSortsDescendingAndEmptyOn404(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		if body["game_id"] == "unknown" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		json.NewEncoder(w).Encode(listVersionsEnvelope{
			Ok: true,
			Versions: []CloudVersionSummary{
				{GameID: "sm64", VersionID: "v1", Timestamp: 100},
				{GameID: "sm64", VersionID: "v2", Timestamp: 300},
				{GameID: "sm64", VersionID: "v3", Timestamp: 200},
			},
		})
	})

	b := NewHTTPBackend(Official, srv.URL, staticToken("tok"), "dev1", "linux", "mydev", time.Second, discardLogger())

	versions, err := b.ListVersions(context.Background(), "sm64", 0)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, []string{"v2", "v3", "v1"}, []string{versions[0].VersionID, versions[1].VersionID, versions[2].VersionID})

	empty, err := b.ListVersions(context.Background(), "unknown", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListVersionsRespectsLimit(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listVersionsEnvelope{
			Ok: true,
			Versions: []CloudVersionSummary{
				{VersionID: "v1", Timestamp: 100},
				{VersionID: "v2", Timestamp: 300},
				{VersionID: "v3", Timestamp: 200},
			},
		})
	})

	b := NewHTTPBackend(Official, srv.URL, staticToken("tok"), "dev1", "linux", "mydev", time.Second, discardLogger())

	versions, err := b.ListVersions(context.Background(), "sm64", 1)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "v2", versions[0].VersionID)
}

func TestUnauthorizedMapsToErrUnauthorized(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	b := NewHTTPBackend(Official, srv.URL, staticToken("bad"), "dev1", "linux", "mydev", time.Second, discardLogger())

	_, err := b.ListGames(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUploadArchiveFullSequence(t *testing.T) {
	var sawNotify bool
	var srv *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc("/device/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/save/upload-url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(uploadURLEnvelope{
			Ok: true, UploadURL: srv.URL + "/object", R2Key: "obj", VersionID: "v1", WorkerToken: "wt",
		})
	})
	mux.HandleFunc("/save/notify-upload", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "wt", body["worker_token"])
		sawNotify = true
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/object", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/zip", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	})

	srv = newTestServer(t, mux.ServeHTTP)

	archivePath := filepath.Join(t.TempDir(), "archive.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("zip-bytes"), 0o644))

	b := NewHTTPBackend(Official, srv.URL, staticToken("tok"), "dev1", "linux", "mydev", time.Second, discardLogger())

	summary, err := b.UploadArchive(context.Background(), UploadURLRequest{
		GameID: "sm64", VersionID: "v1", FileList: []string{"a.srm"}, EmulatorID: "dolphin", DeviceID: "dev1",
	}, archivePath)

	require.NoError(t, err)
	assert.Equal(t, "sm64", summary.GameID)
	assert.True(t, sawNotify)
}

func TestDownloadVersionWritesBytesToTargetPath(t *testing.T) {
	var srv *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc("/device/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/save/download-url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(downloadURLEnvelope{
			Ok: true, DownloadURL: srv.URL + "/object", FileList: []string{"a.srm"}, SHA256: "abc",
		})
	})
	mux.HandleFunc("/object", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive-bytes"))
	})

	srv = newTestServer(t, mux.ServeHTTP)

	target := filepath.Join(t.TempDir(), "out.zip")

	b := NewHTTPBackend(Official, srv.URL, staticToken("tok"), "dev1", "linux", "mydev", time.Second, discardLogger())

	require.NoError(t, b.DownloadVersion(context.Background(), "sm64", "v1", target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(data))
}

func TestDeviceRegistrationRetriesOnceThenSucceeds(t *testing.T) {
	var attempts int

	mux := http.NewServeMux()
	mux.HandleFunc("/device/register", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/save/games", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gamesEnvelope{Ok: true, Games: []string{}})
	})

	srv := newTestServer(t, mux.ServeHTTP)

	b := NewHTTPBackend(Official, srv.URL, staticToken("tok"), "dev1", "linux", "mydev", time.Second, discardLogger())

	_, err := b.EnsureDeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestListGamesEmptyOn404(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	b := NewHTTPBackend(Official, srv.URL, staticToken("tok"), "dev1", "linux", "mydev", time.Second, discardLogger())

	games, err := b.ListGames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestLoginDecodesTokenFromEnvelope(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		json.NewEncoder(w).Encode(authEnvelope{Ok: true, UserID: "u1", Token: "jwt-token", Email: "a@b.com"})
	})

	b := NewHTTPBackend(Official, srv.URL, staticToken("tok"), "dev1", "linux", "mydev", time.Second, discardLogger())

	token, err := b.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token.Token)
}

package services_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Yulian302/lfusys-client/auth"
	authtypes "github.com/Yulian302/lfusys-client/auth/types"
	"github.com/Yulian302/lfusys-client/devserver"
	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/routers"
	"github.com/Yulian302/lfusys-client/services"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/Yulian302/lfusys-client/uploads"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret      = "test-secret"
	chunkSize   = 4096
	directLimit = 1024
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type env struct {
	requests atomic.Int64
	session  *auth.Session
	authSvc  *services.AuthServiceImpl
	files    *services.FileServiceImpl
	admin    *services.AdminServiceImpl
}

func newEnv(t *testing.T) *env {
	t.Helper()

	stores := devserver.NewMemoryStores()
	_, err := devserver.SeedAdmin(context.Background(), stores.Users, "admin", "adminpass")
	require.NoError(t, err)

	e := &env{}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		e.requests.Add(1)
		c.Next()
	})
	routers.RegisterHealthRoutes(devserver.NewHealthHandler(stores.Checks()...), r)
	routers.RegisterAuthRoutes(devserver.NewAuthHandler(stores.Users, secret, time.Hour, discard), r)
	routers.RegisterAdminRoutes(devserver.NewAdminHandler(stores.Users, secret, time.Hour), secret, r)
	routers.RegisterFileRoutes(devserver.NewFileHandler(stores.Files), secret, r)
	routers.RegisterMultipartRoutes(devserver.NewMultipartHandler(stores.Uploads, stores.Files, chunkSize, discard), secret, r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	e.session = auth.NewSession(store.NewMemorySessionStore(), "test:session")
	client, err := auth.NewClient(srv.URL, 10*time.Second, e.session, nil)
	require.NoError(t, err)

	e.authSvc = services.NewAuthServiceImpl(client, e.session)
	e.files = services.NewFileServiceImpl(client, uploads.NewUploader(client, discard), directLimit, discard)
	e.admin = services.NewAdminServiceImpl(client, e.session)
	return e
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestAuthService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.authSvc.CurrentUser(ctx)
	assert.ErrorIs(t, err, apperror.ErrNotAuthenticated)

	_, err = e.authSvc.Login(ctx, "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, "invalid credentials", err.Error())
	assert.Equal(t, http.StatusUnauthorized, apperror.StatusCode(err))

	user, err := e.authSvc.Login(ctx, "admin", "adminpass")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
	assert.True(t, e.session.IsAuthenticated(ctx))

	current, err := e.authSvc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.ID)

	status, err := e.authSvc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", status)

	require.NoError(t, e.authSvc.Logout(ctx))
	assert.False(t, e.session.IsAuthenticated(ctx))
}

func TestFileService_UploadListDownloadDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.authSvc.Login(ctx, "admin", "adminpass")
	require.NoError(t, err)

	small := []byte("hello world")
	var smallProgress []int
	direct, err := e.files.Upload(ctx, uploads.NewBytesSource("small.txt", "text/plain", small), func(p int) {
		smallProgress = append(smallProgress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(small)), direct.Size)
	assert.Equal(t, "text/plain", direct.ContentType)
	assert.Equal(t, []int{100}, smallProgress)

	big := payload(3*chunkSize + 100)
	var bigProgress []int
	chunked, err := e.files.Upload(ctx, uploads.NewBytesSource("big.bin", "", big), func(p int) {
		bigProgress = append(bigProgress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(big)), chunked.Size)
	assert.Equal(t, uploads.DefaultContentType, chunked.ContentType)
	assert.Equal(t, []int{25, 50, 75, 100}, bigProgress)

	files, err := e.files.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	got, err := e.files.Get(ctx, chunked.ID)
	require.NoError(t, err)
	assert.Equal(t, "big.bin", got.Filename)

	var buf bytes.Buffer
	n, err := e.files.Download(ctx, chunked.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(big)), n)
	assert.Equal(t, big, buf.Bytes())

	require.NoError(t, e.files.Delete(ctx, direct.ID))
	_, err = e.files.Get(ctx, direct.ID)
	assert.Equal(t, http.StatusNotFound, apperror.StatusCode(err))

	_, err = e.files.Download(ctx, direct.ID, io.Discard)
	assert.Equal(t, "file not found", err.Error())
}

func TestFileService_UnauthorizedClearsSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.session.Set(ctx, authtypes.User{ID: "x", Username: "ghost"}, "not-a-jwt"))

	_, err := e.files.List(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperror.StatusCode(err))

	assert.False(t, e.session.IsAuthenticated(ctx))
	_, err = e.authSvc.CurrentUser(ctx)
	assert.ErrorIs(t, err, apperror.ErrNotAuthenticated)
}

func TestAdminService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.admin.ListUsers(ctx)
	assert.ErrorIs(t, err, apperror.ErrNotAuthenticated)

	_, err = e.authSvc.Login(ctx, "admin", "adminpass")
	require.NoError(t, err)

	bob, err := e.admin.CreateUser(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob", bob.Username)

	users, err := e.admin.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	promoted, err := e.admin.UpdateUserRole(ctx, bob.ID, "admin")
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())

	_, err = e.admin.UpdateUserRole(ctx, bob.ID, "user")
	require.NoError(t, err)

	_, err = e.admin.CreateUser(ctx, "carol", "secret1")
	require.NoError(t, err)

	// a plain user is refused before any request goes out
	_, err = e.authSvc.Login(ctx, "bob", "secret1")
	require.NoError(t, err)
	before := e.requests.Load()
	_, err = e.admin.ListUsers(ctx)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, before, e.requests.Load())

	_, err = e.authSvc.Login(ctx, "admin", "adminpass")
	require.NoError(t, err)
	require.NoError(t, e.admin.DeleteUser(ctx, bob.ID))

	err = e.admin.DeleteUser(ctx, bob.ID)
	assert.Equal(t, http.StatusNotFound, apperror.StatusCode(err))
}

package imagesource

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftlens/backend/internal/domain"
)

func TestLoader_InlineBytes(t *testing.T) {
	l := NewLoader(Config{}, zerolog.Nop())

	data, err := l.Load(context.Background(), domain.ImageInput{Ref: "ignored", Data: []byte("abc")})

	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestLoader_DataURI(t *testing.T) {
	l := NewLoader(Config{}, zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name    string
		ref     string
		want    []byte
		wantErr bool
	}{
		{
			name: "base64",
			ref:  "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes")),
			want: []byte("png-bytes"),
		},
		{
			name: "percent encoded",
			ref:  "data:text/plain,hello%20world",
			want: []byte("hello world"),
		},
		{name: "missing comma", ref: "data:image/png;base64", wantErr: true},
		{name: "bad base64", ref: "data:image/png;base64,@@@", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := l.Load(ctx, domain.ImageInput{Ref: tt.ref})
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrImageDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)
		})
	}
}

func TestLoader_Remote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write([]byte("remote-bytes"))
		case "/big.png":
			_, _ = w.Write(make([]byte, 64))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	ctx := context.Background()

	t.Run("disabled by default", func(t *testing.T) {
		l := NewLoader(Config{}, zerolog.Nop())
		_, err := l.Load(ctx, domain.ImageInput{Ref: server.URL + "/ok.png"})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
	})

	l := NewLoader(Config{AllowRemote: true, MaxBytes: 32}, zerolog.Nop())

	t.Run("fetches", func(t *testing.T) {
		data, err := l.Load(ctx, domain.ImageInput{Ref: server.URL + "/ok.png"})
		require.NoError(t, err)
		assert.Equal(t, []byte("remote-bytes"), data)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := l.Load(ctx, domain.ImageInput{Ref: server.URL + "/missing.png"})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := l.Load(ctx, domain.ImageInput{Ref: server.URL + "/big.png"})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
	})
}

func TestLoader_AllowedHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write([]byte("remote-bytes"))
		case "/elsewhere.png":
			// same server under a host name that is not on the list
			_, port, _ := net.SplitHostPort(r.Host)
			http.Redirect(w, r, "http://localhost:"+port+"/ok.png", http.StatusFound)
		}
	}))
	defer server.Close()
	ctx := context.Background()

	t.Run("listed host fetches", func(t *testing.T) {
		l := NewLoader(Config{AllowRemote: true, AllowedHosts: []string{" 127.0.0.1 "}}, zerolog.Nop())
		data, err := l.Load(ctx, domain.ImageInput{Ref: server.URL + "/ok.png"})
		require.NoError(t, err)
		assert.Equal(t, []byte("remote-bytes"), data)
	})

	t.Run("unlisted host rejected before dialing", func(t *testing.T) {
		l := NewLoader(Config{AllowRemote: true, AllowedHosts: []string{"cdn.example.com"}}, zerolog.Nop())
		_, err := l.Load(ctx, domain.ImageInput{Ref: server.URL + "/ok.png"})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
		assert.ErrorContains(t, err, "not allowed")
	})

	t.Run("redirect to unlisted host rejected", func(t *testing.T) {
		l := NewLoader(Config{AllowRemote: true, AllowedHosts: []string{"127.0.0.1"}}, zerolog.Nop())
		_, err := l.Load(ctx, domain.ImageInput{Ref: server.URL + "/elsewhere.png"})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
		assert.ErrorContains(t, err, "not allowed")
	})
}

func TestLoader_HostAllowed(t *testing.T) {
	l := NewLoader(Config{AllowedHosts: []string{"CDN.Example.com", ""}}, zerolog.Nop())

	assert.True(t, l.hostAllowed("cdn.example.com"))
	assert.True(t, l.hostAllowed("img.cdn.example.com"))
	assert.False(t, l.hostAllowed("evilcdn.example.com"))
	assert.False(t, l.hostAllowed("169.254.169.254"))

	unrestricted := NewLoader(Config{}, zerolog.Nop())
	assert.True(t, unrestricted.hostAllowed("anything.example"))
}

func TestLoader_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("local-bytes"), 0o600))
	ctx := context.Background()

	t.Run("disabled by default", func(t *testing.T) {
		l := NewLoader(Config{}, zerolog.Nop())
		_, err := l.Load(ctx, domain.ImageInput{Ref: filepath.Join(dir, "photo.jpg")})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
	})

	l := NewLoader(Config{AllowLocalFiles: true, BaseDir: dir}, zerolog.Nop())

	t.Run("relative to base dir", func(t *testing.T) {
		data, err := l.Load(ctx, domain.ImageInput{Ref: "photo.jpg"})
		require.NoError(t, err)
		assert.Equal(t, []byte("local-bytes"), data)
	})

	t.Run("absolute inside base dir", func(t *testing.T) {
		_, err := l.Load(ctx, domain.ImageInput{Ref: filepath.Join(dir, "photo.jpg")})
		assert.NoError(t, err)
	})

	t.Run("escape rejected", func(t *testing.T) {
		_, err := l.Load(ctx, domain.ImageInput{Ref: "../etc/passwd"})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := l.Load(ctx, domain.ImageInput{Ref: "nope.jpg"})
		assert.ErrorIs(t, err, domain.ErrImageDecode)
	})
}

func TestLoader_EmptyRef(t *testing.T) {
	_, err := NewLoader(Config{}, zerolog.Nop()).Load(context.Background(), domain.ImageInput{})
	assert.ErrorIs(t, err, domain.ErrImageDecode)
}

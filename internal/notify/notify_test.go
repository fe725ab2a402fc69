package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWebhook_PostsGroupAndMessage(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), "ENTRADAS Y SALIDAS", "Bodega ▶ Visto\n[SKU-1] Tornillo: 2")
	require.NoError(t, err)
	assert.Equal(t, "ENTRADAS Y SALIDAS", got.GroupName)
	assert.Equal(t, "Bodega ▶ Visto\n[SKU-1] Tornillo: 2", got.Message)
}

func TestWebhook_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), "g", "m")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestWebhook_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, 20*time.Millisecond).Notify(context.Background(), "g", "m")
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func TestTelegram_SendsToGroupChat(t *testing.T) {
	s := new(MockSender)
	s.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == -100500 && msg.Text == "hola"
	})).Return(nil)

	n := NewTelegram(s, map[string]int64{"entradas y salidas": -100500})
	require.NoError(t, n.Notify(context.Background(), "ENTRADAS Y SALIDAS", "hola"))
	s.AssertExpectations(t)

	assert.Error(t, n.Notify(context.Background(), "OTRO GRUPO", "hola"))
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) Notify(context.Context, string, string) error {
	r.calls++
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: &StatusError{Code: 500}}

	err := Multi{bad, ok}.Notify(context.Background(), "g", "m")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)

	assert.NoError(t, Multi{ok}.Notify(context.Background(), "g", "m"))
	assert.NoError(t, Noop{}.Notify(context.Background(), "g", "m"))
}

package treasure

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAINarrator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		assert.NoError(t, sonic.Unmarshal(body, &req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		if !assert.Len(t, req.Messages, 2) {
			return
		}
		assert.Equal(t, "You are a dungeon master narrator", req.Messages[0].Content)
		assert.Contains(t, req.Messages[1].Content, "Biome: dark forest")
		assert.Contains(t, req.Messages[1].Content, "X: ~1024")
		assert.Contains(t, req.Messages[1].Content, "Contents: netherite sword")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Seek the chest! \n"}}]}`))
	}))
	defer srv.Close()

	narrator := NewNarrator("sk-test", "", srv.URL+"/v1")
	text, err := narrator.Narrate(context.Background(), Clue{
		Biome: "dark_forest", X: 1024, Z: -2048, Height: "Below ground", Item: "netherite_sword",
	})
	require.NoError(t, err)
	assert.Equal(t, "Seek the chest!", text)
}

func TestOpenAINarratorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	_, err := (&OpenAINarrator{APIKey: "bad", BaseURL: srv.URL}).Narrate(context.Background(), Clue{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestNewNarratorWithoutKey(t *testing.T) {
	narrator := NewNarrator("", "gpt-4", "")
	assert.IsType(t, StaticNarrator{}, narrator)

	text, err := narrator.Narrate(context.Background(), Clue{
		Biome: "snowy_plains", X: 16, Z: 32, Height: "Above ground", Item: "elytra",
	})
	require.NoError(t, err)
	assert.Contains(t, text, "snowy plains")
	assert.Contains(t, text, "~16")
	assert.Contains(t, text, "elytra")
}

func TestAnnouncer(t *testing.T) {
	srv := newFakeServer()
	require.NoError(t, NewAnnouncer(srv).Announce(Message{Text: `say "hi"`, Color: "red"}))
	assert.Equal(t, []string{`{"text":"say \"hi\"","color":"red"}`}, srv.tellraws)
}
